package sisdk

import (
	"github.com/sisdk/sisdk/pkg/protocol"
	"github.com/sisdk/sisdk/pkg/protocol/fileproto"
	"github.com/sisdk/sisdk/pkg/protocol/memproto"
	"github.com/sisdk/sisdk/pkg/protocol/natsproto"
	"github.com/sisdk/sisdk/pkg/protocol/pipeproto"
	"github.com/sisdk/sisdk/pkg/protocol/tcpproto"
	"github.com/sisdk/sisdk/pkg/protocol/textproto"
)

// capabilityFactories maps a connections-string protocol name to a
// constructor for its Capability, the registry a Client consults when
// applying a parsed connections string. This is the composition
// equivalent of pkg/plugins.Manager's registry-of-backends.
var capabilityFactories = map[string]func() protocol.Capability{
	"file": func() protocol.Capability { return fileproto.New() },
	"tcp":  func() protocol.Capability { return tcpproto.New() },
	"pipe": func() protocol.Capability { return pipeproto.New() },
	"mem":  func() protocol.Capability { return memproto.New() },
	"text": func() protocol.Capability { return textproto.New() },
	"nats": func() protocol.Capability { return natsproto.New() },
}
