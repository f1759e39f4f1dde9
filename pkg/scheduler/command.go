package scheduler

import "github.com/sisdk/sisdk/pkg/packet"

// Action identifies what a Command asks the owning protocol to do.
type Action int

const (
	ActionConnect Action = iota
	ActionWritePacket
	ActionDisconnect
	ActionDispatch
)

// smallCommandSize is the constant accounting size used for commands that
// don't carry a packet (Connect, Disconnect, Dispatch), per spec.md §3
// ("a small constant otherwise").
const smallCommandSize = 16

// Command is a SchedulerCommand: an action plus its payload. For
// WritePacket, Payload is ignored and Packet carries the packet; for
// Dispatch, Payload carries the custom command value.
type Command struct {
	Action  Action
	Packet  packet.Packet
	Payload interface{}
}

// Size reports the command's accounting size: the packet's size for
// WritePacket commands, smallCommandSize otherwise.
func (c Command) Size() int {
	if c.Action == ActionWritePacket && c.Packet != nil {
		return c.Packet.Size()
	}
	return smallCommandSize
}
