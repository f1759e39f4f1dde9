// Package connstring parses the connections-string DSL used to configure
// a set of protocols in one line, per spec.md §4.B:
//
//	CONNS := PROTO ("," PROTO)*
//	PROTO := name "(" OPTS ")"
//	OPTS  := (KEY "=" VAL ("," KEY "=" VAL)*)?
//
// and performs the $name$ variable substitution of §4.K ahead of parsing.
package connstring

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidConnections is wrapped by every parse failure, matching the
// "invalid-connections" error kind spec.md §4.B names — always surfaced
// directly to the caller, never only via an event (spec.md §7).
var ErrInvalidConnections = errors.New("invalid-connections")

// Protocol is one parsed PROTO: a name plus its lower-cased option map.
type Protocol struct {
	Name    string
	Options map[string]string
}

// Parse expands variables in s, then parses the connections grammar.
func Parse(s string, vars *VariableTable) ([]Protocol, error) {
	if vars != nil {
		s = vars.Expand(s)
	}
	return parse(s)
}

func parse(s string) ([]Protocol, error) {
	p := &parser{input: s}
	var protocols []Protocol

	for {
		p.skipSpace()
		if p.atEnd() {
			break
		}

		name, err := p.readName()
		if err != nil {
			return nil, err
		}

		p.skipSpace()
		if !p.consume('(') {
			return nil, errors.Wrapf(ErrInvalidConnections, "expected '(' after protocol name %q", name)
		}

		opts, err := p.readOptions()
		if err != nil {
			return nil, err
		}

		p.skipSpace()
		if !p.consume(')') {
			return nil, errors.Wrapf(ErrInvalidConnections, "expected ')' closing protocol %q", name)
		}

		protocols = append(protocols, Protocol{Name: strings.ToLower(name), Options: opts})

		p.skipSpace()
		if p.atEnd() {
			break
		}
		if !p.consume(',') {
			return nil, errors.Wrap(ErrInvalidConnections, "expected ',' between protocols")
		}
	}

	return protocols, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.input) }

func (p *parser) peek() byte {
	if p.atEnd() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for !p.atEnd() && isSpace(p.input[p.pos]) {
		p.pos++
	}
}

func (p *parser) consume(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) readName() (string, error) {
	start := p.pos
	for !p.atEnd() && p.input[p.pos] != '(' && !isSpace(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", errors.Wrap(ErrInvalidConnections, "expected protocol name")
	}
	return p.input[start:p.pos], nil
}

// readOptions reads KEY=VAL pairs up to (not consuming) the closing ')'.
func (p *parser) readOptions() (map[string]string, error) {
	opts := make(map[string]string)

	p.skipSpace()
	if p.peek() == ')' {
		return opts, nil
	}

	for {
		p.skipSpace()
		key, err := p.readKey()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if !p.consume('=') {
			return nil, errors.Wrapf(ErrInvalidConnections, "missing '=' for option %q", key)
		}
		p.skipSpace()
		val, err := p.readValue()
		if err != nil {
			return nil, err
		}
		opts[strings.ToLower(key)] = val

		p.skipSpace()
		if p.consume(',') {
			continue
		}
		break
	}

	return opts, nil
}

func (p *parser) readKey() (string, error) {
	start := p.pos
	for !p.atEnd() && p.input[p.pos] != '=' && !isSpace(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", errors.Wrap(ErrInvalidConnections, "expected option key")
	}
	return p.input[start:p.pos], nil
}

// readValue reads either a quoted value (with "" as an escaped quote and
// commas tolerated inside) or an unquoted value terminated by ',' or ')'.
func (p *parser) readValue() (string, error) {
	if p.peek() == '"' {
		return p.readQuoted()
	}

	start := p.pos
	for !p.atEnd() && p.input[p.pos] != ',' && p.input[p.pos] != ')' {
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos]), nil
}

func (p *parser) readQuoted() (string, error) {
	p.pos++ // consume opening quote
	var sb strings.Builder

	for {
		if p.atEnd() {
			return "", errors.Wrap(ErrInvalidConnections, "unterminated quoted value")
		}
		c := p.input[p.pos]
		if c == '"' {
			// Two consecutive quotes is an escaped literal quote.
			if p.pos+1 < len(p.input) && p.input[p.pos+1] == '"' {
				sb.WriteByte('"')
				p.pos += 2
				continue
			}
			p.pos++ // consume closing quote
			break
		}
		sb.WriteByte(c)
		p.pos++
	}

	return sb.String(), nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
