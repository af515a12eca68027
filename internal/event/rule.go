package event

import (
	"strings"

	"codeberg.org/mutker/brewctl/internal/errors"
)

const ruleArrow = "=>"

// Handler accepts commands addressed to one of its endpoints.
type Handler interface {
	Dispatch(endpoint string, payload any) error
}

// Rule forwards events named Source.SourceEndpoint to the Dest component's
// DestEndpoint.
type Rule struct {
	Source         string
	SourceEndpoint string
	Dest           string
	DestEndpoint   string
}

// ParseRule parses a wiring rule of the form "source.endpoint=>dest.endpoint".
func ParseRule(s string) (Rule, error) {
	errFactory := errors.New()

	send, recv, ok := strings.Cut(s, ruleArrow)
	if !ok {
		return Rule{}, errFactory.WithData(ErrInvalidRule, s)
	}

	source, sourceEndpoint, err := splitName(send)
	if err != nil {
		return Rule{}, errFactory.WithData(ErrInvalidRule, s)
	}

	dest, destEndpoint, err := splitName(recv)
	if err != nil {
		return Rule{}, errFactory.WithData(ErrInvalidRule, s)
	}

	return Rule{
		Source:         source,
		SourceEndpoint: sourceEndpoint,
		Dest:           dest,
		DestEndpoint:   destEndpoint,
	}, nil
}

// SourceName is the event name the rule listens for.
func (r Rule) SourceName() string {
	return Name(r.Source, r.SourceEndpoint)
}

func (r Rule) String() string {
	return r.SourceName() + ruleArrow + Name(r.Dest, r.DestEndpoint)
}

// Connect registers r on the bus, forwarding matching payloads to h.
func (b *Bus) Connect(r Rule, h Handler) {
	endpoint := r.DestEndpoint
	b.Register(r.SourceName(), func(payload any) error {
		return h.Dispatch(endpoint, payload)
	})
}

func splitName(s string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New().WithData(ErrInvalidRule, s)
	}

	return parts[0], parts[1], nil
}
