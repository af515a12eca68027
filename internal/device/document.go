package device

import (
	"bytes"
	"encoding/json"
	"io"

	"codeberg.org/mutker/brewctl/internal/errors"
)

// Command is one endpoint and value taken from a command document.
type Command struct {
	Endpoint string
	Payload  any
}

// Document is a JSON command object with its keys in document order.
type Document []Command

// ParseDocument decodes a JSON object without losing key order. A repeated
// key keeps its first position and takes the last value.
func ParseDocument(data []byte) (Document, errors.Error) {
	errFactory := errors.New()

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidPayload, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errFactory.WithData(ErrInvalidPayload, "command document must be a JSON object")
	}

	var doc Document
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errFactory.Wrap(ErrInvalidPayload, err)
		}
		key, _ := tok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, errFactory.Wrap(ErrInvalidPayload, err)
		}
		doc = doc.set(key, v)
	}

	if _, err := dec.Token(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidPayload, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errFactory.WithData(ErrInvalidPayload, "trailing data after command document")
	}

	return doc, nil
}

// Get returns the value of key.
func (d Document) Get(key string) (any, bool) {
	for _, c := range d {
		if c.Endpoint == key {
			return c.Payload, true
		}
	}

	return nil, false
}

func (d Document) set(key string, v any) Document {
	for i := range d {
		if d[i].Endpoint == key {
			d[i].Payload = v
			return d
		}
	}

	return append(d, Command{Endpoint: key, Payload: v})
}
