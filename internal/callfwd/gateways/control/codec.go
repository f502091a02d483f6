package control

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/rawbytes"

	"github.com/haukened/callfwd/internal/callfwd/domain"
)

// NoFD marks a stream that was not passed with the message.
const NoFD = -1

// Request is a decoded control datagram. Stdin, Stdout and Stderr index the
// descriptors passed alongside the message, or are NoFD.
type Request struct {
	Cmd         string `koanf:"cmd" validate:"required,max=64"`
	Stdin       int    `koanf:"stdin" validate:"gte=-1"`
	Stdout      int    `koanf:"stdout" validate:"gte=-1"`
	Stderr      int    `koanf:"stderr" validate:"gte=-1"`
	RowEstimate int64  `koanf:"row_estimate" validate:"gte=0"`

	// Meta is every field except cmd and the descriptor indices.
	Meta domain.Metadata `koanf:"-"`
}

// envelopeKeys are consumed by the transport and never reach Meta.
var envelopeKeys = []string{"cmd", "stdin", "stdout", "stderr"}

// Codec converts between control datagrams and Requests.
type Codec struct {
	validate *validator.Validate
}

// NewCodec returns a Codec.
func NewCodec() *Codec {
	return &Codec{validate: validator.New()}
}

// Decode parses a JSON object datagram. Every failure is a *domain.ProtocolError.
func (c *Codec) Decode(data []byte) (Request, error) {
	k := koanf.New(".")
	defaults := map[string]any{"stdin": NoFD, "stdout": NoFD, "stderr": NoFD}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return Request{}, &domain.ProtocolError{Reason: "defaults", Err: err}
	}
	if err := k.Load(rawbytes.Provider(data), json.Parser()); err != nil {
		return Request{}, &domain.ProtocolError{Reason: "malformed message", Err: err}
	}

	var req Request
	if err := k.Unmarshal("", &req); err != nil {
		return Request{}, &domain.ProtocolError{Reason: "malformed fields", Err: err}
	}
	if err := c.validate.Struct(req); err != nil {
		return Request{}, &domain.ProtocolError{Reason: "invalid request", Err: err}
	}

	meta := domain.Metadata(k.Raw())
	for _, key := range envelopeKeys {
		delete(meta, key)
	}
	req.Meta = meta
	return req, nil
}

// Encode renders req as a datagram. Meta keys that collide with the envelope
// are overwritten by the envelope.
func (c *Codec) Encode(req Request) ([]byte, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, &domain.ProtocolError{Reason: "invalid request", Err: err}
	}
	out := make(map[string]any, len(req.Meta)+4)
	for k, v := range req.Meta {
		out[k] = v
	}
	out["cmd"] = req.Cmd
	for key, fd := range map[string]int{"stdin": req.Stdin, "stdout": req.Stdout, "stderr": req.Stderr} {
		if fd != NoFD {
			out[key] = fd
		}
	}
	if req.RowEstimate > 0 {
		out["row_estimate"] = req.RowEstimate
	}
	b, err := json.Parser().Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode control message: %w", err)
	}
	return b, nil
}
