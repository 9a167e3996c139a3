// Package service provides domain services for SigMesh.
package service

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/pkg/token"
)

// Reserved envelope fields.
const (
	FieldExp       = "exp"
	FieldSignature = "signature"
)

// DefaultMessageTTL is the lifetime given to packed messages by default.
const DefaultMessageTTL = 60 * time.Second

// Envelope is a decoded JSON object carrying exp and signature fields.
//
// Numbers are kept as json.Number so re-encoding reproduces them verbatim.
type Envelope struct {
	fields map[string]any
}

// FromRequest decodes a raw body into an Envelope.
// Anything other than a single JSON object yields ErrMessageNotJSON.
func FromRequest(raw []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, domain.ErrMessageNotJSON.WithCause(err)
	}
	if fields == nil {
		return nil, domain.ErrMessageNotJSON.WithDetails("body is null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, domain.ErrMessageNotJSON.WithDetails("trailing data after object")
	}
	return &Envelope{fields: fields}, nil
}

// NewEnvelope wraps an existing field map. The map is not copied.
func NewEnvelope(fields map[string]any) *Envelope {
	if fields == nil {
		fields = make(map[string]any)
	}
	return &Envelope{fields: fields}
}

// Get returns the value of a field.
func (e *Envelope) Get(key string) (any, bool) {
	v, ok := e.fields[key]
	return v, ok
}

// String returns a field as a string, or "" when absent or not a string.
func (e *Envelope) String(key string) string {
	s, _ := e.fields[key].(string)
	return s
}

// Fields returns the underlying field map.
func (e *Envelope) Fields() map[string]any {
	return e.fields
}

// MarshalJSON encodes the envelope in canonical form.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return Canonical(e.fields)
}

// Canonical encodes v as compact JSON with keys sorted at every depth and
// HTML escaping disabled. U+2028 and U+2029 are written as raw UTF-8.
func Canonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators undoes the \u2028 and \u2029 escapes encoding/json
// applies unconditionally. Other escape sequences are copied untouched.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if b[i+1] == 'u' && i+6 <= len(b) {
			switch string(b[i+2 : i+6]) {
			case "2028":
				out = append(out, "\u2028"...)
				i += 5
				continue
			case "2029":
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

// EnvelopeConfig holds configuration for EnvelopeCodec.
type EnvelopeConfig struct {
	// DefaultTTL is used by Pack when no ttl is given (default: 60s).
	DefaultTTL time.Duration

	// Iterations is the signing hash iteration count.
	Iterations int

	// Clock overrides time.Now.
	Clock Clock
}

// EnvelopeCodec validates and produces signed messages.
//
// Both directions are keyed by the owning session's salt.
type EnvelopeCodec struct {
	defaultTTL time.Duration
	iterations int
	now        Clock
}

// NewEnvelopeCodec creates an EnvelopeCodec.
func NewEnvelopeCodec(config *EnvelopeConfig) *EnvelopeCodec {
	if config == nil {
		config = &EnvelopeConfig{}
	}
	c := &EnvelopeCodec{
		defaultTTL: config.DefaultTTL,
		iterations: config.Iterations,
		now:        clockOrDefault(config.Clock),
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = DefaultMessageTTL
	}
	return c
}

// Sign returns the signature of fields, ignoring any signature field.
func (c *EnvelopeCodec) Sign(fields map[string]any, salt string) (string, error) {
	unsigned := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != FieldSignature {
			unsigned[k] = v
		}
	}
	payload, err := Canonical(unsigned)
	if err != nil {
		return "", err
	}
	return token.NewHasher(salt, c.iterations).HashBytes(payload), nil
}

// Validate checks freshness, then integrity, then completeness.
//
// The checks run in that fixed order so an expired message is reported as
// expired even when its signature is also wrong.
func (c *EnvelopeCodec) Validate(env *Envelope, salt string, required ...string) error {
	if env == nil {
		return domain.ErrMessageNotJSON
	}

	rawExp, ok := env.fields[FieldExp]
	if !ok || rawExp == nil {
		return domain.ErrMessageMissingExp
	}
	exp, ok := numberValue(rawExp)
	if !ok {
		return domain.ErrMessageMissingExp.WithDetails("exp is not a number")
	}
	now := float64(c.now().UnixNano()) / float64(time.Second)
	if now > exp {
		return domain.ErrMessageExpired
	}

	rawSig, ok := env.fields[FieldSignature]
	if !ok || rawSig == nil {
		return domain.ErrMessageMissingSignature
	}
	sig, _ := rawSig.(string)
	want, err := c.Sign(env.fields, salt)
	if err != nil {
		return domain.ErrMessageTampered.WithCause(err)
	}
	if subtle.ConstantTimeCompare([]byte(sig), []byte(want)) != 1 {
		return domain.ErrMessageTampered
	}

	var missing []string
	for _, name := range required {
		if v, ok := env.fields[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return domain.ErrMessageMissingFields.WithDetails(strings.Join(missing, ", "))
	}
	return nil
}

// Pack stamps content with exp = now + ttl and a signature.
//
// ttl <= 0 selects the default TTL. Sub-second remainders round up to the
// next whole second. content is copied; any signature field in it is
// replaced.
func (c *EnvelopeCodec) Pack(content map[string]any, salt string, ttl time.Duration) (*Envelope, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	fields := make(map[string]any, len(content)+2)
	for k, v := range content {
		if k != FieldSignature {
			fields[k] = v
		}
	}
	fields[FieldExp] = c.now().Unix() + int64((ttl+time.Second-1)/time.Second)

	sig, err := c.Sign(fields, salt)
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}
	fields[FieldSignature] = sig
	return &Envelope{fields: fields}, nil
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
