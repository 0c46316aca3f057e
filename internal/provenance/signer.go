// Package provenance builds and signs proof envelopes for admitted facts.
package provenance

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

var ErrEmptySecret = errors.New("provenance: signing secret is empty")

// Signer signs envelopes with HMAC-SHA256 under a process-wide key.
type Signer struct {
	key []byte
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{key: []byte(secret)}, nil
}

// Build creates an unsigned envelope.
func Build(method, model string, inputs []string, at time.Time) domain.ProofEnvelope {
	in := make([]string, len(inputs))
	copy(in, inputs)
	return domain.ProofEnvelope{
		Method:    method,
		Model:     model,
		Inputs:    in,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}

// Sign returns env with its signature set. Any existing signature is ignored.
func (s *Signer) Sign(env domain.ProofEnvelope) (domain.ProofEnvelope, error) {
	payload, err := Canonical(env)
	if err != nil {
		return domain.ProofEnvelope{}, fmt.Errorf("sign envelope: %w", err)
	}
	env.Signature = s.mac(payload)
	return env, nil
}

// Verify recomputes the signature over the canonical form and compares in
// constant time.
func (s *Signer) Verify(env domain.ProofEnvelope) bool {
	if env.Signature == "" {
		return false
	}
	payload, err := Canonical(env)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(env.Signature)
	if err != nil {
		return false
	}
	m := hmac.New(sha256.New, s.key)
	m.Write(payload)
	return hmac.Equal(m.Sum(nil), want)
}

func (s *Signer) mac(payload []byte) string {
	m := hmac.New(sha256.New, s.key)
	m.Write(payload)
	return hex.EncodeToString(m.Sum(nil))
}

// Canonical encodes env without its signature as JSON with sorted keys and
// no HTML escaping.
func Canonical(env domain.ProofEnvelope) ([]byte, error) {
	inputs := env.Inputs
	if inputs == nil {
		inputs = []string{}
	}
	// encoding/json sorts map keys.
	fields := map[string]any{
		"method":    env.Method,
		"model":     env.Model,
		"inputs":    inputs,
		"timestamp": env.Timestamp,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// HashInputs returns the hex SHA-256 of each text.
func HashInputs(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		sum := sha256.Sum256([]byte(t))
		out[i] = hex.EncodeToString(sum[:])
	}
	return out
}
