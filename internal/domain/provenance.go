package domain

// ProofEnvelope records how and when a fact was derived. Signature is the
// HMAC of the envelope's canonical encoding without the signature itself.
type ProofEnvelope struct {
	Method    string   `json:"method"`
	Model     string   `json:"model"`
	Inputs    []string `json:"inputs"`
	Timestamp string   `json:"timestamp"`
	Signature string   `json:"signature,omitempty"`
}

const (
	MethodDeterministic = "deterministic-condensation"
	MethodLLM           = "llm-distillation"
)
