// Package llm defines the model-agnostic generation provider abstraction and
// the registry that tracks which provider is active. Adapters (Gemini,
// Ollama) implement the Provider interface so the pipeline is never coupled
// to a specific vendor.
package llm

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the three known values.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is a single conversation turn. Turns are built per request and never
// persisted.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Capability names an operation a provider supports.
type Capability string

const (
	CapabilityGenerate  Capability = "generate"
	CapabilityModelInfo Capability = "modelInfo"
)

// ModelMeta describes the provider and model identity.
type ModelMeta struct {
	ID           string       `json:"id"`           // e.g. "gemini-1.5-flash", "llama3.2:3b"
	Provider     string       `json:"provider"`     // e.g. "gemini", "ollama"
	Kind         string       `json:"kind"`         // "hosted" or "local"
	Capabilities []Capability `json:"capabilities"`
}

// Options carries generation parameters passed through to providers.
// The core does not interpret them.
type Options struct {
	Temperature float32
	MaxTokens   int
}
