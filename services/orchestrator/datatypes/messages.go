package datatypes

// Message is a single chat turn exchanged with an LLM backend.
// Role is one of "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
