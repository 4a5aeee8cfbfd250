package gameapi

// Envelope is the uniform response wrapper every backend endpoint returns.
// Success=false with a 200 status is an application-level failure; Message
// carries the human-readable explanation when the server provides one.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginResult is the payload returned by the auto-login endpoint.
type LoginResult struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// MessageResponse is returned by the send-message endpoint, carrying the
// updated transcript so the caller can apply it without waiting for the next
// poll.
type MessageResponse struct {
	Envelope
	Messages any `json:"messages"`
}

// GuessResponse is returned by the guess endpoint.
type GuessResponse struct {
	Envelope
	Correct       bool   `json:"correct"`
	RoundFinished bool   `json:"round_finished"`
	TargetWord    string `json:"target_word"`
}

// GenerateSketchRequest describes one sketch-generation call.
type GenerateSketchRequest struct {
	Prompt      string         `json:"prompt"`
	MaxSteps    int            `json:"max_steps"`
	SortMethod  string         `json:"sort_method,omitempty"`
	ModelConfig map[string]any `json:"config,omitempty"`
}

// GenerateSketchResponse is the step sequence produced by the backend.
type GenerateSketchResponse struct {
	Envelope
	Steps      []string          `json:"steps"`
	FinalImage string            `json:"final_image"`
	StepCount  int               `json:"step_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
