package domain

// SafetyLevel names a content-filtering configuration of the generation backend.
type SafetyLevel string

const (
	SafetyStrict  SafetyLevel = "strict"
	SafetyRelaxed SafetyLevel = "relaxed"
)

// FinishReason is the backend-neutral reason a generation stopped.
type FinishReason string

const (
	FinishStop        FinishReason = "stop"
	FinishSafety      FinishReason = "safety"
	FinishMaxTokens   FinishReason = "max_tokens"
	FinishBlocked     FinishReason = "blocked"
	FinishNoCandidate FinishReason = "no_candidates"
	FinishOther       FinishReason = "other"
	FinishUnspecified FinishReason = ""
)

type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

type GenerationRequest struct {
	Model           string
	SystemPrompt    string
	Messages        []Message
	Temperature     float64
	MaxOutputTokens int
	Safety          SafetyLevel
	JSON            bool
}

type GenerationResponse struct {
	Text         string
	FinishReason FinishReason
}

// GenerationAttempt is one (model, strictness) cell of the retry matrix.
type GenerationAttempt struct {
	Model  string      `json:"model"`
	Safety SafetyLevel `json:"safety"`
}

// AttemptState is the state of a single generation attempt.
type AttemptState int

const (
	AttemptPending AttemptState = iota
	AttemptSuccess
	AttemptBlocked
	AttemptTruncated
	AttemptError
)

func (s AttemptState) String() string {
	switch s {
	case AttemptPending:
		return "pending"
	case AttemptSuccess:
		return "success"
	case AttemptBlocked:
		return "blocked"
	case AttemptTruncated:
		return "truncated"
	case AttemptError:
		return "error"
	default:
		return "unknown"
	}
}

// CriticResult is the reviewer verdict. Feedback is set only on rejection.
type CriticResult struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

func Approved() CriticResult {
	return CriticResult{Approved: true}
}
