package domain

import "time"

// Citation is a numbered source handed to the model and to the user.
type Citation struct {
	ID            int    `json:"id"`
	ArticleNumber int    `json:"article_number"`
	Title         string `json:"title"`
}

type SourceMetadata struct {
	ArticleNumber int     `json:"article_number"`
	Chapter       string  `json:"chapter,omitempty"`
	Title         string  `json:"title,omitempty"`
	Score         float64 `json:"score"`
	URL           string  `json:"url,omitempty"`
	Text          string  `json:"text,omitempty"`
}

type FollowUp struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type AskRequest struct {
	Question       string    `json:"question"`
	ConversationID string    `json:"conversation_id,omitempty"`
	History        []Message `json:"history,omitempty"`
}

// Answer is always returned to the caller, also when no grounded answer exists.
type Answer struct {
	ConversationID  string           `json:"conversation_id,omitempty"`
	Text            string           `json:"answer"`
	Grounded        bool             `json:"grounded"`
	SafetyFallback  bool             `json:"safety_fallback"`
	Sources         []int            `json:"sources"`
	SourceMetadata  []SourceMetadata `json:"source_metadata"`
	Citations       []Citation       `json:"citations,omitempty"`
	Confidence      float64          `json:"confidence_score"`
	Route           RouteResult      `json:"route"`
	Disclaimer      string           `json:"disclaimer,omitempty"`
	TemporalWarning string           `json:"temporal_warning,omitempty"`
	FollowUps       []FollowUp       `json:"follow_up_suggestions"`
	Error           string           `json:"error,omitempty"`
}

// AnswerRecord is the persisted outcome of one question.
type AnswerRecord struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	Citations      []Citation `json:"citations"`
	Grounded       bool       `json:"grounded"`
	SafetyFallback bool       `json:"safety_fallback"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ConversationTurn is one stored message of a conversation.
type ConversationTurn struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Turn           int       `json:"turn"`
	CreatedAt      time.Time `json:"created_at"`
}
