package gemini

import (
	"context"
	"strings"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

var harmCategories = []string{
	"HARM_CATEGORY_DANGEROUS_CONTENT",
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// safetySettings blocks only high-probability harm. The relaxed tier turns
// the dangerous-content filter off, which otherwise trips on tax-penalty
// wording.
func safetySettings(level domain.SafetyLevel) []safetySetting {
	out := make([]safetySetting, 0, len(harmCategories))
	for _, category := range harmCategories {
		threshold := "BLOCK_ONLY_HIGH"
		if level == domain.SafetyRelaxed && category == "HARM_CATEGORY_DANGEROUS_CONTENT" {
			threshold = "OFF"
		}
		out = append(out, safetySetting{Category: category, Threshold: threshold})
	}
	return out
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	SafetySettings    []safetySetting  `json:"safetySettings"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type Generator struct {
	client       *Client
	defaultModel string
}

func NewGenerator(client *Client, defaultModel string) *Generator {
	return &Generator{client: client, defaultModel: defaultModel}
}

func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResponse, error) {
	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = g.defaultModel
	}

	body := generateRequest{
		Contents: make([]content, 0, len(req.Messages)),
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		},
		SafetySettings: safetySettings(req.Safety),
	}
	if req.JSON {
		body.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}
	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == domain.RoleModel {
			role = "model"
		}
		body.Contents = append(body.Contents, content{Role: role, Parts: []part{{Text: msg.Text}}})
	}

	var resp generateResponse
	if err := g.client.postJSON(ctx, modelPath(model, "generateContent"), body, &resp, "generate", model); err != nil {
		return domain.GenerationResponse{}, err
	}

	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback.BlockReason != "" {
			return domain.GenerationResponse{FinishReason: domain.FinishBlocked}, nil
		}
		return domain.GenerationResponse{FinishReason: domain.FinishNoCandidate}, nil
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, p := range candidate.Content.Parts {
		text.WriteString(p.Text)
	}
	return domain.GenerationResponse{
		Text:         text.String(),
		FinishReason: mapFinishReason(candidate.FinishReason),
	}, nil
}

func mapFinishReason(reason string) domain.FinishReason {
	switch reason {
	case "STOP":
		return domain.FinishStop
	case "SAFETY", "PROHIBITED_CONTENT", "SPII", "IMAGE_SAFETY":
		return domain.FinishSafety
	case "BLOCKLIST", "RECITATION":
		return domain.FinishBlocked
	case "MAX_TOKENS":
		return domain.FinishMaxTokens
	case "", "FINISH_REASON_UNSPECIFIED":
		return domain.FinishUnspecified
	default:
		return domain.FinishOther
	}
}
