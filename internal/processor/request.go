package processor

import (
	"encoding/json"
)

// chatRequest covers the request fields Anthropic messages and OpenAI chat
// completions have in common.
type chatRequest struct {
	Model     string            `json:"model"`
	Messages  []json.RawMessage `json:"messages"`
	MaxTokens int               `json:"max_tokens"`
	Stream    bool              `json:"stream"`
	Tools     []json.RawMessage `json:"tools"`
}

type ParsedRequest struct {
	Model        string
	Stream       bool
	MaxTokens    int
	MessageCount int
	ToolCount    int
}

// Returns zero-value ParsedRequest on parse failure.
func ParseRequest(body []byte) ParsedRequest {
	var req chatRequest
	if len(body) == 0 || json.Unmarshal(body, &req) != nil {
		return ParsedRequest{}
	}
	return ParsedRequest{
		Model:        req.Model,
		Stream:       req.Stream,
		MaxTokens:    req.MaxTokens,
		MessageCount: len(req.Messages),
		ToolCount:    len(req.Tools),
	}
}
