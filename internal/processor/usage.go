package processor

import (
	"github.com/namikmesic/streamgate/internal/stream"
	"github.com/namikmesic/streamgate/internal/streamerr"
)

// Anthropic SSE message_start payload (for usage extraction).
type messageStart struct {
	Type    string `json:"type"`
	Message struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage struct {
			InputTokens              int `json:"input_tokens"`
			OutputTokens             int `json:"output_tokens"`
			CacheReadInputTokens     int `json:"cache_read_input_tokens"`
			CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// Anthropic SSE message_delta payload (final output token count and stop reason).
type messageDelta struct {
	Type  string `json:"type"`
	Delta struct {
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// OpenAI chat completion chunk. usage is only present on the final chunk when
// stream_options.include_usage was requested.
type completionChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// UsageUpdate is what one event contributes to a stream's usage summary.
// Zero fields mean "no information", not zero tokens.
type UsageUpdate struct {
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
	StopReason          string
}

// UsageConverter extracts token usage from Anthropic and OpenAI streaming
// events. Events that carry no usage convert to an empty update.
type UsageConverter struct{}

var _ stream.Converter[UsageUpdate] = UsageConverter{}

func (UsageConverter) FromServerEvent(ev stream.Event) (UsageUpdate, error) {
	switch ev.EventType() {
	case "message_start":
		var msg messageStart
		if err := ev.JSON(&msg); err != nil {
			return UsageUpdate{}, streamerr.Conversion(err)
		}
		u := msg.Message.Usage
		return UsageUpdate{
			Model:               msg.Message.Model,
			InputTokens:         u.InputTokens,
			OutputTokens:        u.OutputTokens,
			CacheReadTokens:     u.CacheReadInputTokens,
			CacheCreationTokens: u.CacheCreationInputTokens,
		}, nil
	case "message_delta":
		var msg messageDelta
		if err := ev.JSON(&msg); err != nil {
			return UsageUpdate{}, streamerr.Conversion(err)
		}
		return UsageUpdate{OutputTokens: msg.Usage.OutputTokens, StopReason: msg.Delta.StopReason}, nil
	case "message":
		// Untyped events: OpenAI chunks are JSON objects, anything else is
		// not ours to interpret.
		if len(ev.Data) == 0 || ev.Data[0] != '{' {
			return UsageUpdate{}, nil
		}
		var chunk completionChunk
		if err := ev.JSON(&chunk); err != nil {
			return UsageUpdate{}, streamerr.Conversion(err)
		}
		u := UsageUpdate{Model: chunk.Model}
		for _, c := range chunk.Choices {
			if c.FinishReason != nil {
				u.StopReason = *c.FinishReason
			}
		}
		if chunk.Usage != nil {
			u.InputTokens = chunk.Usage.PromptTokens
			u.OutputTokens = chunk.Usage.CompletionTokens
		}
		return u, nil
	default:
		return UsageUpdate{}, nil
	}
}

// Usage accumulates updates over one stream.
type Usage struct {
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
	StopReason          string
}

// Apply merges u. Later non-zero values win.
func (s *Usage) Apply(u UsageUpdate) {
	if u.Model != "" {
		s.Model = u.Model
	}
	if u.InputTokens > 0 {
		s.InputTokens = u.InputTokens
	}
	if u.OutputTokens > 0 {
		s.OutputTokens = u.OutputTokens
	}
	if u.CacheReadTokens > 0 {
		s.CacheReadTokens = u.CacheReadTokens
	}
	if u.CacheCreationTokens > 0 {
		s.CacheCreationTokens = u.CacheCreationTokens
	}
	if u.StopReason != "" {
		s.StopReason = u.StopReason
	}
}

func (s Usage) TotalTokens() int {
	return s.InputTokens + s.OutputTokens + s.CacheReadTokens + s.CacheCreationTokens
}
