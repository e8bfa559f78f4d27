package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/Momena-akhtar/classfellow-sub000/plugin/ai/timeout"
)

var (
	// ErrEmptyTranscript is returned when there is nothing to summarize.
	ErrEmptyTranscript = errors.New("transcript is empty")
	// ErrAIDisabled is returned when a summarizer is requested from a disabled config.
	ErrAIDisabled = errors.New("AI is disabled")
)

const summarizePrompt = `You are a study assistant listening to a live lecture.
Summarize the following transcript excerpt for the student in a few short bullet points.
Keep key terms, definitions and any assignments or deadlines that are mentioned.
Reply with the summary only.`

// Summarizer turns accumulated transcript text into a summary fragment.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// LLMSummarizer summarizes transcript text with a chat model.
type LLMSummarizer struct {
	llm LLMService
}

// NewLLMSummarizer creates a summarizer backed by the given LLM service.
func NewLLMSummarizer(llm LLMService) *LLMSummarizer {
	return &LLMSummarizer{llm: llm}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	// Keep the most recent part of an oversized excerpt.
	if runes := []rune(text); len(runes) > timeout.MaxSummaryInputRunes {
		text = string(runes[len(runes)-timeout.MaxSummaryInputRunes:])
	}

	summary, err := s.llm.Chat(ctx, []Message{
		{Role: "system", Content: summarizePrompt},
		{Role: "user", Content: text},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

// NewSummarizer builds the summarizer described by cfg.
// Callers check Enabled first; a disabled config yields ErrAIDisabled.
func NewSummarizer(cfg *Config) (Summarizer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, ErrAIDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	llm, err := NewLLMService(&cfg.LLM)
	if err != nil {
		return nil, err
	}
	return NewLLMSummarizer(llm), nil
}

var _ Summarizer = (*LLMSummarizer)(nil)
