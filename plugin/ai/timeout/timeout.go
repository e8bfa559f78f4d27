// Package timeout defines centralized timeout constants for session and AI operations.
package timeout

import "time"

const (
	// StoreTimeout bounds a single ephemeral or durable store call when the
	// profile does not override it.
	StoreTimeout = 3 * time.Second

	// SummarizeTimeout bounds one summarization job, retries included.
	SummarizeTimeout = 90 * time.Second

	// LLMRequestTimeout bounds a single chat completion request.
	LLMRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long the server waits for in-flight work on shutdown.
	ShutdownTimeout = 10 * time.Second

	// MaxSummaryInputRunes caps the transcript text sent in one summarization request.
	MaxSummaryInputRunes = 24000
)
