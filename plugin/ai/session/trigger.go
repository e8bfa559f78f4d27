package session

import "time"

// TriggerPolicy decides when accumulated transcript justifies a summarization call.
// A call is due when any one of these holds:
//
//	elapsed >= MaxElapsed
//	chunkCount >= MaxChunks
//	elapsed >= MidElapsed && chunkCount >= MidChunks
//
// where elapsed is the time since the last AI call. A negative elapsed
// (clock skew) never satisfies a time condition.
type TriggerPolicy struct {
	MaxElapsed time.Duration
	MaxChunks  int64
	MidElapsed time.Duration
	MidChunks  int64
}

// DefaultTriggerPolicy returns the 180s / 5 chunks / (120s and 3 chunks) policy.
func DefaultTriggerPolicy() TriggerPolicy {
	return TriggerPolicy{
		MaxElapsed: 180 * time.Second,
		MaxChunks:  5,
		MidElapsed: 120 * time.Second,
		MidChunks:  3,
	}
}

// ShouldTrigger is pure: it never updates lastAICall, that is left to the caller.
func (p TriggerPolicy) ShouldTrigger(now, lastAICall time.Time, chunkCount int64) bool {
	elapsed := now.Sub(lastAICall)
	timeSatisfied := func(threshold time.Duration) bool {
		return elapsed >= 0 && elapsed >= threshold
	}

	return timeSatisfied(p.MaxElapsed) ||
		chunkCount >= p.MaxChunks ||
		(timeSatisfied(p.MidElapsed) && chunkCount >= p.MidChunks)
}

// ShouldTrigger evaluates the default policy.
func ShouldTrigger(now, lastAICall time.Time, chunkCount int64) bool {
	return DefaultTriggerPolicy().ShouldTrigger(now, lastAICall, chunkCount)
}
