package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/jobscout/retry"
)

// Fallback retries a Generator and substitutes a canned text when it keeps
// failing, so drafting never stalls on the provider.
type Fallback struct {
	gen    Generator
	policy retry.Policy
}

// NewFallback wraps gen. gen may be nil, in which case every call returns
// the fallback text.
func NewFallback(gen Generator, policy retry.Policy) *Fallback {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 2 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Retryable == nil {
		policy.Retryable = retryable
	}
	return &Fallback{gen: gen, policy: policy}
}

// Enabled reports whether a real provider is configured.
func (f *Fallback) Enabled() bool { return f.gen != nil }

// Generate returns the generated text, or fallback with usedFallback set
// when no provider is configured or every attempt failed. It only returns
// early with fallback when ctx ends.
func (f *Fallback) Generate(ctx context.Context, prompt, fallback string) (text string, usedFallback bool) {
	if f.gen == nil {
		return fallback, true
	}
	err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		out, err := f.gen.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		slog.Warn("text generation failed, using template", "error", err)
		return fallback, true
	}
	return text, false
}
