package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/agentgraph/internal/state"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

type rateLimited struct {
	next    Backend
	limiter *rate.Limiter
}

// RateLimited wraps b so calls wait for a token. A burst below 1 is raised to 1.
func RateLimited(b Backend, perSecond float64, burst int) Backend {
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{next: b, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *rateLimited) Invoke(ctx context.Context, messages []state.Message, toolset []tools.Descriptor) (state.Message, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return state.Message{}, fmt.Errorf("rate limiter error: %w", err)
	}
	return r.next.Invoke(ctx, messages, toolset)
}
