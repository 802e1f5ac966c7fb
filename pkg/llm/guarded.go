package llm

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/retry"
)

// GuardedClient wraps an LLMClient with a circuit breaker and retries of
// retryable errors. Only the final outcome of a retried call counts against
// the breaker.
type GuardedClient struct {
	next    LLMClient
	breaker *CircuitBreaker
	retry   *retry.Config
	logger  *zap.Logger
}

// NewGuardedClient creates a guarded client. A nil retry config uses
// retry.DefaultConfig.
func NewGuardedClient(next LLMClient, breaker *CircuitBreaker, retryConfig *retry.Config, logger *zap.Logger) *GuardedClient {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCircuitBreakerConfig())
	}
	return &GuardedClient{
		next:    next,
		breaker: breaker,
		retry:   retryConfig,
		logger:  logger.Named("llm-guard"),
	}
}

var _ LLMClient = (*GuardedClient)(nil)

// Complete implements LLMClient.
func (g *GuardedClient) Complete(ctx context.Context, req Request) (*Result, error) {
	if err := g.breaker.Allow(); err != nil {
		g.logger.Debug("LLM call refused", zap.Error(err))
		return nil, err
	}

	result, err := retry.DoIfRetryableWithResult(ctx, g.retry, func() (*Result, error) {
		return g.next.Complete(ctx, req)
	})
	if err != nil {
		g.breaker.RecordFailure()
		if g.breaker.State() == CircuitOpen {
			g.logger.Warn("LLM circuit opened",
				zap.Int("consecutive_failures", g.breaker.ConsecutiveFailures()),
				zap.Error(err))
		}
		return nil, err
	}

	g.breaker.RecordSuccess()
	return result, nil
}

// GetModel implements LLMClient.
func (g *GuardedClient) GetModel() string {
	return g.next.GetModel()
}

// GetEndpoint implements LLMClient.
func (g *GuardedClient) GetEndpoint() string {
	return g.next.GetEndpoint()
}

// Breaker exposes the circuit breaker for health reporting.
func (g *GuardedClient) Breaker() *CircuitBreaker {
	return g.breaker
}
