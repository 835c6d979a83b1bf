package events

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
)

// BreakerWriter stops calling the broker after repeated failures and lets
// a single trial request through once the open period has passed.
type BreakerWriter struct {
	next    MessageWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerWriter(next MessageWriter, logger *zap.Logger) *BreakerWriter {
	return &BreakerWriter{
		next: next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "kafka-writer",
			MaxRequests: 1,
			Timeout:     breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

func (w *BreakerWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, err := w.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, w.next.WriteMessages(ctx, msgs...)
	})
	return err
}

// State reports the breaker state, for logs and tests
func (w *BreakerWriter) State() gobreaker.State {
	return w.breaker.State()
}
