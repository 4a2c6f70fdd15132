package translate

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type breakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker guards next with a circuit breaker that opens after failures consecutive errors.
// Vendor 4xx responses are caller mistakes (bad key, bad pair) and do not count as failures.
func WithBreaker(next Provider, name string, failures uint32, timeout time.Duration, log *zap.Logger) Provider {
	if log == nil {
		log = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("provider breaker state changed",
				zap.String("engine", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &breakerProvider{next: next, cb: cb}
}

func (b *breakerProvider) Translate(ctx context.Context, credential, text, from, to string) (string, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Translate(ctx, credential, text, from, to)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (b *breakerProvider) Detect(ctx context.Context, credential, text string, hints []string) ([]string, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Detect(ctx, credential, text, hints)
	})
	if err != nil {
		return nil, err
	}
	langs, _ := v.([]string)
	return langs, nil
}
