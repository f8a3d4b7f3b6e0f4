package common

import (
	"context"
	"errors"
	"time"
)

// RetryBaseDelay — пауза перед первым повтором, дальше удваивается.
var RetryBaseDelay = 10 * time.Millisecond

// RetryConcurrent вызывает fn и повторяет её при ErrConcurrentModification
// не более maxRetries раз. Любая другая ошибка (в том числе доменный отказ)
// возвращается сразу. onRetry вызывается перед каждым повтором.
func RetryConcurrent(ctx context.Context, maxRetries int, onRetry func(attempt int, err error), fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, ErrConcurrentModification) || attempt >= maxRetries {
			return err
		}

		if onRetry != nil {
			onRetry(attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(RetryBaseDelay << attempt):
		}
	}
}
