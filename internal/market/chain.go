package market

import (
	"context"
	"fmt"
	"log/slog"
)

type step[T any] struct {
	name string
	run  func(context.Context) (T, error)
}

func stepOf[T any](name string, run func(context.Context) (T, error)) step[T] {
	return step[T]{name: name, run: run}
}

// tryInOrder returns the first successful step. Failed steps are logged and
// collected; a cancelled context stops the chain early.
func tryInOrder[T any](ctx context.Context, logger *slog.Logger, op string, steps ...step[T]) (T, string, error) {
	var zero T
	all := &AllProvidersError{Op: op}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			all.Errs = append(all.Errs, err)
			return zero, "", all
		}

		v, err := safeRun(ctx, s)
		if err == nil {
			return v, s.name, nil
		}
		logger.Warn("provider failed", "op", op, "provider", s.name, "err", err)
		all.Errs = append(all.Errs, err)
	}

	if len(all.Errs) == 0 {
		all.Errs = append(all.Errs, fmt.Errorf("no provider configured"))
	}
	return zero, "", all
}

func safeRun[T any](ctx context.Context, s step[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", s.name, r)
		}
	}()
	return s.run(ctx)
}
