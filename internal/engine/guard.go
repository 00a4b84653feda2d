package engine

import "context"

type guardKey struct{}

// withGuard marks a context handed to adapters. If an adapter implementation
// calls back into the engine with that context, the entry point sees the
// marker and fails fast instead of deadlocking on the writer lock.
func withGuard(ctx context.Context) context.Context {
	return context.WithValue(ctx, guardKey{}, struct{}{})
}

// checkReentrancy rejects contexts that already carry the adapter marker.
func checkReentrancy(ctx context.Context) error {
	if ctx.Value(guardKey{}) != nil {
		return ErrReentrancy
	}
	return nil
}
