package contxt

import (
	"context"
	"os"
	"time"
)

// NewContext returns a context that expires after timeout. Used for the
// bounded publish calls toward the entity platform. Tests set CONTEXT_TEST to
// get a plain background context instead.
func NewContext(timeout time.Duration) context.Context {
	if os.Getenv("CONTEXT_TEST") != "" {
		return context.Background()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ctx
}
