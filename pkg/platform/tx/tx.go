// Package tx provides the exclusive execution boundary for top-level vault
// calls. The hosting environment the original accounting model assumes
// serializes calls globally; outside such a host every state-changing entry
// point must run inside one Boundary so no two calls interleave.
package tx

import (
	"context"
	"sync"
)

// Boundary runs a function as a single exclusive unit of work. Implementations
// must guarantee that no two functions passed to RunInTx execute concurrently.
type Boundary interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Exclusive is the default Boundary: a single process-wide mutex. It is
// sufficient as long as all state lives behind one process; a deployment with
// shared storage should substitute a serializable database transaction.
type Exclusive struct {
	mu sync.Mutex
}

func NewExclusive() *Exclusive { return &Exclusive{} }

func (e *Exclusive) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
