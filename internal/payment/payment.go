// Package payment defines the capability the Purchase Coordinator
// authorizes charges through. Its internals — card networks, PCI
// scope, webhooks — are explicitly out of scope for this system; only
// the narrow interface the coordinator drives is specified here,
// plus a sandbox implementation used until a real processor is wired
// in.
package payment

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Request is what the coordinator asks the capability to authorize.
type Request struct {
	TransactionID uint64
	UserID        uint64
	AmountCents   int64
	Method        string
}

// Result is what the capability returns. Exactly one of ExternalRef or
// DeclineCode is set.
type Result struct {
	Approved    bool
	ExternalRef string
	DeclineCode string
	ProcessedAt time.Time
}

// Capability authorizes a single charge. Implementations must be safe
// for concurrent use and should treat ctx cancellation as a hard
// timeout, returning an error rather than leaving the caller uncertain
// whether the charge went through — the coordinator treats any error
// from Authorize as "outcome unknown" and fails the transaction rather
// than confirming seats against an unconfirmed charge.
type Capability interface {
	Authorize(ctx context.Context, req Request) (Result, error)
}

// sandbox is a deterministic fake processor for local development and
// tests: it declines a fixed magic method so failure paths are
// reachable on demand, and otherwise approves immediately.
type sandbox struct {
	clock func() time.Time
}

// NewSandbox returns a Capability that approves every request except
// ones using the "decline" method, which it always declines with a
// fixed reason — useful for exercising the Purchase Coordinator's
// rollback path without a real processor.
func NewSandbox() Capability {
	return &sandbox{clock: time.Now}
}

func (s *sandbox) Authorize(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}
	now := s.clock()
	if strings.EqualFold(req.Method, "decline") {
		return Result{Approved: false, DeclineCode: "sandbox_decline", ProcessedAt: now}, nil
	}
	return Result{Approved: true, ExternalRef: "sandbox-" + refFor(req), ProcessedAt: now}, nil
}

func refFor(req Request) string {
	return time.Now().UTC().Format("20060102150405") + "-" + strconv.FormatUint(req.TransactionID, 10)
}
