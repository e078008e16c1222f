package backend

import (
	"context"
)

// Backend manages the platform's own DNS zone. The verification engine only
// probes tenant DNS; the one record it owns is the shared CNAME target
// tenants point their hostnames at.
type Backend interface {
	// EnsureRoutingTarget upserts the CNAME target's A record so tenant
	// domains have something to route to.
	EnsureRoutingTarget(ctx context.Context) error
}

type noop struct{}

// NewNoop is used when no hosted zone is configured; the CNAME target is
// assumed to be managed elsewhere.
func NewNoop() Backend {
	return noop{}
}

func (noop) EnsureRoutingTarget(context.Context) error {
	return nil
}
