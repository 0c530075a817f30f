package rpc

import (
	"context"
	"time"

	"github.com/Mohsinsiddi/w3link/internal/chain"
)

const pingTimeout = 5 * time.Second

// HealthCheck pings a single EVM RPC and reports whether it is healthy. A
// node is healthy if it answers within pingTimeout and its head is within
// staleBlockThreshold of bestBlock (pass 0 to skip the recency check).
func HealthCheck(ctx context.Context, url string, bestBlock uint64) (Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	ep := Endpoint{URL: url, Checked: true}
	c, err := chain.Dial(ctx, url, 0)
	if err != nil {
		return ep, err
	}
	defer c.Close()

	ep.Latency, ep.BlockNumber, err = c.Ping(ctx)
	ep.Healthy = err == nil && !isStale(ep.BlockNumber, bestBlock)
	return ep, err
}
