package rpc

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNoHealthyRPC is returned when no healthy RPC endpoint is available.
	ErrNoHealthyRPC = errors.New("no healthy RPC endpoint available")
	// ErrUnknownAlgorithm is returned by ParseAlgorithm.
	ErrUnknownAlgorithm = errors.New("unknown rpc algorithm")
)

// Algorithm defines how a read endpoint is selected.
type Algorithm string

const (
	AlgorithmFastest    Algorithm = "fastest"
	AlgorithmRoundRobin Algorithm = "round-robin"
	AlgorithmFailover   Algorithm = "failover"

	// Discard nodes more than this many blocks behind the best.
	staleBlockThreshold = 3
)

// ParseAlgorithm validates a configured algorithm name. Empty means fastest.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AlgorithmFastest, nil
	case AlgorithmFastest, AlgorithmRoundRobin, AlgorithmFailover:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q (want fastest|round-robin|failover)", ErrUnknownAlgorithm, s)
	}
}

// Endpoint is a read RPC endpoint with its measured attributes.
type Endpoint struct {
	URL         string
	Latency     time.Duration
	BlockNumber uint64
	Healthy     bool // meaningful only when Checked
	Checked     bool
}

// usable reports whether the endpoint may be picked. Unchecked endpoints
// are optimistic candidates.
func (e *Endpoint) usable(bestBlock uint64) bool {
	if e.Checked && !e.Healthy {
		return false
	}
	return !isStale(e.BlockNumber, bestBlock)
}

func isStale(block, bestBlock uint64) bool {
	return bestBlock > 0 && block+staleBlockThreshold < bestBlock
}

// Picker selects an endpoint according to its algorithm. It is safe for
// concurrent use; round-robin state is kept between calls.
type Picker struct {
	algo Algorithm

	mu      sync.Mutex
	rrIndex int
}

// NewPicker creates a Picker with the given algorithm.
func NewPicker(algo Algorithm) *Picker {
	return &Picker{algo: algo}
}

// Pick selects an endpoint from the provided list.
func (p *Picker) Pick(endpoints []Endpoint) (*Endpoint, error) {
	var best uint64
	for _, e := range endpoints {
		if (!e.Checked || e.Healthy) && e.BlockNumber > best {
			best = e.BlockNumber
		}
	}

	var candidates []*Endpoint
	for i := range endpoints {
		if endpoints[i].usable(best) {
			candidates = append(candidates, &endpoints[i])
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoHealthyRPC
	}

	switch p.algo {
	case AlgorithmFailover:
		return candidates[0], nil
	case AlgorithmRoundRobin:
		p.mu.Lock()
		defer p.mu.Unlock()
		e := candidates[p.rrIndex%len(candidates)]
		p.rrIndex = (p.rrIndex + 1) % len(candidates)
		return e, nil
	default:
		winner := candidates[0]
		for _, e := range candidates[1:] {
			if faster(e, winner) {
				winner = e
			}
		}
		return winner, nil
	}
}

// faster orders by latency, then by head height. Unmeasured latency loses.
func faster(a, b *Endpoint) bool {
	switch {
	case a.Latency > 0 && b.Latency <= 0:
		return true
	case a.Latency <= 0 && b.Latency > 0:
		return false
	case a.Latency != b.Latency:
		return a.Latency < b.Latency
	default:
		return a.BlockNumber > b.BlockNumber
	}
}
