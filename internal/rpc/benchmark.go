package rpc

import (
	"context"
	"sync"

	"github.com/Mohsinsiddi/w3link/internal/chain"
)

// Benchmark pings all URLs in parallel. Every returned endpoint is Checked;
// order follows urls so failover keeps the configured priority.
func Benchmark(ctx context.Context, urls []string) []Endpoint {
	endpoints := make([]Endpoint, len(urls))
	var wg sync.WaitGroup

	for i, url := range urls {
		wg.Add(1)
		go func(idx int, u string) {
			defer wg.Done()
			ep, _ := HealthCheck(ctx, u, 0)
			endpoints[idx] = ep
		}(i, url)
	}

	wg.Wait()
	return endpoints
}

// Best benchmarks urls and returns the one chosen by algo. A single URL is
// returned without probing.
func Best(ctx context.Context, urls []string, algo Algorithm) (string, error) {
	switch len(urls) {
	case 0:
		return "", ErrNoHealthyRPC
	case 1:
		return urls[0], nil
	}

	winner, err := NewPicker(algo).Pick(Benchmark(ctx, urls))
	if err != nil {
		return "", err
	}
	return winner.URL, nil
}

// Connect picks the best of urls and dials it.
func Connect(ctx context.Context, urls []string, algo Algorithm) (*chain.Client, error) {
	url, err := Best(ctx, urls, algo)
	if err != nil {
		return nil, err
	}
	return chain.Dial(ctx, url, chain.DefaultDialTimeout)
}
