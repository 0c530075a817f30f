package rpc

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type headService struct {
	head  uint64
	delay time.Duration
}

func (s *headService) BlockNumber() hexutil.Uint64 {
	time.Sleep(s.delay)
	return hexutil.Uint64(s.head)
}

// evmRPCServer serves eth_blockNumber through a real go-ethereum rpc server.
func evmRPCServer(t *testing.T, blockNum uint64, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := gethrpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", &headService{head: blockNum, delay: delay}))
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return ts
}

const deadURL = "http://127.0.0.1:19994"

// ---------------------------------------------------------------------------
// HealthCheck
// ---------------------------------------------------------------------------

func TestHealthCheckHealthy(t *testing.T) {
	srv := evmRPCServer(t, 1000, 0)

	ep, err := HealthCheck(context.Background(), srv.URL, 0)
	require.NoError(t, err)

	assert.True(t, ep.Healthy)
	assert.True(t, ep.Checked)
	assert.Equal(t, srv.URL, ep.URL)
	assert.Equal(t, uint64(1000), ep.BlockNumber)
	assert.Greater(t, ep.Latency, time.Duration(0), "latency should be measured")
}

func TestHealthCheckUnreachable(t *testing.T) {
	ep, err := HealthCheck(context.Background(), deadURL, 0)
	require.Error(t, err)
	assert.False(t, ep.Healthy)
	assert.True(t, ep.Checked)
}

func TestHealthCheckStaleBehind(t *testing.T) {
	srv := evmRPCServer(t, 500, 0)

	ep, err := HealthCheck(context.Background(), srv.URL, 510)
	require.NoError(t, err) // RPC call itself succeeded
	assert.False(t, ep.Healthy, "node is too far behind bestBlock")
	assert.Equal(t, uint64(500), ep.BlockNumber)
}

func TestHealthCheckJustWithinThreshold(t *testing.T) {
	srv := evmRPCServer(t, 507, 0)

	ep, err := HealthCheck(context.Background(), srv.URL, 510)
	require.NoError(t, err)
	assert.True(t, ep.Healthy)
}

func TestHealthCheckAheadOfBest(t *testing.T) {
	srv := evmRPCServer(t, 600, 0)

	ep, err := HealthCheck(context.Background(), srv.URL, 510)
	require.NoError(t, err)
	assert.True(t, ep.Healthy)
}

// ---------------------------------------------------------------------------
// Benchmark / Best / Connect
// ---------------------------------------------------------------------------

func TestBenchmarkKeepsOrder(t *testing.T) {
	a := evmRPCServer(t, 100, 0)
	b := evmRPCServer(t, 101, 0)

	eps := Benchmark(context.Background(), []string{a.URL, deadURL, b.URL})
	require.Len(t, eps, 3)
	assert.Equal(t, a.URL, eps[0].URL)
	assert.True(t, eps[0].Healthy)
	assert.Equal(t, deadURL, eps[1].URL)
	assert.False(t, eps[1].Healthy)
	assert.Equal(t, uint64(101), eps[2].BlockNumber)
}

func TestBestSingleURLNotProbed(t *testing.T) {
	url, err := Best(context.Background(), []string{deadURL}, AlgorithmFastest)
	require.NoError(t, err)
	assert.Equal(t, deadURL, url)
}

func TestBestEmpty(t *testing.T) {
	_, err := Best(context.Background(), nil, AlgorithmFastest)
	assert.ErrorIs(t, err, ErrNoHealthyRPC)
}

func TestBestFastest(t *testing.T) {
	slow := evmRPCServer(t, 100, 80*time.Millisecond)
	fast := evmRPCServer(t, 100, 0)

	url, err := Best(context.Background(), []string{slow.URL, fast.URL}, AlgorithmFastest)
	require.NoError(t, err)
	assert.Equal(t, fast.URL, url)
}

func TestBestFailoverSkipsDead(t *testing.T) {
	live := evmRPCServer(t, 100, 0)

	url, err := Best(context.Background(), []string{deadURL, live.URL}, AlgorithmFailover)
	require.NoError(t, err)
	assert.Equal(t, live.URL, url)
}

func TestBestAllDead(t *testing.T) {
	_, err := Best(context.Background(), []string{deadURL, "http://127.0.0.1:19995"}, AlgorithmFastest)
	assert.ErrorIs(t, err, ErrNoHealthyRPC)
}

func TestConnectDialsWinner(t *testing.T) {
	live := evmRPCServer(t, 42, 0)

	c, err := Connect(context.Background(), []string{deadURL, live.URL}, AlgorithmFailover)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, live.URL, c.URL)

	n, err := c.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
}
