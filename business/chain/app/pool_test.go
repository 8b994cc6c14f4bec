package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/synth-indexer/internal/apperror"
	"github.com/fd1az/synth-indexer/internal/config"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

type ethService struct {
	chainID uint64
	fail    atomic.Bool
}

func (s *ethService) ChainId() hexutil.Uint64 { return hexutil.Uint64(s.chainID) }

func (s *ethService) BlockNumber() (hexutil.Uint64, error) {
	if s.fail.Load() {
		return 0, errors.New("node syncing")
	}
	return 100, nil
}

func inProcDialer(t *testing.T, svc *ethService, dials *atomic.Int32) Dialer {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", svc))
	t.Cleanup(srv.Stop)

	return func(ctx context.Context, url string) (*rpc.Client, error) {
		dials.Add(1)
		return rpc.DialInProc(srv), nil
	}
}

func TestPool_DialsOnceAndCaches(t *testing.T) {
	var dials atomic.Int32
	svc := &ethService{chainID: 56}

	p, err := NewPool([]config.ChainConfig{{Name: "bsc", RPCURL: "inproc", ChainID: 56}}, &mockLogger{}, inProcDialer(t, svc, &dials))
	require.NoError(t, err)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Eth(context.Background(), "bsc")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), dials.Load())

	a, _ := p.RPC(context.Background(), "bsc")
	b, _ := p.RPC(context.Background(), "bsc")
	assert.Same(t, a, b)
}

func TestPool_UnknownChain(t *testing.T) {
	p, err := NewPool(nil, &mockLogger{}, nil)
	require.NoError(t, err)

	_, err = p.RPC(context.Background(), "solana")
	assert.True(t, apperror.IsCode(err, apperror.CodeChainNotConfigured))
}

func TestPool_ChainIDMismatch(t *testing.T) {
	var dials atomic.Int32
	svc := &ethService{chainID: 1}

	p, err := NewPool([]config.ChainConfig{{Name: "bsc", RPCURL: "inproc", ChainID: 56}}, &mockLogger{}, inProcDialer(t, svc, &dials))
	require.NoError(t, err)

	_, err = p.RPC(context.Background(), "bsc")
	assert.True(t, apperror.IsCode(err, apperror.CodeChainConnection))
}

func TestPool_CheckHealth(t *testing.T) {
	var dials atomic.Int32
	svc := &ethService{chainID: 1}

	p, err := NewPool([]config.ChainConfig{
		{Name: "ethereum", RPCURL: "inproc", ChainID: 1},
		{Name: "unused", RPCURL: "inproc"},
	}, &mockLogger{}, inProcDialer(t, svc, &dials))
	require.NoError(t, err)
	defer p.Close()

	ok, _ := p.CheckHealth(context.Background())
	assert.True(t, ok, "no chain dialed yet")

	_, err = p.Eth(context.Background(), "ethereum")
	require.NoError(t, err)

	ok, _ = p.CheckHealth(context.Background())
	assert.True(t, ok)

	svc.fail.Store(true)
	ok, msg := p.CheckHealth(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "unreachable: ethereum", msg)
}
