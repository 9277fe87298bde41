package allowance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

type fakeReader struct {
	readings []*big.Int
	err      error
	calls    int
}

func (f *fakeReader) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls
	if idx >= len(f.readings) {
		idx = len(f.readings) - 1
	}
	f.calls++
	return f.readings[idx], nil
}

type fakeWallet struct {
	txHash   string
	sendErr  error
	sent     int
	lastTo   string
	lastData []byte
}

func (f *fakeWallet) Address() string   { return "0xowner" }
func (f *fakeWallet) ChainID() *big.Int { return big.NewInt(8453) }

func (f *fakeWallet) SignAndSend(ctx context.Context, to string, data []byte, value *big.Int) (string, error) {
	f.sent++
	f.lastTo = to
	f.lastData = data
	return f.txHash, f.sendErr
}

// grantOf decodes the amount word from approve(spender,amount) calldata.
func grantOf(t *testing.T, data []byte) *big.Int {
	t.Helper()
	require.Len(t, data, 4+32+32)
	return new(big.Int).SetBytes(data[36:68])
}

func newTestManager(reader Reader, wallet domain.Wallet) (*Manager, *time.Duration) {
	m := NewManager(reader, wallet, 10*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var slept time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		slept += d
		return nil
	}
	return m, &slept
}

func TestEnsureRouterSkipsWhenSufficient(t *testing.T) {
	reader := &fakeReader{readings: []*big.Int{big.NewInt(1000)}}
	wallet := &fakeWallet{txHash: "0xtx"}
	m, slept := newTestManager(reader, wallet)

	err := m.EnsureRouter(context.Background(), "0xtoken", "0xrouter", big.NewInt(500))
	require.NoError(t, err)
	assert.Zero(t, wallet.sent, "sufficient allowance must not approve")
	assert.Zero(t, *slept)
}

func TestEnsureRouterApprovesAndConfirms(t *testing.T) {
	reader := &fakeReader{readings: []*big.Int{big.NewInt(0), big.NewInt(500)}}
	wallet := &fakeWallet{txHash: "0xtx"}
	m, slept := newTestManager(reader, wallet)

	err := m.EnsureRouter(context.Background(), "0xtoken", "0xrouter", big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, 1, wallet.sent)
	assert.Equal(t, "0xtoken", wallet.lastTo, "approve goes to the token contract")
	assert.Equal(t, 10*time.Second, *slept)
	assert.Equal(t, 2, reader.calls, "allowance is re-read after the wait")
}

func TestEnsureRouterNotConfirmed(t *testing.T) {
	// Still below required after the approval wait.
	reader := &fakeReader{readings: []*big.Int{big.NewInt(0), big.NewInt(10)}}
	wallet := &fakeWallet{txHash: "0xtx"}
	m, _ := newTestManager(reader, wallet)

	err := m.EnsureRouter(context.Background(), "0xtoken", "0xrouter", big.NewInt(500))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrApprovalNotConfirmed)
}

func TestEnsureRouterZeroRequiredIsNoop(t *testing.T) {
	reader := &fakeReader{readings: []*big.Int{big.NewInt(0)}}
	wallet := &fakeWallet{}
	m, _ := newTestManager(reader, wallet)

	require.NoError(t, m.EnsureRouter(context.Background(), "0xtoken", "0xrouter", big.NewInt(0)))
	require.NoError(t, m.EnsureRouter(context.Background(), "0xtoken", "0xrouter", nil))
	assert.Zero(t, reader.calls)
}

func TestEnsureRouterReadError(t *testing.T) {
	reader := &fakeReader{err: errors.New("rpc down")}
	wallet := &fakeWallet{}
	m, _ := newTestManager(reader, wallet)

	err := m.EnsureRouter(context.Background(), "0xtoken", "0xrouter", big.NewInt(1))
	require.Error(t, err)
	assert.Zero(t, wallet.sent)
}

func TestEnsureRouterGrantsExactAmount(t *testing.T) {
	reader := &fakeReader{readings: []*big.Int{big.NewInt(0), big.NewInt(500)}}
	wallet := &fakeWallet{txHash: "0xtx"}
	m, _ := newTestManager(reader, wallet)

	require.NoError(t, m.EnsureRouter(context.Background(), "0xtoken", "0xrouter", big.NewInt(500)))
	assert.Zero(t, grantOf(t, wallet.lastData).Cmp(big.NewInt(500)))
}

func TestEnsureManagerGrantsBoundedCeiling(t *testing.T) {
	// The manager domain confirms against the required amount, not the grant.
	reader := &fakeReader{readings: []*big.Int{big.NewInt(0), big.NewInt(123_000)}}
	wallet := &fakeWallet{txHash: "0xtx"}
	m, _ := newTestManager(reader, wallet)

	err := m.EnsureManager(context.Background(), "0xtoken", "0xmanager", big.NewInt(123))
	require.NoError(t, err)
	assert.Equal(t, 1, wallet.sent)

	// The grant is a finite multiple of the requirement, never unbounded.
	grant := grantOf(t, wallet.lastData)
	assert.Zero(t, grant.Cmp(big.NewInt(123_000)))
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	assert.Negative(t, grant.Cmp(maxUint256))
}

func TestEnsureManagerSkipsWhenCeilingAlreadyGranted(t *testing.T) {
	reader := &fakeReader{readings: []*big.Int{big.NewInt(123_000)}}
	wallet := &fakeWallet{}
	m, _ := newTestManager(reader, wallet)

	err := m.EnsureManager(context.Background(), "0xtoken", "0xmanager", big.NewInt(123))
	require.NoError(t, err)
	assert.Zero(t, wallet.sent)
}
