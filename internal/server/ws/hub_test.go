package ws

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/poolpilot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) (*Hub, context.CancelFunc, chan error) {
	t.Helper()
	h := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(ctx) }()
	return h, cancel, errCh
}

func waitErr(t *testing.T, errCh chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
		return nil
	}
}

func TestRunClosesClientSendOnShutdown(t *testing.T) {
	h, cancel, errCh := startHub(t)

	c := &client{hub: h, send: make(chan []byte, 1)}
	h.register <- c

	cancel()
	require.ErrorIs(t, waitErr(t, errCh), context.Canceled)

	select {
	case _, ok := <-c.send:
		assert.False(t, ok, "send channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestDropReturnsAfterShutdown(t *testing.T) {
	h, cancel, errCh := startHub(t)

	c := &client{hub: h, send: make(chan []byte, 1)}
	h.register <- c

	cancel()
	require.ErrorIs(t, waitErr(t, errCh), context.Canceled)

	// A pump goroutine handing its client back after the loop exited must
	// not block.
	released := make(chan struct{})
	go func() {
		h.drop(c)
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("drop blocked after hub shutdown")
	}
}

func TestBroadcastHonorsOperationFilter(t *testing.T) {
	h, cancel, errCh := startHub(t)
	defer func() {
		cancel()
		waitErr(t, errCh)
	}()

	all := &client{hub: h, send: make(chan []byte, 4)}
	only42 := &client{hub: h, send: make(chan []byte, 4), operationID: "op-42"}
	h.register <- all
	h.register <- only42

	h.Publish(domain.Progress{OperationID: "op-7", Percent: 10})

	select {
	case msg := <-all.send:
		assert.Contains(t, string(msg), "op-7")
	case <-time.After(2 * time.Second):
		t.Fatal("unfiltered client received nothing")
	}
	select {
	case msg := <-only42.send:
		t.Fatalf("filtered client received %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOperationIDOf(t *testing.T) {
	assert.Equal(t, "op-1", operationIDOf([]byte(`{"operationId":"op-1","percent":5}`)))
	assert.Empty(t, operationIDOf([]byte(`not json`)))
}
