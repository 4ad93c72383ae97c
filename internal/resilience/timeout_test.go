package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteWithTimeoutSuccess(t *testing.T) {
	m := NewTimeoutManager("mock", nil)
	res := m.ExecuteWithTimeout(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	}, TimeoutConfig{RequestTimeout: time.Second}, "op")

	require.True(t, res.Success)
	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestExecuteWithTimeoutPropagatesError(t *testing.T) {
	m := NewTimeoutManager("mock", nil)
	wantErr := errors.New("boom")
	res := m.ExecuteWithTimeout(context.Background(), func(ctx context.Context) (any, error) {
		return nil, wantErr
	}, TimeoutConfig{RequestTimeout: time.Second}, "op")

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, wantErr)
}

func TestExecuteWithTimeoutExpires(t *testing.T) {
	m := NewTimeoutManager("mock", nil)
	res := m.ExecuteWithTimeout(context.Background(), func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, TimeoutConfig{RequestTimeout: 10 * time.Millisecond, CancellationGracePeriod: 20 * time.Millisecond}, "op")

	assert.False(t, res.Success)
	assert.Error(t, res.Err)
	assert.Equal(t, TimeoutRequest, res.TimeoutType)
	assert.True(t, res.WasCancelled)
}

type partialErr struct{ content string }

func (e *partialErr) Error() string                       { return "timed out with partial content" }
func (e *partialErr) PartialResponse() (string, bool)     { return e.content, true }

func TestExecuteWithTimeoutSurfacesPartialResponse(t *testing.T) {
	m := NewTimeoutManager("mock", nil)
	res := m.ExecuteWithTimeout(context.Background(), func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, &partialErr{content: "partial answer"}
	}, TimeoutConfig{RequestTimeout: 10 * time.Millisecond, CancellationGracePeriod: 50 * time.Millisecond}, "op")

	require.False(t, res.Success)
	m1, ok := res.Value.(map[string]any)
	require.True(t, ok, "expected a partial-response envelope")
	assert.Equal(t, "partial answer", m1["content"])
}

func TestCancelAllCancelsActiveOperations(t *testing.T) {
	m := NewTimeoutManager("mock", nil)
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		m.ExecuteWithTimeout(context.Background(), func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}, TimeoutConfig{RequestTimeout: time.Minute, CancellationGracePeriod: 10 * time.Millisecond}, "op")
		close(done)
	}()

	<-started
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, m.ActiveCount())
	m.CancelAll()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("operation did not observe CancelAll")
	}
}
