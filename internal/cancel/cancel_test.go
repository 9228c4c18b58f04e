package cancel

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNever(t *testing.T) {
	assert.False(t, Never.Cancelled())
}

func TestFunc(t *testing.T) {
	calls := 0
	tok := Func(func() bool {
		calls++
		return calls > 1
	})

	assert.False(t, tok.Cancelled())
	assert.True(t, tok.Cancelled())
}

func TestFromContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tok := FromContext(ctx)

	assert.False(t, tok.Cancelled())
	cancel()
	assert.True(t, tok.Cancelled())
}

func TestDeadline(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	tok := deadline(base.Add(time.Minute), func() time.Time { return now })

	assert.False(t, tok.Cancelled())
	now = base.Add(time.Minute)
	assert.True(t, tok.Cancelled())
}

func TestDeadline_Zero(t *testing.T) {
	assert.False(t, Deadline(time.Time{}).Cancelled())
}

func TestAfter(t *testing.T) {
	assert.False(t, After(0).Cancelled())
	assert.False(t, After(time.Hour).Cancelled())

	tok := After(time.Millisecond)
	assert.Eventually(t, tok.Cancelled, time.Second, time.Millisecond)
}

func TestAny(t *testing.T) {
	assert.False(t, Any().Cancelled())
	assert.False(t, Any(nil, Never).Cancelled())

	flag := false
	tok := Any(Never, Func(func() bool { return flag }))
	assert.False(t, tok.Cancelled())
	flag = true
	assert.True(t, tok.Cancelled())
}

func TestAny_ChecksEveryToken(t *testing.T) {
	firstCalls, secondCalls := 0, 0
	tok := Any(
		Func(func() bool { firstCalls++; return true }),
		Func(func() bool { secondCalls++; return false }),
	)

	assert.True(t, tok.Cancelled())
	assert.Equal(t, 1, firstCalls)
	assert.Equal(t, 1, secondCalls)
}

func TestSignalToken(t *testing.T) {
	ch := make(chan os.Signal, 1)
	tok := newSignalToken(ch)

	assert.False(t, tok.Cancelled())

	ch <- syscall.SIGINT
	assert.True(t, tok.Cancelled())
	// latched after the channel is drained
	assert.True(t, tok.Cancelled())
}

func TestSignal_Stop(t *testing.T) {
	tok := Signal(syscall.SIGUSR1)
	assert.False(t, tok.Cancelled())
	tok.Stop()
}

func TestKeypress_NotTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	_, err = Keypress(f)
	assert.ErrorIs(t, err, ErrNotTerminal)
}

func TestWatch(t *testing.T) {
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	tok := watch(r)
	assert.False(t, tok.Cancelled())

	_, err := w.Write([]byte("q"))
	require.NoError(t, err)

	assert.Eventually(t, tok.Cancelled, time.Second, 5*time.Millisecond)
	assert.NoError(t, tok.Close())
}

func TestWatch_EOF(t *testing.T) {
	r, w := io.Pipe()
	tok := watch(r)
	require.NoError(t, w.Close())

	time.Sleep(10 * time.Millisecond)
	assert.False(t, tok.Cancelled())
}
