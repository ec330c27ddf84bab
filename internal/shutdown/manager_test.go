package shutdown

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	name  string
	order *[]string
}

func (r recorder) Shutdown() {
	*r.order = append(*r.order, r.name)
}

func TestManager_ShutdownReverseOrderOnce(t *testing.T) {
	m := NewManager(nil)
	var order []string
	m.Register(recorder{"first", &order})
	m.Register(recorder{"second", &order})

	m.Shutdown()
	m.Shutdown()

	assert.Equal(t, []string{"second", "first"}, order)
	assert.Error(t, m.Context().Err())
	select {
	case <-m.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestManager_FirstSignalCancels(t *testing.T) {
	m := NewManager(nil)
	exitCode := -1
	m.exit = func(code int) { exitCode = code }

	m.handleSignal(syscall.SIGINT)
	assert.True(t, m.Interrupted())
	assert.Error(t, m.Context().Err())
	assert.Equal(t, -1, exitCode)

	m.handleSignal(syscall.SIGINT)
	assert.Equal(t, 130, exitCode)
}

func TestManager_ListenStop(t *testing.T) {
	m := NewManager(nil)
	stop := m.Listen()
	stop()
	stop()

	select {
	case <-m.Context().Done():
		t.Fatal("context cancelled without a signal")
	case <-time.After(10 * time.Millisecond):
	}
}
