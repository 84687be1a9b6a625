package goroutine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestRecoveryHandler_Run_RecoversPanic(t *testing.T) {
	log := &recordingLogger{}
	rh := NewRecoveryHandler(log)

	assert.NotPanics(t, func() {
		rh.Run(func() { panic("push failed") })
	})
	assert.Len(t, log.lines, 1)
	assert.Contains(t, log.lines[0], "push failed")
}

func TestRecoveryHandler_SafeGo(t *testing.T) {
	log := &recordingLogger{}
	rh := NewRecoveryHandler(log)

	var wg sync.WaitGroup
	wg.Add(1)
	rh.SafeGo(func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()

	assert.Eventually(t, func() bool {
		log.mu.Lock()
		defer log.mu.Unlock()
		return len(log.lines) == 1
	}, time.Second, 10*time.Millisecond)
}
