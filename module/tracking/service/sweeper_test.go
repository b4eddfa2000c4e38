package service

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEvictor struct {
	mu      sync.Mutex
	cutoffs []time.Time
}

func (e *recordingEvictor) EvictIdle(cutoff time.Time) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cutoffs = append(e.cutoffs, cutoff)
	return []string{"BUS101"}
}

func (e *recordingEvictor) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cutoffs)
}

func TestIdleSweeper_SweepUsesEvictWindow(t *testing.T) {
	ev := &recordingEvictor{}
	s := NewIdleSweeper(ev, time.Second, 10*time.Minute, zerolog.Nop())
	now := time.Unix(1715003456, 0)
	s.now = fixedClock(now)

	assert.Equal(t, []string{"BUS101"}, s.Sweep())
	require.Len(t, ev.cutoffs, 1)
	assert.Equal(t, now.Add(-10*time.Minute), ev.cutoffs[0])
}

func TestIdleSweeper_StartStop(t *testing.T) {
	ev := &recordingEvictor{}
	s := NewIdleSweeper(ev, 5*time.Millisecond, time.Minute, zerolog.Nop())

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	require.Eventually(t, func() bool { return ev.calls() >= 2 }, time.Second, time.Millisecond)

	s.Stop()
	n := ev.calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, ev.calls())
	s.Stop()
}

func TestIdleSweeper_DisabledWhenEvictAfterZero(t *testing.T) {
	ev := &recordingEvictor{}
	s := NewIdleSweeper(ev, time.Millisecond, 0, zerolog.Nop())

	require.NoError(t, s.Start())
	time.Sleep(10 * time.Millisecond)
	s.Stop()

	assert.Zero(t, ev.calls())
}
