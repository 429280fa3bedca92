package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSynth struct {
	mu     sync.Mutex
	spoken []string
	delay  time.Duration
	err    error
}

func (r *recordingSynth) Speak(ctx context.Context, text string) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.spoken = append(r.spoken, text)
	return nil
}

func (r *recordingSynth) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.spoken...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueueSpeaksInOrder(t *testing.T) {
	synth := &recordingSynth{}
	q := NewQueue(synth, discardLogger(), 8)

	q.Say("first")
	q.Say("second")
	q.Say("third")
	q.Close()

	assert.Equal(t, []string{"first", "second", "third"}, synth.all())
}

func TestQueueCloseWaitsForPending(t *testing.T) {
	synth := &recordingSynth{delay: 10 * time.Millisecond}
	q := NewQueue(synth, discardLogger(), 8)

	q.Say("slow utterance")
	q.Close()

	// Close must not return before the worker finished speaking.
	require.Equal(t, []string{"slow utterance"}, synth.all())
}

func TestQueueDropsWhenFull(t *testing.T) {
	synth := &recordingSynth{delay: 50 * time.Millisecond}
	q := NewQueue(synth, discardLogger(), 1)

	// The first Say is picked up by the worker; the second fills the buffer;
	// the rest are dropped.
	for i := 0; i < 10; i++ {
		q.Say("utterance")
	}
	q.Close()

	assert.LessOrEqual(t, len(synth.all()), 3)
}

func TestQueueIgnoresAfterClose(t *testing.T) {
	synth := &recordingSynth{}
	q := NewQueue(synth, discardLogger(), 8)
	q.Close()

	assert.NotPanics(t, func() {
		q.Say("too late")
		q.Close()
	})
	assert.Empty(t, synth.all())
}

func TestQueueIgnoresEmptyText(t *testing.T) {
	synth := &recordingSynth{}
	q := NewQueue(synth, discardLogger(), 8)

	q.Say("")
	q.Close()

	assert.Empty(t, synth.all())
}

func TestQueueSurvivesSynthErrors(t *testing.T) {
	synth := &recordingSynth{err: errors.New("no audio device")}
	q := NewQueue(synth, discardLogger(), 8)

	q.Say("one")
	q.Say("two")
	q.Close()

	// errors are logged, not fatal
	assert.Empty(t, synth.all())
}
