// Package speech turns assistant replies into audio. Synthesis runs on a
// dedicated worker so it never blocks command processing.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// Synthesizer renders one utterance and blocks until playback finishes.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Espeak synthesizes speech by shelling out to espeak-ng.
type Espeak struct {
	Voice     string // e.g. "en-us", empty for the default
	Rate      int    // words per minute, 0 for the default
	Amplitude int    // 0-200, 0 for the default
}

func (e *Espeak) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	args := []string{}
	if e.Voice != "" {
		args = append(args, "-v", e.Voice)
	}
	if e.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(e.Rate))
	}
	if e.Amplitude > 0 {
		args = append(args, "-a", strconv.Itoa(e.Amplitude))
	}
	args = append(args, text)

	if err := exec.CommandContext(ctx, "espeak-ng", args...).Run(); err != nil {
		return fmt.Errorf("espeak-ng: %w", err)
	}
	return nil
}

// Queue feeds utterances to a Synthesizer one at a time in FIFO order. When
// the buffer fills up, new utterances are dropped instead of stalling the
// caller.
type Queue struct {
	synth Synthesizer
	log   *slog.Logger

	pending chan string
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewQueue starts the playback worker.
func NewQueue(synth Synthesizer, log *slog.Logger, buffer int) *Queue {
	if buffer <= 0 {
		buffer = 16
	}
	q := &Queue{
		synth:   synth,
		log:     log,
		pending: make(chan string, buffer),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for text := range q.pending {
		if err := q.synth.Speak(context.Background(), text); err != nil {
			q.log.Warn("speech synthesis failed", "error", err)
		}
	}
}

// Say enqueues text for playback. It never blocks: if the queue is full or
// already closed the utterance is dropped with a warning.
func (q *Queue) Say(text string) {
	if text == "" {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	select {
	case q.pending <- text:
	default:
		q.log.Warn("speech queue full, dropping utterance")
	}
}

// Close stops accepting utterances and waits for the pending ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.pending)
	q.mu.Unlock()

	<-q.done
}
