package protocol

import (
	"context"
	"sync"
)

const schedulerQueueSize = 256

// Dispatcher is the producing side of a Scheduler.
type Dispatcher interface {
	// Queues a received message. It blocks while the queue is full.
	Dispatch(ctx context.Context, msg Msg) error

	// Signals that a session frame elapsed. Signals are coalesced when the
	// consumer is late.
	HandleFrame()
}

// Consumer is the consuming side of a Scheduler.
type Consumer interface {
	Messages() <-chan Msg
	Frames() <-chan struct{}
}

// Scheduler funnels received messages and session frames into a single
// connection loop.
type Scheduler struct {
	messages  chan Msg
	frames    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewScheduler creates a scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		messages: make(chan Msg, schedulerQueueSize),
		frames:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Dispatch(ctx context.Context, msg Msg) error {
	select {
	case <-ctx.Done():
		return ctx.Err()

	case <-s.done:
		return context.Canceled

	case s.messages <- msg:
		return nil
	}
}

func (s *Scheduler) HandleFrame() {
	select {
	case <-s.done:
	case s.frames <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Messages() <-chan Msg {
	return s.messages
}

func (s *Scheduler) Frames() <-chan struct{} {
	return s.frames
}

// Close stops accepting messages and frames.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
