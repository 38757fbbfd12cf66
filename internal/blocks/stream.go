package blocks

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNoBlockNumber is returned when a block without a populated number is
// read from the stream.
var ErrNoBlockNumber = errors.New("no block number")

// ErrStreamClosed is observed by subscribers once every producer has stopped
// and no unseen block remains.
var ErrStreamClosed = errors.New("block stream closed")

// Stream broadcasts the latest observed chain head to any number of
// subscribers with watch semantics: a subscriber always reads the current
// block first and only ever observes the most recent one after that.
// Intermediate blocks a slow subscriber missed are skipped.
type Stream struct {
	mu     sync.Mutex
	cur    *types.Header
	seq    uint64
	closed bool
	wake   chan struct{}
}

// NewStream creates a stream, optionally seeded with the current head
func NewStream(current *types.Header) *Stream {
	s := &Stream{wake: make(chan struct{})}
	if current != nil {
		s.cur = current
		s.seq = 1
	}
	return s
}

// Publish replaces the current head and wakes all subscribers
func (s *Stream) Publish(header *types.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cur = header
	s.seq++
	close(s.wake)
	s.wake = make(chan struct{})
}

// Close terminates the stream. Subscribers still observe the final head
// before seeing ErrStreamClosed.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.wake)
}

// Current returns the latest published head without consuming it
func (s *Stream) Current() *types.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Subscribe registers a new subscriber. The first Next call returns the
// current head immediately.
func (s *Stream) Subscribe() *Subscription {
	return &Subscription{stream: s}
}

// Subscription is a single consumer's view of the stream
type Subscription struct {
	stream *Stream
	seen   uint64
}

// Next blocks until a head newer than the last one seen by this subscription
// is available and returns it. It returns ErrStreamClosed once the stream
// terminated and no unseen head remains, or the context error on cancellation.
func (sub *Subscription) Next(ctx context.Context) (*types.Header, error) {
	for {
		sub.stream.mu.Lock()
		if sub.stream.seq > sub.seen {
			header := sub.stream.cur
			sub.seen = sub.stream.seq
			sub.stream.mu.Unlock()
			return header, nil
		}
		if sub.stream.closed {
			sub.stream.mu.Unlock()
			return nil, ErrStreamClosed
		}
		wake := sub.stream.wake
		sub.stream.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Number extracts the block number of a header, failing on headers that do
// not carry one.
func Number(header *types.Header) (uint64, error) {
	if header == nil || header.Number == nil {
		return 0, ErrNoBlockNumber
	}
	return header.Number.Uint64(), nil
}
