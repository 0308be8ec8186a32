package genx

import (
	"errors"
	"sync"
)

// ErrStreamClosed is returned by StreamBuilder.Add after the consumer closed
// the stream.
var ErrStreamClosed = errors.New("genx: stream closed")

type StreamEvent struct {
	Chunk   *MessageChunk
	Status  Status
	Usage   Usage
	Refusal string
	Error   error
}

// StreamBuilder is the producer side of a [Stream]. A backend goroutine adds
// chunks and finishes with exactly one of Done, Truncated, Blocked,
// Unexpected or Abort.
type StreamBuilder struct {
	events chan *StreamEvent
	closed chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
	finished  bool
}

func NewStreamBuilder(size int) *StreamBuilder {
	return &StreamBuilder{
		events: make(chan *StreamEvent, size),
		closed: make(chan struct{}),
	}
}

func (sb *StreamBuilder) Done(stats Usage) error {
	return sb.finish(&StreamEvent{Status: StatusDone, Usage: stats})
}

func (sb *StreamBuilder) Truncated(stats Usage) error {
	return sb.finish(&StreamEvent{Status: StatusTruncated, Usage: stats})
}

func (sb *StreamBuilder) Blocked(stats Usage, refusal string) error {
	return sb.finish(&StreamEvent{Status: StatusBlocked, Usage: stats, Refusal: refusal})
}

func (sb *StreamBuilder) Unexpected(stats Usage, err error) error {
	return sb.finish(&StreamEvent{Status: StatusError, Usage: stats, Error: err})
}

// Abort ends the stream with err. It is safe to call after another finishing
// call; only the first one is observed by the consumer.
func (sb *StreamBuilder) Abort(err error) error {
	return sb.finish(&StreamEvent{Status: StatusError, Error: err})
}

func (sb *StreamBuilder) Add(chunks ...*MessageChunk) error {
	for _, c := range chunks {
		if err := sb.send(&StreamEvent{Chunk: c}); err != nil {
			return err
		}
	}
	return nil
}

func (sb *StreamBuilder) send(evt *StreamEvent) error {
	sb.mu.Lock()
	finished := sb.finished
	sb.mu.Unlock()
	if finished {
		return ErrStreamClosed
	}
	select {
	case sb.events <- evt:
		return nil
	case <-sb.closed:
		return ErrStreamClosed
	}
}

func (sb *StreamBuilder) finish(evt *StreamEvent) error {
	sb.mu.Lock()
	if sb.finished {
		sb.mu.Unlock()
		return nil
	}
	sb.finished = true
	sb.mu.Unlock()

	select {
	case sb.events <- evt:
	case <-sb.closed:
		return ErrStreamClosed
	}
	close(sb.events)
	return nil
}

func (sb *StreamBuilder) Stream() Stream {
	return (*streamImpl)(sb)
}

type streamImpl StreamBuilder

func (s *streamImpl) Next() (*MessageChunk, error) {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var evt *StreamEvent
	select {
	case e, ok := <-s.events:
		if !ok {
			return nil, s.fail(ErrStreamClosed)
		}
		evt = e
	case <-s.closed:
		s.mu.Lock()
		defer s.mu.Unlock()
		return nil, s.err
	}

	switch evt.Status {
	case StatusOK:
		return evt.Chunk, nil
	case StatusDone:
		err = Done(evt.Usage)
	case StatusTruncated:
		err = Truncated(evt.Usage)
	case StatusBlocked:
		err = Blocked(evt.Usage, evt.Refusal)
	default:
		err = Error(evt.Usage, evt.Error)
	}
	return nil, s.fail(err)
}

// fail records the terminal error and releases the producer.
func (s *streamImpl) fail(err error) error {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	err = s.err
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closed) })
	return err
}

func (s *streamImpl) Close() error {
	s.fail(ErrStreamClosed)
	return nil
}

func (s *streamImpl) CloseWithError(err error) error {
	if err == nil {
		err = ErrStreamClosed
	}
	s.fail(err)
	return nil
}
