package observability

import (
	"bytes"
	"sync"
)

// LogStream fans structured log lines out to live subscribers and keeps a
// short backlog so a new subscriber starts with recent history. It is an
// io.Writer: every Write is one log line.
type LogStream struct {
	mu          sync.Mutex
	subscribers map[chan []byte]struct{}
	backlog     [][]byte
	backlogSize int
	bufferSize  int
}

// NewLogStream creates a stream keeping backlogSize recent lines. Each
// subscriber gets a channel buffered to bufferSize lines.
func NewLogStream(backlogSize, bufferSize int) *LogStream {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &LogStream{
		subscribers: make(map[chan []byte]struct{}),
		backlogSize: backlogSize,
		bufferSize:  bufferSize,
	}
}

// Write publishes p as one line. It never blocks on slow subscribers: a
// subscriber whose buffer is full is dropped and its channel closed.
func (s *LogStream) Write(p []byte) (int, error) {
	line := bytes.TrimRight(p, "\n")
	msg := make([]byte, len(line))
	copy(msg, line)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backlogSize > 0 {
		s.backlog = append(s.backlog, msg)
		if over := len(s.backlog) - s.backlogSize; over > 0 {
			s.backlog = s.backlog[over:]
		}
	}

	for ch := range s.subscribers {
		select {
		case ch <- msg:
		default:
			delete(s.subscribers, ch)
			close(ch)
		}
	}
	return len(p), nil
}

// Subscribe registers a new subscriber. The returned channel first receives
// the backlog, then live lines. Call the cancel func when done; the channel is
// closed afterwards.
func (s *LogStream) Subscribe() (<-chan []byte, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.bufferSize
	if len(s.backlog) > size {
		size = len(s.backlog)
	}
	ch := make(chan []byte, size)
	for _, line := range s.backlog {
		ch <- line
	}
	s.subscribers[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Subscribers returns the number of live subscribers.
func (s *LogStream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
