package transport

import (
	"sync"

	"github.com/taigrr/showroom/pkg/logging"
	"github.com/taigrr/showroom/pkg/protocol"
)

type pipe struct {
	mu     sync.Mutex
	closed bool
	once   sync.Once
	inbox  [2]chan protocol.Message
}

type pipeEnd struct {
	p    *pipe
	self int
}

// Pipe returns two connected in-memory channel ends. Closing either end closes
// both.
func Pipe() (Channel, Channel) {
	p := &pipe{}
	for i := range p.inbox {
		p.inbox[i] = make(chan protocol.Message, DefaultBuffer)
	}
	return &pipeEnd{p: p, self: 0}, &pipeEnd{p: p, self: 1}
}

func (e *pipeEnd) Send(m protocol.Message) error {
	// Round trip through the codec so the receiver gets its own copy and the
	// same validation a remote peer would apply.
	b, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	copyMsg, err := protocol.Decode(b)
	if err != nil {
		return err
	}

	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.p.closed {
		return ErrClosed
	}
	select {
	case e.p.inbox[1-e.self] <- copyMsg:
		return nil
	default:
		logging.Logger().Debug("pipe inbox full, dropping message", "kind", m.Kind())
		return ErrDropped
	}
}

func (e *pipeEnd) Messages() <-chan protocol.Message {
	return e.p.inbox[e.self]
}

func (e *pipeEnd) Close() error {
	e.p.once.Do(func() {
		e.p.mu.Lock()
		defer e.p.mu.Unlock()
		e.p.closed = true
		close(e.p.inbox[0])
		close(e.p.inbox[1])
	})
	return nil
}
