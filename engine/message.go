package engine

import (
	"sync"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/handle"
)

type message struct {
	id    uint32
	subID uint32
	data  []byte
}

// messageQueue is the backend→caller FIFO of one context. Backend
// execution is asynchronous, so kernel faults land here at an
// unspecified later point rather than surfacing from the call that
// caused them.
type messageQueue struct {
	mu       sync.Mutex
	msgs     []message
	toClient bool
}

func newMessageQueue() *messageQueue {
	return &messageQueue{toClient: true}
}

func (q *messageQueue) post(id, subID uint32, data []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	q.msgs = append(q.msgs, message{id: id, subID: subID, data: buf})
}

func (q *messageQueue) peek() dispatch.MessageInfo {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.toClient || len(q.msgs) == 0 {
		return dispatch.MessageInfo{}
	}
	m := q.msgs[0]
	return dispatch.MessageInfo{ID: m.id, SubID: m.subID, Length: len(m.data)}
}

// get consumes the head message into buf. If buf is too small the
// message stays queued and get reports (0, requiredLength): the caller
// re-peeks for the size and retries.
func (q *messageQueue) get(buf []byte) (uint32, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.toClient || len(q.msgs) == 0 {
		return MessageNone, 0
	}
	m := q.msgs[0]
	if len(buf) < len(m.data) {
		return MessageNone, len(m.data)
	}
	copy(buf, m.data)
	q.msgs = q.msgs[1:]
	return m.id, len(m.data)
}

func (q *messageQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

func (q *messageQueue) setToClient(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.toClient = enabled
}

// ContextSendMessage enqueues a caller-originated message toward the
// backend. The engine's handler loops user messages back onto the
// client queue, which is also the self-test path for the queue.
func (b *Backend) ContextSendMessage(ctx handle.Handle, id uint32, data []byte) error {
	c, err := b.context(ctx)
	if err != nil {
		return err
	}
	c.msgs.post(id, 0, data)
	return nil
}

// ContextPeekMessage inspects the head of the client-bound queue
// without consuming it. An ID of 0 means no message is pending.
func (b *Backend) ContextPeekMessage(ctx handle.Handle) (dispatch.MessageInfo, error) {
	c, err := b.context(ctx)
	if err != nil {
		return dispatch.MessageInfo{}, err
	}
	return c.msgs.peek(), nil
}

// ContextGetMessage consumes the head message into buf. A too-small
// buffer leaves the message queued and reports id 0 with the required
// length in n.
func (b *Backend) ContextGetMessage(ctx handle.Handle, buf []byte) (uint32, int, error) {
	c, err := b.context(ctx)
	if err != nil {
		return 0, 0, err
	}
	id, n := c.msgs.get(buf)
	return id, n, nil
}

// ContextInitToClient enables client-bound message delivery.
func (b *Backend) ContextInitToClient(ctx handle.Handle) error {
	c, err := b.context(ctx)
	if err != nil {
		return err
	}
	c.msgs.setToClient(true)
	return nil
}

// ContextDeinitToClient stops client-bound message delivery.
func (b *Backend) ContextDeinitToClient(ctx handle.Handle) error {
	c, err := b.context(ctx)
	if err != nil {
		return err
	}
	c.msgs.setToClient(false)
	return nil
}

// GetErrorMessage drains one error-class message, if pending, and
// returns its text. A second return of false means no error message was
// at the head of the queue.
func (b *Backend) GetErrorMessage(ctx handle.Handle) (string, bool, error) {
	c, err := b.context(ctx)
	if err != nil {
		return "", false, err
	}
	info := c.msgs.peek()
	if info.ID != MessageError {
		return "", false, nil
	}
	buf := make([]byte, info.Length)
	id, n := c.msgs.get(buf)
	if id != MessageError {
		return "", false, errors.InvalidInput(errors.PhaseMessage, "error message vanished between peek and get")
	}
	return string(buf[:n]), true, nil
}
