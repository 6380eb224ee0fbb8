package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/handle"
)

// Runtime is one activated backend plus its device. A process can hold
// several Runtimes over different backends; their handles never mix.
type Runtime struct {
	name string
	tab  *dispatch.Table
	io   *dispatch.IOTable
	dev  handle.Handle
}

// Open activates a backend by name and creates its device. Activation
// is all-or-nothing; a failed Open leaves nothing to clean up and is
// retriable with another name.
func Open(backend string) (*Runtime, error) {
	tab, err := dispatch.Activate(backend)
	if err != nil {
		return nil, err
	}
	dev, err := tab.DeviceCreate()
	if err != nil {
		return nil, err
	}

	r := &Runtime{name: backend, tab: tab, dev: dev}

	// The IO extension is optional; its absence is expected for most
	// backends and never degrades the core surface.
	if io, err := dispatch.ActivateIO(backend); err == nil {
		r.io = io
	} else {
		dispatch.Logger().Debug("io extension unavailable",
			zap.String("backend", backend), zap.Error(err))
	}
	return r, nil
}

// Name returns the activated backend's name.
func (r *Runtime) Name() string { return r.name }

// Table exposes the raw capability table for callers that need an
// operation the wrappers do not cover.
func (r *Runtime) Table() *dispatch.Table { return r.tab }

// HasIO reports whether the backend loaded the surface/IO extension.
func (r *Runtime) HasIO() bool { return r.io != nil }

// SetDeviceConfig adjusts one device knob.
func (r *Runtime) SetDeviceConfig(param dispatch.DeviceParam, value int32) error {
	return r.tab.DeviceSetConfig(r.dev, param, value)
}

// Close releases the device. Contexts must be destroyed first.
func (r *Runtime) Close() error {
	return r.tab.DeviceDestroy(r.dev)
}

// Context wraps one backend context handle.
type Context struct {
	rt *Runtime
	h  handle.Handle
}

// NewContext creates a context on the runtime's device.
func (r *Runtime) NewContext(ct dispatch.ContextType) (*Context, error) {
	h, err := r.tab.ContextCreate(r.dev, 1, 23, ct)
	if err != nil {
		return nil, err
	}
	return &Context{rt: r, h: h}, nil
}

// Handle exposes the raw context handle.
func (c *Context) Handle() handle.Handle { return c.h }

// Finish blocks until all work queued on the context has completed.
func (c *Context) Finish() error {
	return c.rt.tab.ContextFinish(c.h)
}

// Destroy drains the context and invalidates every handle created
// through it.
func (c *Context) Destroy() error {
	return c.rt.tab.ContextDestroy(c.h)
}

// SetPriority records the scheduling priority hint.
func (c *Context) SetPriority(p int32) error {
	return c.rt.tab.ContextSetPriority(c.h, p)
}

// Dump logs a summary of the context's state.
func (c *Context) Dump(bits int32) error {
	return c.rt.tab.ContextDump(c.h, bits)
}

// SendMessage posts a caller message; the backend loops user messages
// back onto the client queue.
func (c *Context) SendMessage(id uint32, payload []byte) error {
	return c.rt.tab.ContextSendMessage(c.h, id, payload)
}

// PeekMessage inspects the pending head message without consuming it.
// An ID of 0 means the queue is empty.
func (c *Context) PeekMessage() (dispatch.MessageInfo, error) {
	return c.rt.tab.ContextPeekMessage(c.h)
}

// GetMessage consumes the head message into buf. A buffer shorter than
// the message leaves it queued and reports message_too_large carrying
// the required size.
func (c *Context) GetMessage(buf []byte) (uint32, int, error) {
	id, n, err := c.rt.tab.ContextGetMessage(c.h, buf)
	if err != nil {
		return 0, 0, err
	}
	if id == 0 && n > len(buf) {
		return 0, n, errors.MessageTooLarge(len(buf), n)
	}
	return id, n, nil
}

// GetErrorMessage drains a pending error-class message, if any.
func (c *Context) GetErrorMessage() (string, bool, error) {
	info, err := c.PeekMessage()
	if err != nil {
		return "", false, err
	}
	if info.ID != 3 { // error-class messages
		return "", false, nil
	}
	buf := make([]byte, info.Length)
	id, n, err := c.rt.tab.ContextGetMessage(c.h, buf)
	if err != nil {
		return "", false, err
	}
	if id != info.ID {
		return "", false, nil
	}
	return string(buf[:n]), true, nil
}

// InitToClient enables client-bound message delivery.
func (c *Context) InitToClient() error {
	return c.rt.tab.ContextInitToClient(c.h)
}

// DeinitToClient stops client-bound message delivery.
func (c *Context) DeinitToClient() error {
	return c.rt.tab.ContextDeinitToClient(c.h)
}

// DestroyObject releases any wrapped or raw handle on this context.
func (c *Context) DestroyObject(h handle.Handle) error {
	return c.rt.tab.ObjDestroy(c.h, h)
}
