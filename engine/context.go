package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/errors"
	"github.com/wippyai/offload/handle"
)

// Message class IDs on the client-bound queue. User messages keep the
// caller-chosen ID; engine-originated faults use MessageError.
const (
	MessageNone  uint32 = 0
	MessageError uint32 = 3
)

type device struct {
	forceSoftware bool
	threadCount   int32
}

// context owns a FIFO work queue, the client-bound message queue, and
// the handles created through it. One worker goroutine drains the
// queue; ContextFinish is a barrier through it.
type context struct {
	backend  *Backend
	dev      handle.Handle
	ctxType  dispatch.ContextType
	priority int32

	work chan func()
	done chan struct{}

	msgs  *messageQueue
	owned []handle.Handle

	closed bool
}

// DeviceCreate mints a device.
func (b *Backend) DeviceCreate() (handle.Handle, error) {
	return b.arena.Create(handle.KindDevice, &device{})
}

// DeviceDestroy releases a device.
func (b *Backend) DeviceDestroy(dev handle.Handle) error {
	if _, err := b.device(dev); err != nil {
		return err
	}
	b.arena.Drop(dev)
	return nil
}

// DeviceSetConfig adjusts one device knob.
func (b *Backend) DeviceSetConfig(dev handle.Handle, param dispatch.DeviceParam, value int32) error {
	d, err := b.device(dev)
	if err != nil {
		return err
	}
	switch param {
	case dispatch.DeviceParamForceSoftware:
		d.forceSoftware = value != 0
	case dispatch.DeviceParamThreadCount:
		d.threadCount = value
	default:
		return errors.InvalidInput(errors.PhaseRuntime, fmt.Sprintf("unknown device param %d", param))
	}
	return nil
}

// ContextCreate mints a context bound to a device and starts its
// worker. Version numbers are accepted for interface compatibility and
// recorded only in logs.
func (b *Backend) ContextCreate(dev handle.Handle, version, sdkVersion uint32, ct dispatch.ContextType) (handle.Handle, error) {
	if _, err := b.device(dev); err != nil {
		return 0, err
	}

	c := &context{
		backend: b,
		dev:     dev,
		ctxType: ct,
		work:    make(chan func(), b.cfg.QueueDepth),
		done:    make(chan struct{}),
		msgs:    newMessageQueue(),
	}
	go c.run()

	h, err := b.arena.Create(handle.KindContext, c)
	if err != nil {
		close(c.work)
		return 0, err
	}
	Logger().Debug("context created",
		zap.String("backend", b.name),
		zap.Uint32("version", version),
		zap.Uint32("sdk", sdkVersion))
	return h, nil
}

// run is the context worker loop: strictly FIFO, one task at a time.
func (c *context) run() {
	defer close(c.done)
	for fn := range c.work {
		fn()
	}
}

// enqueue hands a task to the worker. Tasks must not enqueue further
// tasks on the same context or Finish would deadlock behind them.
func (c *context) enqueue(fn func()) error {
	if c.closed {
		return errors.Closed(errors.PhaseExecute, "context")
	}
	c.work <- fn
	return nil
}

// fence blocks until every task queued before it has completed.
func (c *context) fence() error {
	if c.closed {
		return errors.Closed(errors.PhaseExecute, "context")
	}
	ch := make(chan struct{})
	c.work <- func() { close(ch) }
	<-ch
	return nil
}

// postError delivers an asynchronous fault to the client queue.
func (c *context) postError(detail string) {
	c.msgs.post(MessageError, 0, []byte(detail))
	debugf("context fault: %s", detail)
}

// ContextFinish blocks until all work queued on the context has
// completed. It is the only fence; there is no cancellation and no
// timeout.
func (b *Backend) ContextFinish(ctx handle.Handle) error {
	c, err := b.context(ctx)
	if err != nil {
		return err
	}
	return c.fence()
}

// ContextDestroy drains the context and invalidates every handle it
// owns. Using any of those handles afterwards is a caller error caught
// by the generation check.
func (b *Backend) ContextDestroy(ctx handle.Handle) error {
	c, err := b.context(ctx)
	if err != nil {
		return err
	}
	if err := c.fence(); err != nil {
		return err
	}
	c.closed = true
	close(c.work)
	<-c.done

	for _, h := range c.owned {
		if v, ok := b.arena.Drop(h); ok {
			if d, ok := v.(handle.Dropper); ok {
				d.Drop()
			}
		}
	}
	c.owned = nil
	b.arena.Drop(ctx)
	return nil
}

// ContextSetPriority records the scheduling priority hint.
func (b *Backend) ContextSetPriority(ctx handle.Handle, priority int32) error {
	c, err := b.context(ctx)
	if err != nil {
		return err
	}
	c.priority = priority
	return nil
}

// ContextDump logs a summary of the context's live objects.
func (b *Backend) ContextDump(ctx handle.Handle, bits int32) error {
	c, err := b.context(ctx)
	if err != nil {
		return err
	}
	Logger().Info("context dump",
		zap.String("backend", b.name),
		zap.Int32("bits", bits),
		zap.Int("owned", len(c.owned)),
		zap.Int("pending_messages", c.msgs.len()))
	return nil
}

// ObjDestroy releases any handle kind owned by the backend.
func (b *Backend) ObjDestroy(ctx, obj handle.Handle) error {
	if _, err := b.context(ctx); err != nil {
		return err
	}
	v, ok := b.arena.Drop(obj)
	if !ok {
		return errors.InvalidHandle(errors.PhaseRuntime, "object", uint64(obj))
	}
	if d, ok := v.(handle.Dropper); ok {
		d.Drop()
	}
	return nil
}
