package termdock

import (
	"fmt"
	"sort"
	"sync"
)

// VirtualDisplay is an in-memory DisplayBackend for headless hosts and
// tests. Surfaces model windows, consumers model the buffers process output
// is channeled into; each surface carries a current-context flag standing in
// for tab/workspace membership. A fresh display starts with one surface and
// one empty consumer, mirroring hosts that always have a current surface.
//
// Hosts observe consumer teardown through the closing hook, which fires
// before the consumer disappears, matching the "output-consumer-closing"
// event contract. Wire it to Manager.ConsumerClosing.
type VirtualDisplay struct {
	mu           sync.Mutex
	nextSurface  SurfaceHandle
	nextConsumer ConsumerHandle
	surfaces     map[SurfaceHandle]*virtualSurface
	consumers    map[ConsumerHandle]*virtualConsumer
	current      ConsumerHandle
	focused      SurfaceHandle
	closing      func(ConsumerHandle)
	logger       Logger
}

type virtualSurface struct {
	consumer  ConsumerHandle
	inContext bool
}

type virtualConsumer struct {
	proc  ProcHandle
	title string
}

// NewVirtualDisplay creates a display with a single empty surface.
func NewVirtualDisplay(logger Logger) *VirtualDisplay {
	if logger == nil {
		logger = NopLogger{}
	}
	d := &VirtualDisplay{
		surfaces:  make(map[SurfaceHandle]*virtualSurface),
		consumers: make(map[ConsumerHandle]*virtualConsumer),
		logger:    logger,
	}
	d.CreateSurface(nil)
	return d
}

// SetClosingHook registers the callback fired before a consumer is
// destroyed.
func (d *VirtualDisplay) SetClosingHook(fn func(ConsumerHandle)) {
	d.mu.Lock()
	d.closing = fn
	d.mu.Unlock()
}

// CreateSurface makes a new in-context surface showing a fresh empty
// consumer, which becomes current. The layout descriptor is accepted but has
// no geometric meaning here.
func (d *VirtualDisplay) CreateSurface(_ Layout) (SurfaceHandle, ConsumerHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextSurface++
	d.nextConsumer++
	surface := d.nextSurface
	consumer := d.nextConsumer

	d.surfaces[surface] = &virtualSurface{consumer: consumer, inContext: true}
	d.consumers[consumer] = &virtualConsumer{}
	d.current = consumer
	d.focused = surface
	return surface, consumer, nil
}

// BindSurface points a surface at an existing consumer.
func (d *VirtualDisplay) BindSurface(surface SurfaceHandle, consumer ConsumerHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.surfaces[surface]
	if !ok {
		return fmt.Errorf("unknown surface %d", surface)
	}
	if _, ok := d.consumers[consumer]; !ok {
		return fmt.Errorf("unknown consumer %d", consumer)
	}
	s.consumer = consumer
	return nil
}

// FocusSurface marks a surface focused.
func (d *VirtualDisplay) FocusSurface(surface SurfaceHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.surfaces[surface]; !ok {
		return fmt.Errorf("unknown surface %d", surface)
	}
	d.focused = surface
	return nil
}

// Focused returns the focused surface handle.
func (d *VirtualDisplay) Focused() SurfaceHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focused
}

// DestroySurface removes one surface; the consumer it showed survives.
func (d *VirtualDisplay) DestroySurface(surface SurfaceHandle, _ bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.surfaces[surface]; !ok {
		return fmt.Errorf("unknown surface %d", surface)
	}
	delete(d.surfaces, surface)
	if d.focused == surface {
		d.focused = 0
	}
	return nil
}

// DestroyConsumer fires the closing hook, then removes the consumer and
// every surface showing it. Destroying an unknown consumer is a no-op.
func (d *VirtualDisplay) DestroyConsumer(consumer ConsumerHandle, _ bool) error {
	d.mu.Lock()
	if _, ok := d.consumers[consumer]; !ok {
		d.mu.Unlock()
		return nil
	}
	closing := d.closing
	d.mu.Unlock()

	// The hook runs unlocked: it is expected to call back into this
	// display (surface enumeration, deferred destroys).
	if closing != nil {
		closing(consumer)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.consumers, consumer)
	for h, s := range d.surfaces {
		if s.consumer == consumer {
			delete(d.surfaces, h)
			if d.focused == h {
				d.focused = 0
			}
		}
	}
	if d.current == consumer {
		d.current = 0
	}
	return nil
}

// SurfacesShowing returns the surfaces bound to consumer in creation order.
func (d *VirtualDisplay) SurfacesShowing(consumer ConsumerHandle) []SurfaceHandle {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []SurfaceHandle
	for h, s := range d.surfaces {
		if s.consumer == consumer {
			out = append(out, h)
		}
	}
	// Handles are allocated monotonically, so sorted order is creation
	// order.
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InCurrentContext reports the surface's context flag.
func (d *VirtualDisplay) InCurrentContext(surface SurfaceHandle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.surfaces[surface]
	return ok && s.inContext
}

// SetSurfaceContext moves a surface in or out of the current context,
// standing in for the user switching tabs or workspaces.
func (d *VirtualDisplay) SetSurfaceContext(surface SurfaceHandle, inContext bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.surfaces[surface]; ok {
		s.inContext = inContext
	}
}

// CurrentConsumer returns the consumer new processes attach to.
func (d *VirtualDisplay) CurrentConsumer() ConsumerHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// ConsumerProcess reports the process a consumer channels, if any.
func (d *VirtualDisplay) ConsumerProcess(consumer ConsumerHandle) (ProcHandle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.consumers[consumer]
	if !ok || c.proc <= 0 {
		return 0, false
	}
	return c.proc, true
}

// ConsumerTitle returns the consumer's title.
func (d *VirtualDisplay) ConsumerTitle(consumer ConsumerHandle) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.consumers[consumer]; ok {
		return c.title
	}
	return ""
}

// SurfaceCount reports how many surfaces exist.
func (d *VirtualDisplay) SurfaceCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.surfaces)
}

// ConsumerCount reports how many consumers exist.
func (d *VirtualDisplay) ConsumerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.consumers)
}

// AttachProcess records which process a consumer channels. The manager-side
// spawn path does not need this; it exists so hosts can describe terminals
// opened outside the manager before handing them to AdoptConsumer.
func (d *VirtualDisplay) AttachProcess(consumer ConsumerHandle, proc ProcHandle, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.consumers[consumer]; ok {
		c.proc = proc
		c.title = title
	}
}

// OpenExternal simulates a process-backed terminal appearing outside the
// manager's control: a new in-context surface and consumer wrapping proc.
// The caller is expected to announce it via Manager.AdoptConsumer, the way a
// host forwards its "output-consumer-opened" event.
func (d *VirtualDisplay) OpenExternal(proc ProcHandle, title string) (SurfaceHandle, ConsumerHandle) {
	surface, consumer, _ := d.CreateSurface(nil)
	d.AttachProcess(consumer, proc, title)
	return surface, consumer
}
