package termdock

import "testing"

func TestVirtualDisplayStartsWithOneSurface(t *testing.T) {
	d := NewVirtualDisplay(nil)

	if d.SurfaceCount() != 1 || d.ConsumerCount() != 1 {
		t.Fatalf("fresh display: %d surfaces, %d consumers", d.SurfaceCount(), d.ConsumerCount())
	}
	if d.CurrentConsumer() == 0 {
		t.Fatalf("no current consumer")
	}
	if _, ok := d.ConsumerProcess(d.CurrentConsumer()); ok {
		t.Fatalf("initial consumer should have no process")
	}
}

func TestVirtualDisplayCreateAndBind(t *testing.T) {
	d := NewVirtualDisplay(nil)

	s1, c1, err := d.CreateSurface(nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if d.CurrentConsumer() != c1 || d.Focused() != s1 {
		t.Fatalf("new surface did not become current")
	}

	s2, _, err := d.CreateSurface(nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := d.BindSurface(s2, c1); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	showing := d.SurfacesShowing(c1)
	if len(showing) != 2 || showing[0] != s1 || showing[1] != s2 {
		t.Fatalf("SurfacesShowing = %v, want [%d %d]", showing, s1, s2)
	}

	if err := d.BindSurface(s2, ConsumerHandle(999)); err == nil {
		t.Fatalf("bind to unknown consumer succeeded")
	}
}

func TestVirtualDisplayDestroySurfaceKeepsConsumer(t *testing.T) {
	d := NewVirtualDisplay(nil)

	s, c, _ := d.CreateSurface(nil)
	if err := d.DestroySurface(s, false); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}

	if len(d.SurfacesShowing(c)) != 0 {
		t.Fatalf("surface survived destroy")
	}
	if _, ok := d.ConsumerProcess(c); ok {
		t.Fatalf("consumer should still exist, just without a process")
	}
	if d.ConsumerTitle(c) != "" {
		t.Fatalf("unexpected title on empty consumer")
	}
}

func TestVirtualDisplayDestroyConsumerFiresHook(t *testing.T) {
	d := NewVirtualDisplay(nil)

	var fired []ConsumerHandle
	d.SetClosingHook(func(c ConsumerHandle) {
		fired = append(fired, c)
		// The hook runs before teardown: the consumer must still resolve.
		if _, ok := d.ConsumerProcess(c); !ok {
			t.Errorf("consumer gone while closing hook runs")
		}
	})

	_, c := d.OpenExternal(ProcHandle(77), "worker")
	if err := d.DestroyConsumer(c, true); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}

	if len(fired) != 1 || fired[0] != c {
		t.Fatalf("closing hook fired %v", fired)
	}
	if _, ok := d.ConsumerProcess(c); ok {
		t.Fatalf("consumer survived destroy")
	}
	if len(d.SurfacesShowing(c)) != 0 {
		t.Fatalf("surfaces survived consumer destroy")
	}
}

func TestVirtualDisplayContextFlags(t *testing.T) {
	d := NewVirtualDisplay(nil)

	s, _, _ := d.CreateSurface(nil)
	if !d.InCurrentContext(s) {
		t.Fatalf("new surface not in current context")
	}

	d.SetSurfaceContext(s, false)
	if d.InCurrentContext(s) {
		t.Fatalf("context flag not cleared")
	}
	if d.InCurrentContext(SurfaceHandle(999)) {
		t.Fatalf("unknown surface reported in context")
	}
}

func TestVirtualDisplayOpenExternal(t *testing.T) {
	d := NewVirtualDisplay(nil)

	s, c := d.OpenExternal(ProcHandle(42), "build")

	proc, ok := d.ConsumerProcess(c)
	if !ok || proc != 42 {
		t.Fatalf("ConsumerProcess = %d, %v", proc, ok)
	}
	if d.ConsumerTitle(c) != "build" {
		t.Fatalf("title = %q", d.ConsumerTitle(c))
	}
	if got := d.SurfacesShowing(c); len(got) != 1 || got[0] != s {
		t.Fatalf("external consumer not showing: %v", got)
	}
}

func TestVirtualDisplayAttachProcess(t *testing.T) {
	d := NewVirtualDisplay(nil)

	_, c, _ := d.CreateSurface(nil)
	d.AttachProcess(c, ProcHandle(7), "repl")

	proc, ok := d.ConsumerProcess(c)
	if !ok || proc != 7 || d.ConsumerTitle(c) != "repl" {
		t.Fatalf("attach not reflected: proc=%d ok=%v title=%q", proc, ok, d.ConsumerTitle(c))
	}
}
