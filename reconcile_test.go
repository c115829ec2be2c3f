package termdock

import (
	"strings"
	"testing"
)

func TestAdoptExternalConsumer(t *testing.T) {
	env := newTestEnv(t, Config{})

	proc := env.proc.addExternal([]string{"htop"})
	_, consumer := env.display.OpenExternal(proc, "")

	term, err := env.mgr.AdoptConsumer(consumer)
	if err != nil {
		t.Fatalf("adopt failed: %v", err)
	}

	if !term.Attached() || term.Proc() != proc || term.Consumer() != consumer {
		t.Fatalf("adopted terminal not attached to the external handles")
	}
	if got := term.Title(); !strings.Contains(got, "htop") {
		t.Fatalf("title %q does not carry the command", got)
	}
	if got, ok := env.mgr.Lookup(proc); !ok || got != term {
		t.Fatalf("adopted terminal missing from registry")
	}
	if len(env.handler.registered) != 1 || env.handler.registered[0] != term {
		t.Fatalf("registered event not delivered for adoption")
	}
}

func TestAdoptIsIdempotent(t *testing.T) {
	env := newTestEnv(t, Config{})

	proc := env.proc.addExternal([]string{"vim"})
	_, consumer := env.display.OpenExternal(proc, "vim")

	first, err := env.mgr.AdoptConsumer(consumer)
	if err != nil {
		t.Fatalf("adopt failed: %v", err)
	}
	second, err := env.mgr.AdoptConsumer(consumer)
	if err != nil {
		t.Fatalf("second adopt failed: %v", err)
	}

	if first != second {
		t.Fatalf("duplicate adoption created a second terminal")
	}
	if len(env.mgr.Terminals()) != 1 {
		t.Fatalf("registry has %d entries, want 1", len(env.mgr.Terminals()))
	}
	if len(env.handler.registered) != 1 {
		t.Fatalf("registered event fired %d times", len(env.handler.registered))
	}
}

func TestAdoptNonProcessConsumer(t *testing.T) {
	env := newTestEnv(t, Config{})

	// The display starts with a plain consumer that has no process behind it.
	consumer := env.display.CurrentConsumer()

	if _, err := env.mgr.AdoptConsumer(consumer); err == nil {
		t.Fatalf("expected error adopting a non-process consumer")
	}
	if len(env.mgr.Terminals()) != 0 {
		t.Fatalf("failed adoption left a registry entry")
	}
}

func TestAdoptPrefersConsumerTitle(t *testing.T) {
	env := newTestEnv(t, Config{})

	proc := env.proc.addExternal([]string{"less", "log.txt"})
	_, consumer := env.display.OpenExternal(proc, "pager")

	term, err := env.mgr.AdoptConsumer(consumer)
	if err != nil {
		t.Fatalf("adopt failed: %v", err)
	}
	if term.Title() != "pager" {
		t.Fatalf("title %q, want the consumer title", term.Title())
	}
}

func TestConsumerClosingDetaches(t *testing.T) {
	env := newTestEnv(t, Config{})
	term := env.mgr.NewTerminal(Config{})

	if err := term.Open(nil, false); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	proc := term.Proc()

	// The host destroys the consumer behind our back; the closing hook is
	// wired to the manager and must reconcile before the consumer is gone.
	if err := env.display.DestroyConsumer(term.Consumer(), true); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}

	if term.State() != StateDetached || term.Proc() != 0 || term.Consumer() != 0 {
		t.Fatalf("terminal not detached after consumer closed")
	}
	if _, ok := env.mgr.Lookup(proc); ok {
		t.Fatalf("registry still holds the detached terminal")
	}
	if env.handler.detachedCount() != 1 {
		t.Fatalf("detach event fired %d times, want 1", env.handler.detachedCount())
	}
}

func TestConsumerClosingUntrackedIsNoop(t *testing.T) {
	env := newTestEnv(t, Config{})

	term := env.mgr.NewTerminal(Config{})
	if err := term.Open(nil, false); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	env.mgr.ConsumerClosing(ConsumerHandle(9999))

	if len(env.mgr.Terminals()) != 1 || !term.Attached() {
		t.Fatalf("untracked consumer event disturbed tracked terminals")
	}
	if env.handler.detachedCount() != 0 {
		t.Fatalf("detach event fired for an untracked consumer")
	}
}

func TestConsumerClosingAutoclose(t *testing.T) {
	env := newTestEnv(t, Config{Autoclose: true})
	term := env.mgr.NewTerminal(Config{})

	if err := term.Open(nil, false); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	consumer := term.Consumer()

	env.mgr.ConsumerClosing(consumer)

	if len(env.display.SurfacesShowing(consumer)) != 0 {
		t.Fatalf("autoclose left surfaces up")
	}
	if len(env.mgr.Terminals()) != 0 {
		t.Fatalf("terminal still tracked")
	}
}

func TestTitleUpdates(t *testing.T) {
	env := newTestEnv(t, Config{})
	term := env.mgr.NewTerminal(Config{})
	if err := term.Spawn(); err != nil {
		t.Fatalf("spawn failed: %v", err)
	}

	env.mgr.handleTitle(term.Proc(), "make test")

	if term.Title() != "make test" {
		t.Fatalf("title %q, want %q", term.Title(), "make test")
	}
	env.handler.mu.Lock()
	got := env.handler.titles[term.Proc()]
	env.handler.mu.Unlock()
	if got != "make test" {
		t.Fatalf("title event carried %q", got)
	}
}
