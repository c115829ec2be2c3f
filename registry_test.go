package termdock

import "testing"

func newTerm(consumer ConsumerHandle) *Terminal {
	return &Terminal{state: StateAttached, consumer: consumer}
}

func TestRegistryInsertionOrder(t *testing.T) {
	r := NewRegistry()

	a, b, c := newTerm(10), newTerm(20), newTerm(30)
	r.Insert(1, a)
	r.Insert(2, b)
	r.Insert(3, c)

	terms := r.Terminals()
	if len(terms) != 3 || terms[0] != a || terms[1] != b || terms[2] != c {
		t.Fatalf("terminals not in insertion order")
	}
	if i, ok := r.IndexOf(b); !ok || i != 1 {
		t.Fatalf("IndexOf(b) = %d, %v", i, ok)
	}
}

func TestRegistryRemoveCompactsOrder(t *testing.T) {
	r := NewRegistry()

	a, b, c := newTerm(10), newTerm(20), newTerm(30)
	r.Insert(1, a)
	r.Insert(2, b)
	r.Insert(3, c)

	r.Remove(2)

	terms := r.Terminals()
	if len(terms) != 2 || terms[0] != a || terms[1] != c {
		t.Fatalf("remove did not preserve relative order of survivors")
	}
	if _, ok := r.Lookup(2); ok {
		t.Fatalf("removed handle still resolves")
	}
	if i, ok := r.IndexOf(c); !ok || i != 1 {
		t.Fatalf("IndexOf(c) = %d after removal", i)
	}
}

func TestRegistryRemoveAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Insert(1, newTerm(10))

	r.Remove(42)

	if r.Len() != 1 {
		t.Fatalf("removing an absent handle changed the registry")
	}
}

func TestRegistryReinsertGoesToEnd(t *testing.T) {
	r := NewRegistry()

	a, b := newTerm(10), newTerm(20)
	r.Insert(1, a)
	r.Insert(2, b)
	r.Remove(1)
	r.Insert(1, a)

	terms := r.Terminals()
	if len(terms) != 2 || terms[0] != b || terms[1] != a {
		t.Fatalf("reinserted terminal did not land at the end")
	}
}

func TestRegistryInsertCollisionReplaces(t *testing.T) {
	r := NewRegistry()

	old := newTerm(10)
	repl := newTerm(11)
	r.Insert(1, old)

	prev := r.Insert(1, repl)

	if prev != old {
		t.Fatalf("collision did not report the displaced terminal")
	}
	if got, _ := r.Lookup(1); got != repl {
		t.Fatalf("collision did not replace the entry")
	}
	if r.Len() != 1 {
		t.Fatalf("collision duplicated the entry")
	}
}

func TestRegistryLookupByConsumer(t *testing.T) {
	r := NewRegistry()

	a, b := newTerm(10), newTerm(20)
	r.Insert(1, a)
	r.Insert(2, b)

	i, got, ok := r.LookupByConsumer(20)
	if !ok || got != b || i != 1 {
		t.Fatalf("LookupByConsumer(20) = %d, %v, %v", i, got, ok)
	}
	if _, _, ok := r.LookupByConsumer(99); ok {
		t.Fatalf("unknown consumer resolved")
	}
}
