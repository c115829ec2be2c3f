package termdock

// Registry maps process handles to the terminals that own them and keeps a
// stable total order over its entries. The order is insertion order: entry N
// is the Nth oldest still-registered terminal, which is what downstream UIs
// number terminals by.
//
// Registry does no locking of its own. All mutations must come from a single
// serialized context; the Manager guards every call behind its mutex and
// that is the only supported way to use it concurrently.
type Registry struct {
	terminals map[ProcHandle]*Terminal
	order     []ProcHandle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{terminals: make(map[ProcHandle]*Terminal)}
}

// Insert registers t under proc. A collision with a live entry violates the
// handle-uniqueness invariant; the previous terminal is returned so the
// caller can flag the programming error, and the new entry wins.
func (r *Registry) Insert(proc ProcHandle, t *Terminal) (prev *Terminal) {
	prev = r.terminals[proc]
	r.terminals[proc] = t
	if prev == nil {
		r.order = append(r.order, proc)
	}
	return prev
}

// Remove drops the entry for proc. Removing an absent handle is a no-op.
func (r *Registry) Remove(proc ProcHandle) {
	if _, ok := r.terminals[proc]; !ok {
		return
	}
	delete(r.terminals, proc)
	for i, h := range r.order {
		if h == proc {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the terminal registered under proc.
func (r *Registry) Lookup(proc ProcHandle) (*Terminal, bool) {
	t, ok := r.terminals[proc]
	return t, ok
}

// LookupByConsumer scans for the terminal attached to the given output
// consumer and returns it with its order index. Linear scan: registries stay
// small (interactive tool, low cardinality).
func (r *Registry) LookupByConsumer(consumer ConsumerHandle) (int, *Terminal, bool) {
	for i, proc := range r.order {
		t := r.terminals[proc]
		if t != nil && t.consumer == consumer {
			return i, t, true
		}
	}
	return 0, nil, false
}

// IndexOf returns t's position in the stable order.
func (r *Registry) IndexOf(t *Terminal) (int, bool) {
	for i, proc := range r.order {
		if r.terminals[proc] == t {
			return i, true
		}
	}
	return 0, false
}

// Terminals returns the registered terminals in stable order.
func (r *Registry) Terminals() []*Terminal {
	out := make([]*Terminal, 0, len(r.order))
	for _, proc := range r.order {
		if t := r.terminals[proc]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Len reports the number of registered terminals.
func (r *Registry) Len() int { return len(r.terminals) }
