package termdock

// Layout is an opaque display-creation descriptor interpreted only by the
// DisplayBackend. Values may be scalars or nested Layouts.
type Layout map[string]any

// DefaultLayout describes a single full-width split at the bottom of the
// current context.
func DefaultLayout() Layout {
	return Layout{
		"position":  "bottom",
		"height":    15,
		"fullwidth": true,
	}
}

// Merge returns a new layout where explicit fields of override win and
// unmentioned fields inherit from l. Nested maps merge recursively; any
// other value replaces wholesale. Neither input is mutated.
func (l Layout) Merge(override Layout) Layout {
	merged := make(Layout, len(l)+len(override))
	for k, v := range l {
		merged[k] = copyLayoutValue(v)
	}
	for k, v := range override {
		base, ok := merged[k].(Layout)
		if ok {
			if nested, isMap := toLayout(v); isMap {
				merged[k] = base.Merge(nested)
				continue
			}
		}
		merged[k] = copyLayoutValue(v)
	}
	return merged
}

func toLayout(v any) (Layout, bool) {
	switch m := v.(type) {
	case Layout:
		return m, true
	case map[string]any:
		return Layout(m), true
	default:
		return nil, false
	}
}

func copyLayoutValue(v any) any {
	if m, ok := toLayout(v); ok {
		return m.Merge(nil)
	}
	return v
}
