package server

import (
	"net/http"

	gometrics "github.com/rcrowley/go-metrics"
)

// Metrics counts terminal lifecycle events and input/output volume.
type Metrics struct {
	registry gometrics.Registry

	Spawned  gometrics.Counter
	Adopted  gometrics.Counter
	Exited   gometrics.Counter
	Detached gometrics.Counter
	Killed   gometrics.Counter

	OutputBytes gometrics.Meter
	InputBytes  gometrics.Meter
}

// NewMetrics creates an isolated metrics registry. Each server gets its own
// so tests never share counters.
func NewMetrics() *Metrics {
	r := gometrics.NewRegistry()
	return &Metrics{
		registry:    r,
		Spawned:     gometrics.NewRegisteredCounter("terminals.spawned", r),
		Adopted:     gometrics.NewRegisteredCounter("terminals.adopted", r),
		Exited:      gometrics.NewRegisteredCounter("terminals.exited", r),
		Detached:    gometrics.NewRegisteredCounter("terminals.detached", r),
		Killed:      gometrics.NewRegisteredCounter("terminals.killed", r),
		OutputBytes: gometrics.NewRegisteredMeter("io.output.bytes", r),
		InputBytes:  gometrics.NewRegisteredMeter("io.input.bytes", r),
	}
}

// handler serves a one-shot JSON snapshot of the registry.
func (m *Metrics) handler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	gometrics.WriteJSONOnce(m.registry, w)
}
