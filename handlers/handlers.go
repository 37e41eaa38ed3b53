// Package handlers contains default model.Handler handlers.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/m-lab/go/rtx"
	"github.com/ooni/tlsadapter/model"
)

type stdoutHandler struct {
	mu sync.Mutex
	w  io.Writer
}

func (h *stdoutHandler) OnMeasurement(m model.Measurement) {
	data, err := json.Marshal(m)
	rtx.Must(err, "unexpected json.Marshal failure")
	h.mu.Lock()
	fmt.Fprintf(h.w, "%s\n", string(data))
	h.mu.Unlock()
}

// StdoutHandler is a Handler that emits JSONL on stdout.
var StdoutHandler model.Handler = &stdoutHandler{w: os.Stdout}

type noHandler struct{}

func (noHandler) OnMeasurement(m model.Measurement) {}

// NoHandler is a Handler that does not print anything
var NoHandler noHandler

// SavingHandler saves all the measurements it receives.
type SavingHandler struct {
	mu           sync.Mutex
	measurements []model.Measurement
}

// OnMeasurement saves the measurement.
func (h *SavingHandler) OnMeasurement(m model.Measurement) {
	h.mu.Lock()
	h.measurements = append(h.measurements, m)
	h.mu.Unlock()
}

// Read returns a copy of the saved measurements.
func (h *SavingHandler) Read() []model.Measurement {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.Measurement, len(h.measurements))
	copy(out, h.measurements)
	return out
}
