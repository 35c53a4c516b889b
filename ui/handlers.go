package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	a.renderTemplate(w, "index.html", defaultDemoParams())
}

// handleEvents runs one simulated experiment per connection and streams
// a snapshot event per paired draw until the horizon or disconnect.
func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	params, err := parseDemoParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sim, err := newSimulation(params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	a.log.Debug("stream start: pA=%.3f pB=%.3f alpha=%.3f method=%s n_max=%d rate=%d",
		params.PA, params.PB, params.Alpha, params.Method, params.NMax, params.Rate)

	ticker := time.NewTicker(time.Second / time.Duration(params.Rate))
	defer ticker.Stop()
	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			a.log.Debug("stream closed by client at t=%d", sim.t)
			return
		case <-ticker.C:
			snap, err := sim.step()
			if err != nil {
				a.log.Error("stream aborted: %v", err)
				return
			}
			if err := writeEvent(w, flusher, "snapshot", snap); err != nil {
				return
			}
			if snap.Done {
				writeEvent(w, flusher, "done", struct {
					T int `json:"t"`
				}{snap.T})
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
