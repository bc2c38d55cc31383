// Package web serves the live view: a websocket stream of annotated frames
// and measurements, the latest still, the rolling series and metrics.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/andresmejia3/thermosentinel/internal/capture"
	"github.com/andresmejia3/thermosentinel/internal/series"
	"github.com/andresmejia3/thermosentinel/internal/sink"
)

// Message kinds on the stream. Frame I carries a JPEG, frame M a JSON
// report.
const (
	kindImage  = 'I'
	kindReport = 'M'
)

const clientQueue = 8

type message struct {
	binary bool
	data   []byte
}

// Hub fans cycle results out to websocket clients and keeps the latest
// still and report for plain HTTP requests.
type Hub struct {
	series *series.Series[float64]

	mu      sync.RWMutex
	still   []byte
	report  []byte
	clients map[chan message]struct{}
	dropped uint64
}

// NewHub creates a hub. s may be nil.
func NewHub(s *series.Series[float64]) *Hub {
	return &Hub{series: s, clients: make(map[chan message]struct{})}
}

// Render implements capture.Sink. Everything handed to clients is a copy,
// so the result can be released as soon as Render returns. Images reach
// the hub through SetStill.
func (h *Hub) Render(ctx context.Context, res *capture.Result) error {
	report, err := json.Marshal(sink.NewReport(res))
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.report = report
	h.mu.Unlock()
	h.broadcast(message{data: append([]byte{kindReport}, report...)})
	return nil
}

// SetStill replaces the latest image and streams it. img is not retained.
func (h *Hub) SetStill(img []byte) {
	still := bytes.Clone(img)
	h.mu.Lock()
	h.still = still
	h.mu.Unlock()
	h.broadcast(message{binary: true, data: append([]byte{kindImage}, still...)})
}

// Still returns the latest image, or nil.
func (h *Hub) Still() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.still
}

// Report returns the latest JSON report, or nil.
func (h *Hub) Report() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.report
}

// Clients is the number of connected stream clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribe() chan message {
	ch := make(chan message, clientQueue)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan message) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// broadcast never blocks; a client that is behind loses the message.
func (h *Hub) broadcast(m message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- m:
		default:
			h.dropped++
			slog.Debug("web client behind, dropping message", "dropped", h.dropped)
		}
	}
}
