package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 10 * time.Second
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = pongWait * 9 / 10
)

const index = `<!DOCTYPE html>
<html><head><title>thermosentinel</title></head>
<body style="background:#111;color:#eee;font-family:sans-serif">
<img id="still" src="/still.jpg" style="max-width:100%">
<pre id="report"></pre>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/stream");
ws.binaryType = "blob";
ws.onmessage = (ev) => {
  if (typeof ev.data === "string") {
    document.getElementById("report").textContent = JSON.stringify(JSON.parse(ev.data.slice(1)), null, 2);
  } else {
    const img = document.getElementById("still");
    URL.revokeObjectURL(img.src);
    img.src = URL.createObjectURL(ev.data.slice(1, ev.data.size, "image/jpeg"));
  }
};
</script>
</body></html>
`

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// Handler returns the HTTP routes of the live view. reg may be nil to leave
// out /metrics.
func (h *Hub) Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.root)
	mux.HandleFunc("/still.jpg", h.serveStill)
	mux.HandleFunc("/report", h.serveReport)
	mux.HandleFunc("/series", h.serveSeries)
	mux.HandleFunc("/stream", h.stream)
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve listens on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("web view listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Hub) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(index))
}

func (h *Hub) serveStill(w http.ResponseWriter, r *http.Request) {
	still := h.Still()
	if still == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(still)
}

func (h *Hub) serveReport(w http.ResponseWriter, r *http.Request) {
	report := h.Report()
	if report == nil {
		http.Error(w, "no measurement yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(report)
}

func (h *Hub) serveSeries(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.series == nil {
		_, _ = w.Write([]byte("[]"))
		return
	}
	if err := json.NewEncoder(w).Encode(h.series.Points()); err != nil {
		slog.Debug("series write", "error", err)
	}
}

// stream sends every report (text frame M) and image (binary frame I) as
// they are published.
func (h *Hub) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()
	slog.Debug("websocket client connected", "remote", r.RemoteAddr)

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// The read side only handles control frames and notices disconnects.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case m := <-ch:
			kind := websocket.TextMessage
			if m.binary {
				kind = websocket.BinaryMessage
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(kind, m.data); err != nil {
				slog.Debug("websocket write", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
