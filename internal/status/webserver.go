package status

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// WebServer exposes a Hub's snapshot history and live updates over
// HTTP, adapted from the same mux-plus-SSE shape used elsewhere in
// this codebase for telemetry surfaces, without the embedded static
// UI assets (this package has none to serve).
type WebServer struct {
	srv *http.Server
	hub *Hub
}

// NewWebServer builds an HTTP server serving the hub's history, live
// stream, and latest-snapshot endpoints.
func NewWebServer(addr string, hub *Hub) *WebServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", hub.handleLatest)
	mux.HandleFunc("/api/status/history", hub.handleHistory)
	mux.HandleFunc("/api/status/live", hub.handleLive)

	return &WebServer{
		hub: hub,
		srv: &http.Server{Addr: addr, Handler: mux},
	}
}

// Start begins listening and shuts down when ctx is canceled.
func (w *WebServer) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := w.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("status server shutdown: %v", err)
		}
	}()

	if err := w.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("status server error: %v", err)
	}
}

func (h *Hub) handleLatest(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.Latest())
}

func (h *Hub) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.History(r.URL.Query().Get("channel")))
}

func (h *Hub) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Subscribe()
	defer cancel()

	for _, snap := range h.Latest() {
		writeSSE(w, snap)
	}
	flusher.Flush()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, snap)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, snap Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(payload)
	w.Write([]byte("\n\n"))
}
