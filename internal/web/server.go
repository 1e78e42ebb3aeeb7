package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	socketBufferSize = 1024
	callBodyLimit    = 64 * 1024
	callTimeout      = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  socketBufferSize,
	WriteBufferSize: socketBufferSize,
}

func Handler(status *Status, motion *MotionBroadcaster, methods *Registry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		writeJSON(w, snap)
	})

	mux.HandleFunc("/api/motion", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap, ok := motion.Last()
		if !ok {
			http.Error(w, "no motion data yet", http.StatusNotFound)
			return
		}
		writeJSON(w, snap)
	})

	mux.HandleFunc("/api/methods", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		resp := struct {
			Methods []string `json:"methods"`
		}{Methods: methods.Names()}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/api/call/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/api/call/")
		if name == "" || strings.Contains(name, "/") {
			http.NotFound(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, callBodyLimit))
		if err != nil {
			http.Error(w, "read body failed", http.StatusBadRequest)
			return
		}
		if len(body) > 0 && !json.Valid(body) {
			http.Error(w, "body must be JSON", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
		defer cancel()
		result, err := methods.Call(ctx, name, json.RawMessage(body))
		if err != nil {
			if errors.Is(err, ErrUnknownMethod) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, struct {
			OK     bool `json:"ok"`
			Result any  `json:"result,omitempty"`
		}{OK: true, Result: result})
	})

	// Live fused-motion stream. One JSON snapshot per message; slow
	// clients drop frames rather than stall the pipeline.
	mux.HandleFunc("/ws/motion", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			return
		}
		serveMotionSocket(conn, motion)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>padmotion</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>padmotion</h1>")
		_, _ = fmt.Fprintf(w, "<p>See <a href=\"/api/status\">/api/status</a>, <a href=\"/api/motion\">/api/motion</a>, or stream <code>/ws/motion</code>.</p>")
		_, _ = fmt.Fprintf(w, "<pre>source=%s\npoll=%s\nticks_total=%d\nlast_tick_utc=%s</pre>",
			snap.SourceKind, snap.Poll, snap.TicksTotal, snap.LastTickUTC,
		)
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

func serveMotionSocket(conn *websocket.Conn, motion *MotionBroadcaster) {
	id, ch := motion.Subscribe(8)
	defer motion.Unsubscribe(id)
	defer conn.Close()

	// Reader goroutine: we never expect client messages, but reading is
	// what surfaces the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func Serve(ctx context.Context, listenAddr string, status *Status, motion *MotionBroadcaster, methods *Registry) error {
	if status == nil {
		status = NewStatus()
	}
	if motion == nil {
		motion = NewMotionBroadcaster()
	}
	if methods == nil {
		methods = NewRegistry()
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(status, motion, methods),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Printf("web: listening on %s", listenAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
