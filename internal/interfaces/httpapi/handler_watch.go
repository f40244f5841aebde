package httpapi

import (
	"net/http"
	"strings"
)

// WatchMatch opens the event stream. Without a match id the client only gets
// match-list frames; with one it also gets that match's detail frames. The
// current list and match state are pushed immediately so a fresh subscriber
// does not wait for the next scheduler tick.
func (h *Handler) WatchMatch(w http.ResponseWriter, r *http.Request) {
	matchID := strings.TrimSpace(r.PathValue("matchID"))

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	connID, err := h.ids.NewID()
	if err != nil {
		h.logger.Error("generate connection id", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	conn := h.newStreamConn(connID, matchID)
	h.hub.Register(conn)
	defer h.hub.Unregister(connID)

	entries, listVersion := h.live.SnapshotList()
	if err := conn.PushList(entries, listVersion); err != nil {
		h.logger.Warn("initial list push failed", "conn_id", connID, "error", err)
	}
	if matchID != "" {
		if match, found := h.live.Get(matchID); found {
			if err := conn.PushMatch(match); err != nil {
				h.logger.Warn("initial match push failed", "conn_id", connID, "match_id", matchID, "error", err)
			}
		}
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, open := <-conn.Frames():
			if !open {
				return
			}
			if _, err := w.Write(frame); err != nil {
				h.logger.Debug("stream write failed, closing connection", "conn_id", connID, "error", err)
				return
			}
			flusher.Flush()
			if len(conn.Frames()) == 0 {
				conn.NoteDrained()
			}
		}
	}
}
