package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/redlinehq/redline/internal/annotate"
	"github.com/redlinehq/redline/internal/corrector"
)

// liveRequest is one client frame on the live socket.
type liveRequest struct {
	Text string `json:"text"`
}

// liveResponse is the server's reply: the correction result plus the
// render-time segment view, so the client never has to run alignment itself.
type liveResponse struct {
	*corrector.Result
	Segments []annotate.Segment `json:"segments"`
}

// liveError is sent for frames the server cannot process. The socket stays
// open; only transport failures end the session.
type liveError struct {
	Error string `json:"error"`
}

// handleLive upgrades to a websocket and serves correction requests
// frame-by-frame until the client disconnects.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.corrector == nil {
		writeError(w, http.StatusServiceUnavailable, "no LLM provider configured")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	ctx := r.Context()
	s.metrics.LiveConnections.Add(ctx, 1)
	defer s.metrics.LiveConnections.Add(ctx, -1)

	for {
		var req liveRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if !isExpectedClose(err) {
				slog.Warn("live session read failed", "error", err)
			}
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		if req.Text == "" {
			if err := wsjson.Write(ctx, conn, liveError{Error: "text is required"}); err != nil {
				return
			}
			continue
		}

		result, err := s.corrector.Correct(ctx, req.Text)
		if err != nil {
			slog.Error("live correction failed", "error", err)
			if err := wsjson.Write(ctx, conn, liveError{Error: "correction failed"}); err != nil {
				return
			}
			continue
		}

		segments, dropped := annotate.Align(result.CleanText, result.Corrections)
		s.metrics.RecordAlignDrops(ctx, int64(dropped))

		if err := wsjson.Write(ctx, conn, liveResponse{Result: result, Segments: segments}); err != nil {
			slog.Warn("live session write failed", "error", err)
			return
		}
	}
}

// isExpectedClose reports whether err is a normal client disconnect rather
// than a transport fault worth logging.
func isExpectedClose(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
