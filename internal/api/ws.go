package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rflorenc/jenkins-mcp-server/internal/observe"
)

const defaultPollInterval = time.Second

// maxCloseReason is the room left for a reason in a close frame.
const maxCloseReason = 120

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// parseConsolePath splits "team/app/12/console" into the item fullname and
// build number.
func parseConsolePath(p string) (string, int64, error) {
	rest, ok := strings.CutSuffix(strings.Trim(p, "/"), "/console")
	if !ok {
		return "", 0, errors.New("path must end in /{number}/console")
	}
	i := strings.LastIndex(rest, "/")
	if i <= 0 {
		return "", 0, errors.New("path must name an item and a build number")
	}
	number, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil || number <= 0 {
		return "", 0, fmt.Errorf("invalid build number %q", rest[i+1:])
	}
	return rest[:i], number, nil
}

// StreamBuildConsole streams a build's console output over WebSocket. The
// connection closes with the build result once Jenkins reports the log is
// complete.
func (s *Server) StreamBuildConsole(w http.ResponseWriter, r *http.Request) {
	fullname, number, err := parseConsolePath(chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.Console == nil {
		writeError(w, http.StatusServiceUnavailable, "console streaming is not configured")
		return
	}
	src, err := s.Console(r.Header)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// Drain client frames so close and ping control messages are handled.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := observe.Logger(ctx).With("item", fullname, "build", number)
	var start int64
	for {
		chunk, err := src.GetBuildConsoleProgressive(ctx, fullname, number, start)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("reading console", "error", err)
				closeWith(conn, websocket.CloseInternalServerErr, err.Error())
			}
			return
		}
		if chunk.Text != "" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(chunk.Text)); err != nil {
				return
			}
		}
		start = chunk.NextStart

		if !chunk.MoreData {
			status := "COMPLETED"
			if b, err := src.GetBuild(ctx, fullname, number, 0); err == nil && b.Result != nil {
				status = *b.Result
			}
			closeWith(conn, websocket.CloseNormalClosure, status)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}
