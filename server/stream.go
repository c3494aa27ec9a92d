package server

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/hupe1980/agentrt/core"
)

const writeTimeout = 10 * time.Second

// StreamRequest is one inbound websocket message. ID is echoed back so
// clients can correlate responses.
type StreamRequest struct {
	ID string `json:"id,omitempty"`
	core.Request
}

// StreamResponse answers exactly one StreamRequest.
type StreamResponse struct {
	ID     string       `json:"id,omitempty"`
	Result *core.Result `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

func deadline() time.Time { return time.Now().Add(writeTimeout) }

func (s *Server) handleStream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.opts.Logger.Warn("Failed to upgrade websocket", "error", err)
		return nil
	}

	conn.SetReadLimit(s.opts.MaxMessageSize)

	s.mu.Lock()
	s.streams[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.streams, conn)
		s.mu.Unlock()

		_ = conn.Close()
	}()

	ctx := c.Request().Context()

	for {
		var req StreamRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.opts.Logger.Debug("Stream closed", "error", err)
			}

			return nil
		}

		resp := StreamResponse{ID: req.ID}

		res, err := s.svc.Execute(ctx, req.Request)
		if err != nil {
			_, body := errorBody(err)
			resp.Error = &body.Error
		} else {
			resp.Result = res
		}

		_ = conn.SetWriteDeadline(deadline())
		if err := conn.WriteJSON(resp); err != nil {
			s.opts.Logger.Warn("Failed to write stream response", "error", err)
			return nil
		}
	}
}
