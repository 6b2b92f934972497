package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/catalog"
	"github.com/stemsi/classroom-backend/internal/examsession"
	"github.com/stemsi/classroom-backend/internal/middleware"
	"github.com/stemsi/classroom-backend/internal/response"
	ws "github.com/stemsi/classroom-backend/internal/websocket"
)

// outcomePoll is how often a closed live session is checked for its saved outcome.
const outcomePoll = 50 * time.Millisecond

// NoticeSubscriber opens a user's notice channel.
type NoticeSubscriber interface {
	Subscribe(ctx context.Context, userID int) *redis.PubSub
}

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the open exam session of a classroom member.
type WSHandler struct {
	notices       NoticeSubscriber
	log           zerolog.Logger
	upgrader      websocket.Upgrader
	tick          time.Duration
	outcomeWithin time.Duration
}

// NewWSHandler creates a new WSHandler. notices may be nil, in which case
// notice forwarding is disabled.
func NewWSHandler(notices NoticeSubscriber, submitTimeout time.Duration, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	if submitTimeout <= 0 {
		submitTimeout = catalog.DefaultSubmitTimeout
	}
	return &WSHandler{
		notices:       notices,
		log:           log.With().Str("component", "ws_handler").Logger(),
		upgrader:      buildUpgrader(allowedOrigins),
		tick:          examsession.TickInterval,
		outcomeWithin: submitTimeout,
	}
}

// SessionStream godoc
// WS /ws/v1/classrooms/:classroom_id/session/stream
// Pushes the session view every second and accepts session actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	cat := middleware.GetCatalog(c)
	if claims == nil || cat == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("classroom_id", c.Param("classroom_id")).
		Logger()
	wsLog.Info().Msg("Client connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	track := make(chan *examsession.Session, 1)
	go func() {
		defer cancel()
		h.pushLoop(ctx, conn, cat, track, wsLog)
	}()
	if h.notices != nil {
		go h.forwardNotices(ctx, conn, claims.UserID, wsLog)
	}

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if sess := h.handleAction(conn, cat, &msg, wsLog); sess != nil {
			select {
			case track <- sess:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleAction applies one client action. It returns the session the action
// was accepted on so the push loop can report its closure.
func (h *WSHandler) handleAction(conn *ws.Conn, cat *catalog.Catalog, msg *ws.RequestPayload, wsLog zerolog.Logger) *examsession.Session {
	switch msg.Action {
	case ws.ActionPing:
		conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return nil
	case ws.ActionAnswer, ws.ActionNext, ws.ActionPrevious, ws.ActionSubmit, ws.ActionClose:
	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		return nil
	}

	sess := cat.Active()
	if sess == nil {
		writeSessionError(conn, catalog.ErrNoActiveSession)
		return nil
	}

	switch msg.Action {
	case ws.ActionSubmit:
		// The closed event carries the outcome.
		out, err := cat.SubmitActive()
		if err != nil && out == nil {
			writeSessionError(conn, err)
			return nil
		}
		return sess
	case ws.ActionClose:
		if !cat.CloseActive() {
			writeSessionError(conn, catalog.ErrNoActiveSession)
			return nil
		}
		return sess
	case ws.ActionAnswer:
		if !sess.SelectAnswer(msg.Option) {
			writeSessionError(conn, catalog.ErrActionIgnored)
			return nil
		}
	case ws.ActionNext:
		sess.Next()
	case ws.ActionPrevious:
		sess.Previous()
	}

	conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: sess.Snapshot()})
	return sess
}

// pushLoop sends the open session's view on every tick and reports when the
// tracked session closes. Sessions acted on by the client arrive on track.
func (h *WSHandler) pushLoop(ctx context.Context, conn *ws.Conn, cat *catalog.Catalog, track <-chan *examsession.Session, wsLog zerolog.Logger) {
	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	var tracked, reported *examsession.Session
	reportClosed := func(sess *examsession.Session) bool {
		reported = sess
		out := h.awaitOutcome(ctx, cat, sess)
		return conn.WriteTyped(ws.ClosedResponse{
			Event:     ws.EventClosed,
			SessionID: sess.ID(),
			Outcome:   out,
		}) == nil
	}
	// follow switches tracking to sess. A replaced session that already
	// closed is reported first.
	follow := func(sess *examsession.Session) bool {
		if sess == reported {
			return true
		}
		if tracked != nil && tracked != sess {
			select {
			case <-tracked.Done():
				if !reportClosed(tracked) {
					return false
				}
			default:
			}
		}
		tracked = sess
		return true
	}

	for {
		var done <-chan struct{}
		if tracked != nil {
			done = tracked.Done()
		}

		select {
		case <-ctx.Done():
			return
		case sess := <-track:
			if !follow(sess) {
				return
			}
		case <-done:
			if !reportClosed(tracked) {
				return
			}
			tracked = nil
		case <-ticker.C:
			sess := cat.Active()
			if sess == nil {
				continue
			}
			if !follow(sess) {
				return
			}
			if err := conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: sess.Snapshot()}); err != nil {
				wsLog.Debug().Err(err).Msg("State push failed")
				return
			}
		}
	}
}

// awaitOutcome waits for the persistence outcome of a finalized live session.
// Discarded and review sessions have none.
func (h *WSHandler) awaitOutcome(ctx context.Context, cat *catalog.Catalog, sess *examsession.Session) *catalog.Outcome {
	if _, ok := sess.Result(); !ok {
		return nil
	}

	deadline := time.NewTimer(h.outcomeWithin)
	defer deadline.Stop()
	poll := time.NewTicker(outcomePoll)
	defer poll.Stop()

	for {
		if out, ok := cat.LastOutcome(); ok && out.SessionID == sess.ID() {
			return out
		}
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case <-poll.C:
		}
	}
}

func (h *WSHandler) forwardNotices(ctx context.Context, conn *ws.Conn, userID int, wsLog zerolog.Logger) {
	pubsub := h.notices.Subscribe(ctx, userID)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var n catalog.Notice
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				wsLog.Warn().Err(err).Msg("Malformed notice")
				continue
			}
			if err := conn.WriteTyped(ws.NoticeResponse{Event: ws.EventNotice, Notice: n}); err != nil {
				return
			}
		}
	}
}

func writeSessionError(conn *ws.Conn, err error) {
	_, code := sessionErrCode(err)
	conn.WriteError(string(code), response.GetMessage(code))
}
