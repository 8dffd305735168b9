package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/reimii/meetup-server/internal/auth"
	"github.com/reimii/meetup-server/internal/proto"
	"github.com/reimii/meetup-server/internal/relay"
	"github.com/reimii/meetup-server/internal/utils"
)

// TokenVerifier resolves a bearer token into verified claims.
type TokenVerifier interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Upstream is the slice of the bridge the gateway needs.
type Upstream interface {
	Forward(ctx context.Context, roomID string, userID int64, origin *relay.Session, payload []byte) error
	OnJoin(ctx context.Context, roomID string, userID int64)
	OnLeave(ctx context.Context, roomID string, userID int64)
	OnDisconnect(ctx context.Context, userID int64)
}

// WSHandler is the connection gateway: it authenticates the handshake,
// owns the per-client session lifecycle, and dispatches inbound messages to
// the room registry or the upstream bridge.
type WSHandler struct {
	verifier TokenVerifier
	registry *relay.Registry
	upstream Upstream
	msgLimit int
	log      *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*relay.Session
}

// NewWSHandler builds the gateway handler.
func NewWSHandler(verifier TokenVerifier, registry *relay.Registry, upstream Upstream, msgsPerMinute int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		verifier: verifier,
		registry: registry,
		upstream: upstream,
		msgLimit: msgsPerMinute,
		log:      logger,
		sessions: make(map[string]*relay.Session),
	}
}

// SessionCount reports the number of live registered connections.
func (h *WSHandler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	println("DEBUG: ServeHTTP enter")
	// Authenticate before the upgrade: a rejected connection must never be
	// registered anywhere.
	claims, err := h.authenticate(r)
	println("DEBUG: authenticated, err:", err != nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws handshake unauthenticated")
		stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	println("DEBUG: accepted")

	session := relay.NewSession(utils.NewSessionID(), claims.UserID, claims.Username, wsConn{conn: conn})
	h.register(session)
	h.log.Info().Str("session_id", session.ID).Int64("user_id", claims.UserID).Msg("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	err = h.readLoop(ctx, conn, session)

	h.teardown(session)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
			h.log.Debug().Err(err).Str("session_id", session.ID).Msg("ws connection closed with error")
		}
	}
	conn.Close(status, reason)
}

func (h *WSHandler) authenticate(r *stdhttp.Request) (*auth.Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errors.New("invalid authorization header format")
	}
	return h.verifier.ValidateToken(parts[1])
}

func (h *WSHandler) register(s *relay.Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
}

// teardown runs the disconnect path: the session leaves every room it was in,
// the connection is unregistered and the bridge is told, best-effort.
func (h *WSHandler) teardown(s *relay.Session) {
	s.Close()
	h.registry.LeaveAll(s.UserID, s)

	h.mu.Lock()
	delete(h.sessions, s.ID)
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.upstream.OnDisconnect(ctx, s.UserID)

	h.log.Info().Str("session_id", s.ID).Int64("user_id", s.UserID).Msg("client disconnected")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *relay.Session) error {
	limiter := newRateLimiter(h.msgLimit)
	stop := make(chan struct{})
	defer close(stop)
	limiter.startReset(stop)

	for {
		println("DEBUG: readLoop waiting")
		_, data, err := conn.Read(ctx)
		println("DEBUG: readLoop got", len(data), "err:", err != nil)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			h.sendErrorAck(ctx, session, proto.ErrCodeRateLimited, "message rate limit exceeded")
			continue
		}

		h.dispatch(ctx, session, data)
	}
}

// dispatch handles one inbound client message. Malformed payloads are
// rejected without side effects; the connection stays open.
func (h *WSHandler) dispatch(ctx context.Context, session *relay.Session, data []byte) {
	in, err := proto.ParseInbound(data)
	if err != nil {
		h.sendErrorAck(ctx, session, proto.ErrCodeMalformed, "invalid json")
		return
	}
	if in.Type == "" {
		h.sendErrorAck(ctx, session, proto.ErrCodeMalformed, "type is required")
		return
	}
	if in.RoomID == "" {
		h.sendErrorAck(ctx, session, proto.ErrCodeMalformed, "roomId is required")
		return
	}

	switch in.Type {
	case proto.TypeJoin:
		h.registry.Join(in.RoomID, session.UserID, session)
		h.upstream.OnJoin(ctx, in.RoomID, session.UserID)
		h.log.Debug().Str("session_id", session.ID).Str("room_id", in.RoomID).Msg("joined room")

	case proto.TypeLeave:
		h.registry.Leave(in.RoomID, session.UserID, session)
		h.upstream.OnLeave(ctx, in.RoomID, session.UserID)
		h.log.Debug().Str("session_id", session.ID).Str("room_id", in.RoomID).Msg("left room")

	default:
		err := h.upstream.Forward(ctx, in.RoomID, session.UserID, session, in.Raw)
		switch {
		case err == nil:
		case errors.Is(err, relay.ErrMalformedPayload):
			h.sendErrorAck(ctx, session, proto.ErrCodeMalformed, "payload must be a json object")
		default:
			// Upstream unavailability is local to this forward attempt; the
			// client gets an explicit ack instead of silence.
			h.log.Warn().Err(err).Str("session_id", session.ID).Str("type", in.Type).Msg("forward to sfu failed")
			h.sendErrorAck(ctx, session, proto.ErrCodeSFUUnavailable, "media server unavailable")
		}
	}
}

func (h *WSHandler) sendErrorAck(ctx context.Context, session *relay.Session, code, msg string) {
	println("DEBUG: sendErrorAck", code)
	if err := session.SendJSON(ctx, proto.NewErrorAck(code, msg)); err != nil {
		println("DEBUG: sendErrorAck failed:", err.Error())
		h.log.Debug().Err(err).Str("session_id", session.ID).Msg("error ack not delivered")
	}
}

// wsConn adapts a coder/websocket connection to the relay.Conn write side.
type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}
