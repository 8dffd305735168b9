package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	lkauth "github.com/livekit/protocol/auth"
	"github.com/rs/zerolog"

	"github.com/reimii/meetup-server/internal/config"
	"github.com/reimii/meetup-server/internal/proto"
)

// State describes the single upstream connection to the SFU.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type pendingRequest struct {
	origin   *Session
	deadline time.Time
}

// Bridge owns the single outbound WebSocket to the SFU. It multiplexes
// requests from every client session onto that link, injecting a generated
// reqId, and demultiplexes responses back to the originating session. One
// Bridge exists per process; Run keeps redialing for its whole lifetime.
type Bridge struct {
	cfg      config.SFUConfig
	registry *Registry
	log      *zerolog.Logger

	state atomic.Int32

	// connMu serializes writes so distinct messages never interleave, and
	// guards the conn swap on reconnect.
	connMu sync.Mutex
	conn   *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]pendingRequest
}

// NewBridge creates the bridge. Run must be called to establish and maintain
// the upstream connection.
func NewBridge(cfg config.SFUConfig, registry *Registry, logger *zerolog.Logger) *Bridge {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 15 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Second
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 250 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 10 * time.Second
	}
	return &Bridge{
		cfg:      cfg,
		registry: registry,
		log:      logger,
		pending:  make(map[string]pendingRequest),
	}
}

// State returns the current connection state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Run dials the SFU and keeps the connection alive until ctx is cancelled.
// Every failure is recoverable; the loop retries with capped exponential
// backoff and is never fatal to the process.
func (b *Bridge) Run(ctx context.Context) error {
	go b.sweepLoop(ctx)

	backoff := b.cfg.MinBackoff
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b.state.Store(int32(StateConnecting))
		conn, err := b.dial(ctx)
		if err != nil {
			b.state.Store(int32(StateDisconnected))
			b.log.Warn().Err(err).Str("url", b.cfg.URL).Dur("retry_in", backoff).Msg("sfu dial failed")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, b.cfg.MaxBackoff)
			continue
		}

		b.connMu.Lock()
		b.conn = conn
		b.connMu.Unlock()
		b.state.Store(int32(StateConnected))
		backoff = b.cfg.MinBackoff
		b.log.Info().Str("url", b.cfg.URL).Msg("sfu connected")

		err = b.readLoop(ctx, conn)

		b.state.Store(int32(StateDisconnected))
		b.connMu.Lock()
		if b.conn == conn {
			b.conn = nil
		}
		b.connMu.Unlock()
		conn.Close(websocket.StatusGoingAway, "reconnecting")

		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warn().Err(err).Msg("sfu connection lost")
	}
}

func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, b.cfg.DialTimeout)
	defer cancel()

	opts := &websocket.DialOptions{}
	if b.cfg.APIKey != "" && b.cfg.APISecret != "" {
		token, err := b.handshakeToken()
		if err != nil {
			return nil, fmt.Errorf("mint handshake token: %w", err)
		}
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + token}}
	}

	conn, _, err := websocket.Dial(dialCtx, b.cfg.URL, opts)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(1 << 20)
	return conn, nil
}

// handshakeToken mints a short-lived access token identifying this relay to
// the SFU.
func (b *Bridge) handshakeToken() (string, error) {
	at := lkauth.NewAccessToken(b.cfg.APIKey, b.cfg.APISecret)
	grant := &lkauth.VideoGrant{RoomCreate: true, RoomJoin: true}
	at.SetVideoGrant(grant).
		SetIdentity("meetup-relay").
		SetValidFor(time.Hour)
	return at.ToJWT()
}

// Forward relays a client payload to the SFU. It fails fast with
// ErrUpstreamUnavailable when not connected and never blocks on a reconnect.
// The pending entry is recorded before transmission so a fast response cannot
// race the bookkeeping.
func (b *Bridge) Forward(ctx context.Context, roomID string, userID int64, origin *Session, payload []byte) error {
	if b.State() != StateConnected {
		return ErrUpstreamUnavailable
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	reqID := uuid.NewString()
	fields["reqId"] = reqID
	fields["roomId"] = roomID
	fields["userId"] = userID

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode upstream message: %w", err)
	}

	b.pendingMu.Lock()
	b.pending[reqID] = pendingRequest{origin: origin, deadline: time.Now().Add(b.cfg.PendingTTL)}
	b.pendingMu.Unlock()

	if err := b.send(ctx, data); err != nil {
		b.pendingMu.Lock()
		delete(b.pending, reqID)
		b.pendingMu.Unlock()
		return err
	}
	return nil
}

func (b *Bridge) send(ctx context.Context, data []byte) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.conn == nil {
		return ErrUpstreamUnavailable
	}
	return b.conn.Write(ctx, websocket.MessageText, data)
}

func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		b.route(ctx, data)
	}
}

// route delivers one inbound SFU message: correlated responses go to the
// originating session, events carrying a roomId fan out to the room's members
// except the publishing user's own sessions.
func (b *Bridge) route(ctx context.Context, data []byte) {
	var msg proto.Upstream
	if err := json.Unmarshal(data, &msg); err != nil {
		b.log.Warn().Err(err).Msg("undecodable sfu message dropped")
		return
	}

	if msg.ReqID != "" {
		b.pendingMu.Lock()
		req, ok := b.pending[msg.ReqID]
		if ok {
			delete(b.pending, msg.ReqID)
		}
		b.pendingMu.Unlock()

		if !ok {
			b.log.Debug().Str("req_id", msg.ReqID).Msg("response without pending entry dropped")
			return
		}
		if err := req.origin.Send(ctx, data); err != nil {
			b.log.Debug().Err(err).Str("req_id", msg.ReqID).Str("session_id", req.origin.ID).Msg("origin session gone, response dropped")
		}
		return
	}

	if msg.RoomID == "" {
		b.log.Debug().Str("type", msg.Type).Msg("sfu event without roomId dropped")
		return
	}

	except := msg.UserID
	if except == 0 {
		except = -1
	}
	for _, s := range b.registry.Sessions(msg.RoomID, except) {
		if err := s.Send(ctx, data); err != nil {
			b.log.Debug().Err(err).Str("session_id", s.ID).Str("room_id", msg.RoomID).Msg("broadcast send failed")
		}
	}
}

// sweepLoop expires pending requests the SFU never answered, reporting a
// timeout ack to the origin session so it is not left waiting forever.
func (b *Bridge) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.sweep(ctx, now)
		}
	}
}

func (b *Bridge) sweep(ctx context.Context, now time.Time) {
	type expired struct {
		reqID  string
		origin *Session
	}

	b.pendingMu.Lock()
	var timedOut []expired
	for reqID, req := range b.pending {
		if now.After(req.deadline) {
			timedOut = append(timedOut, expired{reqID: reqID, origin: req.origin})
			delete(b.pending, reqID)
		}
	}
	b.pendingMu.Unlock()

	for _, e := range timedOut {
		b.log.Warn().Str("req_id", e.reqID).Str("session_id", e.origin.ID).Msg("pending sfu request timed out")
		ack := proto.NewErrorAck(proto.ErrCodeSFUTimeout, "sfu did not respond")
		ack.ReqID = e.reqID
		if err := e.origin.SendJSON(ctx, ack); err != nil {
			b.log.Debug().Err(err).Str("session_id", e.origin.ID).Msg("timeout ack not delivered")
		}
	}
}

func (b *Bridge) pendingLen() int {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	return len(b.pending)
}

// OnJoin notifies the SFU of a room join. Best-effort; failures never affect
// the client's JOIN.
func (b *Bridge) OnJoin(ctx context.Context, roomID string, userID int64) {
	b.notify(ctx, map[string]any{"type": proto.TypePeerJoined, "roomId": roomID, "userId": userID})
}

// OnLeave notifies the SFU of a room leave. Best-effort.
func (b *Bridge) OnLeave(ctx context.Context, roomID string, userID int64) {
	b.notify(ctx, map[string]any{"type": proto.TypePeerLeft, "roomId": roomID, "userId": userID})
}

// OnDisconnect notifies the SFU that a client connection went away.
// Best-effort; userID is zero when the connection never authenticated.
func (b *Bridge) OnDisconnect(ctx context.Context, userID int64) {
	b.notify(ctx, map[string]any{"type": proto.TypePeerGone, "userId": userID})
}

func (b *Bridge) notify(ctx context.Context, fields map[string]any) {
	if b.State() != StateConnected {
		return
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := b.send(ctx, data); err != nil {
		b.log.Debug().Err(err).Msg("membership notification not sent")
	}
}
