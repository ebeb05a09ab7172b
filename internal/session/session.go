// Package session implements the per-connection state machine of §4.5: one
// task per WebSocket, multiplexing broadcast deliveries, inbound frames,
// shutdown, and the idle timer, and driving every terminal condition to the
// correctly coded close frame.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/swlody/fridge-poetry/internal/apperr"
	"github.com/swlody/fridge-poetry/internal/broadcaster"
	"github.com/swlody/fridge-poetry/internal/geometry"
	"github.com/swlody/fridge-poetry/internal/metrics"
	"github.com/swlody/fridge-poetry/internal/ratelimit"
	"github.com/swlody/fridge-poetry/internal/store"
	"github.com/swlody/fridge-poetry/internal/wire"
)

const (
	loopTimeout = 10 * time.Second
	idleTimeout = 300 * time.Second

	maxMagnetID = 20_000_100
	minRotation = -360
	maxRotation = 360
	windowSlop  = 100
)

// Session is one live WebSocket connection and its state machine.
type Session struct {
	id    string
	conn  net.Conn
	store *store.Store
	log   *zap.Logger

	sub         <-chan store.Change
	unsubscribe func()
	metrics     *metrics.Registry

	window       geometry.Window
	rate         ratelimit.Ring
	lastActivity time.Time
}

// New constructs a Session for an already-upgraded connection. id should be
// a time-ordered UUID minted by the acceptor. reg may be nil, in which case
// metrics are skipped.
func New(id string, conn net.Conn, st *store.Store, bc *broadcaster.Broadcaster, reg *metrics.Registry, log *zap.Logger) *Session {
	sub, unsubscribe := bc.Subscribe()
	return &Session{
		id:          id,
		conn:        conn,
		store:       st,
		log:         log.With(zap.String("session_id", id)),
		sub:         sub,
		unsubscribe: unsubscribe,
		metrics:     reg,
	}
}

type inboundFrame struct {
	opcode  ws.OpCode
	payload []byte
	err     error
}

// Run drives the session to completion: the one-time init sequence
// followed by the main loop, until a terminal condition closes the
// connection or ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	defer s.unsubscribe()
	defer s.conn.Close()

	if err := s.send(wire.EncodeSessionIdUpdate(s.id)); err != nil {
		s.log.Debug("unable to establish connection", zap.Error(err))
		return
	}

	s.lastActivity = time.Now()

	inbound := make(chan inboundFrame)
	go s.readFrames(inbound)

	for {
		term := s.iterate(ctx, inbound)
		if term == nil {
			continue
		}
		if s.closeWith(term) {
			return
		}
	}
}

// readFrames blocks reading frames off the connection and forwards each to
// out, terminating the goroutine on the first error (including a close
// frame, which it still forwards so the main loop can log and react).
func (s *Session) readFrames(out chan<- inboundFrame) {
	reader := wsutil.NewReader(s.conn, ws.StateServerSide)
	for {
		head, err := reader.NextFrame()
		if err != nil {
			out <- inboundFrame{err: err}
			return
		}

		payload := make([]byte, head.Length)
		if _, err := io.ReadFull(reader, payload); err != nil {
			out <- inboundFrame{err: err}
			return
		}

		out <- inboundFrame{opcode: head.OpCode, payload: payload}
		if head.OpCode == ws.OpClose {
			return
		}
	}
}

// iterate races the four sources of §4.5's main loop and returns the
// terminal error to act on, or nil if the session should keep looping.
func (s *Session) iterate(ctx context.Context, inbound <-chan inboundFrame) *apperr.Error {
	timer := time.NewTimer(loopTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return apperr.New(apperr.Shutdown, "global shutdown signal")

	case change, ok := <-s.sub:
		if !ok {
			return apperr.New(apperr.Transport, "broadcast subscription closed")
		}
		return s.handleChange(change)

	case frame, ok := <-inbound:
		if !ok {
			return apperr.New(apperr.ClientClose, "inbound stream closed")
		}
		return s.handleFrame(ctx, frame)

	case <-timer.C:
		return s.handleIdleTick()
	}
}

func (s *Session) handleIdleTick() *apperr.Error {
	if time.Since(s.lastActivity) > idleTimeout {
		s.log.Debug("exceeded max idle time")
		return apperr.New(apperr.IdleTimeout, "exceeded max idle time")
	}

	s.log.Debug("sending heartbeat")
	if err := wsutil.WriteServerMessage(s.conn, ws.OpPing, nil); err != nil {
		return apperr.Wrap(apperr.Transport, "send heartbeat ping", err)
	}
	return nil
}

// handleChange implements the §4.5.1 classification table. Changes this
// session wrote itself are classified like any other; no self-echo filtering
// is applied.
func (s *Session) handleChange(c store.Change) *apperr.Error {
	newIn := s.window.Contains(c.NewX, c.NewY)
	oldIn := s.window.Contains(c.OldX, c.OldY)

	var payload []byte
	switch {
	case newIn && oldIn:
		payload = wire.EncodeMove(wire.LocationUpdate{
			ID: c.ID, X: c.NewX, Y: c.NewY, Rotation: c.Rotation, ZIndex: c.ZIndex,
		})
	case newIn && !oldIn:
		payload = wire.EncodeCreate(wire.Magnet{
			ID: c.ID, X: c.NewX, Y: c.NewY, Rotation: c.Rotation, ZIndex: c.ZIndex, Word: c.Word,
		})
	case oldIn:
		payload = wire.EncodeRemove(c.ID)
	default:
		return nil
	}

	if err := s.send(payload); err != nil {
		return apperr.Wrap(apperr.Transport, "send change event", err)
	}
	return nil
}

func (s *Session) handleFrame(ctx context.Context, f inboundFrame) *apperr.Error {
	if f.err != nil {
		return classifyReadError(f.err)
	}

	if !s.rate.Allow(time.Now()) {
		if s.metrics != nil {
			s.metrics.RateLimitedFrames.Inc()
		}
		return apperr.New(apperr.RateLimited, "rate limit exceeded")
	}

	switch f.opcode {
	case ws.OpBinary:
		s.lastActivity = time.Now()
		return s.handleBinary(ctx, f.payload)

	case ws.OpPong:
		if len(f.payload) != 0 {
			s.log.Warn("received non-empty pong payload")
		}
		return nil

	case ws.OpPing:
		if err := wsutil.WriteServerMessage(s.conn, ws.OpPong, f.payload); err != nil {
			return apperr.Wrap(apperr.Transport, "reply to ping", err)
		}
		return nil

	case ws.OpClose:
		return apperr.New(apperr.ClientClose, "peer closed connection")

	default:
		return apperr.New(apperr.UnsupportedMessage, fmt.Sprintf("unsupported opcode %d", f.opcode))
	}
}

func (s *Session) handleBinary(ctx context.Context, payload []byte) *apperr.Error {
	msg, err := wire.DecodeClientMessage(payload)
	if err != nil {
		return apperr.Wrap(apperr.InvalidMessage, "decode client message", err)
	}

	switch msg.Kind {
	case wire.ClientMessageWindow:
		return s.handleWindowUpdate(ctx, msg.Window)
	case wire.ClientMessageMagnet:
		return s.handleMagnetUpdate(ctx, msg.Magnet)
	default:
		return apperr.New(apperr.InvalidMessage, "decoded message has unknown kind")
	}
}

// handleWindowUpdate implements §4.5.3. Difference is computed from the
// current window to the new window as sent, before the new window is clamped
// and installed.
func (s *Session) handleWindowUpdate(ctx context.Context, w wire.Window) *apperr.Error {
	newWindow := geometry.Window{X1: w.X1, Y1: w.Y1, X2: w.X2, Y2: w.Y2}
	if !newWindow.IsValid() {
		return apperr.New(apperr.OutOfBounds, "invalid window update")
	}

	diff := geometry.Difference(s.window, newWindow)
	s.window = newWindow.Clamp()

	if diff == nil {
		s.log.Debug("window did not actually change, ignoring")
		return nil
	}

	magnets, err := s.store.MagnetsForShape(ctx, diff)
	if err != nil {
		return s.toStoreErr(err)
	}

	if err := s.send(wire.EncodeCanvasUpdate(magnets)); err != nil {
		return apperr.Wrap(apperr.Transport, "send canvas update", err)
	}
	return nil
}

// handleMagnetUpdate implements §4.5.4's validity checks before delegating
// the write to the store.
func (s *Session) handleMagnetUpdate(ctx context.Context, u wire.ClientMagnetUpdate) *apperr.Error {
	if !isValidMagnetUpdate(u, s.window) {
		return apperr.New(apperr.OutOfBounds, "invalid magnet update")
	}

	if err := s.store.UpdateMagnet(ctx, u.ID, u.X, u.Y, u.Rotation, s.id); err != nil {
		return s.toStoreErr(err)
	}
	return nil
}

func isValidMagnetUpdate(u wire.ClientMagnetUpdate, w geometry.Window) bool {
	if u.ID > maxMagnetID {
		return false
	}
	if u.Rotation < minRotation || u.Rotation > maxRotation {
		return false
	}
	if u.X < w.X1-windowSlop || u.X > w.X2+windowSlop || u.Y < w.Y1-windowSlop || u.Y > w.Y2+windowSlop {
		return false
	}
	if u.X < geometry.WorldMin || u.X > geometry.WorldMax || u.Y < geometry.WorldMin || u.Y > geometry.WorldMax {
		return false
	}
	return true
}

// toStoreErr preserves a store-raised apperr.Error (e.g. OutOfBounds for a
// missing row) as-is, and wraps anything else as a Store error.
func (s *Session) toStoreErr(err error) *apperr.Error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Kind == apperr.Store && s.metrics != nil {
			s.metrics.StoreErrors.Inc()
		}
		return ae
	}
	if s.metrics != nil {
		s.metrics.StoreErrors.Inc()
	}
	return apperr.Wrap(apperr.Store, "store operation failed", err)
}

// classifyReadError maps a transport-level read failure to its apperr kind.
func classifyReadError(err error) *apperr.Error {
	if errors.Is(err, io.EOF) {
		return apperr.New(apperr.ClientClose, "stream ended")
	}
	if errors.Is(err, wsutil.ErrFrameTooLarge) {
		return apperr.Wrap(apperr.PayloadTooLong, "frame exceeds maximum size", err)
	}
	return apperr.Wrap(apperr.Transport, "read frame", err)
}

// closeWith logs and, unless the error's kind suppresses it, sends a close
// frame carrying the mapped status code. It reports whether the session
// loop should stop (everything except RateLimited does).
func (s *Session) closeWith(err *apperr.Error) bool {
	switch err.Kind {
	case apperr.ClientClose:
		s.log.Debug(err.Error())
		return true
	case apperr.RateLimited:
		s.log.Warn(err.Error())
		return false
	case apperr.Store, apperr.Other:
		s.log.Error(err.Error())
	default:
		s.log.Debug(err.Error())
	}

	code, ok := err.CloseCode()
	if !ok {
		return false
	}

	s.log.Debug("closing connection", zap.Uint16("code", uint16(code)))
	body := ws.NewCloseFrameBody(code, err.Error())
	_ = wsutil.WriteServerMessage(s.conn, ws.OpClose, body)
	return true
}

func (s *Session) send(payload []byte) error {
	return wsutil.WriteServerMessage(s.conn, ws.OpBinary, payload)
}
