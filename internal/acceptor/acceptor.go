// Package acceptor owns the TCP listener: upgrade handshake, session-id
// issuance, session launch/tracking, and graceful drain (§4.7).
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swlody/fridge-poetry/internal/broadcaster"
	"github.com/swlody/fridge-poetry/internal/metrics"
	"github.com/swlody/fridge-poetry/internal/session"
	"github.com/swlody/fridge-poetry/internal/store"
)

// forwardedHeader is the header consulted for the peer address used in
// logging only, per §4.7; absence falls back to the raw socket address.
const forwardedHeader = "X-Forwarded-For"

// Acceptor listens for connections, upgrades each to a WebSocket, and
// launches a tracked session task for it.
type Acceptor struct {
	addr        string
	store       *store.Store
	broadcaster *broadcaster.Broadcaster
	metrics     *metrics.Registry
	log         *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup
}

// New constructs an Acceptor bound to addr (not yet listening).
func New(addr string, st *store.Store, bc *broadcaster.Broadcaster, reg *metrics.Registry, log *zap.Logger) *Acceptor {
	return &Acceptor{addr: addr, store: st, broadcaster: bc, metrics: reg, log: log}
}

// Start opens the listener and begins accepting connections in the
// background. It returns once the listener is open.
func (a *Acceptor) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.addr, err)
	}
	a.listener = ln
	a.log.Info("acceptor listening", zap.String("addr", a.addr))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.acceptLoop(ctx)
	}()

	return nil
}

// Stop closes the listener and blocks until every in-flight session has
// drained, satisfying §4.7's "stop accepting, wait for sessions" sequence.
// The caller is responsible for closing the store only after Stop returns.
func (a *Acceptor) Stop() {
	if a.listener != nil {
		_ = a.listener.Close()
	}
	a.wg.Wait()
}

func (a *Acceptor) acceptLoop(ctx context.Context) {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			a.log.Error("accept error", zap.Error(err))
			return
		}

		a.wg.Add(1)
		go func(c net.Conn) {
			defer a.wg.Done()
			a.handleConn(ctx, c)
		}(conn)
	}
}

func (a *Acceptor) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	peer := conn.RemoteAddr().String()

	if err := conn.SetDeadline(time.Now().Add(10 * time.Second)); err != nil {
		a.log.Debug("set handshake deadline", zap.Error(err))
	}

	upgrader := ws.Upgrader{
		OnHeader: func(key, value []byte) error {
			if string(key) == forwardedHeader && len(value) > 0 {
				peer = string(value)
			}
			return nil
		},
	}

	if _, err := upgrader.Upgrade(conn); err != nil {
		if a.metrics != nil {
			a.metrics.AcceptErrors.Inc()
		}
		a.log.Debug("upgrade failed", zap.String("peer", peer), zap.Error(err))
		return
	}
	_ = conn.SetDeadline(time.Time{})

	sessionID, err := uuid.NewV7()
	if err != nil {
		a.log.Error("failed to mint session id", zap.Error(err))
		return
	}

	if a.metrics != nil {
		a.metrics.SessionsActive.Inc()
		defer a.metrics.SessionsActive.Dec()
	}

	a.log.Debug("session starting", zap.String("session_id", sessionID.String()), zap.String("peer", peer))

	sess := session.New(sessionID.String(), conn, a.store, a.broadcaster, a.metrics, a.log)
	sess.Run(ctx)
}
