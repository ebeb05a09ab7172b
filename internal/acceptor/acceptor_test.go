package acceptor

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/swlody/fridge-poetry/internal/broadcaster"
)

func TestStartStopDrainsInFlightConnections(t *testing.T) {
	bc := broadcaster.New(zap.NewNop(), 4)
	a := New("127.0.0.1:0", nil, bc, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	addr := a.listener.Addr().String()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()

	conn.Close()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the connection closed")
	}
}
