package session

import (
	"errors"
	"io"
	"net"
	"testing"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/swlody/fridge-poetry/internal/apperr"
	"github.com/swlody/fridge-poetry/internal/geometry"
	"github.com/swlody/fridge-poetry/internal/store"
	"github.com/swlody/fridge-poetry/internal/wire"
)

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	s := &Session{
		id:     "test-session",
		conn:   server,
		log:    zap.NewNop(),
		window: geometry.Window{X1: 0, Y1: 0, X2: 100, Y2: 100},
	}
	return s, client
}

func TestIsValidMagnetUpdate(t *testing.T) {
	w := geometry.Window{X1: 0, Y1: 0, X2: 100, Y2: 100}

	cases := []struct {
		name string
		u    wire.ClientMagnetUpdate
		want bool
	}{
		{"within window", wire.ClientMagnetUpdate{ID: 1, X: 50, Y: 50, Rotation: 0}, true},
		{"within slop", wire.ClientMagnetUpdate{ID: 1, X: -100, Y: -100, Rotation: 0}, true},
		{"outside slop", wire.ClientMagnetUpdate{ID: 1, X: -101, Y: 50, Rotation: 0}, false},
		{"id too large", wire.ClientMagnetUpdate{ID: maxMagnetID + 1, X: 50, Y: 50, Rotation: 0}, false},
		{"rotation too large", wire.ClientMagnetUpdate{ID: 1, X: 50, Y: 50, Rotation: 361}, false},
		{"rotation too small", wire.ClientMagnetUpdate{ID: 1, X: 50, Y: 50, Rotation: -361}, false},
		{"outside world bounds", wire.ClientMagnetUpdate{ID: 1, X: geometry.WorldMax + 1, Y: 50, Rotation: 0}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := isValidMagnetUpdate(c.u, w); got != c.want {
				t.Errorf("isValidMagnetUpdate(%+v) = %v, want %v", c.u, got, c.want)
			}
		})
	}
}

func TestHandleChangeClassification(t *testing.T) {
	cases := []struct {
		name         string
		change       store.Change
		expectNoSend bool
	}{
		{"move within window", store.Change{ID: 1, OldX: 10, OldY: 10, NewX: 20, NewY: 20}, false},
		{"create entering window", store.Change{ID: 2, OldX: -5, OldY: -5, NewX: 5, NewY: 5}, false},
		{"remove leaving window", store.Change{ID: 3, OldX: 50, OldY: 50, NewX: 200, NewY: 200}, false},
		{"outside both", store.Change{ID: 4, OldX: 200, OldY: 200, NewX: 300, NewY: 300}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, client := newTestSession(t)

			done := make(chan []byte, 1)
			go func() {
				frame, _ := ws.ReadFrame(client)
				done <- frame.Payload
			}()

			if err := s.handleChange(c.change); err != nil {
				t.Fatalf("handleChange returned terminal error: %v", err)
			}

			if c.expectNoSend {
				return
			}

			select {
			case data := <-done:
				if len(data) == 0 {
					t.Error("expected a non-empty frame to be written")
				}
			}
		})
	}
}

func TestClassifyReadErrorEOF(t *testing.T) {
	err := classifyReadError(io.EOF)
	if err.Kind != apperr.ClientClose {
		t.Errorf("Kind = %v, want ClientClose", err.Kind)
	}
}

func TestClassifyReadErrorOther(t *testing.T) {
	err := classifyReadError(errors.New("boom"))
	if err.Kind != apperr.Transport {
		t.Errorf("Kind = %v, want Transport", err.Kind)
	}
}

func TestCloseWithRateLimitedDoesNotTerminate(t *testing.T) {
	s, client := newTestSession(t)
	defer client.Close()

	if s.closeWith(apperr.New(apperr.RateLimited, "too fast")) {
		t.Error("RateLimited should not terminate the session")
	}
}

func TestCloseWithClientCloseTerminatesSilently(t *testing.T) {
	s, client := newTestSession(t)
	defer client.Close()

	if !s.closeWith(apperr.New(apperr.ClientClose, "bye")) {
		t.Error("ClientClose should terminate the session")
	}
}

func TestToStoreErrPreservesAppErr(t *testing.T) {
	s, client := newTestSession(t)
	defer client.Close()

	original := apperr.New(apperr.OutOfBounds, "no such magnet")
	got := s.toStoreErr(original)
	if got != original {
		t.Error("expected the original *apperr.Error to be preserved")
	}
}

func TestToStoreErrWrapsUnknown(t *testing.T) {
	s, client := newTestSession(t)
	defer client.Close()

	got := s.toStoreErr(errors.New("connection reset"))
	if got.Kind != apperr.Store {
		t.Errorf("Kind = %v, want Store", got.Kind)
	}
}
