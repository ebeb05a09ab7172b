package apperr

import (
	"errors"
	"testing"

	"github.com/gobwas/ws"
)

func TestCloseCodeMapping(t *testing.T) {
	cases := []struct {
		kind     Kind
		wantCode ws.StatusCode
		wantOK   bool
	}{
		{Shutdown, ws.StatusServiceRestart, true},
		{IdleTimeout, ws.StatusGoingAway, true},
		{InvalidMessage, ws.StatusInvalidFramePayloadData, true},
		{UnsupportedMessage, ws.StatusUnsupportedData, true},
		{OutOfBounds, ws.StatusPolicyViolation, true},
		{PayloadTooLong, ws.StatusMessageTooBig, true},
		{Transport, ws.StatusAbnormalClosure, true},
		{Store, ws.StatusInternalServerError, true},
		{Other, ws.StatusInternalServerError, true},
		{ClientClose, 0, false},
		{RateLimited, 0, false},
	}

	for _, c := range cases {
		e := New(c.kind, "test")
		code, ok := e.CloseCode()
		if ok != c.wantOK || (ok && code != c.wantCode) {
			t.Errorf("kind %d: CloseCode() = (%v, %v), want (%v, %v)", c.kind, code, ok, c.wantCode, c.wantOK)
		}
	}
}

func TestLogLevel(t *testing.T) {
	if New(Store, "x").LogLevel() != "error" {
		t.Error("Store should log at error level")
	}
	if New(Other, "x").LogLevel() != "error" {
		t.Error("Other should log at error level")
	}
	if New(RateLimited, "x").LogLevel() != "warn" {
		t.Error("RateLimited should log at warn level")
	}
	if New(Shutdown, "x").LogLevel() != "debug" {
		t.Error("Shutdown should log at debug level")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(Store, "query failed", cause)

	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if e.Error() == "" {
		t.Error("expected non-empty error message")
	}
}
