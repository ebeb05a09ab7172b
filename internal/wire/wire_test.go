package wire

import "testing"

func TestDecodeWindowMessage(t *testing.T) {
	want := Window{X1: 0, Y1: 0, X2: 100, Y2: 100}
	data := EncodeWindowMessage(want)

	msg, err := DecodeClientMessage(data)
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if msg.Kind != ClientMessageWindow {
		t.Fatalf("Kind = %v, want ClientMessageWindow", msg.Kind)
	}
	if msg.Window != want {
		t.Errorf("Window = %+v, want %+v", msg.Window, want)
	}
}

func TestDecodeMagnetMessage(t *testing.T) {
	want := ClientMagnetUpdate{IsMagnetUpdate: true, ID: 7, X: 10, Y: 20, Rotation: 45}
	data := EncodeMagnetMessage(want)

	msg, err := DecodeClientMessage(data)
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if msg.Kind != ClientMessageMagnet {
		t.Fatalf("Kind = %v, want ClientMessageMagnet", msg.Kind)
	}
	if msg.Magnet != want {
		t.Errorf("Magnet = %+v, want %+v", msg.Magnet, want)
	}
}

func TestDecodeInvalidMessage(t *testing.T) {
	garbage := []byte{0xc0, 0xc0, 0xc0}
	if _, err := DecodeClientMessage(garbage); err == nil {
		t.Error("expected error decoding garbage bytes")
	}
}

func TestEncodeServerMessagesProduceNonEmptyFrames(t *testing.T) {
	if len(EncodeSessionIdUpdate("abc")) == 0 {
		t.Error("expected non-empty SessionIdUpdate frame")
	}
	m := Magnet{ID: 1, X: 2, Y: 3, Rotation: 4, ZIndex: 5, Word: "hello"}
	if len(EncodeCreate(m)) == 0 {
		t.Error("expected non-empty Create frame")
	}
	if len(EncodeMove(LocationUpdate{ID: 1, X: 2, Y: 3, Rotation: 4, ZIndex: 5})) == 0 {
		t.Error("expected non-empty Move frame")
	}
	if len(EncodeRemove(1)) == 0 {
		t.Error("expected non-empty Remove frame")
	}
	if len(EncodeCanvasUpdate([]Magnet{m})) == 0 {
		t.Error("expected non-empty CanvasUpdate frame")
	}
}
