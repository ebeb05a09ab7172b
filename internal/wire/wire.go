// Package wire implements the binary message codec of §4.2: a single
// self-describing MessagePack frame per direction, encoded/decoded with
// tinylib/msgp's low-level Append*/Read*Bytes primitives (no code generation
// is invoked anywhere in this package).
package wire

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// Magnet is the full magnet record sent to a client on creation or in a
// canvas snapshot.
type Magnet struct {
	ID       int32
	X        int32
	Y        int32
	Rotation int32
	ZIndex   int64
	Word     string
}

// LocationUpdate is the subset of fields sent when an already-visible magnet
// moves.
type LocationUpdate struct {
	ID       int32
	X        int32
	Y        int32
	Rotation int32
	ZIndex   int64
}

// Window is the wire representation of a client's rectangular viewport.
type Window struct {
	X1, Y1, X2, Y2 int32
}

// ClientMagnetUpdate is a magnet edit proposed by a client. IsMagnetUpdate is
// the discriminator field the untagged decoder checks for (§4.2).
type ClientMagnetUpdate struct {
	IsMagnetUpdate bool
	ID             int32
	X              int32
	Y              int32
	Rotation       int32
}

// ClientMessageKind distinguishes the two client→server variants once
// decoded.
type ClientMessageKind int

const (
	ClientMessageWindow ClientMessageKind = iota
	ClientMessageMagnet
)

// ClientMessage is the decoded form of a client→server frame: exactly one of
// Window or Magnet is populated, selected by Kind.
type ClientMessage struct {
	Kind   ClientMessageKind
	Window Window
	Magnet ClientMagnetUpdate
}

// --- server → client encoding ---

// EncodeSessionIdUpdate encodes the one-time post-upgrade session id frame.
func EncodeSessionIdUpdate(sessionID string) []byte {
	b := msgp.AppendMapHeader(nil, 2)
	b = msgp.AppendString(b, "type")
	b = msgp.AppendString(b, "session_id")
	b = msgp.AppendString(b, "session_id")
	b = msgp.AppendString(b, sessionID)
	return b
}

// EncodeCreate encodes a newly-visible magnet.
func EncodeCreate(m Magnet) []byte {
	b := msgp.AppendMapHeader(nil, 7)
	b = msgp.AppendString(b, "type")
	b = msgp.AppendString(b, "create")
	b = appendMagnetFields(b, m)
	return b
}

// EncodeMove encodes a magnet that moved within the client's window.
func EncodeMove(u LocationUpdate) []byte {
	b := msgp.AppendMapHeader(nil, 6)
	b = msgp.AppendString(b, "type")
	b = msgp.AppendString(b, "move")
	b = msgp.AppendString(b, "id")
	b = msgp.AppendInt32(b, u.ID)
	b = msgp.AppendString(b, "x")
	b = msgp.AppendInt32(b, u.X)
	b = msgp.AppendString(b, "y")
	b = msgp.AppendInt32(b, u.Y)
	b = msgp.AppendString(b, "rotation")
	b = msgp.AppendInt32(b, u.Rotation)
	b = msgp.AppendString(b, "z_index")
	b = msgp.AppendInt64(b, u.ZIndex)
	return b
}

// EncodeRemove encodes a magnet that departed the client's window.
func EncodeRemove(id int32) []byte {
	b := msgp.AppendMapHeader(nil, 2)
	b = msgp.AppendString(b, "type")
	b = msgp.AppendString(b, "remove")
	b = msgp.AppendString(b, "id")
	b = msgp.AppendInt32(b, id)
	return b
}

// EncodeCanvasUpdate encodes the full batch result of a window or polygon
// read.
func EncodeCanvasUpdate(magnets []Magnet) []byte {
	b := msgp.AppendMapHeader(nil, 2)
	b = msgp.AppendString(b, "type")
	b = msgp.AppendString(b, "canvas_update")
	b = msgp.AppendString(b, "magnets")
	b = msgp.AppendArrayHeader(b, uint32(len(magnets)))
	for _, m := range magnets {
		b = appendMagnetMap(b, m)
	}
	return b
}

func appendMagnetFields(b []byte, m Magnet) []byte {
	b = msgp.AppendString(b, "id")
	b = msgp.AppendInt32(b, m.ID)
	b = msgp.AppendString(b, "x")
	b = msgp.AppendInt32(b, m.X)
	b = msgp.AppendString(b, "y")
	b = msgp.AppendInt32(b, m.Y)
	b = msgp.AppendString(b, "rotation")
	b = msgp.AppendInt32(b, m.Rotation)
	b = msgp.AppendString(b, "z_index")
	b = msgp.AppendInt64(b, m.ZIndex)
	b = msgp.AppendString(b, "word")
	b = msgp.AppendString(b, m.Word)
	return b
}

func appendMagnetMap(b []byte, m Magnet) []byte {
	b = msgp.AppendMapHeader(b, 6)
	return appendMagnetFields(b, m)
}

// EncodeWindowMessage encodes a client→server window-update frame. Exported
// for tests exercising the client→server decode path.
func EncodeWindowMessage(w Window) []byte {
	b := msgp.AppendMapHeader(nil, 4)
	b = msgp.AppendString(b, "x1")
	b = msgp.AppendInt32(b, w.X1)
	b = msgp.AppendString(b, "y1")
	b = msgp.AppendInt32(b, w.Y1)
	b = msgp.AppendString(b, "x2")
	b = msgp.AppendInt32(b, w.X2)
	b = msgp.AppendString(b, "y2")
	b = msgp.AppendInt32(b, w.Y2)
	return b
}

// EncodeMagnetMessage encodes a client→server magnet-update frame.
func EncodeMagnetMessage(u ClientMagnetUpdate) []byte {
	b := msgp.AppendMapHeader(nil, 5)
	b = msgp.AppendString(b, "is_magnet_update")
	b = msgp.AppendBool(b, true)
	b = msgp.AppendString(b, "id")
	b = msgp.AppendInt32(b, u.ID)
	b = msgp.AppendString(b, "x")
	b = msgp.AppendInt32(b, u.X)
	b = msgp.AppendString(b, "y")
	b = msgp.AppendInt32(b, u.Y)
	b = msgp.AppendString(b, "rotation")
	b = msgp.AppendInt32(b, u.Rotation)
	return b
}

// --- client → server decoding ---

// DecodeClientMessage decodes a single client→server frame. Per §4.2 the two
// variants are untagged and selected by map size: five keys (one of them the
// is_magnet_update discriminator, which must be true) decode as the magnet
// variant, four keys as the window variant. Keys may come in any order.
// Anything else is an invalid message.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	sz, rest, err := msgp.ReadMapHeaderBytes(data)
	if err != nil {
		return nil, fmt.Errorf("read map header: %w", err)
	}

	switch sz {
	case 5:
		return decodeMagnetUpdate(rest)
	case 4:
		return decodeWindow(rest)
	default:
		return nil, fmt.Errorf("unexpected field count %d in client message", sz)
	}
}

func decodeMagnetUpdate(b []byte) (*ClientMessage, error) {
	var u ClientMagnetUpdate

	fields := map[string]func([]byte) ([]byte, error){
		"is_magnet_update": func(b []byte) ([]byte, error) {
			v, o, err := msgp.ReadBoolBytes(b)
			u.IsMagnetUpdate = v
			return o, err
		},
		"id": func(b []byte) ([]byte, error) {
			v, o, err := msgp.ReadInt32Bytes(b)
			u.ID = v
			return o, err
		},
		"x": func(b []byte) ([]byte, error) {
			v, o, err := msgp.ReadInt32Bytes(b)
			u.X = v
			return o, err
		},
		"y": func(b []byte) ([]byte, error) {
			v, o, err := msgp.ReadInt32Bytes(b)
			u.Y = v
			return o, err
		},
		"rotation": func(b []byte) ([]byte, error) {
			v, o, err := msgp.ReadInt32Bytes(b)
			u.Rotation = v
			return o, err
		},
	}

	rest, err := readKnownFields(b, 5, fields)
	if err != nil {
		return nil, err
	}
	_ = rest

	if !u.IsMagnetUpdate {
		return nil, fmt.Errorf("magnet update missing is_magnet_update discriminator")
	}

	return &ClientMessage{Kind: ClientMessageMagnet, Magnet: u}, nil
}

func decodeWindow(b []byte) (*ClientMessage, error) {
	var w Window

	fields := map[string]func([]byte) ([]byte, error){
		"x1": func(b []byte) ([]byte, error) {
			v, o, err := msgp.ReadInt32Bytes(b)
			w.X1 = v
			return o, err
		},
		"y1": func(b []byte) ([]byte, error) {
			v, o, err := msgp.ReadInt32Bytes(b)
			w.Y1 = v
			return o, err
		},
		"x2": func(b []byte) ([]byte, error) {
			v, o, err := msgp.ReadInt32Bytes(b)
			w.X2 = v
			return o, err
		},
		"y2": func(b []byte) ([]byte, error) {
			v, o, err := msgp.ReadInt32Bytes(b)
			w.Y2 = v
			return o, err
		},
	}

	_, err := readKnownFields(b, 4, fields)
	if err != nil {
		return nil, err
	}

	return &ClientMessage{Kind: ClientMessageWindow, Window: w}, nil
}

// readKnownFields reads exactly count string-keyed fields from b, dispatching
// each value to the reader registered for its key.
func readKnownFields(b []byte, count int, readers map[string]func([]byte) ([]byte, error)) ([]byte, error) {
	rest := b
	for i := 0; i < count; i++ {
		key, o, err := msgp.ReadStringBytes(rest)
		if err != nil {
			return nil, fmt.Errorf("read field key: %w", err)
		}
		reader, ok := readers[key]
		if !ok {
			return nil, fmt.Errorf("unexpected field %q in client message", key)
		}
		o, err = reader(o)
		if err != nil {
			return nil, fmt.Errorf("read field %q: %w", key, err)
		}
		rest = o
	}
	return rest, nil
}
