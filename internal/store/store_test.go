package store

import (
	"encoding/json"
	"testing"

	"github.com/swlody/fridge-poetry/internal/geometry"
)

func TestChangeDecodesNotificationPayload(t *testing.T) {
	payload := `{"id":1,"new_x":10,"new_y":20,"old_x":5,"old_y":6,"rotation":90,"z_index":42,"word":"hello"}`

	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := Change{ID: 1, NewX: 10, NewY: 20, OldX: 5, OldY: 6, Rotation: 90, ZIndex: 42, Word: "hello"}
	if c != want {
		t.Errorf("Change = %+v, want %+v", c, want)
	}
}

func TestToMagnets(t *testing.T) {
	rows := []magnetRow{
		{ID: 1, X: 2, Y: 3, Rotation: 4, Word: "a", ZIndex: 5},
		{ID: 6, X: 7, Y: 8, Rotation: 9, Word: "b", ZIndex: 10},
	}

	got := toMagnets(rows)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != 1 || got[0].Word != "a" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].ZIndex != 10 {
		t.Errorf("got[1].ZIndex = %d, want 10", got[1].ZIndex)
	}
}

func TestMagnetsForShapeRejectsEmptyShape(t *testing.T) {
	s := &Store{}
	_, err := s.MagnetsForShape(nil, &geometry.Shape{})
	if err == nil {
		t.Fatal("expected error for a shape with neither window nor polygon")
	}
}
