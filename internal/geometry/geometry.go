// Package geometry implements window containment, validity, clamping, and
// rectangle differencing over the integer world coordinates magnets live in.
package geometry

// World bounds magnet coordinates must stay within on both axes.
const (
	WorldMin = -500_000
	WorldMax = 500_000
)

// Clamped view size cap (§4.1): Clamp leaves a window within these dimensions
// unchanged and expands one that exceeds them; it never shrinks a window.
const (
	MaxWidth  = 23_040
	MaxHeight = 12_960
)

// Point is a single location in world coordinates.
type Point struct {
	X, Y int32
}

// Window is an axis-aligned rectangle given by two corners. X2 > X1 and
// Y2 > Y1 hold for any valid window (see IsValid).
type Window struct {
	X1, Y1, X2, Y2 int32
}

// Polygon is the six-vertex hexagon Difference produces when old and new
// windows overlap on neither shared x nor shared y extent. Vertices are
// ordered so that consecutive pairs trace the outline of the part of new
// outside old; it is never stored, only ever passed straight to a query.
type Polygon struct {
	P1, P2, P3, P4, P5, P6 Point
}

// Shape is the result of Difference: either a Window (a rectangular fetch
// region) or a Polygon (the exact L-shaped sliver of new outside old).
type Shape struct {
	Window  *Window
	Polygon *Polygon
}

// IsValid reports whether w is non-empty, per §3: a window is valid iff
// X2 > X1 and Y2 > Y1.
func (w Window) IsValid() bool {
	return w.X2 > w.X1 && w.Y2 > w.Y1
}

// Contains reports closed-interval membership of (x, y) in w on both axes.
func (w Window) Contains(x, y int32) bool {
	return x >= w.X1 && x <= w.X2 && y >= w.Y1 && y <= w.Y2
}

func (w Window) width() int32  { return w.X2 - w.X1 }
func (w Window) height() int32 { return w.Y2 - w.Y1 }

// Clamp expands w symmetrically about its center by the amount each dimension
// exceeds MaxWidth/MaxHeight (half of the excess on each side); a dimension
// within its cap is left as is. This only ever widens a window, never shrinks
// one — a client nominating a view larger than the cap gets exactly that
// larger view. Do not "fix" this into a shrink; it is the documented source
// behavior (§4.1, §9).
func (w Window) Clamp() Window {
	out := w

	if overW := w.width() - MaxWidth; overW > 0 {
		half := overW / 2
		out.X1 -= half
		out.X2 += overW - half
	}
	if overH := w.height() - MaxHeight; overH > 0 {
		half := overH / 2
		out.Y1 -= half
		out.Y2 += overH - half
	}

	return out
}

// contains reports whether a wholly contains b.
func (a Window) contains(b Window) bool {
	return a.X1 <= b.X1 && a.X2 >= b.X2 && a.Y1 <= b.Y1 && a.Y2 >= b.Y2
}

// disjoint reports whether a and b share no area on either axis.
func (a Window) disjoint(b Window) bool {
	return a.X2 < b.X1 || b.X2 < a.X1 || a.Y2 < b.Y1 || b.Y2 < a.Y1
}

// Difference returns the Shape describing the area in newW not covered by
// oldW, or nil if newW == oldW (§4.1). The cases are evaluated in the order
// spec.md lists them: identical, then disjoint-or-contained (conservative
// whole-window over-fetch), then same-x-extent strip, then same-y-extent
// strip, then the general L-shaped hexagon case.
func Difference(oldW, newW Window) *Shape {
	if oldW == newW {
		return nil
	}

	if oldW.disjoint(newW) || oldW.contains(newW) || newW.contains(oldW) {
		w := newW
		return &Shape{Window: &w}
	}

	if oldW.X1 == newW.X1 && oldW.X2 == newW.X2 {
		return &Shape{Window: stripY(oldW, newW)}
	}

	if oldW.Y1 == newW.Y1 && oldW.Y2 == newW.Y2 {
		return &Shape{Window: stripX(oldW, newW)}
	}

	return &Shape{Polygon: hexagon(oldW, newW)}
}

// stripY returns the y-gap strip window spanning the area of new not covered
// by old on the y-axis when old and new share the same x-extent.
func stripY(oldW, newW Window) *Window {
	if newW.Y2 > oldW.Y2 {
		return &Window{X1: newW.X1, Y1: oldW.Y2, X2: newW.X2, Y2: newW.Y2}
	}
	return &Window{X1: newW.X1, Y1: newW.Y1, X2: newW.X2, Y2: oldW.Y1}
}

// stripX returns the x-gap strip window when old and new share the same
// y-extent.
func stripX(oldW, newW Window) *Window {
	if newW.X2 > oldW.X2 {
		return &Window{X1: oldW.X2, Y1: newW.Y1, X2: newW.X2, Y2: newW.Y2}
	}
	return &Window{X1: newW.X1, Y1: newW.Y1, X2: oldW.X1, Y2: newW.Y2}
}

// hexagon builds the L-shaped six-vertex polygon describing the sliver of
// newW outside oldW, for the general case where exactly one corner of newW
// lies inside oldW (or vice versa on one axis). The four branches correspond
// to which corner of newW is the one inside oldW; every vertex produced lies
// on the boundary of newW or of oldW.
func hexagon(oldW, newW Window) *Polygon {
	switch {
	case oldW.Contains(newW.X1, newW.Y1):
		// New's bottom-left corner sits inside old: the visible sliver
		// wraps around old's near edges.
		return &Polygon{
			P1: Point{newW.X1, oldW.Y2},
			P2: Point{oldW.X2, oldW.Y2},
			P3: Point{oldW.X2, newW.Y1},
			P4: Point{newW.X2, newW.Y1},
			P5: Point{newW.X2, newW.Y2},
			P6: Point{newW.X1, newW.Y2},
		}
	case oldW.Contains(newW.X2, newW.Y1):
		return &Polygon{
			P1: Point{newW.X2, oldW.Y2},
			P2: Point{oldW.X1, oldW.Y2},
			P3: Point{oldW.X1, newW.Y1},
			P4: Point{newW.X1, newW.Y1},
			P5: Point{newW.X1, newW.Y2},
			P6: Point{newW.X2, newW.Y2},
		}
	case oldW.Contains(newW.X1, newW.Y2):
		return &Polygon{
			P1: Point{newW.X1, oldW.Y1},
			P2: Point{oldW.X2, oldW.Y1},
			P3: Point{oldW.X2, newW.Y2},
			P4: Point{newW.X2, newW.Y2},
			P5: Point{newW.X2, newW.Y1},
			P6: Point{newW.X1, newW.Y1},
		}
	default:
		// oldW.Contains(newW.X2, newW.Y2)
		return &Polygon{
			P1: Point{newW.X2, oldW.Y1},
			P2: Point{oldW.X1, oldW.Y1},
			P3: Point{oldW.X1, newW.Y2},
			P4: Point{newW.X1, newW.Y2},
			P5: Point{newW.X1, newW.Y1},
			P6: Point{newW.X2, newW.Y1},
		}
	}
}
