package geometry

import "testing"

func TestCeilDiv(t *testing.T) {
	cases := []struct{ a, b, want uint32 }{
		{10, 3, 4},
		{9, 3, 3},
		{1, 3, 1},
		{0, 3, 0},
	}
	for _, c := range cases {
		got := ceilDiv(c.a, c.b)
		if got != c.want {
			t.Errorf("ceilDiv(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
		// a <= ceil_div(a,b)*b < a+b
		if !(c.a <= got*c.b && got*c.b < c.a+c.b) {
			t.Errorf("ceilDiv(%d,%d)=%d violates invariant", c.a, c.b, got)
		}
	}
}

func TestSaturatingSub(t *testing.T) {
	v := Vec2d{X: 2, Y: 3}.Sub(Vec2d{X: 5, Y: 1})
	if v != (Vec2d{X: 0, Y: 2}) {
		t.Errorf("got %v, want {0 2}", v)
	}
}

func TestMaxSizeInRect(t *testing.T) {
	cases := []struct {
		pos, tileSize, canvas Vec2d
	}{
		{Vec2d{0, 0}, Vec2d{256, 256}, Vec2d{1000, 1000}},
		{Vec2d{900, 900}, Vec2d{256, 256}, Vec2d{1000, 1000}},
		{Vec2d{0, 0}, Vec2d{10, 10}, Vec2d{5, 20}},
	}
	for _, c := range cases {
		size := MaxSizeInRect(c.pos, c.tileSize, c.canvas)
		if size.Add(c.pos).X > c.canvas.X || size.Add(c.pos).Y > c.canvas.Y {
			t.Errorf("MaxSizeInRect(%v,%v,%v)=%v exceeds canvas", c.pos, c.tileSize, c.canvas, size)
		}
	}
}

func TestArea(t *testing.T) {
	v := Vec2d{X: 1 << 20, Y: 1 << 20}
	if v.Area() != uint64(1<<40) {
		t.Errorf("area overflowed or wrong: %d", v.Area())
	}
}

func TestFitsInside(t *testing.T) {
	if !(Vec2d{1, 2}).FitsInside(Vec2d{1, 2}) {
		t.Error("equal should fit")
	}
	if (Vec2d{2, 2}).FitsInside(Vec2d{1, 2}) {
		t.Error("larger x should not fit")
	}
}
