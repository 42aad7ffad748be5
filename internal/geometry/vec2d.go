// Package geometry provides the 2-D integer vector arithmetic shared by
// every probe, the downloader, and the encoders.
package geometry

import "fmt"

// Vec2d is a pair of unsigned 32-bit components, used both as a position
// (top-left pixel offset) and as a size (width, height). Subtraction
// saturates at zero instead of underflowing; addition and multiplication
// wrap on uint32 overflow.
type Vec2d struct {
	X, Y uint32
}

// Square returns a Vec2d with both components equal to size.
func Square(size uint32) Vec2d {
	return Vec2d{X: size, Y: size}
}

// Add returns the componentwise sum.
func (v Vec2d) Add(o Vec2d) Vec2d {
	return Vec2d{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns the componentwise difference, saturating at zero.
func (v Vec2d) Sub(o Vec2d) Vec2d {
	return Vec2d{X: satSub(v.X, o.X), Y: satSub(v.Y, o.Y)}
}

func satSub(a, b uint32) uint32 {
	if a <= b {
		return 0
	}
	return a - b
}

// Mul returns the componentwise product.
func (v Vec2d) Mul(o Vec2d) Vec2d {
	return Vec2d{X: v.X * o.X, Y: v.Y * o.Y}
}

// MulScalar returns v scaled by n.
func (v Vec2d) MulScalar(n uint32) Vec2d {
	return Vec2d{X: v.X * n, Y: v.Y * n}
}

// Div returns the componentwise integer quotient. o's components must be
// nonzero.
func (v Vec2d) Div(o Vec2d) Vec2d {
	return Vec2d{X: v.X / o.X, Y: v.Y / o.Y}
}

// DivScalar returns the componentwise integer quotient by n. n must be
// nonzero.
func (v Vec2d) DivScalar(n uint32) Vec2d {
	return Vec2d{X: v.X / n, Y: v.Y / n}
}

// CeilDiv returns ceil(v/o) componentwise: for b > 0, a <= CeilDiv(a,b)*b < a+b.
func (v Vec2d) CeilDiv(o Vec2d) Vec2d {
	return Vec2d{X: ceilDiv(v.X, o.X), Y: ceilDiv(v.Y, o.Y)}
}

func ceilDiv(a, b uint32) uint32 {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

// Max returns the componentwise maximum.
func (v Vec2d) Max(o Vec2d) Vec2d {
	return Vec2d{X: max(v.X, o.X), Y: max(v.Y, o.Y)}
}

// Min returns the componentwise minimum.
func (v Vec2d) Min(o Vec2d) Vec2d {
	return Vec2d{X: min(v.X, o.X), Y: min(v.Y, o.Y)}
}

func max(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func min(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// Area returns x*y widened to 64 bits so it can't overflow for any valid
// uint32 pair.
func (v Vec2d) Area() uint64 {
	return uint64(v.X) * uint64(v.Y)
}

// FitsInside reports whether v is componentwise <= other.
func (v Vec2d) FitsInside(other Vec2d) bool {
	return v.X <= other.X && v.Y <= other.Y
}

func (v Vec2d) String() string {
	return fmt.Sprintf("x=%d y=%d", v.X, v.Y)
}

// MaxSizeInRect returns the size of a rectangle placed at pos that is
// cropped so pos+size never exceeds canvasSize: min(pos+tileSize, canvasSize) - pos.
func MaxSizeInRect(pos, tileSize, canvasSize Vec2d) Vec2d {
	bottomRight := pos.Add(tileSize).Min(canvasSize)
	return bottomRight.Sub(pos)
}
