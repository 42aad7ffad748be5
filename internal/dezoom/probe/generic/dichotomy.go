package generic

import "github.com/dezoomify/dezoomify-go/internal/geometry"

// dichotomy narrows a 1-D search for the largest index that exists: every
// guess reports whether it succeeded, and the next guess is a binary search
// once an upper bound is known, or a x3+1 probe to find one before that.
type dichotomy struct {
	min uint32
	max *uint32
}

func (d dichotomy) bestGuess() uint32 {
	if d.max != nil {
		return (*d.max + d.min) / 2
	}
	return d.min*3 + 1
}

// next records the outcome of the last guess and returns the next one, or
// false once the search has converged (the next guess equals the last).
func (d *dichotomy) next(previousSuccess bool) (uint32, bool) {
	lastGuess := d.bestGuess()
	if previousSuccess {
		d.min = lastGuess
	} else {
		m := lastGuess
		d.max = &m
	}
	nextGuess := d.bestGuess()
	if nextGuess != lastGuess {
		return nextGuess, true
	}
	return 0, false
}

type stage int

const (
	stageDiagonal stage = iota
	stageOrientation
	stageLastDim
)

// dichotomy2d searches a 2-D grid for its largest existing (x, y) by first
// walking the diagonal to bracket its size, then discovering which axis is
// longer, then binary-searching the remaining axis.
type dichotomy2d struct {
	stage       stage
	diagonal    dichotomy
	orientation uint32
	isLandscape bool
	lastDim     dichotomy
}

func (d *dichotomy2d) next(previousSuccess bool) (geometry.Vec2d, bool) {
	switch d.stage {
	case stageDiagonal:
		if n, ok := d.diagonal.next(previousSuccess); ok {
			return geometry.Vec2d{X: n, Y: n}, true
		}
		diagonal := d.diagonal.bestGuess()
		*d = dichotomy2d{stage: stageOrientation, orientation: diagonal}
		return geometry.Vec2d{X: diagonal + 1, Y: diagonal}, true
	case stageOrientation:
		diagonal := d.orientation
		min := diagonal
		if previousSuccess {
			min++
		}
		lastDim := dichotomy{min: min}
		best := lastDim.bestGuess()
		isLandscape := previousSuccess
		*d = dichotomy2d{stage: stageLastDim, orientation: diagonal, isLandscape: isLandscape, lastDim: lastDim}
		if isLandscape {
			return geometry.Vec2d{X: best, Y: diagonal}, true
		}
		return geometry.Vec2d{X: diagonal, Y: best}, true
	default: // stageLastDim
		n, ok := d.lastDim.next(previousSuccess)
		if !ok {
			return geometry.Vec2d{}, false
		}
		if d.isLandscape {
			return geometry.Vec2d{X: n, Y: d.orientation}, true
		}
		return geometry.Vec2d{X: d.orientation, Y: n}, true
	}
}
