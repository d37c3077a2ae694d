package math

import "fmt"

// IntRect is a pixel rectangle, right and bottom exclusive.
type IntRect struct {
	Left, Top, Right, Bottom int32
}

var IntRectZero = IntRect{}

func NewIntRect(left, top, right, bottom int32) IntRect {
	return IntRect{Left: left, Top: top, Right: right, Bottom: bottom}
}

func (r IntRect) Width() int32  { return r.Right - r.Left }
func (r IntRect) Height() int32 { return r.Bottom - r.Top }

// Size returns the extent as unsigned values, negative sizes become zero.
func (r IntRect) Size() (uint32, uint32) {
	w, h := r.Width(), r.Height()
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return uint32(w), uint32(h)
}

// ClampTo fits r inside a width x height target. Empty rects grow to one pixel.
func (r IntRect) ClampTo(width, height int32) IntRect {
	if r.Right <= r.Left {
		r.Right = r.Left + 1
	}
	if r.Bottom <= r.Top {
		r.Bottom = r.Top + 1
	}
	return IntRect{
		Left:   Clamp(r.Left, 0, width),
		Top:    Clamp(r.Top, 0, height),
		Right:  Clamp(r.Right, 0, width),
		Bottom: Clamp(r.Bottom, 0, height),
	}
}

func (r IntRect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}
