// Package uictl defines read-only controls a UI polls for live values from
// a capture device.
package uictl

import "golang.org/x/exp/constraints"

type Number interface {
	constraints.Integer | constraints.Float
}

// Dial is a control that can read some value.
type Dial[N Number] interface {
	Read() N
}

// Levels is a control that reads a window of recent samples.
type Levels[N Number] interface {
	Read() []N
}

// DialFunc adapts a function to a Dial.
type DialFunc[N Number] func() N

func (f DialFunc[N]) Read() N {
	return f()
}
