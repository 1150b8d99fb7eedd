// Package layout maps the two supported input layouts of an EEG trial to concrete tensor shapes.
//
// Trials are described by logical spatial axes: Channels and Time for planar trials, and
// Channels, Chunks and Time for volumetric ones. A Layout decides how those axes are physically
// ordered in the input tensor, and where the (singleton) feature axis goes:
//
//   - FeatureMajor: [batch, 1, channels, (chunks,) samples]. This is the default.
//   - TimeMajor: [batch, samples, (chunks,) channels, 1], for backends lacking channels-first support.
//
// Every kernel, stride and pool window of a model is given as a logical Extent, and converted to
// the physical order with Layout.Physical. The only place where axis orders are decided is the
// physicalOrder table below.
package layout

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Layout of the input trials.
type Layout int

const (
	FeatureMajor Layout = iota
	TimeMajor
)

//go:generate go tool enumer -type=Layout -transform=snake -values -text -json layout.go

// Axis is a logical spatial axis of a trial.
type Axis int

const (
	Channels Axis = iota
	Chunks
	Time
)

func (a Axis) String() string {
	switch a {
	case Channels:
		return "channels"
	case Chunks:
		return "chunks"
	case Time:
		return "time"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// physicalOrder holds, for each layout and number of spatial axes, the position in the logical Extent
// of each physical spatial axis.
var physicalOrder = map[Layout]map[int][]int{
	FeatureMajor: {
		2: {0, 1},    // channels, time
		3: {0, 1, 2}, // channels, chunks, time
	},
	TimeMajor: {
		2: {1, 0},    // time, channels
		3: {2, 1, 0}, // time, chunks, channels
	},
}

// Parse a layout from its name ("feature_major" or "time_major").
func Parse(name string) (Layout, error) {
	for _, l := range LayoutValues() {
		if l.String() == name {
			return l, nil
		}
	}
	return FeatureMajor, errors.Errorf("unknown layout %q, valid values are %q", name, LayoutStrings())
}

// Order returns the logical index of each physical spatial axis, for extents with rank spatial axes.
//
// It panics for ranks other than 2 and 3.
func (l Layout) Order(rank int) []int {
	order, found := physicalOrder[l][rank]
	if !found {
		exceptions.Panicf("layout %s: no axis order for %d spatial axes", l, rank)
	}
	return order
}

// Axes returns the logical axis found at each physical spatial position.
func (l Layout) Axes(rank int) []Axis {
	logical := logicalAxes(rank)
	order := l.Order(rank)
	axes := make([]Axis, rank)
	for physical, idx := range order {
		axes[physical] = logical[idx]
	}
	return axes
}

// AxisPosition returns the physical spatial position of the logical axis.
func (l Layout) AxisPosition(rank int, axis Axis) int {
	pos := slices.Index(l.Axes(rank), axis)
	if pos < 0 {
		exceptions.Panicf("layout %s: axis %s not present in trials with %d spatial axes", l, axis, rank)
	}
	return pos
}

// IsIdentity returns whether the physical order is the same as the logical one.
func (l Layout) IsIdentity(rank int) bool {
	for physical, idx := range l.Order(rank) {
		if physical != idx {
			return false
		}
	}
	return true
}

// Physical returns the extent dimensions in the physical order of the layout.
func (l Layout) Physical(e Extent) []int {
	order := l.Order(len(e))
	dims := make([]int, len(e))
	for physical, idx := range order {
		dims[physical] = e[idx]
	}
	return dims
}

// InputShape returns the shape of one trial (without the batch axis) for the given logical extent.
func (l Layout) InputShape(e Extent) []int {
	physical := l.Physical(e)
	if l == FeatureMajor {
		return append([]int{1}, physical...)
	}
	return append(physical, 1)
}

// FeatureAxis returns the axis of the feature (singleton) dimension in a batched input with the given
// number of spatial axes.
func (l Layout) FeatureAxis(rank int) int {
	if l == FeatureMajor {
		return 1
	}
	return rank + 1
}

func logicalAxes(rank int) []Axis {
	switch rank {
	case 2:
		return []Axis{Channels, Time}
	case 3:
		return []Axis{Channels, Chunks, Time}
	}
	exceptions.Panicf("trials must have 2 or 3 spatial axes, got %d", rank)
	return nil
}

// Extent holds a size per logical spatial axis: (channels, time) for planar trials, or
// (channels, chunks, time) for volumetric trials.
type Extent []int

// Planar creates an extent for a planar (channels x time) trial.
func Planar(chans, samples int) Extent {
	return Extent{chans, samples}
}

// Volume creates an extent for a volumetric (channels x chunks x time) trial.
func Volume(chans, chunks, samples int) Extent {
	return Extent{chans, chunks, samples}
}

// Uniform creates an extent of the given rank with all axes set to size.
func Uniform(rank, size int) Extent {
	e := make(Extent, rank)
	for ii := range e {
		e[ii] = size
	}
	return e
}

// Rank is the number of spatial axes.
func (e Extent) Rank() int { return len(e) }

// Get returns the size of one logical axis.
func (e Extent) Get(axis Axis) int {
	idx := slices.Index(logicalAxes(len(e)), axis)
	if idx < 0 {
		exceptions.Panicf("axis %s not present in extent %v", axis, []int(e))
	}
	return e[idx]
}

// String implements fmt.Stringer, e.g. "channels=22,time=256".
func (e Extent) String() string {
	axes := logicalAxes(len(e))
	var s string
	for ii, size := range e {
		if ii > 0 {
			s += ","
		}
		s += fmt.Sprintf("%s=%d", axes[ii], size)
	}
	return s
}
