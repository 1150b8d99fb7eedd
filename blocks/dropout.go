package blocks

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/pkg/errors"
)

// DropoutType selects the flavor of dropout.
type DropoutType int

const (
	// Dropout drops individual values.
	Dropout DropoutType = iota

	// SpatialDropout2D drops whole feature maps: the same mask value is used over all spatial positions
	// of one feature of one example.
	SpatialDropout2D
)

//go:generate go tool enumer -type=DropoutType -values -text -json dropout.go

// ParseDropoutType accepts exactly "Dropout" or "SpatialDropout2D".
func ParseDropoutType(name string) (DropoutType, error) {
	for _, dt := range DropoutTypeValues() {
		if dt.String() == name {
			return dt, nil
		}
	}
	return Dropout, errors.Errorf("dropout_type must be one of %q, got %q", DropoutTypeStrings(), name)
}

// DropoutPolicy is a dropout type and rate. A zero rate disables it.
type DropoutPolicy struct {
	Type DropoutType
	Rate float64
}

// Apply the dropout to x. It is the identity when not training.
func (d DropoutPolicy) Apply(ctx *context.Context, x *graph.Node) *graph.Node {
	if d.Rate <= 0 {
		return x
	}
	g := x.Graph()
	if d.Type == SpatialDropout2D {
		return SpatialDropout(ctx, x, d.Rate)
	}
	return layers.Dropout(ctx, x, graph.Scalar(g, x.DType(), d.Rate))
}

// SpatialDropout drops entire features of x, shaped `[batch, <spatial axes...>, features]`, with the given
// rate, and scales the kept values by `1/(1-rate)`.
func SpatialDropout(ctx *context.Context, x *graph.Node, rate float64) *graph.Node {
	g := x.Graph()
	if !ctx.IsTraining(g) || rate <= 0 {
		return x
	}
	dims := x.Shape().Dimensions
	maskDims := make([]int, len(dims))
	for ii := range maskDims {
		maskDims[ii] = 1
	}
	maskDims[0] = dims[0]
	maskDims[len(dims)-1] = dims[len(dims)-1]

	dtype := x.DType()
	random := ctx.RandomUniform(g, shapes.Make(dtype, maskDims...))
	threshold := graph.BroadcastToDims(graph.Scalar(g, dtype, rate), maskDims...)
	keep := graph.ConvertDType(graph.GreaterOrEqual(random, threshold), dtype)
	keep = graph.BroadcastToDims(keep, dims...)
	return graph.MulScalar(graph.Mul(x, keep), 1/(1-rate))
}
