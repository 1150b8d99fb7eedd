package blocks

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/janpfeifer/eegmodels/layout"
)

// ToInternal converts a batched model input, in the given layout and with rank spatial axes, to the
// internal channels-last representation `[batch, <physical spatial axes...>, features]`.
func ToInternal(l layout.Layout, rank int, x *graph.Node) *graph.Node {
	if x.Rank() != rank+2 {
		exceptions.Panicf("expected input with %d axes (batch, feature and %d spatial axes), got shape %s",
			rank+2, rank, x.Shape())
	}
	featureAxis := l.FeatureAxis(rank)
	if featureAxis == x.Rank()-1 {
		return x
	}
	permutation := make([]int, 0, x.Rank())
	for axis := range x.Rank() {
		if axis != featureAxis {
			permutation = append(permutation, axis)
		}
	}
	permutation = append(permutation, featureAxis)
	return graph.TransposeAllDims(x, permutation...)
}

// Flatten x, shaped `[batch, <physical spatial axes...>, features]`, to `[batch, n]`. The values are
// ordered by logical spatial axes first, so the result does not depend on the layout.
func Flatten(l layout.Layout, x *graph.Node) *graph.Node {
	rank := x.Rank() - 2
	if !l.IsIdentity(rank) {
		order := l.Order(rank)
		permutation := make([]int, x.Rank())
		permutation[0] = 0
		for physical, logical := range order {
			permutation[logical+1] = physical + 1
		}
		permutation[rank+1] = rank + 1
		x = graph.TransposeAllDims(x, permutation...)
	}
	return graph.Reshape(x, x.Shape().Dimensions[0], -1)
}

// SwapWithFeatures exchanges the logical spatial axis with the feature axis of x, shaped
// `[batch, <physical spatial axes...>, features]`.
func SwapWithFeatures(l layout.Layout, axis layout.Axis, x *graph.Node) *graph.Node {
	rank := x.Rank() - 2
	position := l.AxisPosition(rank, axis) + 1
	permutation := xrange(x.Rank())
	permutation[position], permutation[rank+1] = rank+1, position
	return graph.TransposeAllDims(x, permutation...)
}

// Dense is a fully connected layer with bias from x, shaped `[batch, inputs]`, to `[batch, units]`.
// If maxNorm > 0 the norm of the incoming weights of each unit is bounded by it.
func Dense(ctx *context.Context, x *graph.Node, units int, maxNorm float64) *graph.Node {
	g := x.Graph()
	if x.Rank() != 2 {
		exceptions.Panicf("Dense expects input shaped [batch, inputs], got %s", x.Shape())
	}
	inputs := x.Shape().Dimensions[1]
	weights := ctx.VariableWithShape("weights", shapes.Make(x.DType(), inputs, units)).ValueGraph(g)
	if maxNorm > 0 {
		weights = MaxNorm(weights, maxNorm, 0)
	}
	biases := ctx.VariableWithShape("biases", shapes.Make(x.DType(), units)).ValueGraph(g)
	output := graph.Einsum("bi,iu->bu", x, weights)
	return graph.Add(output, graph.Reshape(biases, 1, units))
}
