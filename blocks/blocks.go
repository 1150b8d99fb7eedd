// Package blocks implements the graph pieces shared by the EEG models: convolutions whose kernels are
// stored in layout independent order, pooling, normalization, the activations, the dropout policy and
// a generic Block that chains them.
//
// All functions work on the internal representation of a trial: channels-last, that is
// `[batch, <physical spatial axes...>, features]`, where the physical order of the spatial axes is given by
// a layout.Layout. Use ToInternal to convert a model input to this representation, and Flatten to go back
// to a layout independent feature vector.
package blocks

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/janpfeifer/eegmodels/layout"
)

// Block is the recurring convolution / normalization / nonlinearity / pooling / dropout stage.
//
// Steps with a zero value are skipped.
type Block struct {
	// Convs are applied in order. Each one may carry its own normalization and activation.
	Convs []Conv

	// Norm is applied after the last convolution.
	Norm *Norm

	// Activation is applied after Norm.
	Activation Activation

	// Pool after the activation.
	Pool *Pool

	// PoolActivation is applied to the pooled values.
	PoolActivation Activation

	// Dropout at the end of the block.
	Dropout DropoutPolicy
}

// Apply the block to x, shaped `[batch, <spatial axes...>, features]`, creating its variables under ctx.
func (b *Block) Apply(ctx *context.Context, l layout.Layout, x *graph.Node) *graph.Node {
	layerIdx := 0
	nextCtx := func(name string) *context.Context {
		newCtx := ctx.Inf("%03d_%s", layerIdx, name)
		layerIdx++
		return newCtx
	}
	for ii := range b.Convs {
		conv := &b.Convs[ii]
		x = conv.Apply(nextCtx(conv.Kind.scopeName()), l, x)
		if conv.Norm != nil {
			x = conv.Norm.Apply(nextCtx("norm"), x)
		}
		x = conv.Activation.Apply(x)
	}
	if b.Norm != nil {
		x = b.Norm.Apply(nextCtx("norm"), x)
	}
	x = b.Activation.Apply(x)
	if b.Pool != nil {
		x = b.Pool.Apply(l, x)
	}
	x = b.PoolActivation.Apply(x)
	return b.Dropout.Apply(nextCtx("dropout"), x)
}

// Stack applies the blocks in sequence, each one in its own scope.
func Stack(ctx *context.Context, l layout.Layout, x *graph.Node, stack ...*Block) *graph.Node {
	for ii, b := range stack {
		x = b.Apply(ctx.Inf("block_%d", ii+1), l, x)
	}
	return x
}
