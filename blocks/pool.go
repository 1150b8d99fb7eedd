package blocks

import (
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/batchnorm"
	"github.com/gomlx/gomlx/types/tensors/images"
	"github.com/janpfeifer/eegmodels/layout"
)

// PoolKind selects the pooling reduction.
type PoolKind int

const (
	MaxPooling PoolKind = iota
	MeanPooling
)

// Pool describes a pooling layer, with window and strides in logical order. Pooling never pads.
type Pool struct {
	Kind    PoolKind
	Window  layout.Extent
	Strides layout.Extent // Defaults to Window.
}

// MeanPoolOver returns an average pooling with the given window and strides equal to the window.
func MeanPoolOver(window layout.Extent) *Pool {
	return &Pool{Kind: MeanPooling, Window: window}
}

// MaxPoolOver returns a max pooling with the given window and strides equal to the window.
func MaxPoolOver(window layout.Extent) *Pool {
	return &Pool{Kind: MaxPooling, Window: window}
}

// Apply the pooling to x, shaped `[batch, <physical spatial axes...>, features]`.
func (p *Pool) Apply(l layout.Layout, x *graph.Node) *graph.Node {
	pool := graph.MaxPool
	if p.Kind == MeanPooling {
		pool = graph.MeanPool
	}
	strides := p.Strides
	if strides == nil {
		strides = p.Window
	}
	return pool(x).
		ChannelsAxis(images.ChannelsLast).
		WindowPerAxis(l.Physical(p.Window)...).
		StridePerAxis(l.Physical(strides)...).
		NoPadding().
		Done()
}

// Norm is a batch normalization over the feature axis.
type Norm struct {
	Epsilon  float64
	Momentum float64
}

// DefaultNorm uses the usual batch normalization constants (epsilon 1e-3, momentum 0.99).
var DefaultNorm = &Norm{Epsilon: 1e-3, Momentum: 0.99}

// TorchNorm uses epsilon 1e-5 and momentum 0.1, the constants of the DeepConvNet and ShallowConvNet
// reference implementations.
var TorchNorm = &Norm{Epsilon: 1e-5, Momentum: 0.1}

// Apply batch normalization to x, normalizing over its last (feature) axis. Variables are created
// under ctx.
func (n *Norm) Apply(ctx *context.Context, x *graph.Node) *graph.Node {
	bn := batchnorm.New(ctx, x, x.Rank()-1)
	if n.Epsilon > 0 {
		bn = bn.Epsilon(n.Epsilon)
	}
	if n.Momentum > 0 {
		bn = bn.Momentum(n.Momentum)
	}
	return bn.Done()
}
