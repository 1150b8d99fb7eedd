package blocks

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/regularizers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors/images"
	"github.com/janpfeifer/eegmodels/layout"
)

// ConvKind selects how the kernel of a Conv connects input and output features.
type ConvKind int

const (
	// Standard convolution: every output feature sees every input feature.
	Standard ConvKind = iota

	// Depthwise convolution: each input feature is convolved independently, producing Multiplier
	// output features each. Output feature `i*Multiplier+m` comes from input feature `i`.
	Depthwise

	// Separable convolution: a depthwise convolution (multiplier 1) followed by a pointwise one.
	Separable
)

func (k ConvKind) scopeName() string {
	switch k {
	case Depthwise:
		return "depthwise_conv"
	case Separable:
		return "separable_conv"
	default:
		return "conv"
	}
}

// Conv describes one convolution layer. Kernel and Strides are given in logical (layout independent)
// order and converted to the physical order on use.
type Conv struct {
	Kind ConvKind

	// Filters is the number of output features of Standard and Separable convolutions.
	Filters int

	// Multiplier is the depth multiplier of Depthwise convolutions.
	Multiplier int

	Kernel  layout.Extent
	Strides layout.Extent // Defaults to 1 on every axis.

	// PadSame keeps the spatial dimensions, or `ceil(input/stride)` with strides, padding as TensorFlow does.
	// Otherwise no padding is used.
	PadSame bool

	Bias bool

	// MaxNorm bounds the L2 norm of each filter, if > 0.
	// For Standard convolutions the norm is taken over the kernel and the input features, for
	// Depthwise over the spatial kernel only, and for Separable over the pointwise kernel.
	MaxNorm float64

	// Regularizer is applied to the kernel, if not nil.
	Regularizer regularizers.Regularizer

	// Norm and Activation, if set, are applied right after the convolution (Block.Apply does that).
	Norm       *Norm
	Activation Activation
}

// Apply the convolution to x, shaped `[batch, <physical spatial axes...>, features]`.
//
// Variables are created directly under ctx: "weights" for Standard, "depthwise_weights" for
// Depthwise and Separable, "pointwise_weights" for Separable and "biases".
func (c *Conv) Apply(ctx *context.Context, l layout.Layout, x *graph.Node) *graph.Node {
	g := x.Graph()
	rank := c.Kernel.Rank()
	if x.Rank() != rank+2 {
		exceptions.Panicf("convolution with kernel %v expects input with %d axes, got shape %s",
			[]int(c.Kernel), rank+2, x.Shape())
	}
	inputFeatures := x.Shape().Dimensions[x.Rank()-1]
	dtype := x.DType()

	var output *graph.Node
	var outputFeatures int
	switch c.Kind {
	case Standard:
		outputFeatures = c.Filters
		kernel := c.kernel(ctx, g, "weights", dtype, concat(c.Kernel, []int{inputFeatures, c.Filters}))
		if c.MaxNorm > 0 {
			kernel = MaxNorm(kernel, c.MaxNorm, xrange(rank+1)...)
		}
		output = c.convolve(l, x, physicalKernel(l, kernel, rank), c.Strides)

	case Depthwise:
		multiplier := max(c.Multiplier, 1)
		outputFeatures = inputFeatures * multiplier
		kernel := c.kernel(ctx, g, "depthwise_weights", dtype, concat(c.Kernel, []int{inputFeatures, multiplier}))
		if c.MaxNorm > 0 {
			kernel = MaxNorm(kernel, c.MaxNorm, xrange(rank)...)
		}
		output = c.convolve(l, x, physicalKernel(l, expandDepthwise(kernel), rank), c.Strides)

	case Separable:
		outputFeatures = c.Filters
		depthwise := c.kernel(ctx, g, "depthwise_weights", dtype, concat(c.Kernel, []int{inputFeatures, 1}))
		output = c.convolve(l, x, physicalKernel(l, expandDepthwise(depthwise), rank), c.Strides)
		pointwise := c.kernel(ctx, g, "pointwise_weights", dtype,
			concat(layout.Uniform(rank, 1), []int{inputFeatures, c.Filters}))
		if c.MaxNorm > 0 {
			pointwise = MaxNorm(pointwise, c.MaxNorm, xrange(rank+1)...)
		}
		pointwiseConv := Conv{Kernel: layout.Uniform(rank, 1)}
		output = pointwiseConv.convolve(l, output, pointwise, nil)

	default:
		exceptions.Panicf("unknown convolution kind %d", c.Kind)
	}

	if c.Bias {
		biasVar := ctx.VariableWithShape("biases", shapes.Make(dtype, outputFeatures))
		bias := biasVar.ValueGraph(g)
		expandedDims := make([]int, output.Rank())
		for ii := range expandedDims {
			expandedDims[ii] = 1
		}
		expandedDims[len(expandedDims)-1] = outputFeatures
		output = graph.Add(output, graph.Reshape(bias, expandedDims...))
	}
	return output
}

// kernel creates (or reuses) the kernel variable with the given logical dimensions and applies the
// regularizer.
func (c *Conv) kernel(ctx *context.Context, g *graph.Graph, name string, dtype dtypes.DType, dims []int) *graph.Node {
	kernelVar := ctx.VariableWithShape(name, shapes.Make(dtype, dims...))
	if c.Regularizer != nil {
		c.Regularizer(ctx, g, kernelVar)
	}
	return kernelVar.ValueGraph(g)
}

// convolve x with a kernel already in physical order.
//
// With strides > 1 "same" padding follows the TensorFlow convention (see samePadding), which differs
// from graph's PadSame in where the padding goes.
func (c *Conv) convolve(l layout.Layout, x, kernel *graph.Node, strides layout.Extent) *graph.Node {
	conv := graph.Convolve(x, kernel).ChannelsAxis(images.ChannelsLast)
	var physicalStrides []int
	if strides != nil {
		physicalStrides = l.Physical(strides)
		conv.StridePerDim(physicalStrides...)
	}
	switch {
	case !c.PadSame:
		conv.NoPadding()
	case slices.ContainsFunc(physicalStrides, func(s int) bool { return s > 1 }):
		rank := x.Rank() - 2
		conv.PaddingPerDim(samePadding(x.Shape().Dimensions[1:rank+1], kernel.Shape().Dimensions[:rank],
			physicalStrides))
	default:
		conv.PadSame()
	}
	return conv.Done()
}

// samePadding returns the (before, after) padding of each spatial axis, such that the output has
// `ceil(input/stride)` positions. The odd element of the total padding goes after.
func samePadding(inputDims, kernelDims, strides []int) [][2]int {
	paddings := make([][2]int, len(inputDims))
	for axis, in := range inputDims {
		stride := strides[axis]
		out := (in + stride - 1) / stride
		total := max((out-1)*stride+kernelDims[axis]-in, 0)
		paddings[axis] = [2]int{total / 2, total - total/2}
	}
	return paddings
}

// physicalKernel transposes a kernel shaped `[<logical spatial axes...>, in, out]` to the physical
// order of the layout.
func physicalKernel(l layout.Layout, kernel *graph.Node, rank int) *graph.Node {
	if l.IsIdentity(rank) {
		return kernel
	}
	permutation := concat(l.Order(rank), []int{rank, rank + 1})
	return graph.TransposeAllDims(kernel, permutation...)
}

// expandDepthwise converts a depthwise kernel `[<spatial...>, in, multiplier]` to the equivalent dense
// kernel `[<spatial...>, in, in*multiplier]`, with zeros connecting different input features.
func expandDepthwise(kernel *graph.Node) *graph.Node {
	g := kernel.Graph()
	dims := kernel.Shape().Dimensions
	rank := len(dims) - 2
	spatial := dims[:rank]
	inputs, multiplier := dims[rank], dims[rank+1]
	fullDims := concat(spatial, []int{inputs, inputs, multiplier})

	// Identity mask over (input feature, output group).
	maskShape := shapes.Make(dtypes.Int32, inputs, inputs)
	mask := graph.ConvertDType(graph.Equal(graph.Iota(g, maskShape, 0), graph.Iota(g, maskShape, 1)), kernel.DType())
	mask = graph.Reshape(mask, concat(layout.Uniform(rank, 1), []int{inputs, inputs, 1})...)
	mask = graph.BroadcastToDims(mask, fullDims...)

	expanded := graph.Reshape(kernel, concat(spatial, []int{inputs, 1, multiplier})...)
	expanded = graph.BroadcastToDims(expanded, fullDims...)
	return graph.Reshape(graph.Mul(expanded, mask), concat(spatial, []int{inputs, inputs * multiplier})...)
}

// concat returns a new slice with the concatenation of the parts.
func concat(parts ...[]int) []int {
	return slices.Concat(parts...)
}

// xrange returns the axes 0 to n-1.
func xrange(n int) []int {
	axes := make([]int, n)
	for ii := range axes {
		axes[ii] = ii
	}
	return axes
}
