package models

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/janpfeifer/eegmodels/blocks"
	"github.com/janpfeifer/eegmodels/layout"
)

var convNet3DDefaults = map[string]any{
	ParamChans:   64,
	ParamChunks:  8,
	ParamSamples: 80,
	ParamDropout: 0.45,
}

// convNet3DStages lists filters, kernel and strides of the 3 convolutions, in logical
// (channels, chunks, time) order.
var convNet3DStages = []struct {
	filters         int
	kernel, strides layout.Extent
}{
	{16, layout.Volume(3, 3, 5), layout.Volume(2, 2, 4)},
	{32, layout.Volume(2, 2, 3), layout.Volume(2, 2, 2)},
	{64, layout.Volume(2, 1, 3), layout.Volume(2, 2, 2)},
}

// volumeGeometry reads the chans, chunks and samples hyperparameters.
func volumeGeometry(ctx *context.Context) layout.Extent {
	return layout.Volume(
		context.GetParamOr(ctx, ParamChans, 64),
		context.GetParamOr(ctx, ParamChunks, 8),
		context.GetParamOr(ctx, ParamSamples, 80))
}

// convNet3DFeatures configures the model inputs and returns the function that builds the flattened output of
// the 3 convolution blocks.
func convNet3DFeatures(m *Model) func(ctx *context.Context, x *Node) *Node {
	m.setInputs(volumeGeometry(m.ctx), 1)
	dropout := blocks.DropoutPolicy{Type: blocks.Dropout, Rate: context.GetParamOr(m.ctx, ParamDropout, 0.45)}
	stages := make([]*blocks.Block, len(convNet3DStages))
	for ii, stage := range convNet3DStages {
		stages[ii] = &blocks.Block{
			Convs: []blocks.Conv{{
				Kind: blocks.Standard, Filters: stage.filters, Kernel: stage.kernel, Strides: stage.strides, Bias: true,
			}},
			Norm:       blocks.DefaultNorm,
			Activation: blocks.ELU,
			Dropout:    dropout,
		}
	}
	l := m.layout
	return func(ctx *context.Context, x *Node) *Node {
		return blocks.Flatten(l, blocks.Stack(ctx, l, x, stages...))
	}
}

func buildConvNet3D(m *Model) error {
	features := convNet3DFeatures(m)
	m.logits = func(ctx *context.Context, inputs []*Node) *Node {
		return blocks.Dense(ctx.In("dense"), features(ctx, inputs[0]), m.numClasses, 0)
	}
	return nil
}

// buildConvNet3D2 is ConvNet3D with 2 hidden dense layers (64 and 128 units) in the head.
func buildConvNet3D2(m *Model) error {
	features := convNet3DFeatures(m)
	hiddenUnits := []int{64, 128}
	m.logits = func(ctx *context.Context, inputs []*Node) *Node {
		x := features(ctx, inputs[0])
		for ii, units := range hiddenUnits {
			hiddenCtx := ctx.Inf("hidden_%d", ii+1)
			x = blocks.Dense(hiddenCtx.In("dense"), x, units, 0)
			x = blocks.DefaultNorm.Apply(hiddenCtx.In("norm"), x)
			x = blocks.ReLU.Apply(x)
		}
		return blocks.Dense(ctx.In("dense"), x, m.numClasses, 0)
	}
	return nil
}
