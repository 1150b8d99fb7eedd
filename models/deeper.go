package models

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/janpfeifer/eegmodels/blocks"
	"github.com/janpfeifer/eegmodels/layout"
)

var deeperConvNetDefaults = map[string]any{
	ParamChans:            64,
	ParamSamples:          640,
	ParamBlockDropoutRate: 0.2,
	ParamDropoutRate:      0.5,
	ParamDenseUnits:       4096,
}

var convNet2DDefaults = map[string]any{
	ParamChans:      64,
	ParamSamples:    640,
	ParamDropout:    0.45,
	ParamDenseUnits: 1024,
}

// deeperConvNetStages lists the number of filters and of 3x3 convolutions of each stage.
var deeperConvNetStages = []struct{ filters, repeats int }{
	{64, 2}, {128, 2}, {256, 3}, {512, 3}, {512, 3},
}

func buildDeeperConvNet(m *Model) error {
	ctx := m.ctx
	m.setInputs(planarGeometry(ctx), 1)
	blockDropout := blocks.DropoutPolicy{Type: blocks.Dropout, Rate: context.GetParamOr(ctx, ParamBlockDropoutRate, 0.2)}
	headDropout := blocks.DropoutPolicy{Type: blocks.Dropout, Rate: context.GetParamOr(ctx, ParamDropoutRate, 0.5)}
	denseUnits := context.GetParamOr(ctx, ParamDenseUnits, 4096)

	stages := make([]*blocks.Block, len(deeperConvNetStages))
	for ii, stage := range deeperConvNetStages {
		convs := make([]blocks.Conv, stage.repeats)
		for jj := range convs {
			convs[jj] = blocks.Conv{
				Kind: blocks.Standard, Filters: stage.filters, Kernel: layout.Uniform(2, 3), PadSame: true, Bias: true,
				Activation: blocks.ReLU,
			}
		}
		stages[ii] = &blocks.Block{
			Convs:   convs,
			Norm:    blocks.DefaultNorm,
			Pool:    blocks.MaxPoolOver(layout.Uniform(2, 2)),
			Dropout: blockDropout,
		}
	}

	l := m.layout
	m.logits = func(ctx *context.Context, inputs []*Node) *Node {
		x := blocks.Flatten(l, blocks.Stack(ctx, l, inputs[0], stages...))
		for ii := range 2 {
			x = blocks.ReLU.Apply(blocks.Dense(ctx.Inf("hidden_%d", ii+1), x, denseUnits, 0))
		}
		x = headDropout.Apply(ctx.In("dropout"), x)
		return blocks.Dense(ctx.In("dense"), x, m.numClasses, 0)
	}
	return nil
}

func buildConvNet2D(m *Model) error {
	ctx := m.ctx
	m.setInputs(planarGeometry(ctx), 1)
	dropout := blocks.DropoutPolicy{Type: blocks.Dropout, Rate: context.GetParamOr(ctx, ParamDropout, 0.45)}
	denseUnits := context.GetParamOr(ctx, ParamDenseUnits, 1024)

	stages := []*blocks.Block{
		{
			Convs:      []blocks.Conv{{Kind: blocks.Standard, Filters: 64, Kernel: layout.Planar(2, 4), Bias: true}},
			Norm:       blocks.DefaultNorm,
			Activation: blocks.ReLU,
			Pool:       blocks.MaxPoolOver(layout.Planar(2, 4)),
		},
		{
			Convs:      []blocks.Conv{{Kind: blocks.Standard, Filters: 128, Kernel: layout.Planar(2, 4), Bias: true}},
			Norm:       blocks.DefaultNorm,
			Activation: blocks.ReLU,
			Pool:       blocks.MaxPoolOver(layout.Planar(4, 4)),
		},
	}

	l := m.layout
	m.logits = func(ctx *context.Context, inputs []*Node) *Node {
		x := blocks.Flatten(l, blocks.Stack(ctx, l, inputs[0], stages...))
		x = blocks.Dense(ctx.In("hidden"), x, denseUnits, 0)
		x = blocks.DefaultNorm.Apply(ctx.In("hidden_norm"), x)
		x = blocks.ReLU.Apply(x)
		x = dropout.Apply(ctx.In("dropout"), x)
		return blocks.Dense(ctx.In("dense"), x, m.numClasses, 0)
	}
	return nil
}
