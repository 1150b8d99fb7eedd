package models

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/janpfeifer/eegmodels/blocks"
	"github.com/janpfeifer/eegmodels/layout"
)

var eegnetDefaults = map[string]any{
	ParamChans:           64,
	ParamSamples:         128,
	ParamDropout:         0.5,
	ParamDropoutType:     blocks.Dropout.String(),
	ParamKernLength:      64,
	ParamF1:              8,
	ParamD:               2,
	ParamF2:              16,
	ParamNormRate:        0.25,
	ParamPool1:           4,
	ParamPool2:           8,
	ParamSeparableKernel: 16,
}

var eegnetSSVEPDefaults = map[string]any{
	ParamChans:           8,
	ParamSamples:         256,
	ParamDropout:         0.5,
	ParamDropoutType:     blocks.Dropout.String(),
	ParamKernLength:      256,
	ParamF1:              96,
	ParamD:               1,
	ParamF2:              96,
	ParamPool1:           4,
	ParamPool2:           8,
	ParamSeparableKernel: 16,
}

// eegnetBranch holds the sizes of the two EEGNet blocks.
type eegnetBranch struct {
	kernLength, f1, depth, f2 int
	pool1, pool2              int
	separableKernel           int
}

// readEEGNetBranch reads the branch sizes from the context hyperparameters.
func readEEGNetBranch(ctx *context.Context) eegnetBranch {
	return eegnetBranch{
		kernLength:      context.GetParamOr(ctx, ParamKernLength, 64),
		f1:              context.GetParamOr(ctx, ParamF1, 8),
		depth:           context.GetParamOr(ctx, ParamD, 2),
		f2:              context.GetParamOr(ctx, ParamF2, 16),
		pool1:           context.GetParamOr(ctx, ParamPool1, 4),
		pool2:           context.GetParamOr(ctx, ParamPool2, 8),
		separableKernel: context.GetParamOr(ctx, ParamSeparableKernel, 16),
	}
}

// stages returns the two blocks of the branch, for trials with chans channels.
//
// Block 1 learns F1 temporal filters, and then D spatial filters for each of them with a depthwise
// convolution spanning all channels. Block 2 is a separable convolution that mixes the F1*D maps into F2.
func (b eegnetBranch) stages(chans int, dropout blocks.DropoutPolicy) []*blocks.Block {
	return []*blocks.Block{
		{
			Convs: []blocks.Conv{
				{Kind: blocks.Standard, Filters: b.f1, Kernel: layout.Planar(1, b.kernLength), PadSame: true,
					Norm: blocks.DefaultNorm},
				{Kind: blocks.Depthwise, Multiplier: b.depth, Kernel: layout.Planar(chans, 1), MaxNorm: 1},
			},
			Norm:       blocks.DefaultNorm,
			Activation: blocks.ELU,
			Pool:       blocks.MeanPoolOver(layout.Planar(1, b.pool1)),
			Dropout:    dropout,
		},
		{
			Convs: []blocks.Conv{
				{Kind: blocks.Separable, Filters: b.f2, Kernel: layout.Planar(1, b.separableKernel), PadSame: true},
			},
			Norm:       blocks.DefaultNorm,
			Activation: blocks.ELU,
			Pool:       blocks.MeanPoolOver(layout.Planar(1, b.pool2)),
			Dropout:    dropout,
		},
	}
}

// features applies the branch to x, in the internal representation, and returns the flattened features.
func (b eegnetBranch) features(ctx *context.Context, l layout.Layout, x *Node, chans int,
	dropout blocks.DropoutPolicy) *Node {
	x = blocks.Stack(ctx, l, x, b.stages(chans, dropout)...)
	return blocks.Flatten(l, x)
}

func buildEEGNet(m *Model) error {
	return buildEEGNetVariant(m, context.GetParamOr(m.ctx, ParamNormRate, 0.25))
}

func buildEEGNetSSVEP(m *Model) error {
	return buildEEGNetVariant(m, 0)
}

// buildEEGNetVariant configures EEGNet and EEGNet_SSVEP: they only differ on the defaults, and on the
// classifier constraint (normRate == 0 for none).
func buildEEGNetVariant(m *Model, normRate float64) error {
	dropout, err := dropoutPolicy(m.ctx)
	if err != nil {
		return err
	}
	geometry := planarGeometry(m.ctx)
	branch := readEEGNetBranch(m.ctx)
	m.setInputs(geometry, 1)
	chans := geometry.Get(layout.Channels)
	l := m.layout
	m.logits = func(ctx *context.Context, inputs []*Node) *Node {
		x := branch.features(ctx, l, inputs[0], chans, dropout)
		return blocks.Dense(ctx.In("dense"), x, m.numClasses, normRate)
	}
	return nil
}
