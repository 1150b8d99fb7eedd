package models

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/janpfeifer/eegmodels/blocks"
	"github.com/janpfeifer/eegmodels/layout"
)

var deepConvNetDefaults = map[string]any{
	ParamChans:   64,
	ParamSamples: 256,
	ParamDropout: 0.5,
}

var shallowConvNetDefaults = map[string]any{
	ParamChans:   64,
	ParamSamples: 128,
	ParamDropout: 0.5,
}

const (
	convMaxNorm  = 2.0
	denseMaxNorm = 0.5
)

// deepConvNetFilters are the number of filters of each of the 4 stages.
var deepConvNetFilters = []int{25, 50, 100, 200}

func buildDeepConvNet(m *Model) error {
	geometry := planarGeometry(m.ctx)
	dropout := blocks.DropoutPolicy{Type: blocks.Dropout, Rate: context.GetParamOr(m.ctx, ParamDropout, 0.5)}
	m.setInputs(geometry, 1)
	chans := geometry.Get(layout.Channels)
	l := m.layout
	pool := &blocks.Pool{Kind: blocks.MaxPooling, Window: layout.Planar(1, 2), Strides: layout.Planar(1, 2)}

	stages := make([]*blocks.Block, len(deepConvNetFilters))
	for ii, filters := range deepConvNetFilters {
		temporal := blocks.Conv{Kind: blocks.Standard, Filters: filters, Kernel: layout.Planar(1, 5), Bias: true,
			MaxNorm: convMaxNorm}
		stage := &blocks.Block{
			Convs:      []blocks.Conv{temporal},
			Norm:       blocks.TorchNorm,
			Activation: blocks.ELU,
			Pool:       pool,
			Dropout:    dropout,
		}
		if ii == 0 {
			// First stage also has a spatial filter spanning all channels.
			spatial := blocks.Conv{Kind: blocks.Standard, Filters: filters, Kernel: layout.Planar(chans, 1),
				Bias: true, MaxNorm: convMaxNorm}
			stage.Convs = append(stage.Convs, spatial)
		}
		stages[ii] = stage
	}

	m.logits = func(ctx *context.Context, inputs []*Node) *Node {
		x := blocks.Stack(ctx, l, inputs[0], stages...)
		return blocks.Dense(ctx.In("dense"), blocks.Flatten(l, x), m.numClasses, denseMaxNorm)
	}
	return nil
}

// buildShallowConvNet configures the ShallowConvNet: a temporal and a spatial convolution followed by
// squaring, average pooling and log, which approximates the log band-power of the spatially filtered signal.
func buildShallowConvNet(m *Model) error {
	geometry := planarGeometry(m.ctx)
	dropout := blocks.DropoutPolicy{Type: blocks.Dropout, Rate: context.GetParamOr(m.ctx, ParamDropout, 0.5)}
	m.setInputs(geometry, 1)
	chans := geometry.Get(layout.Channels)
	l := m.layout
	block := &blocks.Block{
		Convs: []blocks.Conv{
			{Kind: blocks.Standard, Filters: 40, Kernel: layout.Planar(1, 13), Bias: true, MaxNorm: convMaxNorm},
			{Kind: blocks.Standard, Filters: 40, Kernel: layout.Planar(chans, 1), MaxNorm: convMaxNorm},
		},
		Norm:           blocks.TorchNorm,
		Activation:     blocks.Square,
		Pool:           &blocks.Pool{Kind: blocks.MeanPooling, Window: layout.Planar(1, 35), Strides: layout.Planar(1, 7)},
		PoolActivation: blocks.SafeLog,
		Dropout:        dropout,
	}
	m.logits = func(ctx *context.Context, inputs []*Node) *Node {
		x := blocks.Stack(ctx, l, inputs[0], block)
		return blocks.Dense(ctx.In("dense"), blocks.Flatten(l, x), m.numClasses, denseMaxNorm)
	}
	return nil
}
