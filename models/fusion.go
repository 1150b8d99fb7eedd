package models

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/janpfeifer/eegmodels/blocks"
	"github.com/janpfeifer/eegmodels/layout"
)

var eegnetFusionDefaults = map[string]any{
	ParamChans:       64,
	ParamSamples:     128,
	ParamDropout:     0.5,
	ParamDropoutType: blocks.Dropout.String(),
	ParamNormRate:    0.25,
}

// fusionBranches are the EEGNet branches of the fusion model, one per input, with increasing temporal
// kernel sizes.
var fusionBranches = []eegnetBranch{
	{kernLength: 64, f1: 8, depth: 2, f2: 16, pool1: 4, pool2: 8, separableKernel: 8},
	{kernLength: 96, f1: 16, depth: 2, f2: 32, pool1: 4, pool2: 8, separableKernel: 16},
	{kernLength: 128, f1: 64, depth: 2, f2: 128, pool1: 4, pool2: 8, separableKernel: 32},
}

func buildEEGNetFusion(m *Model) error {
	dropout, err := dropoutPolicy(m.ctx)
	if err != nil {
		return err
	}
	normRate := context.GetParamOr(m.ctx, ParamNormRate, 0.25)
	geometry := planarGeometry(m.ctx)
	m.setInputs(geometry, len(fusionBranches))
	chans := geometry.Get(layout.Channels)
	l := m.layout
	m.logits = func(ctx *context.Context, inputs []*Node) *Node {
		features := make([]*Node, len(fusionBranches))
		for ii, branch := range fusionBranches {
			features[ii] = branch.features(ctx.Inf("branch_%d", ii+1), l, inputs[ii], chans, dropout)
		}
		x := Concatenate(features, -1)
		return blocks.Dense(ctx.In("dense"), x, m.numClasses, normRate)
	}
	return nil
}
