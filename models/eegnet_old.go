package models

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/regularizers"
	"github.com/janpfeifer/eegmodels/blocks"
	"github.com/janpfeifer/eegmodels/layout"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var eegnetOldDefaults = map[string]any{
	ParamChans:   64,
	ParamSamples: 128,
	ParamRegRate: 1e-4,
	ParamDropout: 0.25,
	ParamKernel2: []int{2, 32},
	ParamKernel3: []int{8, 4},
	ParamStrides: []int{2, 4},
}

// buildEEGNetOld configures the first EEGNet: 16 spatial filters spanning all channels, whose outputs are then
// treated as a new "channel" axis by 2 strided convolutions.
func buildEEGNetOld(m *Model) error {
	klog.Warningf("model %s is deprecated, consider using %s instead", EEGNetOld, EEGNet)
	ctx := m.ctx
	geometry := planarGeometry(ctx)
	regRate := context.GetParamOr(ctx, ParamRegRate, 1e-4)
	dropout := blocks.DropoutPolicy{Type: blocks.Dropout, Rate: context.GetParamOr(ctx, ParamDropout, 0.25)}
	var tuples [3]layout.Extent
	for ii, key := range []string{ParamKernel2, ParamKernel3, ParamStrides} {
		tuple := context.GetParamOr[[]int](ctx, key, nil)
		if len(tuple) != 2 {
			return errors.Errorf("%s must have 2 values, got %v", key, tuple)
		}
		tuples[ii] = layout.Planar(tuple[0], tuple[1])
	}
	kernel2, kernel3, strides := tuples[0], tuples[1], tuples[2]
	m.setInputs(geometry, 1)
	chans := geometry.Get(layout.Channels)
	l := m.layout

	m.logits = func(ctx *context.Context, inputs []*Node) *Node {
		spatial := &blocks.Block{
			Convs: []blocks.Conv{{
				Kind: blocks.Standard, Filters: 16, Kernel: layout.Planar(chans, 1), Bias: true,
				Regularizer: regularizers.Combine(regularizers.L1(regRate), regularizers.L2(regRate)),
			}},
			Norm:       blocks.DefaultNorm,
			Activation: blocks.ELU,
			Dropout:    dropout,
		}
		x := spatial.Apply(ctx.In("block_1"), l, inputs[0])

		// The channels axis (now of size 1) takes the 16 spatial filters.
		x = blocks.SwapWithFeatures(l, layout.Channels, x)

		for ii, kernel := range []layout.Extent{kernel2, kernel3} {
			strided := &blocks.Block{
				Convs: []blocks.Conv{{
					Kind: blocks.Standard, Filters: 4, Kernel: kernel, Strides: strides, PadSame: true, Bias: true,
					Regularizer: regularizers.L2(regRate),
				}},
				Norm:       blocks.DefaultNorm,
				Activation: blocks.ELU,
				Dropout:    dropout,
			}
			x = strided.Apply(ctx.Inf("block_%d", ii+2), l, x)
		}
		return blocks.Dense(ctx.In("dense"), blocks.Flatten(l, x), m.numClasses, 0)
	}
	return nil
}
