package models

import (
	"fmt"
	"io"
	"slices"

	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/janpfeifer/eegmodels/blocks"
	"github.com/janpfeifer/eegmodels/internal/parameters"
	"github.com/janpfeifer/eegmodels/layout"
	"github.com/pkg/errors"
)

// Hyperparameter names, as used in configuration strings and in the model context.
const (
	ParamLayout      = "layout"
	ParamChans       = "chans"
	ParamSamples     = "samples"
	ParamChunks      = "chunks"
	ParamDropout     = "dropout"
	ParamDropoutType = "dropout_type"

	// EEGNet family.
	ParamKernLength      = "kern_length"
	ParamF1              = "f1"
	ParamD               = "d"
	ParamF2              = "f2"
	ParamNormRate        = "norm_rate"
	ParamPool1           = "pool1"
	ParamPool2           = "pool2"
	ParamSeparableKernel = "separable_kernel"

	// EEGNet_old.
	ParamRegRate = "reg_rate"
	ParamKernel2 = "kernel2"
	ParamKernel3 = "kernel3"
	ParamStrides = "strides"

	// DeeperConvNet and ConvNet2D.
	ParamBlockDropoutRate = "block_dropout_rate"
	ParamDropoutRate      = "dropout_rate"
	ParamDenseUnits       = "dense_units"
)

// commonDefaults are set for every architecture. The optimizer parameters are only used by Model.Compile.
var commonDefaults = map[string]any{
	ParamLayout:                  layout.FeatureMajor.String(),
	optimizers.ParamOptimizer:    "adam",
	optimizers.ParamLearningRate: 0.001,
	optimizers.ParamAdamEpsilon:  1e-7,
}

// builder of one architecture: its default hyperparameters and the function that reads them from the
// context and configures the model.
type builder struct {
	defaults map[string]any
	build    func(m *Model) error
}

// newModel creates the model context with the defaults of the architecture, overwrites them with params, and
// then calls the architecture build function.
//
// params is not modified.
func newModel(arch Architecture, numClasses int, params parameters.Params) (*Model, error) {
	if numClasses <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "%s: number of classes must be > 0, got %d", arch, numClasses)
	}
	b, found := builders[arch]
	if !found {
		return nil, errors.Wrapf(ErrInvalidConfig, "unknown architecture %s", arch)
	}
	ctx := newContext(b)
	params = params.Clone()
	if err := extractParams(arch, params, ctx); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "%v", err)
	}
	if err := parameters.CheckConsumed(params); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "%s: %v", arch, err)
	}

	m := &Model{arch: arch, numClasses: numClasses, ctx: ctx}
	var err error
	m.layout, err = layout.Parse(context.GetParamOr(ctx, ParamLayout, layout.FeatureMajor.String()))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "%s: %v", arch, err)
	}
	if err = b.build(m); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "%s: %v", arch, err)
	}
	return m, nil
}

// newContext returns a fresh context with the default hyperparameters of the builder.
func newContext(b builder) *context.Context {
	ctx := context.New()
	ctx.RngStateReset()
	ctx.SetParams(commonDefaults)
	ctx.SetParams(b.defaults)
	return ctx.Checked(false)
}

// extractParams and write them as context hyperparameters.
//
// Only keys with a default in the context are consumed from params, with the type of the default value.
func extractParams(arch Architecture, params parameters.Params, ctx *context.Context) error {
	var err error
	ctx.EnumerateParams(func(scope, key string, valueAny any) {
		if err != nil {
			// If error happened skip the rest.
			return
		}
		if scope != context.RootScope {
			return
		}
		switch defaultValue := valueAny.(type) {
		case string:
			value, _ := parameters.PopParamOr(params, key, defaultValue)
			ctx.SetParam(key, value)
		case int:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (int) for model %s", key, arch)
				return
			}
			ctx.SetParam(key, value)
		case float64:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (float64) for model %s", key, arch)
				return
			}
			ctx.SetParam(key, value)
		case bool:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (bool) for model %s", key, arch)
				return
			}
			ctx.SetParam(key, value)
		case []int:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (tuple) for model %s", key, arch)
				return
			}
			ctx.SetParam(key, slices.Clone(value))
		default:
			err = errors.Errorf("model %s parameter %q is of unknown type %T", arch, key, defaultValue)
		}
	})
	return err
}

// dropoutPolicy reads the dropout type and rate hyperparameters. Only "Dropout" and "SpatialDropout2D"
// are accepted.
func dropoutPolicy(ctx *context.Context) (blocks.DropoutPolicy, error) {
	dropoutType, err := blocks.ParseDropoutType(context.GetParamOr(ctx, ParamDropoutType, blocks.Dropout.String()))
	if err != nil {
		return blocks.DropoutPolicy{}, err
	}
	return blocks.DropoutPolicy{Type: dropoutType, Rate: context.GetParamOr(ctx, ParamDropout, 0.5)}, nil
}

// planarGeometry reads the chans and samples hyperparameters.
func planarGeometry(ctx *context.Context) layout.Extent {
	return layout.Planar(context.GetParamOr(ctx, ParamChans, 64), context.GetParamOr(ctx, ParamSamples, 128))
}

// WriteHyperparametersHelp writes the hyperparameters accepted by the architecture, with their default values.
func WriteHyperparametersHelp(w io.Writer, arch Architecture) error {
	b, found := builders[arch]
	if !found {
		return errors.Errorf("unknown architecture %s", arch)
	}
	if _, err := fmt.Fprintf(w, "Model %s (%s) hyperparameters:\n", arch, arch.Description()); err != nil {
		return err
	}
	m := &Model{arch: arch, ctx: newContext(b)}
	for _, hp := range m.Hyperparameters() {
		value := hp.Value
		if tuple, ok := value.([]int); ok {
			value = parameters.FormatTuple(tuple)
		}
		if _, err := fmt.Fprintf(w, "\t%s=%v\n", hp.Key, value); err != nil {
			return err
		}
	}
	return nil
}
