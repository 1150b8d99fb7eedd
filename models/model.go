// Package models implements the EEG classification architectures as GoMLX models.
//
// Each builder (NewEEGNet, NewDeepConvNet, ...) validates its configuration and returns a Model: a handle
// holding the GoMLX context with the (lazily created) variables and hyperparameters, and the functions that
// build the graph. No graph node is created by the builders: they are created by the GoMLX executors
// (Model.Predict, or the trainer returned by Model.Compile) when the graph is first built.
//
// Model inputs are the raw trials, in the layout selected by the "layout" hyperparameter:
// `[batch, 1, chans, samples]` (or `[batch, 1, chans, chunks, samples]`) for "feature_major" (the default),
// and `[batch, samples, chans, 1]` (or `[batch, samples, chunks, chans, 1]`) for "time_major".
//
// Example:
//
//	model, err := models.NewEEGNet(4, parameters.NewFromConfigString("chans=22,samples=256"))
//	if err != nil { ... }
//	probabilities, err := model.Predict(backend, trials) // trials shaped [batch, 1, 22, 256]
package models

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/eegmodels/blocks"
	"github.com/janpfeifer/eegmodels/internal/generics"
	"github.com/janpfeifer/eegmodels/layout"
	"github.com/pkg/errors"
)

// ErrInvalidConfig is wrapped by every configuration error returned by the builders.
var ErrInvalidConfig = errors.New("invalid model configuration")

// InputSpec describes one input of a model. Shape excludes the batch axis.
type InputSpec struct {
	Name  string
	Shape []int
}

// Hyperparameter is a key/value pair from the model context.
type Hyperparameter struct {
	Key   string
	Value any
}

// logitsFn builds the graph from the internal (channels-last) inputs and returns the logits.
type logitsFn func(ctx *context.Context, inputs []*Node) *Node

// Model is a fully wired classification model: the architecture with its resolved configuration and the
// context holding its variables.
//
// Models are safe for concurrent use, but predictions are serialized.
type Model struct {
	arch       Architecture
	numClasses int
	layout     layout.Layout
	rank       int // Number of spatial axes.
	inputs     []InputSpec
	logits     logitsFn

	ctx *context.Context

	muExec      sync.Mutex
	exec        *context.Exec
	execBackend backends.Backend
	checkpoint  *checkpoints.Handler
}

// Architecture of the model.
func (m *Model) Architecture() Architecture { return m.arch }

// NumClasses is the dimension of the model output.
func (m *Model) NumClasses() int { return m.numClasses }

// Layout of the model inputs.
func (m *Model) Layout() layout.Layout { return m.layout }

// Inputs returns the specification of each input, in the order they are given to the model.
func (m *Model) Inputs() []InputSpec {
	return slices.Clone(m.inputs)
}

// Context returns the GoMLX context with the model variables and hyperparameters.
func (m *Model) Context() *context.Context { return m.ctx }

// SetContext replaces the model context. It's used to share variables between models, for instance
// the same architecture built for different layouts.
func (m *Model) SetContext(ctx *context.Context) {
	m.muExec.Lock()
	defer m.muExec.Unlock()
	m.ctx = ctx
	m.exec = nil
	m.execBackend = nil
}

// Hyperparameters returns the hyperparameters of the model, sorted by key.
func (m *Model) Hyperparameters() []Hyperparameter {
	var hyperparameters []Hyperparameter
	m.ctx.EnumerateParams(func(scope, key string, value any) {
		if scope != context.RootScope {
			return
		}
		hyperparameters = append(hyperparameters, Hyperparameter{Key: key, Value: value})
	})
	slices.SortFunc(hyperparameters, func(a, b Hyperparameter) int { return strings.Compare(a.Key, b.Key) })
	return hyperparameters
}

// LogitsGraph builds the model graph for the given inputs (in the model layout) and returns the
// logits shaped `[batch, numClasses]`.
func (m *Model) LogitsGraph(ctx *context.Context, inputs []*Node) *Node {
	if len(inputs) != len(m.inputs) {
		exceptions.Panicf("model %s takes %d inputs, %d given", m.arch, len(m.inputs), len(inputs))
	}
	internal := make([]*Node, len(inputs))
	for ii, input := range inputs {
		spec := m.inputs[ii]
		if input.Rank() != len(spec.Shape)+1 || !slices.Equal(input.Shape().Dimensions[1:], spec.Shape) {
			exceptions.Panicf("model %s input %q must be shaped [batch, %v], got %s",
				m.arch, spec.Name, spec.Shape, input.Shape())
		}
		internal[ii] = blocks.ToInternal(m.layout, m.rank, input)
	}
	return m.logits(ctx, internal)
}

// ForwardGraph returns the class probabilities shaped `[batch, numClasses]`: the softmax of the logits.
func (m *Model) ForwardGraph(ctx *context.Context, inputs []*Node) *Node {
	return Softmax(m.LogitsGraph(ctx, inputs), -1)
}

// ModelGraph implements train.ModelFn: it returns the logits.
func (m *Model) ModelGraph(ctx *context.Context, _ any, inputs []*Node) []*Node {
	return []*Node{m.LogitsGraph(ctx, inputs)}
}

// Predict runs the model (in inference mode) on the inputs, given as tensors or Go multi-dimensional
// slices in the model layout, and returns the class probabilities.
//
// The executor is created on the first call, and re-used while the backend is the same.
func (m *Model) Predict(backend backends.Backend, inputs ...any) (probabilities *tensors.Tensor, err error) {
	if len(inputs) != len(m.inputs) {
		return nil, errors.Errorf("model %s takes %d inputs, %d given", m.arch, len(m.inputs), len(inputs))
	}
	m.muExec.Lock()
	defer m.muExec.Unlock()
	err = exceptions.TryCatch[error](func() {
		if m.exec == nil || m.execBackend != backend {
			m.exec = context.NewExec(backend, m.ctx, func(ctx *context.Context, inputs []*Node) *Node {
				return m.ForwardGraph(ctx, inputs)
			})
			m.execBackend = backend
		}
		probabilities = m.exec.Call(inputs...)[0]
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to run model %s", m.arch)
	}
	return probabilities, nil
}

// BindInputs orders named inputs in the positional order of the model. Every input must be given
// exactly once.
func (m *Model) BindInputs(named map[string]any) ([]any, error) {
	expected := generics.MakeSet[string](len(m.inputs))
	for _, spec := range m.inputs {
		expected.Insert(spec.Name)
	}
	given := generics.MakeSet[string](len(named))
	for name := range named {
		given.Insert(name)
	}
	if unknown := given.Sub(expected); len(unknown) > 0 {
		return nil, errors.Errorf("model %s has no inputs named %q, valid names are %q",
			m.arch, generics.SortedSlice(unknown), m.inputNames())
	}
	if missing := expected.Sub(given); len(missing) > 0 {
		return nil, errors.Errorf("model %s is missing inputs %q", m.arch, generics.SortedSlice(missing))
	}
	inputs := make([]any, len(m.inputs))
	for ii, spec := range m.inputs {
		inputs[ii] = named[spec.Name]
	}
	return inputs, nil
}

// Compile wires the model into a GoMLX trainer, to be used with train.Loop or Trainer.TrainStep.
//
// Labels are expected one-hot encoded, shaped `[batch, numClasses]`. If loss is nil categorical
// cross-entropy is used, and if optimizer is nil it is created from the context hyperparameters
// (see optimizers.FromContext). The metrics are used both for training and evaluation.
func (m *Model) Compile(backend backends.Backend, loss losses.LossFn, optimizer optimizers.Interface,
	evalMetrics ...metrics.Interface) *train.Trainer {
	if loss == nil {
		loss = losses.CategoricalCrossEntropyLogits
	}
	if optimizer == nil {
		optimizer = optimizers.FromContext(m.ctx)
	}
	return train.NewTrainer(backend, m.ctx, m.ModelGraph, loss, optimizer, evalMetrics, evalMetrics)
}

// String implements fmt.Stringer.
func (m *Model) String() string {
	parts := make([]string, len(m.inputs))
	for ii, spec := range m.inputs {
		parts[ii] = fmt.Sprintf("%s=%v", spec.Name, spec.Shape)
	}
	return fmt.Sprintf("%s(classes=%d, layout=%s, %s)", m.arch, m.numClasses, m.layout, strings.Join(parts, ", "))
}

func (m *Model) inputNames() []string {
	return generics.SliceMap(m.inputs, func(spec InputSpec) string { return spec.Name })
}

// setInputs creates the input specifications for numInputs inputs of the same geometry.
func (m *Model) setInputs(geometry layout.Extent, numInputs int) {
	m.rank = geometry.Rank()
	shape := m.layout.InputShape(geometry)
	m.inputs = make([]InputSpec, numInputs)
	for ii := range m.inputs {
		name := "input"
		if numInputs > 1 {
			name = fmt.Sprintf("input_%d", ii+1)
		}
		m.inputs[ii] = InputSpec{Name: name, Shape: slices.Clone(shape)}
	}
}
