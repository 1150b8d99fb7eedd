package blocks

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/layers/activations"
)

// Activation is a pointwise nonlinearity.
type Activation int

const (
	// Linear is the identity, the zero value.
	Linear Activation = iota
	ELU
	ReLU
	Square
	SafeLog
)

const (
	// SafeLogMin and SafeLogMax are the clipping bounds used by SafeLog.
	SafeLogMin = 1e-7
	SafeLogMax = 1e4

	// MaxNormEpsilon is added to the norm when rescaling in MaxNorm.
	MaxNormEpsilon = 1e-7
)

func (a Activation) String() string {
	switch a {
	case Linear:
		return "linear"
	case ELU:
		return "elu"
	case ReLU:
		return "relu"
	case Square:
		return "square"
	case SafeLog:
		return "safe_log"
	}
	return fmt.Sprintf("Activation(%d)", int(a))
}

// Apply the activation to x.
func (a Activation) Apply(x *graph.Node) *graph.Node {
	switch a {
	case Linear:
		return x
	case ELU:
		return Elu(x)
	case ReLU:
		return activations.Relu(x)
	case Square:
		return graph.Square(x)
	case SafeLog:
		return ClippedLog(x)
	}
	exceptions.Panicf("unknown activation %s", a)
	return nil
}

// Elu returns `x` for positive values and `exp(x)-1` otherwise.
func Elu(x *graph.Node) *graph.Node {
	zeros := graph.ZerosLike(x)
	// Exp only sees non-positive values, so its gradient stays finite.
	negative := graph.AddScalar(graph.Exp(graph.Min(x, zeros)), -1)
	return graph.Where(graph.GreaterThan(x, zeros), x, negative)
}

// ClippedLog returns `log(clip(x, SafeLogMin, SafeLogMax))`: always finite, even for zero or negative
// inputs.
func ClippedLog(x *graph.Node) *graph.Node {
	return graph.Log(graph.ClipScalar(x, SafeLogMin, SafeLogMax))
}

// MaxNorm rescales w such that the L2 norm over the given axes is at most bound.
//
// It works as a differentiable reparametrization of the weights: the stored variable is left untouched.
func MaxNorm(w *graph.Node, bound float64, axes ...int) *graph.Node {
	g := w.Graph()
	dims := w.Shape().Dimensions
	keptDims := concat(dims)
	for _, axis := range axes {
		keptDims[axis] = 1
	}
	norms := graph.Sqrt(graph.Reshape(graph.ReduceSum(graph.Square(w), axes...), keptDims...))
	norms = graph.BroadcastToDims(norms, dims...)
	desired := graph.Min(norms, graph.BroadcastToDims(graph.Scalar(g, w.DType(), bound), dims...))
	return graph.Mul(w, graph.Div(desired, graph.AddScalar(norms, MaxNormEpsilon)))
}
