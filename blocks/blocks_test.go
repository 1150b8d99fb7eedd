package blocks

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/eegmodels/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/xla"
)

// iotaTensor returns a float32 tensor with the given dimensions and values 0, 0.1, 0.2, ...
func iotaTensor(dims ...int) *tensors.Tensor {
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	data := make([]float32, size)
	for ii := range data {
		data[ii] = float32(ii) * 0.1
	}
	return tensors.FromFlatDataAndDimensions(data, dims...)
}

func TestClippedLog(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	inputs := []float32{0, -1, 1e-9, 1, 2, 1e5}
	output := context.ExecOnce(backend, context.New(), func(ctx *context.Context, x *graph.Node) *graph.Node {
		return ClippedLog(x)
	}, inputs)
	got := tensors.CopyFlatData[float32](output)
	require.Len(t, got, len(inputs))
	for ii, x := range inputs {
		want := math32.Log(math32.Min(math32.Max(x, SafeLogMin), SafeLogMax))
		assert.Falsef(t, math32.IsInf(got[ii], 0) || math32.IsNaN(got[ii]), "log(clip(%g)) is not finite", x)
		assert.InDeltaf(t, want, got[ii], 1e-4, "log(clip(%g))", x)
	}
}

func TestElu(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	inputs := []float32{-1, 0, 2, 100}
	output := context.ExecOnce(backend, context.New(), func(ctx *context.Context, x *graph.Node) *graph.Node {
		return ELU.Apply(x)
	}, inputs)
	got := tensors.CopyFlatData[float32](output)
	want := []float32{math32.Exp(-1) - 1, 0, 2, 100}
	assert.InDeltaSlice(t, want, got, 1e-5)
}

func TestMaxNorm(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	output := context.ExecOnce(backend, context.New(), func(ctx *context.Context, w *graph.Node) *graph.Node {
		return MaxNorm(w, 1.0, 1)
	}, [][]float32{{3, 4}, {0.3, 0.4}})
	got := tensors.CopyFlatData[float32](output)
	// First row has norm 5 and is rescaled to norm 1, the second (norm 0.5) is untouched.
	assert.InDeltaSlice(t, []float32{0.6, 0.8, 0.3, 0.4}, got, 1e-5)
}

func TestDropout(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	x := iotaTensor(2, 3, 4, 5)
	for _, dt := range DropoutTypeValues() {
		// Not training: identity.
		policy := DropoutPolicy{Type: dt, Rate: 0.5}
		output := context.ExecOnce(backend, context.New(), func(ctx *context.Context, x *graph.Node) *graph.Node {
			return policy.Apply(ctx, x)
		}, x)
		assert.InDeltaSlicef(t, tensors.CopyFlatData[float32](x), tensors.CopyFlatData[float32](output), 1e-6,
			"%s should be the identity during inference", dt)
	}
}

func TestSpatialDropout(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	const batch, rows, cols, features = 3, 4, 5, 6
	ones := make([]float32, batch*rows*cols*features)
	for ii := range ones {
		ones[ii] = 1
	}
	x := tensors.FromFlatDataAndDimensions(ones, batch, rows, cols, features)
	output := context.ExecOnce(backend, context.New(), func(ctx *context.Context, x *graph.Node) *graph.Node {
		ctx.SetTraining(x.Graph(), true)
		return SpatialDropout(ctx, x, 0.5)
	}, x)
	got := tensors.CopyFlatData[float32](output)

	// Each (example, feature) pair is either completely dropped or completely kept (and scaled by 2).
	for b := range batch {
		for f := range features {
			first := got[((b*rows)*cols)*features+f]
			require.Truef(t, first == 0 || math32.Abs(first-2) < 1e-5, "unexpected value %g", first)
			for r := range rows {
				for c := range cols {
					value := got[((b*rows+r)*cols+c)*features+f]
					require.Equalf(t, first, value, "example %d, feature %d not masked as a whole", b, f)
				}
			}
		}
	}
}

func TestParseDropoutType(t *testing.T) {
	dt, err := ParseDropoutType("Dropout")
	require.NoError(t, err)
	assert.Equal(t, Dropout, dt)
	dt, err = ParseDropoutType("SpatialDropout2D")
	require.NoError(t, err)
	assert.Equal(t, SpatialDropout2D, dt)

	for _, name := range []string{"dropout", "spatialdropout2d", "AlphaDropout", ""} {
		_, err = ParseDropoutType(name)
		assert.Errorf(t, err, "ParseDropoutType(%q) should fail", name)
	}
}

func TestToInternalAndFlatten(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	// Feature-major input [batch=2, 1, chans=3, samples=4].
	fm := iotaTensor(2, 1, 3, 4)
	outputs := context.ExecOnceN(backend, context.New(), func(ctx *context.Context, x *graph.Node) []*graph.Node {
		internal := ToInternal(layout.FeatureMajor, 2, x)
		// Same trial in time-major layout: [batch, samples, chans, 1].
		tm := graph.TransposeAllDims(x, 0, 3, 2, 1)
		return []*graph.Node{
			internal,
			Flatten(layout.FeatureMajor, internal),
			Flatten(layout.TimeMajor, ToInternal(layout.TimeMajor, 2, tm)),
		}
	}, fm)
	outputs[0].Shape().AssertDims(2, 3, 4, 1)
	outputs[1].Shape().AssertDims(2, 12)
	outputs[2].Shape().AssertDims(2, 12)
	assert.Equal(t, tensors.CopyFlatData[float32](outputs[1]), tensors.CopyFlatData[float32](outputs[2]))
	assert.Equal(t, tensors.CopyFlatData[float32](fm), tensors.CopyFlatData[float32](outputs[1]))
}

func TestSwapWithFeatures(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	output := context.ExecOnce(backend, context.New(), func(ctx *context.Context, x *graph.Node) *graph.Node {
		return SwapWithFeatures(layout.TimeMajor, layout.Channels, x)
	}, iotaTensor(2, 7, 3, 5))
	// Time-major: [batch, time, channels, features] -> [batch, time, features, channels].
	output.Shape().AssertDims(2, 7, 5, 3)
}

func TestPool(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	pool := MeanPoolOver(layout.Planar(1, 4))
	outputs := context.ExecOnceN(backend, context.New(), func(ctx *context.Context, x *graph.Node) []*graph.Node {
		tm := graph.TransposeAllDims(x, 0, 2, 1, 3)
		return []*graph.Node{
			Flatten(layout.FeatureMajor, pool.Apply(layout.FeatureMajor, x)),
			Flatten(layout.TimeMajor, pool.Apply(layout.TimeMajor, tm)),
		}
	}, iotaTensor(1, 2, 8, 1))
	outputs[0].Shape().AssertDims(1, 4)
	// Means of 0..0.3, 0.4..0.7, 0.8..1.1, 1.2..1.5.
	want := []float32{0.15, 0.55, 0.95, 1.35}
	assert.InDeltaSlice(t, want, tensors.CopyFlatData[float32](outputs[0]), 1e-5)
	assert.InDeltaSlice(t, want, tensors.CopyFlatData[float32](outputs[1]), 1e-5)
}

// The same variables must give the same results in both layouts, for every kind of convolution.
func TestConvLayoutEquivalence(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	convs := []Conv{
		{Kind: Standard, Filters: 4, Kernel: layout.Planar(2, 3), PadSame: true, Bias: true, MaxNorm: 2},
		{Kind: Standard, Filters: 3, Kernel: layout.Planar(1, 3), Strides: layout.Planar(1, 2)},
		{Kind: Depthwise, Multiplier: 2, Kernel: layout.Planar(5, 1), MaxNorm: 1},
		{Kind: Separable, Filters: 6, Kernel: layout.Planar(1, 4), PadSame: true},
	}
	for ii := range convs {
		conv := &convs[ii]
		ctx := context.New()
		outputs := context.ExecOnceN(backend, ctx, func(ctx *context.Context, x *graph.Node) []*graph.Node {
			tm := graph.TransposeAllDims(x, 0, 2, 1, 3)
			return []*graph.Node{
				Flatten(layout.FeatureMajor, conv.Apply(ctx, layout.FeatureMajor, x)),
				Flatten(layout.TimeMajor, conv.Apply(ctx.Reuse(), layout.TimeMajor, tm)),
			}
		}, iotaTensor(2, 5, 9, 3))
		require.Truef(t, outputs[0].Shape().Equal(outputs[1].Shape()), "conv #%d: shapes %s and %s differ",
			ii, outputs[0].Shape(), outputs[1].Shape())
		assert.InDeltaSlicef(t, tensors.CopyFlatData[float32](outputs[0]), tensors.CopyFlatData[float32](outputs[1]),
			1e-4, "conv #%d", ii)
	}
}

func TestDepthwiseConnectivity(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	conv := &Conv{Kind: Depthwise, Multiplier: 2, Kernel: layout.Planar(4, 1)}
	// Only the input feature 0 is non-zero.
	data := make([]float32, 1*4*6*3)
	for ii := 0; ii < len(data); ii += 3 {
		data[ii] = 1
	}
	output := context.ExecOnce(backend, context.New(), func(ctx *context.Context, x *graph.Node) *graph.Node {
		return conv.Apply(ctx, layout.FeatureMajor, x)
	}, tensors.FromFlatDataAndDimensions(data, 1, 4, 6, 3))
	output.Shape().AssertDims(1, 1, 6, 6)
	got := tensors.CopyFlatData[float32](output)
	for pos := range 6 {
		for f := 2; f < 6; f++ {
			assert.Equalf(t, float32(0), got[pos*6+f], "output feature %d at %d should not see input feature 0", f, pos)
		}
	}
}

func TestBlock(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	block := &Block{
		Convs: []Conv{
			{Kind: Standard, Filters: 4, Kernel: layout.Planar(1, 5), PadSame: true, Norm: DefaultNorm},
			{Kind: Depthwise, Multiplier: 2, Kernel: layout.Planar(3, 1)},
		},
		Norm:       TorchNorm,
		Activation: ELU,
		Pool:       MeanPoolOver(layout.Planar(1, 4)),
		Dropout:    DropoutPolicy{Type: SpatialDropout2D, Rate: 0.25},
	}
	ctx := context.New()
	output := context.ExecOnce(backend, ctx, func(ctx *context.Context, x *graph.Node) *graph.Node {
		return Stack(ctx, layout.FeatureMajor, ToInternal(layout.FeatureMajor, 2, x), block)
	}, iotaTensor(2, 1, 3, 16))
	output.Shape().AssertDims(2, 1, 4, 8)
}

func TestDense(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	output := context.ExecOnce(backend, context.New(), func(ctx *context.Context, x *graph.Node) *graph.Node {
		return Dense(ctx, x, 3, 0.25)
	}, iotaTensor(4, 7))
	output.Shape().AssertDims(4, 3)
}

func TestSamePadding(t *testing.T) {
	// Stride divides the input: no padding needed.
	assert.Equal(t, [][2]int{{0, 0}, {0, 0}}, samePadding([]int{16, 32}, []int{2, 4}, []int{2, 4}))
	// Odd total padding goes after.
	assert.Equal(t, [][2]int{{1, 1}, {0, 1}}, samePadding([]int{5, 6}, []int{3, 3}, []int{2, 2}))
	assert.Equal(t, [][2]int{{14, 14}}, samePadding([]int{64}, []int{32}, []int{4}))
}

func TestStridedSameConv(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	// Time axis of 32 samples with values 0..31, kernel 4 of ones and stride 4: TensorFlow's "same" needs no
	// padding, so output j is the sum of samples 4j to 4j+3.
	const samples = 32
	data := make([]float32, samples)
	for ii := range data {
		data[ii] = float32(ii)
	}
	input := tensors.FromFlatDataAndDimensions(data, 1, 1, samples, 1)
	ones := tensors.FromFlatDataAndDimensions([]float32{1, 1, 1, 1}, 1, 4, 1, 1)
	conv := &Conv{Kind: Standard, Filters: 1, Kernel: layout.Planar(1, 4), Strides: layout.Planar(1, 4), PadSame: true}

	ctx := context.New()
	ctx.In("conv").VariableWithValue("weights", ones)
	output := context.ExecOnce(backend, ctx, func(ctx *context.Context, x *graph.Node) *graph.Node {
		return conv.Apply(ctx.In("conv").Reuse(), layout.FeatureMajor, x)
	}, input)
	output.Shape().AssertDims(1, 1, samples/4, 1)
	got := tensors.CopyFlatData[float32](output)
	for j, value := range got {
		assert.InDeltaf(t, float32(16*j+6), value, 1e-4, "output %d", j)
	}
}
