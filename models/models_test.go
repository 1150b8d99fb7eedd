package models

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/chewxy/math32"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/eegmodels/blocks"
	"github.com/janpfeifer/eegmodels/internal/generics"
	"github.com/janpfeifer/eegmodels/internal/parameters"
	"github.com/janpfeifer/eegmodels/layout"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/xla"
)

// smallConfigs keep the models small enough for tests, while still valid for every layer.
var smallConfigs = map[Architecture]string{
	EEGNet:         "chans=4,samples=64,kern_length=16,f1=4,d=2,f2=8",
	EEGNetSSVEP:    "chans=4,samples=64,kern_length=16,f1=4,f2=4",
	EEGNetOld:      "chans=4,samples=64",
	DeepConvNet:    "chans=4,samples=128",
	ShallowConvNet: "chans=4,samples=128",
	ConvNet3D:      "chans=16,chunks=8,samples=40",
	ConvNet3D2:     "chans=16,chunks=8,samples=40",
	DeeperConvNet:  "chans=32,samples=32,dense_units=16",
	ConvNet2D:      "chans=16,samples=80,dense_units=16",
	EEGNetFusion:   "chans=4,samples=64",
}

func buildSmall(t *testing.T, arch Architecture, numClasses int, extra string) *Model {
	config := smallConfigs[arch]
	if extra != "" {
		config += "," + extra
	}
	m, err := New(arch, numClasses, parameters.NewFromConfigString(config))
	require.NoErrorf(t, err, "building %s with %q", arch, config)
	return m
}

// randomInputs creates one random tensor per model input, with the given batch size.
func randomInputs(m *Model, batchSize int, seed uint64) []*tensors.Tensor {
	rng := rand.New(rand.NewPCG(seed, 17))
	inputs := make([]*tensors.Tensor, len(m.Inputs()))
	for ii, spec := range m.Inputs() {
		dims := append([]int{batchSize}, spec.Shape...)
		data := make([]float32, generics.Product(dims))
		for jj := range data {
			data[jj] = float32(rng.NormFloat64())
		}
		inputs[ii] = tensors.FromFlatDataAndDimensions(data, dims...)
	}
	return inputs
}

// toTimeMajor converts a feature-major input `[batch, 1, <logical axes...>]` to the time-major layout
// `[batch, <reversed logical axes...>, 1]`.
func toTimeMajor(input *tensors.Tensor) *tensors.Tensor {
	dims := input.Shape().Dimensions
	logical := dims[2:]
	rank := len(logical)
	data := tensors.CopyFlatData[float32](input)
	output := make([]float32, len(data))
	outDims := []int{dims[0]}
	for ii := rank - 1; ii >= 0; ii-- {
		outDims = append(outDims, logical[ii])
	}
	outDims = append(outDims, 1)

	// Strides of the logical axes in the output.
	outStrides := make([]int, rank)
	stride := 1
	for ii := 0; ii < rank; ii++ {
		outStrides[ii] = stride
		stride *= logical[ii]
	}
	trialSize := stride
	index := make([]int, rank)
	for b := range dims[0] {
		for pos := range trialSize {
			// Decompose pos in logical order, last axis fastest (the feature-major order).
			rem := pos
			for ii := rank - 1; ii >= 0; ii-- {
				index[ii] = rem % logical[ii]
				rem /= logical[ii]
			}
			outPos := 0
			for ii := range rank {
				outPos += index[ii] * outStrides[ii]
			}
			output[b*trialSize+outPos] = data[b*trialSize+pos]
		}
	}
	return tensors.FromFlatDataAndDimensions(output, outDims...)
}

func inputsAsAny(inputs []*tensors.Tensor) []any {
	return generics.SliceMap(inputs, func(t *tensors.Tensor) any { return t })
}

func requireProbabilities(t *testing.T, probabilities *tensors.Tensor, batchSize, numClasses int, msg string) {
	probabilities.Shape().AssertDims(batchSize, numClasses)
	values := tensors.CopyFlatData[float32](probabilities)
	for b := range batchSize {
		var sum float32
		for c := range numClasses {
			p := values[b*numClasses+c]
			require.Falsef(t, math32.IsNaN(p), "%s: NaN probability", msg)
			require.GreaterOrEqualf(t, p, float32(0), "%s: negative probability", msg)
			require.LessOrEqualf(t, p, float32(1.0001), "%s: probability > 1", msg)
			sum += p
		}
		require.InDeltaf(t, 1.0, sum, 1e-4, "%s: sum of probabilities of example %d is %g", msg, b, sum)
	}
}

func TestArchitectures(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	const batchSize, numClasses = 2, 3
	for _, arch := range ArchitectureValues() {
		for _, l := range layout.LayoutValues() {
			m := buildSmall(t, arch, numClasses, "layout="+l.String())
			assert.Equal(t, arch, m.Architecture())
			assert.Equal(t, l, m.Layout())
			assert.Equal(t, numClasses, m.NumClasses())
			probabilities, err := m.Predict(backend, inputsAsAny(randomInputs(m, batchSize, 1))...)
			require.NoErrorf(t, err, "predicting %s", m)
			requireProbabilities(t, probabilities, batchSize, numClasses, m.String())
		}
	}
}

func TestInputShapes(t *testing.T) {
	m := buildSmall(t, EEGNet, 4, "")
	require.Len(t, m.Inputs(), 1)
	assert.Equal(t, InputSpec{Name: "input", Shape: []int{1, 4, 64}}, m.Inputs()[0])

	m = buildSmall(t, EEGNet, 4, "layout=time_major")
	assert.Equal(t, []int{64, 4, 1}, m.Inputs()[0].Shape)

	m = buildSmall(t, ConvNet3D, 4, "")
	assert.Equal(t, []int{1, 16, 8, 40}, m.Inputs()[0].Shape)
	m = buildSmall(t, ConvNet3D, 4, "layout=time_major")
	assert.Equal(t, []int{40, 8, 16, 1}, m.Inputs()[0].Shape)

	m = buildSmall(t, EEGNetFusion, 4, "")
	names := generics.SliceMap(m.Inputs(), func(spec InputSpec) string { return spec.Name })
	assert.Equal(t, []string{"input_1", "input_2", "input_3"}, names)
}

// Models built for both layouts, sharing the same variables, must give the same predictions.
func TestLayoutEquivalence(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	const batchSize, numClasses = 2, 4
	for _, arch := range ArchitectureValues() {
		fm := buildSmall(t, arch, numClasses, "")
		tm := buildSmall(t, arch, numClasses, "layout=time_major")
		tm.SetContext(fm.Context())

		inputs := randomInputs(fm, batchSize, 7)
		want, err := fm.Predict(backend, inputsAsAny(inputs)...)
		require.NoError(t, err)
		tmInputs := generics.SliceMap(inputs, toTimeMajor)
		got, err := tm.Predict(backend, inputsAsAny(tmInputs)...)
		require.NoError(t, err)
		assert.InDeltaSlicef(t, tensors.CopyFlatData[float32](want), tensors.CopyFlatData[float32](got), 1e-4,
			"%s predictions differ between layouts", arch)
	}
}

func TestDropoutType(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	for _, arch := range []Architecture{EEGNet, EEGNetSSVEP, EEGNetFusion} {
		for _, dropoutType := range []string{"Dropout", "SpatialDropout2D"} {
			m := buildSmall(t, arch, 2, "dropout_type="+dropoutType)
			probabilities, err := m.Predict(backend, inputsAsAny(randomInputs(m, 1, 3))...)
			require.NoError(t, err)
			requireProbabilities(t, probabilities, 1, 2, m.String())
		}
		for _, dropoutType := range []string{"GaussianDropout", "dropout", ""} {
			_, err := New(arch, 2, parameters.NewFromConfigString(smallConfigs[arch]+",dropout_type="+dropoutType))
			require.Errorf(t, err, "%s with dropout_type=%q should fail", arch, dropoutType)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		}
	}
}

// TestDropoutTypeTraining checks dropout_type changes how the first EEGNet block is masked in training:
// SpatialDropout2D drops whole feature maps, while Dropout drops individual values.
func TestDropoutTypeTraining(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	const batchSize = 2
	for _, dropoutType := range []string{"Dropout", "SpatialDropout2D"} {
		m := buildSmall(t, EEGNet, 4, "dropout=0.5,dropout_type="+dropoutType)
		policy, err := dropoutPolicy(m.Context())
		require.NoError(t, err)
		chans := planarGeometry(m.Context()).Get(layout.Channels)
		firstBlock := readEEGNetBranch(m.Context()).stages(chans, policy)[0]
		l := m.Layout()

		input := randomInputs(m, batchSize, 5)[0]
		output := context.ExecOnce(backend, m.Context(), func(ctx *context.Context, x *Node) *Node {
			ctx.SetTraining(x.Graph(), true)
			return firstBlock.Apply(ctx.In("block_1"), l, blocks.ToInternal(l, 2, x))
		}, input)

		// Output is `[batch, 1, samples/pool1, F1*D]`: one feature map per (example, feature).
		dims := output.Shape().Dimensions
		mapSize, numFeatures := dims[1]*dims[2], dims[3]
		values := tensors.CopyFlatData[float32](output)
		var droppedMaps, mixedMaps int
		for example := range dims[0] {
			for feature := range numFeatures {
				zeros := 0
				for pos := range mapSize {
					if values[(example*mapSize+pos)*numFeatures+feature] == 0 {
						zeros++
					}
				}
				switch zeros {
				case 0:
				case mapSize:
					droppedMaps++
				default:
					mixedMaps++
				}
			}
		}
		if dropoutType == "SpatialDropout2D" {
			assert.Zerof(t, mixedMaps, "%s: feature maps should be dropped as a whole", dropoutType)
			assert.Positivef(t, droppedMaps, "%s: no feature map was dropped", dropoutType)
		} else {
			assert.Positivef(t, mixedMaps, "%s: values should be dropped individually", dropoutType)
		}
	}
}

func TestFusionInputOrder(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	m := buildSmall(t, EEGNetFusion, 4, "")
	inputs := randomInputs(m, 2, 11)
	want, err := m.Predict(backend, inputsAsAny(inputs)...)
	require.NoError(t, err)

	// Named inputs are bound in branch order.
	bound, err := m.BindInputs(map[string]any{"input_3": inputs[2], "input_1": inputs[0], "input_2": inputs[1]})
	require.NoError(t, err)
	got, err := m.Predict(backend, bound...)
	require.NoError(t, err)
	assert.Equal(t, tensors.CopyFlatData[float32](want), tensors.CopyFlatData[float32](got))

	// Swapping branches changes the result.
	swapped, err := m.Predict(backend, inputs[1], inputs[0], inputs[2])
	require.NoError(t, err)
	assert.NotEqual(t, tensors.CopyFlatData[float32](want), tensors.CopyFlatData[float32](swapped))

	_, err = m.BindInputs(map[string]any{"input_1": inputs[0], "input_2": inputs[1]})
	assert.Error(t, err)
	_, err = m.BindInputs(map[string]any{"input_1": inputs[0], "input_2": inputs[1], "input_3": inputs[2], "eeg": inputs[0]})
	assert.Error(t, err)

	// Wrong number of inputs.
	_, err = m.Predict(backend, inputs[0])
	assert.Error(t, err)
}

func TestEEGNetDefaults(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	m, err := NewEEGNet(4, parameters.NewFromConfigString("chans=22,samples=256"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 22, 256}, m.Inputs()[0].Shape)
	zeros := tensors.FromFlatDataAndDimensions(make([]float32, 3*22*256), 3, 1, 22, 256)
	probabilities, err := m.Predict(backend, zeros)
	require.NoError(t, err)
	requireProbabilities(t, probabilities, 3, 4, m.String())

	hyperparameters := make(map[string]any)
	for _, hp := range m.Hyperparameters() {
		hyperparameters[hp.Key] = hp.Value
	}
	assert.Equal(t, 22, hyperparameters[ParamChans])
	assert.Equal(t, 64, hyperparameters[ParamKernLength])
	assert.Equal(t, 0.25, hyperparameters[ParamNormRate])
	assert.Equal(t, "Dropout", hyperparameters[ParamDropoutType])
}

func TestInputShapeMismatch(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	m := buildSmall(t, EEGNet, 4, "")
	wrong := tensors.FromFlatDataAndDimensions(make([]float32, 2*4*32), 2, 1, 4, 32)
	_, err := m.Predict(backend, wrong)
	require.Error(t, err)
}

func TestConfigErrors(t *testing.T) {
	for _, config := range []string{
		"chans=22,foo=1",        // Unknown key.
		"chans=many",            // Not an int.
		"dropout=half",          // Not a float.
		"layout=channels_first", // Unknown layout.
	} {
		_, err := NewEEGNet(4, parameters.NewFromConfigString(config))
		require.Errorf(t, err, "config %q should fail", config)
		assert.Truef(t, errors.Is(err, ErrInvalidConfig), "config %q: error %v should wrap ErrInvalidConfig", config, err)
	}
	_, err := NewEEGNetOld(4, parameters.NewFromConfigString("kernel2=2x32x4"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	_, err = NewDeepConvNet(0, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	// Params are not consumed by the builders.
	params := parameters.NewFromConfigString("chans=22")
	_, err = NewShallowConvNet(2, params)
	require.NoError(t, err)
	assert.Contains(t, params, ParamChans)
}

func TestEEGNetOldTuples(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	m := buildSmall(t, EEGNetOld, 2, "kernel2=4x16,kernel3=4x8,strides=1x2")
	probabilities, err := m.Predict(backend, inputsAsAny(randomInputs(m, 2, 5))...)
	require.NoError(t, err)
	requireProbabilities(t, probabilities, 2, 2, m.String())
}

func TestParseArchitecture(t *testing.T) {
	for _, arch := range ArchitectureValues() {
		parsed, err := ParseArchitecture(arch.String())
		require.NoError(t, err)
		assert.Equal(t, arch, parsed)
		assert.NotEmpty(t, arch.Description())
		assert.Greater(t, arch.DefaultNumClasses(), 0)
	}
	kerasNames := map[string]Architecture{
		"EEGNet":         EEGNet,
		"EEGNet_SSVEP":   EEGNetSSVEP,
		"EEGNet_old":     EEGNetOld,
		"DeepConvNet":    DeepConvNet,
		"ShallowConvNet": ShallowConvNet,
		"ConvNet3D":      ConvNet3D,
		"ConvNet3D_2":    ConvNet3D2,
		"DeeperConvNet":  DeeperConvNet,
		"ConvNet2D":      ConvNet2D,
		"EEGNet_fusion":  EEGNetFusion,
	}
	for name, want := range kerasNames {
		parsed, err := ParseArchitecture(name)
		require.NoErrorf(t, err, "parsing %q", name)
		assert.Equalf(t, want, parsed, "parsing %q", name)
	}
	assert.Equal(t, 12, EEGNetSSVEP.DefaultNumClasses())
	_, err := ParseArchitecture("resnet")
	assert.Error(t, err)
}

func TestWriteHyperparametersHelp(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteHyperparametersHelp(buf, EEGNetOld))
	help := buf.String()
	assert.Contains(t, help, "kernel2=2x32")
	assert.Contains(t, help, "strides=2x4")
	assert.Contains(t, help, "layout=feature_major")
}

func TestCompile(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	m := buildSmall(t, ShallowConvNet, 2, "learning_rate=0.01")
	trainer := m.Compile(backend, nil, nil)
	require.NotNil(t, trainer)
}
