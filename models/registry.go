package models

import (
	"github.com/janpfeifer/eegmodels/internal/parameters"
	"k8s.io/klog/v2"
)

var builders = map[Architecture]builder{
	EEGNet:         {defaults: eegnetDefaults, build: buildEEGNet},
	EEGNetSSVEP:    {defaults: eegnetSSVEPDefaults, build: buildEEGNetSSVEP},
	EEGNetOld:      {defaults: eegnetOldDefaults, build: buildEEGNetOld},
	DeepConvNet:    {defaults: deepConvNetDefaults, build: buildDeepConvNet},
	ShallowConvNet: {defaults: shallowConvNetDefaults, build: buildShallowConvNet},
	ConvNet3D:      {defaults: convNet3DDefaults, build: buildConvNet3D},
	ConvNet3D2:     {defaults: convNet3DDefaults, build: buildConvNet3D2},
	DeeperConvNet:  {defaults: deeperConvNetDefaults, build: buildDeeperConvNet},
	ConvNet2D:      {defaults: convNet2DDefaults, build: buildConvNet2D},
	EEGNetFusion:   {defaults: eegnetFusionDefaults, build: buildEEGNetFusion},
}

// New builds a model of the given architecture. params overwrite the default hyperparameters
// (see WriteHyperparametersHelp). Every error returned wraps ErrInvalidConfig.
func New(arch Architecture, numClasses int, params parameters.Params) (*Model, error) {
	m, err := newModel(arch, numClasses, params)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("Built model %s", m)
	return m, nil
}

// NewEEGNet builds the EEGNet model: a temporal convolution, a depthwise spatial convolution and a separable
// convolution, with batch normalization, average pooling and dropout.
func NewEEGNet(numClasses int, params parameters.Params) (*Model, error) {
	return New(EEGNet, numClasses, params)
}

// NewEEGNetSSVEP builds the EEGNet variant for SSVEP classification. It has an unconstrained classifier.
func NewEEGNetSSVEP(numClasses int, params parameters.Params) (*Model, error) {
	return New(EEGNetSSVEP, numClasses, params)
}

// NewEEGNetOld builds the first version of EEGNet.
//
// Deprecated: use NewEEGNet.
func NewEEGNetOld(numClasses int, params parameters.Params) (*Model, error) {
	return New(EEGNetOld, numClasses, params)
}

// NewDeepConvNet builds a DeepConvNet.
func NewDeepConvNet(numClasses int, params parameters.Params) (*Model, error) {
	return New(DeepConvNet, numClasses, params)
}

// NewShallowConvNet builds a ShallowConvNet.
func NewShallowConvNet(numClasses int, params parameters.Params) (*Model, error) {
	return New(ShallowConvNet, numClasses, params)
}

// NewConvNet3D builds the volumetric convolutional network.
func NewConvNet3D(numClasses int, params parameters.Params) (*Model, error) {
	return New(ConvNet3D, numClasses, params)
}

// NewConvNet3D2 builds the volumetric convolutional network with a two layer dense head.
func NewConvNet3D2(numClasses int, params parameters.Params) (*Model, error) {
	return New(ConvNet3D2, numClasses, params)
}

// NewDeeperConvNet builds the wide stack of 3x3 convolutions.
func NewDeeperConvNet(numClasses int, params parameters.Params) (*Model, error) {
	return New(DeeperConvNet, numClasses, params)
}

// NewConvNet2D builds the two stage 2D convolutional network.
func NewConvNet2D(numClasses int, params parameters.Params) (*Model, error) {
	return New(ConvNet2D, numClasses, params)
}

// NewEEGNetFusion builds the fusion of three EEGNet branches. It takes three inputs of the same geometry,
// named "input_1", "input_2" and "input_3".
func NewEEGNetFusion(numClasses int, params parameters.Params) (*Model, error) {
	return New(EEGNetFusion, numClasses, params)
}
