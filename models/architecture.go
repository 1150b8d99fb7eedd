package models

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Architecture enumerates the supported model families.
type Architecture int

const (
	EEGNet Architecture = iota
	EEGNetSSVEP
	EEGNetOld
	DeepConvNet
	ShallowConvNet
	ConvNet3D
	ConvNet3D2
	DeeperConvNet
	ConvNet2D
	EEGNetFusion
)

var architectureInfo = []struct {
	name, description string
	numClasses        int
}{
	EEGNet:         {"eegnet", "compact depthwise-separable network for EEG classification", 4},
	EEGNetSSVEP:    {"eegnet_ssvep", "EEGNet variant for SSVEP classification", 12},
	EEGNetOld:      {"eegnet_old", "original (deprecated) EEGNet, with spatial filters, permutation and strided convolutions", 4},
	DeepConvNet:    {"deep_convnet", "deep convolutional network with four conv-pool stages", 4},
	ShallowConvNet: {"shallow_convnet", "shallow network of temporal and spatial convolutions with log band-power features", 4},
	ConvNet3D:      {"convnet3d", "3D convolutional network over channels x chunks x samples", 4},
	ConvNet3D2:     {"convnet3d_2", "3D convolutional network with a two layer dense head", 4},
	DeeperConvNet:  {"deeper_convnet", "wide VGG-like stack of 3x3 convolutions", 4},
	ConvNet2D:      {"convnet2d", "two stage 2D convolutional network", 4},
	EEGNetFusion:   {"eegnet_fusion", "three EEGNet branches with different kernel sizes, fused before the classifier", 4},
}

// String implements fmt.Stringer.
func (a Architecture) String() string {
	if a < 0 || int(a) >= len(architectureInfo) {
		return fmt.Sprintf("Architecture(%d)", int(a))
	}
	return architectureInfo[a].name
}

// Description is a one line description of the architecture.
func (a Architecture) Description() string {
	if a < 0 || int(a) >= len(architectureInfo) {
		return ""
	}
	return architectureInfo[a].description
}

// DefaultNumClasses returns the number of classes usually used with the architecture.
func (a Architecture) DefaultNumClasses() int {
	if a < 0 || int(a) >= len(architectureInfo) {
		return 0
	}
	return architectureInfo[a].numClasses
}

// ArchitectureValues returns all architectures, in their declaration order.
func ArchitectureValues() []Architecture {
	values := make([]Architecture, len(architectureInfo))
	for ii := range values {
		values[ii] = Architecture(ii)
	}
	return values
}

// ParseArchitecture converts a name to an Architecture. Case and underscores are ignored, so both
// "deep_convnet" and "DeepConvNet" are accepted.
func ParseArchitecture(name string) (Architecture, error) {
	key := normalizeName(name)
	for _, a := range ArchitectureValues() {
		if normalizeName(a.String()) == key {
			return a, nil
		}
	}
	names := make([]string, len(architectureInfo))
	for ii, info := range architectureInfo {
		names[ii] = info.name
	}
	return EEGNet, errors.Errorf("unknown architecture %q, valid values are: %s", name, strings.Join(names, ", "))
}

// normalizeName lowercases name and removes its underscores.
func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "")
}
