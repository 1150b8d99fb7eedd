// eegmodels builds the EEG classification models, runs a forward pass over synthetic inputs and prints
// a summary of each model: its inputs, number of variables and parameters and its predictions.
//
// Examples:
//
//	$ eegmodels -model=eegnet -config="chans=22,samples=256"
//	$ eegmodels -model=all -random -batch=4 -train_check
//	$ eegmodels -model=eegnet_old -config=help
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gomlx/gomlx/backends"
	"github.com/janpfeifer/eegmodels/internal/parameters"
	"github.com/janpfeifer/eegmodels/internal/profilers"
	"github.com/janpfeifer/eegmodels/internal/ui/spinning"
	"github.com/janpfeifer/eegmodels/models"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// AllModels is the value of -model that selects every architecture.
const AllModels = "all"

// Flags
var (
	flagModel = flag.String("model", models.EEGNet.String(),
		fmt.Sprintf("Architecture to build, or %q for all of them. See -list.", AllModels))
	flagClasses = flag.Int("classes", 0, "Number of classes. If 0 it uses the default of each architecture.")
	flagConfig  = flag.String("config", "",
		`Comma-separated hyperparameters, e.g. "chans=22,samples=256,strides=2x4". `+
			`Use "help" to list the hyperparameters of the selected models.`)
	flagBatch       = flag.Int("batch", 2, "Batch size of the synthetic inputs.")
	flagRandom      = flag.Bool("random", false, "Feed normally distributed random inputs, instead of zeros.")
	flagSeed        = flag.Uint64("seed", 42, "Seed used to generate the random inputs, see -random.")
	flagList        = flag.Bool("list", false, "List the available architectures and exit.")
	flagParallelism = flag.Int("parallelism", 0, "Number of models built in parallel. If 0 it uses the number of cores.")
	flagTrainCheck  = flag.Bool("train_check", false,
		"Also run one training step on each model, with every example labeled as class 0.")
	flagCheckpoint = flag.String("checkpoint", "",
		"Directory to load the model variables from (if it holds a checkpoint) and to save them to at the end. "+
			"Only valid when building one model.")
	flagBackend = flag.String("backend", "",
		`GoMLX backend configuration, e.g. "xla:cpu" or "go". If empty it uses $GOMLX_BACKEND or the default.`)
)

// Globals
var (
	// globalCtx used everywhere. It is cancelled when the program is about to exit either by
	// an interrupt (ctrl+C) or by reaching the end.
	globalCtx = context.Background()
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	if *flagList {
		must.M(listArchitectures(os.Stdout))
		return
	}
	archs := must.M1(selectArchitectures(*flagModel))
	if strings.TrimSpace(*flagConfig) == "help" {
		for _, arch := range archs {
			must.M(models.WriteHyperparametersHelp(os.Stdout, arch))
		}
		return
	}
	if *flagBatch <= 0 {
		klog.Fatalf("-batch must be > 0, got %d", *flagBatch)
	}
	if *flagCheckpoint != "" && len(archs) > 1 {
		klog.Fatalf("-checkpoint can only be used with one model, -model=%q selects %d", *flagModel, len(archs))
	}
	params := parameters.NewFromConfigString(*flagConfig)

	// Capture Control+C
	var globalCancel func()
	globalCtx, globalCancel = context.WithCancel(context.Background())
	spinning.SafeInterrupt(globalCancel, 5*time.Second)
	defer globalCancel()

	must.M(profilers.Setup(globalCtx))
	defer profilers.OnQuit()

	backend := newBackend(*flagBackend)
	defer backend.Finalize()
	klog.V(1).Infof("Using backend %q", backend.Name())

	spinner := spinning.New(globalCtx, fmt.Sprintf("Building and running %d model(s) on %s ...",
		len(archs), backend.Name()))
	reports := runAll(globalCtx, backend, archs, params)
	spinner.Done()
	if globalCtx.Err() != nil {
		// Interrupted.
		return
	}

	numFailed := must.M1(printReports(os.Stdout, reports))
	if numFailed > 0 {
		klog.Errorf("%d out of %d models failed", numFailed, len(reports))
		exitCode = 1
	}
}

// selectArchitectures parses the -model flag.
func selectArchitectures(name string) ([]models.Architecture, error) {
	if strings.EqualFold(strings.TrimSpace(name), AllModels) {
		return models.ArchitectureValues(), nil
	}
	arch, err := models.ParseArchitecture(name)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid -model=%q, use -list to see the available ones", name)
	}
	return []models.Architecture{arch}, nil
}

// newBackend creates the backend from its configuration, or the default one if config is empty.
func newBackend(config string) backends.Backend {
	if config == "" {
		return backends.New()
	}
	return backends.NewWithConfig(config)
}

// runAll runs each of the architectures, in parallel, and returns one report per architecture.
// Failures are recorded in the reports, so every architecture is attempted.
func runAll(ctx context.Context, backend backends.Backend, archs []models.Architecture,
	params parameters.Params) []*report {
	reports := make([]*report, len(archs))
	var eg errgroup.Group
	eg.SetLimit(getParallelism())
	for ii, arch := range archs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				reports[ii] = &report{arch: arch, err: err}
				return nil
			}
			reports[ii] = runModel(backend, arch, params)
			return nil
		})
	}
	_ = eg.Wait()
	return reports
}

// getParallelism returns the parallelism.
func getParallelism() (parallelism int) {
	parallelism = runtime.GOMAXPROCS(0)
	if *flagParallelism > 0 {
		parallelism = *flagParallelism
	}
	return
}
