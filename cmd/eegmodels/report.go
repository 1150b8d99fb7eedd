package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/eegmodels/internal/generics"
	"github.com/janpfeifer/eegmodels/internal/parameters"
	"github.com/janpfeifer/eegmodels/internal/ui/cli"
	"github.com/janpfeifer/eegmodels/models"
	"github.com/pkg/errors"
)

const (
	// sumTolerance is the maximum deviation from 1 accepted for the sum of the probabilities of one example.
	sumTolerance = 1e-3

	// maxShownPredictions is the number of examples whose prediction is shown in the summary.
	maxShownPredictions = 4
)

// prediction of one example: the most likely class and its probability.
type prediction struct {
	class       int
	probability float32
}

// report of running one architecture.
type report struct {
	arch  models.Architecture
	model *models.Model

	numVariables, numParameters int
	predictions                 []prediction
	maxSumError                 float32
	trainLoss                   float32
	trained                     bool
	elapsed                     time.Duration

	err error
}

// runModel builds the architecture, runs it over synthetic inputs and optionally a training step.
func runModel(backend backends.Backend, arch models.Architecture, params parameters.Params) *report {
	r := &report{arch: arch}
	start := time.Now()
	defer func() { r.elapsed = time.Since(start) }()

	numClasses := *flagClasses
	if numClasses == 0 {
		numClasses = arch.DefaultNumClasses()
	}
	m, err := models.New(arch, numClasses, params)
	if err != nil {
		r.err = err
		return r
	}
	r.model = m
	if *flagCheckpoint != "" {
		if r.err = m.AttachCheckpoint(*flagCheckpoint, 0); r.err != nil {
			return r
		}
	}

	inputs := syntheticInputs(m, *flagBatch, *flagRandom, *flagSeed)
	probabilities, err := m.Predict(backend, generics.SliceMap(inputs, func(t *tensors.Tensor) any { return t })...)
	if err != nil {
		r.err = err
		return r
	}
	r.predictions, r.maxSumError = summarizePredictions(probabilities)
	if r.maxSumError > sumTolerance {
		r.err = errors.Errorf("probabilities of model %s don't sum to 1 (maximum error %g)", arch, r.maxSumError)
		return r
	}
	r.numVariables, r.numParameters = countVariables(m.Context())

	if *flagTrainCheck {
		r.trainLoss, r.err = trainCheck(backend, m, inputs)
		r.trained = r.err == nil
		if r.err != nil {
			return r
		}
	}
	if *flagCheckpoint != "" {
		r.err = m.Save()
	}
	return r
}

// syntheticInputs creates one input tensor per model input, with a leading batch axis. They are filled with zeros,
// or with normally distributed values if random is set.
func syntheticInputs(m *models.Model, batchSize int, random bool, seed uint64) []*tensors.Tensor {
	rng := rand.New(rand.NewPCG(seed, uint64(m.Architecture())))
	specs := m.Inputs()
	inputs := make([]*tensors.Tensor, len(specs))
	for ii, spec := range specs {
		dims := append([]int{batchSize}, spec.Shape...)
		data := make([]float32, generics.Product(dims))
		if random {
			for jj := range data {
				data[jj] = float32(rng.NormFloat64())
			}
		}
		inputs[ii] = tensors.FromFlatDataAndDimensions(data, dims...)
	}
	return inputs
}

// summarizePredictions returns the most likely class of each example and the largest deviation from 1 of
// the sum of the probabilities of an example.
func summarizePredictions(probabilities *tensors.Tensor) (predictions []prediction, maxSumError float32) {
	dims := probabilities.Shape().Dimensions
	batchSize, numClasses := dims[0], dims[1]
	data := tensors.CopyFlatData[float32](probabilities)
	predictions = make([]prediction, batchSize)
	for example := range batchSize {
		row := data[example*numClasses : (example+1)*numClasses]
		var sum float32
		best := prediction{class: -1, probability: -1}
		for class, p := range row {
			sum += p
			if p > best.probability {
				best = prediction{class: class, probability: p}
			}
		}
		predictions[example] = best
		if math32.IsNaN(sum) {
			maxSumError = math32.Inf(1)
			continue
		}
		maxSumError = max(maxSumError, math32.Abs(sum-1))
	}
	return
}

// countVariables returns the number of variables in ctx and their total number of values.
func countVariables(ctx *context.Context) (numVariables, numParameters int) {
	ctx.EnumerateVariables(func(v *context.Variable) {
		numVariables++
		numParameters += v.Shape().Size()
	})
	return
}

// trainCheck runs one training step with every example labeled as class 0, and returns the batch loss.
func trainCheck(backend backends.Backend, m *models.Model, inputs []*tensors.Tensor) (loss float32, err error) {
	batchSize := inputs[0].Shape().Dimensions[0]
	numClasses := m.NumClasses()
	labelsData := make([]float32, batchSize*numClasses)
	for example := range batchSize {
		labelsData[example*numClasses] = 1
	}
	labels := tensors.FromFlatDataAndDimensions(labelsData, batchSize, numClasses)

	err = exceptions.TryCatch[error](func() {
		trainer := m.Compile(backend, nil, nil)
		metrics := trainer.TrainStep(nil, inputs, []*tensors.Tensor{labels})
		var ok bool
		loss, ok = metrics[0].Value().(float32)
		if !ok {
			exceptions.Panicf("unexpected loss %s", metrics[0].Shape())
		}
	})
	if err != nil {
		return 0, errors.WithMessagef(err, "training step of model %s failed", m.Architecture())
	}
	if math32.IsNaN(loss) || math32.IsInf(loss, 0) {
		return 0, errors.Errorf("training step of model %s returned invalid loss %g", m.Architecture(), loss)
	}
	return loss, nil
}

// formatPredictions formats the first predictions as "class:probability".
func formatPredictions(predictions []prediction) string {
	parts := make([]string, 0, maxShownPredictions+1)
	for ii, p := range predictions {
		if ii == maxShownPredictions {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprintf("%d:%.2f", p.class, p.probability))
	}
	return strings.Join(parts, " ")
}

// formatInputs formats the shapes of the model inputs.
func formatInputs(m *models.Model) string {
	return strings.Join(generics.SliceMap(m.Inputs(), func(spec models.InputSpec) string {
		return fmt.Sprintf("%s%v", spec.Name, spec.Shape)
	}), " ")
}

// reportsTable renders the successful reports as a table, and returns the failed ones separately.
func reportsTable(reports []*report, withTraining bool) (table string, failed []*report) {
	header := []string{"Model", "Classes", "Layout", "Inputs", "Variables", "Parameters", "Predictions", "Time"}
	if withTraining {
		header = append(header, "Train loss")
	}
	var rows [][]string
	for _, r := range reports {
		if r.err != nil {
			failed = append(failed, r)
			continue
		}
		row := []string{
			r.arch.String(),
			fmt.Sprint(r.model.NumClasses()),
			r.model.Layout().String(),
			formatInputs(r.model),
			fmt.Sprint(r.numVariables),
			humanize.Comma(int64(r.numParameters)),
			formatPredictions(r.predictions),
			r.elapsed.Round(time.Millisecond).String(),
		}
		if withTraining {
			loss := "-"
			if r.trained {
				loss = fmt.Sprintf("%.4f", r.trainLoss)
			}
			row = append(row, loss)
		}
		rows = append(rows, row)
	}
	if len(rows) > 0 {
		table = cli.Table(header, rows)
	}
	return
}

// printReports prints the summary of the reports to w, and returns the number of failed models.
func printReports(w io.Writer, reports []*report) (numFailed int, err error) {
	width := 0
	if w == os.Stdout {
		width = cli.TerminalWidth(int(os.Stdout.Fd()))
	}
	table, failed := reportsTable(reports, *flagTrainCheck)
	if table != "" {
		if err = cli.PrintCentered(w, width, table); err != nil {
			return
		}
	}
	for _, r := range failed {
		if _, err = fmt.Fprintf(w, "%s %s\n", cli.Title(r.arch.String()), cli.ErrorStyle.Render(r.err.Error())); err != nil {
			return
		}
	}
	return len(failed), nil
}

// listArchitectures prints the available architectures.
func listArchitectures(w io.Writer) error {
	rows := generics.SliceMap(models.ArchitectureValues(), func(arch models.Architecture) []string {
		return []string{arch.String(), fmt.Sprint(arch.DefaultNumClasses()), arch.Description()}
	})
	_, err := fmt.Fprintln(w, cli.Table([]string{"Model", "Classes", "Description"}, rows))
	return err
}
