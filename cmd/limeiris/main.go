// Command limeiris trains a random forest on iris and explains one random
// test prediction with LIME.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/watertemp/dataset"
	"github.com/YuminosukeSato/watertemp/explain/lime"
	"github.com/YuminosukeSato/watertemp/metrics"
	"github.com/YuminosukeSato/watertemp/pkg/log"
	"github.com/YuminosukeSato/watertemp/report"
	"github.com/YuminosukeSato/watertemp/sklearn/ensemble"
	"github.com/YuminosukeSato/watertemp/sklearn/model_selection"
	"gonum.org/v1/gonum/mat"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "limeiris: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("limeiris", flag.ContinueOnError)
	seed := fs.Int64("seed", 1, "seed of the split, the forest and LIME")
	numFeatures := fs.Int("num-features", 2, "features per explanation")
	topLabels := fs.Int("top-labels", 1, "explain the k most probable classes")
	chart := fs.String("chart", "", "save the explanation as an image (.png, .svg, ...)")
	confusion := fs.Bool("confusion", false, "print the test confusion matrix")
	logLevel := fs.String("log-level", "warn", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, closer, err := log.Setup(log.Config{Level: *logLevel})
	if err != nil {
		return err
	}
	defer closer.Close()

	iris, err := dataset.LoadIris()
	if err != nil {
		return err
	}
	XTrain, XTest, yTrain, yTest, err := model_selection.TrainTestSplit(iris.Data, iris.Target, 0.8, *seed)
	if err != nil {
		return err
	}

	rf := ensemble.NewRandomForestClassifier(
		ensemble.WithRandomState(*seed),
		ensemble.WithNJobs(-1),
	)
	if err := rf.Fit(XTrain, yTrain); err != nil {
		return err
	}
	pred, err := rf.Predict(XTest)
	if err != nil {
		return err
	}
	acc, err := metrics.AccuracyMatrix(yTest, pred)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Accuracy: %s%%\n", pyFloat(math.Round(acc*100*1000)/1000))
	if *confusion {
		if err := printConfusion(stdout, yTest, pred, rf.Classes()); err != nil {
			return err
		}
	}

	explainer, err := lime.NewTabularExplainer(XTrain,
		lime.WithFeatureNames(iris.FeatureNames),
		lime.WithClassNames(iris.TargetNames),
		lime.WithDiscretizeContinuous(true),
		lime.WithRandomState(*seed),
	)
	if err != nil {
		return err
	}
	nTest, _ := XTest.Dims()
	i := rand.New(rand.NewPCG(uint64(*seed), uint64(*seed))).IntN(nTest)
	exp, err := explainer.ExplainInstance(mat.Row(nil, i, XTest), rf.PredictProba,
		lime.WithNumFeatures(*numFeatures),
		lime.WithTopLabels(*topLabels),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nTest row %d\n", i)
	fmt.Fprint(stdout, exp.String())

	if *chart != "" {
		return report.PlotExplanation(exp, exp.AvailableLabels()[0], *chart)
	}
	return nil
}

// printConfusion writes the confusion matrix with true classes as rows.
func printConfusion(w io.Writer, yTrue, yPred mat.Matrix, classes []int) error {
	t, err := metrics.ColumnVector("limeiris", yTrue)
	if err != nil {
		return err
	}
	p, err := metrics.ColumnVector("limeiris", yPred)
	if err != nil {
		return err
	}
	cm, err := metrics.ConfusionMatrix(t, p, classes)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Confusion matrix (classes %v)\n%v\n", classes, mat.Formatted(cm, mat.Squeeze()))
	return nil
}

// pyFloat formats v the way Python prints a float: shortest round-trip
// digits, with ".0" kept on integral values.
func pyFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
