package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/omixlab/fuseomics"
	"github.com/omixlab/fuseomics/progress"
	runfs "github.com/omixlab/fuseomics/service/dao/run/fs"
)

func trainCmd() *cobra.Command {
	var (
		configURI string
		store     string
		traceFile string
	)
	config := fuseomics.DefaultConfig()

	c := &cobra.Command{
		Use:   "train",
		Short: "Train a multi-omics model and evaluate it on the held-out split",
		RunE: func(cmd *cobra.Command, _ []string) error {
			options := []fuseomics.Option{
				fuseomics.WithTracing("fuseomics", version, traceFile),
				fuseomics.WithProgressListener(logProgress),
			}
			if store != "" {
				runDAO, err := runfs.New(store)
				if err != nil {
					return err
				}
				options = append(options, fuseomics.WithRunDAO(runDAO))
			}
			srv := fuseomics.New(options...)

			if configURI != "" {
				loaded, err := srv.LoadConfig(cmd.Context(), configURI)
				if err != nil {
					return err
				}
				config = loaded
			}

			record, err := srv.Runtime().Run(cmd.Context(), config)
			if err != nil {
				return err
			}
			slog.Info("run completed",
				"id", record.ID,
				"model", record.Model,
				"epochs", record.Epochs,
				"bestEpoch", record.BestEpoch,
				"valLoss", record.ValLoss)

			encoded, err := yaml.Marshal(record)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(os.Stdout, string(encoded))
			return err
		},
	}

	flags := c.Flags()
	flags.StringVar(&configURI, "config", "", "YAML run configuration (overrides all other flags)")
	flags.StringVar(&store, "store", "", "Directory persisting run records across invocations")
	flags.StringVar(&traceFile, "trace-file", "", "Write OpenTelemetry traces to this file instead of stdout")

	flags.StringVar(&config.Data.Path, "data-path", "", "Base URL of the study folder holding train/ and test/")
	flags.StringSliceVar(&config.Data.DataTypes, "data-types", nil, "Omic layers to load, e.g. gex,cnv")
	flags.StringSliceVar(&config.Data.Targets, "target-variables", nil, "Clinical variables to predict")
	flags.StringSliceVar(&config.Data.BatchVariables, "batch-variables", nil, "Clinical variables marking technical batches")
	flags.BoolVar(&config.Data.LogTransform, "log-transform", config.Data.LogTransform, "Apply log(1+x) before scaling")
	flags.Float64Var(&config.Data.ValFraction, "val-fraction", config.Data.ValFraction, "Fraction of training samples held out for validation")

	flags.StringVar(&config.Model.Class, "model-class", config.Model.Class, "Architecture: DirectPred, DirectPredCNN, SupervisedVAE or MultiTripletNetwork")
	flags.StringVar(&config.Model.FusionType, "fusion-type", config.Model.FusionType, "Layer fusion: early or intermediate")
	flags.BoolVar(&config.Model.LossWeighting, "use-loss-weighting", config.Model.LossWeighting, "Learn uncertainty weights across task losses")

	flags.IntVar(&config.Features.MinFeatures, "features-min", config.Features.MinFeatures, "Minimum features kept per layer")
	flags.Float64Var(&config.Features.TopPercentile, "features-top-percentile", config.Features.TopPercentile, "Percentage of features kept per layer")

	flags.IntVar(&config.HPO.Iterations, "hpo-iter", config.HPO.Iterations, "Hyperparameter search trials (0 disables)")
	flags.IntVar(&config.HPO.Workers, "hpo-workers", config.HPO.Workers, "Concurrent hyperparameter trials")

	flags.IntVar(&config.Training.Epochs, "epochs", config.Training.Epochs, "Maximum training epochs")
	flags.IntVar(&config.Training.BatchSize, "batch-size", config.Training.BatchSize, "Minibatch size")
	flags.Float64Var(&config.Training.LearningRate, "learning-rate", config.Training.LearningRate, "Initial learning rate")
	flags.IntVar(&config.Training.EarlyStopPatience, "early-stop-patience", config.Training.EarlyStopPatience, "Epochs without improvement before stopping (0 disables)")
	flags.Int64Var(&config.Training.Seed, "seed", config.Training.Seed, "Random seed")

	flags.BoolVar(&config.Evaluation.Baselines, "evaluate-baseline", config.Evaluation.Baselines, "Also score mean/majority and kNN baselines")

	flags.StringVar(&config.Output.Dir, "outdir", config.Output.Dir, "Directory receiving run artifacts")
	flags.StringVar(&config.Output.Prefix, "prefix", config.Output.Prefix, "Artifact file name prefix")
	flags.BoolVar(&config.Output.Plot, "plot", config.Output.Plot, "Render a 2D embedding scatter")

	return c
}

func logProgress(t progress.Tracker) {
	slog.Debug("progress",
		"run", t.RunID,
		"epochs", fmt.Sprintf("%d/%d", t.EpochsCompleted, t.Epochs),
		"trials", fmt.Sprintf("%d/%d", t.TrialsCompleted, t.Trials),
		"trialsFailed", t.TrialsFailed)
}
