package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/atomforge/mdsim/internal/config"
	"github.com/atomforge/mdsim/internal/potential"
	"github.com/atomforge/mdsim/internal/sim"
	"github.com/atomforge/mdsim/internal/storage"
)

var (
	verbose  bool
	dataDir  string
	steps    int
	noSave   bool
	plotVar  string
	plotMeta bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mdsim",
		Short: "molecular dynamics over machine-learned potentials",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [config.yaml]",
		Short: "run a simulation",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().IntVar(&steps, "steps", 0, "override step count from config")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "skip trajectory persistence")

	plotCmd := &cobra.Command{
		Use:   "plot [prefix]",
		Short: "plot the diagnostics of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&dataDir, "data", ".", "run data directory")
	plotCmd.Flags().StringVar(&plotVar, "series", "temperature", "series to plot: temperature, kinetic, potential, invariant, model_devi")
	plotCmd.Flags().BoolVar(&plotMeta, "table", false, "print the report table instead of a graph")

	infoCmd := &cobra.Command{
		Use:   "info [model.json]",
		Short: "print model artifact hyperparameters",
		Args:  cobra.ExactArgs(1),
		RunE:  modelInfo,
	}

	rootCmd.AddCommand(runCmd, plotCmd, infoCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("steps") {
		cfg.Steps = steps
	}

	s, err := sim.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := s.Run(ctx, cfg.Steps); err != nil {
		return err
	}
	logrus.Infof("completed %d steps in %v", cfg.Steps, time.Since(start).Round(time.Millisecond))

	if noSave {
		return nil
	}
	if err := s.Save(); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	logrus.Infof("run saved under %s with prefix %q", cfg.SavePath, cfg.SavePrefix)
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	prefix := args[0]
	reports, err := storage.New(dataDir).LoadReports(prefix)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return fmt.Errorf("no reports for %q", prefix)
	}

	if plotMeta {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STEP\tTEMP\tKE\tPE\tINVARIANT\tMODEL_DEVI\tTIME")
		for _, r := range reports {
			fmt.Fprintf(w, "%d\t%.2f\t%.4f\t%.4f\t%.4f\t%.4f\t%.2fs\n",
				r.Step, r.Temperature, r.Kinetic, r.Potential, r.Invariant, r.ModelDevi, r.Seconds)
		}
		return w.Flush()
	}

	data := make([]float64, len(reports))
	for i, r := range reports {
		switch plotVar {
		case "temperature":
			data[i] = r.Temperature
		case "kinetic":
			data[i] = r.Kinetic
		case "potential":
			data[i] = r.Potential
		case "invariant":
			data[i] = r.Invariant
		case "model_devi":
			data[i] = r.ModelDevi
		default:
			return fmt.Errorf("unknown series %q", plotVar)
		}
	}

	fmt.Printf("run: %s\nsamples: %d\n\n", prefix, len(reports))
	graph := asciigraph.Plot(data,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("%s vs report index", plotVar)),
	)
	fmt.Println(graph)
	return nil
}

func modelInfo(cmd *cobra.Command, args []string) error {
	a, err := potential.LoadArtifact(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("artifact: %s\n", args[0])
	fmt.Printf("types: %d\n", a.NTypes)
	fmt.Printf("cutoff: %.3f A\n", a.Rcut)
	fmt.Printf("pair tables: %d\n", len(a.Tables))
	for _, tb := range a.Tables {
		fmt.Printf("  (%d,%d): %d samples\n", tb.TypeI, tb.TypeJ, len(tb.Values))
	}
	return nil
}
