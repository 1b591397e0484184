package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	sampler "github.com/absmach/sampler"
	"github.com/absmach/sampler/controller"
	"github.com/absmach/sampler/pkg/anneal"
	"github.com/absmach/sampler/pkg/protocol"
	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type options struct {
	configPath  string
	address     string
	nodes       int
	bitsPerNode int
	graph       string
	noise       float64
	bias        int
	coupling    int
	mode        int
	count       int
	stride      int
	burnIn      int
	anneal      bool
	tempStart   float64
	tempEnd     float64
	threshold   float64
	readTimeout time.Duration
	output      string
	logLevel    string
	interactive bool
}

func main() {
	opts := options{
		address:     "localhost:7071",
		nodes:       4,
		bitsPerNode: 1,
		noise:       0.2,
		coupling:    32,
		mode:        1,
		count:       100,
		stride:      1,
		tempStart:   0.6,
		tempEnd:     0.05,
		threshold:   anneal.DefaultThreshold,
		readTimeout: controller.DefaultReadTimeout,
		output:      "samples.csv",
		logLevel:    "info",
	}

	rootCmd := &cobra.Command{
		Use:   "sampler-controller",
		Short: "Sampler annealing controller",
		Long: `Connects to the orchestrator console, requests a sample batch, scores every
assembled bit string against a max-cut instance and exports the samples as CSV.

Examples:
  sampler-controller --count 500 --anneal --temp-start 0.8 --temp-end 0.02
  sampler-controller --config config.toml --graph graph.yaml -o run.csv`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	f := rootCmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	f.StringVarP(&opts.address, "address", "a", opts.address, "Orchestrator console address")
	f.IntVar(&opts.nodes, "nodes", opts.nodes, "Number of peripheral nodes")
	f.IntVar(&opts.bitsPerNode, "bits-per-node", opts.bitsPerNode, "Bits each node contributes")
	f.StringVarP(&opts.graph, "graph", "g", "", "Graph file (YAML); a ring is used when empty")
	f.Float64VarP(&opts.noise, "noise", "n", opts.noise, "Noise in [0,1]")
	f.IntVarP(&opts.bias, "bias", "b", opts.bias, "Bias in [-127,127]")
	f.IntVarP(&opts.coupling, "coupling", "k", opts.coupling, "Coupling in [0,255]")
	f.IntVarP(&opts.mode, "mode", "m", opts.mode, "Node mode in [0,255]")
	f.IntVar(&opts.count, "count", opts.count, "Samples to request")
	f.IntVar(&opts.stride, "stride", opts.stride, "Emit every n-th round")
	f.IntVar(&opts.burnIn, "burn-in", opts.burnIn, "Rounds to skip before the first sample")
	f.BoolVar(&opts.anneal, "anneal", false, "Drive the noise with an annealing schedule")
	f.Float64Var(&opts.tempStart, "temp-start", opts.tempStart, "Initial annealing noise")
	f.Float64Var(&opts.tempEnd, "temp-end", opts.tempEnd, "Final annealing noise")
	f.Float64Var(&opts.threshold, "threshold", opts.threshold, "Minimum noise change before an update is sent")
	f.DurationVar(&opts.readTimeout, "read-timeout", opts.readTimeout, "Give up after the console is silent this long")
	f.StringVarP(&opts.output, "output", "o", opts.output, "CSV output file; empty disables export")
	f.StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "Prompt for the session parameters")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, opts options) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if opts.configPath != "" {
		if err := applyConfig(cmd, &opts); err != nil {
			return err
		}
	}
	if opts.interactive {
		if err := prompt(&opts); err != nil {
			return err
		}
	}

	ccfg := sampler.ControllerConfig{BitsPerNode: opts.bitsPerNode, Graph: opts.graph}
	graph, err := ccfg.LoadGraph(opts.nodes)
	if err != nil {
		return err
	}

	cfg := controller.Config{
		Nodes:       opts.nodes,
		BitsPerNode: opts.bitsPerNode,
		Params:      protocol.ClampParams(opts.noise, opts.bias, opts.coupling, opts.mode),
		Count:       opts.count,
		Stride:      opts.stride,
		BurnIn:      opts.burnIn,
		Threshold:   opts.threshold,
		ReadTimeout: opts.readTimeout,
	}
	if opts.anneal {
		cfg.Schedule = &anneal.Schedule{TempStart: opts.tempStart, TempEnd: opts.tempEnd}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := controller.Dial(ctx, opts.address, cfg, graph, logger)
	if err != nil {
		return err
	}

	rep, err := client.Run(ctx)
	printReport(cmd, rep)
	if opts.output != "" && len(rep.Samples) > 0 {
		if werr := writeCSV(opts.output, rep); werr != nil {
			return errors.Join(err, werr)
		}
		logger.Info("samples exported", slog.String("file", opts.output), slog.Int("samples", len(rep.Samples)))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// applyConfig fills every option not given on the command line from the
// TOML file.
func applyConfig(cmd *cobra.Command, opts *options) error {
	file, err := sampler.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	changed := cmd.Flags().Changed

	if !changed("nodes") {
		addrs, err := file.Orchestrator.Addresses()
		if err != nil {
			return err
		}
		opts.nodes = len(addrs)
	}
	c := file.Controller
	if c.Address != "" && !changed("address") {
		opts.address = c.Address
	}
	if c.BitsPerNode > 0 && !changed("bits-per-node") {
		opts.bitsPerNode = c.BitsPerNode
	}
	if c.Graph != "" && !changed("graph") {
		opts.graph = c.Graph
	}
	if c.TempStart > 0 && !changed("temp-start") {
		opts.tempStart = c.TempStart
	}
	if c.TempEnd > 0 && !changed("temp-end") {
		opts.tempEnd = c.TempEnd
	}
	if c.Threshold > 0 && !changed("threshold") {
		opts.threshold = c.Threshold
	}

	return nil
}

func prompt(opts *options) error {
	count := strconv.Itoa(opts.count)
	noise := strconv.FormatFloat(opts.noise, 'f', 2, 64)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Orchestrator console address").
				Value(&opts.address),
			huh.NewInput().
				Title("Samples to request").
				Value(&count).
				Validate(positiveInt),
			huh.NewInput().
				Title("Noise").
				Value(&noise).
				Validate(func(s string) error {
					_, err := strconv.ParseFloat(s, 64)

					return err
				}),
			huh.NewConfirm().
				Title("Anneal the noise over the batch?").
				Value(&opts.anneal),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	opts.count, _ = strconv.Atoi(count)
	opts.noise, _ = strconv.ParseFloat(noise, 64)

	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if n < 1 {
		return errors.New("must be at least 1")
	}

	return nil
}

func writeCSV(path string, rep controller.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer f.Close()

	return rep.WriteCSV(f)
}

func printReport(cmd *cobra.Command, rep controller.Report) {
	out := cmd.OutOrStdout()
	bold := color.New(color.Bold)

	bold.Fprintln(out, "\nSession summary")
	fmt.Fprintf(out, "  samples:    %d (rejected %d)\n", len(rep.Samples), rep.Rejected)
	fmt.Fprintf(out, "  last tick:  %d\n", rep.LastTick)
	switch {
	case rep.Done:
		fmt.Fprintf(out, "  status:     %s\n", color.GreenString("done"))
	case rep.TimedOut:
		fmt.Fprintf(out, "  status:     %s\n", color.YellowString("timed out"))
	default:
		fmt.Fprintf(out, "  status:     %s\n", color.RedString("interrupted"))
	}
	if !rep.HasBest {
		return
	}
	fmt.Fprintf(out, "  best cut:   %s at tick %d\n", strconv.FormatFloat(rep.Best.Score, 'f', -1, 64), rep.Best.Tick)
	fmt.Fprintf(out, "  best bits:  %s\n", rep.Best.Bits)
	fmt.Fprintf(out, "  max cut:    %s\n", strconv.FormatFloat(rep.MaxCut, 'f', -1, 64))
	fmt.Fprintf(out, "  efficiency: %s\n\n", color.CyanString("%.1f%%", rep.Efficiency))
}
