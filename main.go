package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the flags and the logger shared by all commands.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger

	configFile  string
	outputFile  string
	top         int
	normalize   bool
	showSummary bool
	noColor     bool
	verbose     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "tracesum <trace.csv>",
		Short: "Summarize kernel dispatch times from a kernel tracer CSV",
		Long: `tracesum reads the CSV written by the kernel tracer, attaches the GEMM
shapes logged by rocBLAS to the dispatch they follow, and prints the time
spent per (kernel, shape) group, largest first.`,
		Example: `  # Ranked table on stdout
  tracesum trace.csv

  # Top 20 groups written to an Excel workbook
  tracesum trace.csv -n 20 -o summary.xlsx

  # Compare two runs
  tracesum compare --baseline before.csv --new after.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(c.verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd)
			if err != nil {
				return err
			}
			return c.runSummarize(args[0], opts)
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "YAML options file")
	pf.StringVarP(&c.outputFile, "output", "o", "", "Output file path (.csv, .json, .xlsx, or text table)")
	pf.BoolVar(&c.normalize, "normalize", false, "Normalize kernel names (strip triton suffix numbers)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	f := root.Flags()
	f.IntVarP(&c.top, "top", "n", 0, "Show only the first N groups (0 = all)")
	f.BoolVar(&c.showSummary, "summary", false, "Print kernel categories and parse statistics to stderr")
	f.BoolVar(&c.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newCompareCmd(c))
	return root
}

// options loads the config file and applies explicitly set flags over it.
func (c *cli) options(cmd *cobra.Command) (Options, error) {
	opts, err := LoadOptions(c.configFile)
	if err != nil {
		return opts, err
	}
	if cmd.Flags().Changed("normalize") {
		opts.NormalizeNames = c.normalize
	}
	if f := cmd.Flags().Lookup("top"); f != nil && f.Changed {
		opts.Top = c.top
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func (c *cli) runSummarize(inputFile string, opts Options) error {
	startTime := time.Now()

	summary, err := ParseTraceFile(inputFile, opts, c.logger)
	if err != nil {
		return err
	}
	c.logger.Debug("Trace parsed",
		zap.String("file", inputFile),
		zap.Duration("elapsed", time.Since(startTime)))

	if c.showSummary {
		summary.WriteCategorySummary(c.stderr)
	}

	if c.outputFile != "" {
		if err := summary.WriteToFile(c.outputFile, opts); err != nil {
			return fmt.Errorf("failed to write %s: %w", c.outputFile, err)
		}
		fmt.Fprintf(c.stderr, "Results written to: %s\n", c.outputFile)
		return nil
	}

	return summary.WriteTable(c.stdout, opts, c.useColor())
}

func (c *cli) useColor() bool {
	if c.noColor || color.NoColor {
		return false
	}
	f, ok := c.stdout.(*os.File)
	return ok && f == os.Stdout
}

func newCompareCmd(c *cli) *cobra.Command {
	var baseline, current string

	cmd := &cobra.Command{
		Use:   "compare --baseline <trace.csv> --new <trace.csv>",
		Short: "Compare per-group kernel times between two traces",
		Long: `Aggregates both traces independently, then lines up their groups: exact
matches first, then kernels with the same signature and shape. Change is the
difference of the average dispatch time, negative meaning the new trace is
faster.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd)
			if err != nil {
				return err
			}

			result, err := CompareTraceFiles(baseline, current, opts, c.logger)
			if err != nil {
				return err
			}

			if c.outputFile == "" {
				result.WriteSummary(c.stdout)
				return nil
			}

			result.WriteSummary(c.stderr)
			if strings.HasSuffix(strings.ToLower(c.outputFile), ".xlsx") {
				err = result.WriteCompareXLSX(c.outputFile)
			} else {
				err = writeCompareCSVFile(result, c.outputFile)
			}
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", c.outputFile, err)
			}
			fmt.Fprintf(c.stderr, "\nResults written to: %s\n", c.outputFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseline, "baseline", "", "Baseline trace file (required)")
	cmd.Flags().StringVar(&current, "new", "", "New trace file (required)")
	_ = cmd.MarkFlagRequired("baseline")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func writeCompareCSVFile(result *CompareResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := result.WriteCompareCSV(file); err != nil {
		return err
	}
	return file.Close()
}
