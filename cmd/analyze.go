package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/correlate-cli/internal/align"
	"github.com/KaramelBytes/correlate-cli/internal/analysis"
	"github.com/KaramelBytes/correlate-cli/internal/parser"
	"github.com/KaramelBytes/correlate-cli/internal/stats"
	"github.com/KaramelBytes/correlate-cli/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	anaTime1      string
	anaValue1     string
	anaTime2      string
	anaValue2     string
	anaName1      string
	anaName2      string
	anaMethod     string
	anaOffline    bool
	anaJSON       bool
	anaOutputPath string
	anaRows       int
	anaDelimiter  string
	anaMinPoints  int
	anaProvider   string
	anaModel      string
	anaTimeoutSec int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file1> <file2>",
	Short: "Correlate two time-series files by calendar day",
	Example: `  correlate analyze pollen.csv sneezes.json --time1 date --value1 count --time2 ts --value2 n
  correlate analyze a.csv.gz b.csv --time1 day --value1 v --time2 day --value2 v --method spearman --offline`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resetUnsetFlags(cmd.Flags())
		if cmd.Flags().Changed("min-points") && anaMinPoints < 2 {
			return fmt.Errorf("--min-points must be at least 2")
		}

		opt, err := parseDelimiter(anaDelimiter)
		if err != nil {
			return err
		}
		var method stats.Method
		if anaMethod != "" {
			if method, err = stats.ParseMethod(anaMethod); err != nil {
				return err
			}
		}

		d1, err := loadDataset(cmd.ErrOrStderr(), args[0], anaName1, anaTime1, anaValue1, opt)
		if err != nil {
			return err
		}
		d2, err := loadDataset(cmd.ErrOrStderr(), args[1], anaName2, anaTime2, anaValue2, opt)
		if err != nil {
			return err
		}

		a, err := newAnalyzer(cfg, runtimeOptions{
			ProviderFlag: anaProvider,
			ModelFlag:    anaModel,
			Offline:      anaOffline,
			MinPoints:    anaMinPoints,
		}, nil)
		if err != nil {
			return err
		}

		timeoutSec := anaTimeoutSec
		if timeoutSec <= 0 {
			timeoutSec = 180
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
		defer cancel()
		res, err := a.Run(ctx, analysis.Request{Dataset1: d1, Dataset2: d2, Method: method})
		if err != nil {
			logger.Debug("analysis failed", "outcome", analysis.Outcome(err), "err", err)
			return errors.New(analysis.UserMessage(err))
		}

		var out []byte
		if anaJSON {
			if out, err = utils.PrettyJSON(res); err != nil {
				return err
			}
		} else {
			out = []byte(res.Report(anaRows))
		}
		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, out, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func loadDataset(warn io.Writer, path, name, timeField, valueField string, opt parser.Options) (align.Dataset, error) {
	res, err := parser.ParseFile(path, opt)
	if err != nil {
		var pe *parser.ParseError
		if errors.As(err, &pe) {
			return align.Dataset{}, errors.New(analysis.UserMessage(err))
		}
		return align.Dataset{}, err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(warn, "⚠ %s: %s\n", filepath.Base(path), w)
	}
	if name == "" {
		name = filepath.Base(path)
	}
	logger.Debug("parsed", "file", path, "records", len(res.Records), "columns", res.Columns)
	return align.Dataset{Name: name, Records: res.Records, TimeField: timeField, ValueField: valueField}, nil
}

func parseDelimiter(s string) (parser.Options, error) {
	opt := parser.DefaultOptions()
	switch s {
	case "", ",":
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s (use ',' | ';' | 'tab' | 'pipe')", s)
	}
	return opt, nil
}

// resetUnsetFlags restores defaults for flags not given in this invocation;
// cobra keeps bound variables across repeated Execute calls.
func resetUnsetFlags(f *pflag.FlagSet) {
	provided := map[string]bool{}
	f.Visit(func(fl *pflag.Flag) { provided[fl.Name] = true })
	f.VisitAll(func(fl *pflag.Flag) {
		if !provided[fl.Name] {
			_ = fl.Value.Set(fl.DefValue)
		}
	})
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	f := analyzeCmd.Flags()
	f.StringVar(&anaTime1, "time1", "", "timestamp field in the first file")
	f.StringVar(&anaValue1, "value1", "", "value field in the first file")
	f.StringVar(&anaTime2, "time2", "", "timestamp field in the second file")
	f.StringVar(&anaValue2, "value2", "", "value field in the second file")
	f.StringVar(&anaName1, "name1", "", "display name for the first dataset (default: file name)")
	f.StringVar(&anaName2, "name2", "", "display name for the second dataset (default: file name)")
	f.StringVarP(&anaMethod, "method", "m", "", "force the method: pearson | spearman (default: ask the model)")
	f.BoolVar(&anaOffline, "offline", false, "do not call a model; use Pearson and a templated summary")
	f.BoolVar(&anaJSON, "json", false, "print the result as JSON")
	f.StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report")
	f.IntVar(&anaRows, "rows", analysis.DefaultReportRows, "aligned rows to print (-1 = all, 0 = none)")
	f.StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe'")
	f.IntVar(&anaMinPoints, "min-points", 0, "minimum overlapping days (overrides config)")
	f.StringVar(&anaProvider, "provider", "", "model provider: openrouter | ollama | offline")
	f.StringVar(&anaModel, "model", "", "model name (overrides config)")
	f.IntVar(&anaTimeoutSec, "timeout-sec", 180, "overall timeout for the analysis in seconds")
	for _, name := range []string{"time1", "value1", "time2", "value2"} {
		_ = analyzeCmd.MarkFlagRequired(name)
	}
}
