package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/correlate-cli/internal/parser"
	"github.com/KaramelBytes/correlate-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	inspDelimiter string
	inspJSON      bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "List the columns and record count of a CSV or JSON file",
	Long:  "Inspect parses a file the same way analyze does and prints its columns, so you can pick the time and value fields.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resetUnsetFlags(cmd.Flags())
		opt, err := parseDelimiter(inspDelimiter)
		if err != nil {
			return err
		}
		res, err := parser.ParseFile(args[0], opt)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if inspJSON {
			b, err := utils.PrettyJSON(map[string]any{
				"file":     filepath.Base(args[0]),
				"columns":  res.Columns,
				"records":  len(res.Records),
				"warnings": res.Warnings,
			})
			if err != nil {
				return err
			}
			_, err = out.Write(b)
			return err
		}
		fmt.Fprintf(out, "File: %s\n", filepath.Base(args[0]))
		fmt.Fprintf(out, "Records: %d\n", len(res.Records))
		if len(res.Columns) == 0 {
			fmt.Fprintln(out, "Columns: (none)")
		} else {
			fmt.Fprintf(out, "Columns: %s\n", strings.Join(res.Columns, ", "))
		}
		if len(res.Records) > 0 {
			fmt.Fprintln(out, "First record:")
			for _, c := range res.Columns {
				v, err := res.Records[0].Lookup(c)
				if err != nil {
					continue
				}
				fmt.Fprintf(out, "  %s = %s\n", c, v.String())
			}
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s\n", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | 'pipe'")
	inspectCmd.Flags().BoolVar(&inspJSON, "json", false, "print as JSON")
}
