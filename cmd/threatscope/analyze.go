// cmd/threatscope/analyze.go
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/signalnine/threatscope/internal/analysis"
	"github.com/signalnine/threatscope/internal/report"
)

const stdinArg = "-"

func newAnalyzeCmd() *cobra.Command {
	var (
		output  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "analyze [paths|globs|-]...",
		Short: "Analyze log files and print a threat report",
		Long: `Analyze each input independently. Arguments may be files, doublestar
globs such as /var/log/**/*.log, or - for stdin (the default).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(output)
			if err != nil {
				return err
			}

			inputs, err := expandInputs(args)
			if err != nil {
				return err
			}

			analyzer := analysis.New(
				analysis.WithWorkers(workers),
				analysis.WithLogger(logger.Named("analysis")),
			)

			reports := make([]report.Report, 0, len(inputs))
			for _, in := range inputs {
				content, err := readInput(cmd.InOrStdin(), in)
				if err != nil {
					return err
				}
				out := analyzer.Analyze(cmd.Context(), string(content))
				name := in
				if in == stdinArg {
					name = "stdin"
				}
				reports = append(reports, report.Report{Source: name, Result: out.Result})
			}

			return report.New(format).Render(cmd.OutOrStdout(), reports)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(report.FormatTable), "output format: table, json")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parse workers (0 = GOMAXPROCS)")
	return cmd
}

// expandInputs resolves glob arguments to files. Plain paths pass through so
// a missing file is reported when read. No arguments means stdin.
func expandInputs(args []string) ([]string, error) {
	if len(args) == 0 {
		return []string{stdinArg}, nil
	}

	var out []string
	for _, arg := range args {
		if arg == stdinArg || !hasMeta(arg) {
			out = append(out, arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", arg)
		}
		out = append(out, matches...)
	}
	return out, nil
}

func hasMeta(s string) bool {
	for _, c := range s {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == stdinArg {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
