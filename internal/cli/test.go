package cli

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/storekit/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Golden string // directory of <scenario name>.golden files
	Update bool   // rewrite golden files instead of comparing
	Filter string // glob matched against scenario file names
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the JSON payload of the test command.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario.yaml|dir>...",
		Short: "Run store scenarios",
		Long: `Run YAML store scenarios against in-memory durable and history adapters.

Each scenario runs with fresh backends and deterministic clocks. Step
expectations and assertions decide pass or fail. With --golden the
trace of every scenario is also compared with <dir>/<name>.golden.

Exit codes:
  0 - all scenarios passed
  1 - one or more scenarios failed
  2 - bad arguments

Examples:
  storekit test ./scenarios
  storekit test ./scenarios --filter "durable_*"
  storekit test ./scenarios --golden ./scenarios/golden --update`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files (requires --golden)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenario files whose name matches this glob")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	p := newPrinter(opts.RootOptions, cmd)

	if opts.Update && opts.Golden == "" {
		return report(p, "invalid flags", &ConfigError{Code: ErrCodeInput, Message: "--update requires --golden"})
	}
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return report(p, "invalid filter", &ConfigError{Code: ErrCodeInput, Message: opts.Filter, Err: err})
	}

	files, err := scenarioFiles(paths, opts.Filter)
	if err != nil {
		return report(p, "find scenarios", &ConfigError{Code: ErrCodeInput, Message: "reading scenario paths", Err: err})
	}

	// Per-scenario lines would corrupt the JSON envelope.
	var w io.Writer = io.Discard
	if opts.Format != "json" {
		w = p.Out
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := runScenarioFile(cmd, opts, file)
		opts.Logger.Debug("scenario finished", "file", file, "pass", sr.Pass)
		if sr.Pass {
			result.Passed++
			fmt.Fprintf(w, "✓ %s\n", sr.Name)
		} else {
			result.Failed++
			fmt.Fprintf(w, "✗ %s\n", sr.Name)
			for _, e := range sr.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if result.Failed > 0 {
		msg := fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total)
		_ = p.Fail(ErrCodeTestFailed, msg, result)
		return newExitError(ExitRejected, msg, nil)
	}
	return p.Result(fmt.Sprintf("%d passed, %d total", result.Passed, result.Total), result)
}

func runScenarioFile(cmd *cobra.Command, opts *TestOptions, file string) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}
	fail := func(format string, args ...any) ScenarioResult {
		sr.Errors = append(sr.Errors, fmt.Sprintf(format, args...))
		return sr
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail("load: %v", err)
	}
	sr.Name = scenario.Name

	result, err := harness.Run(cmd.Context(), scenario)
	if err != nil {
		return fail("run: %v", err)
	}
	sr.Errors = append(sr.Errors, result.Errors...)

	if opts.Golden != "" {
		if err := checkGolden(opts, scenario.Name, result); err != nil {
			return fail("golden: %v", err)
		}
	}
	sr.Pass = len(sr.Errors) == 0
	return sr
}

// checkGolden compares the run with its golden file, or rewrites the file
// with --update.
func checkGolden(opts *TestOptions, name string, result *harness.Result) error {
	data, err := harness.Snapshot(name, result)
	if err != nil {
		return err
	}
	path := filepath.Join(opts.Golden, name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.Golden, 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}

	want, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !bytes.Equal(bytes.TrimSpace(want), data) {
		return fmt.Errorf("trace differs from %s (run with --update to rewrite)", path)
	}
	return nil
}

// scenarioFiles expands paths into scenario files. Directories are walked
// for .yaml and .yml files; explicit files are always included.
func scenarioFiles(paths []string, filter string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			ext := filepath.Ext(path)
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}
			if filter != "" {
				name := strings.TrimSuffix(d.Name(), ext)
				if ok, _ := filepath.Match(filter, name); !ok {
					return nil
				}
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
