package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/replay"
)

var (
	resolveGenre    string
	resolveRequired []int
	resolveMaxUnits int

	batchConcurrency int
	batchFixture     bool
	batchResults     bool
)

// #region resolve
var resolveCmd = &cobra.Command{
	Use:   "resolve [vibe text]",
	Short: "Resolve one request and print the chain as JSON",
	Long: `Resolves a single semantic request through the cascade and prints the
flat slot output, the stage that answered, its confidence and the safety report.

Example:
  oracle resolve warm vintage tape --genre jazz --require 1,15`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	req := preset.Request{
		VibeText:      strings.Join(args, " "),
		Genre:         resolveGenre,
		RequiredUnits: resolveRequired,
		MaxUnits:      resolveMaxUnits,
	}
	res, err := a.resolver.Resolve(cmd.Context(), req)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

// #endregion resolve

// #region batch
var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Resolve a JSON-lines request file and summarize",
	Long: `Resolves every request in file (one JSON request per line, "-" for stdin)
with bounded concurrency and prints a summary by source and safety.

With --fixture, file is a replay fixture whose expectations are checked; any
mismatch makes the command fail.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	var (
		cases   []replay.Case
		fixture *replay.Fixture
		err     error
	)
	if batchFixture {
		fixture, err = replay.LoadFixture(args[0])
		if err != nil {
			return err
		}
		cases = fixture.Requests()
	} else {
		cases, err = readCases(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
	}

	a, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	rc := replay.DefaultConfig()
	if batchConcurrency > 0 {
		rc.Concurrency = batchConcurrency
	}
	if fixture != nil {
		// Fixture expectations depend on case order.
		rc.Concurrency = 1
	}
	results, err := replay.Run(cmd.Context(), a.resolver, cases, rc)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	out := cmd.OutOrStdout()
	if batchResults {
		enc := json.NewEncoder(out)
		for _, r := range results {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
	}
	if err := writeJSON(out, replay.Summarize(results)); err != nil {
		return err
	}
	if fixture == nil {
		return nil
	}
	mismatches := fixture.Check(results)
	for _, m := range mismatches {
		fmt.Fprintln(cmd.ErrOrStderr(), m)
	}
	if len(mismatches) > 0 {
		return fmt.Errorf("%d fixture expectations failed", len(mismatches))
	}
	return nil
}

func readCases(stdin io.Reader, path string) ([]replay.Case, error) {
	if path == "-" {
		return replay.ReadRequests(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open requests: %w", err)
	}
	defer f.Close()
	return replay.ReadRequests(f)
}

// #endregion batch

func init() {
	resolveCmd.Flags().StringVarP(&resolveGenre, "genre", "g", "", "genre hint")
	resolveCmd.Flags().IntSliceVarP(&resolveRequired, "require", "r", nil, "unit IDs that must appear")
	resolveCmd.Flags().IntVarP(&resolveMaxUnits, "max-units", "n", 0, "maximum active units (0 = slot count)")

	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "j", 0, "resolutions in flight")
	batchCmd.Flags().BoolVar(&batchFixture, "fixture", false, "treat file as a replay fixture and check expectations")
	batchCmd.Flags().BoolVar(&batchResults, "results", false, "print each result as a JSON line")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
