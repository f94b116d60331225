package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zipleads/internal/model"
	"github.com/sells-group/zipleads/internal/pipeline"
)

var (
	runToken string
	runZips  []string
	runOut   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an export directly from the command line",
	Long: `Runs the full export pipeline for the given zips, printing progress to
stdout and writing one CSV per zip into the output directory.

Example:
  zipleads run --token $TOKEN --zip 90210 --zip 30301 --out ./exports`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		req, err := pipeline.ValidateRequest(model.ExportRequest{
			Token: runToken,
			Zips:  runZips,
		})
		if err != nil {
			return err
		}

		if err := os.MkdirAll(runOut, 0o755); err != nil {
			return eris.Wrap(err, "run: create output dir")
		}

		pipe, closeFn, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		sink := &consoleSink{outDir: runOut}
		if err := pipe.Run(ctx, req, sink); err != nil {
			fmt.Printf("ERROR: %s\n", err)
			return err
		}
		fmt.Println("Done.")
		return nil
	},
}

// consoleSink prints progress to stdout and saves csv events to disk instead
// of streaming them.
type consoleSink struct {
	outDir string
}

func (s *consoleSink) Linef(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

func (s *consoleSink) Phase(message string) {
	fmt.Printf("== %s ==\n", message)
}

func (s *consoleSink) CSV(zip, filename string, data []byte) {
	path := filepath.Join(s.outDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Printf("failed to write %s: %v\n", path, err)
		return
	}
	fmt.Printf("wrote %s\n", path)
}

func init() {
	runCmd.Flags().StringVar(&runToken, "token", "", "lead-management API token (required)")
	runCmd.Flags().StringArrayVar(&runZips, "zip", nil, "5-digit zip code to export (repeatable, required)")
	runCmd.Flags().StringVar(&runOut, "out", ".", "output directory for CSV files")
	runCmd.MarkFlagRequired("token")
	runCmd.MarkFlagRequired("zip")
	rootCmd.AddCommand(runCmd)
}
