// uatreedump is a CLI tool for extracting decoded property trees from
// UAsset-shaped container files.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mtojek/uatree/pkg/uatree/catalog"
	"github.com/mtojek/uatree/pkg/uatree/driver"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		pretty      bool
		batchGlob   string
		useCatalog  bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "uatreedump <export-file> [name-table-file]",
		Short: "Dump decoded UAsset property trees as JSON",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchGlob != "" {
				return runBatch(cmd, batchGlob, pretty, useCatalog, concurrency)
			}
			if len(args) < 1 {
				return cmd.Usage()
			}
			namesPath := ""
			if len(args) > 1 {
				namesPath = args[1]
			}
			return runSingle(cmd, args[0], namesPath, pretty, useCatalog)
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	cmd.Flags().StringVar(&batchGlob, "batch", "", "glob of container files to decode concurrently")
	cmd.Flags().BoolVar(&useCatalog, "catalog", false, "route decoded exports through the default categorizer")
	cmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "batch worker cap")

	return cmd
}

func runSingle(cmd *cobra.Command, path, namesPath string, pretty, useCatalog bool) error {
	results, err := driver.DecodeFile(path, namesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding %s: %v\n", path, err)
		return err
	}

	for _, r := range results {
		for _, diag := range r.Diagnostics {
			fmt.Fprintf(os.Stderr, "%s: %s: %s\n", path, r.Export, diag.String())
		}
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s: %v\n", path, r.Export, r.Err)
		}
	}

	out := buildOutput(path, results, useCatalog)
	return writeJSON(cmd, out, pretty)
}

func runBatch(cmd *cobra.Command, glob string, pretty, useCatalog bool, concurrency int) error {
	paths, err := filepath.Glob(glob)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error expanding glob %s: %v\n", glob, err)
		return err
	}

	fileResults := driver.DecodeBatch(paths, concurrency)

	out := make(map[string]interface{}, len(fileResults))
	for _, fr := range fileResults {
		if fr.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", fr.File, fr.Err)
			out[fr.File] = map[string]interface{}{"error": fr.Err.Error()}
			continue
		}
		for _, r := range fr.Results {
			for _, diag := range r.Diagnostics {
				fmt.Fprintf(os.Stderr, "%s: %s: %s\n", fr.File, r.Export, diag.String())
			}
			if r.Err != nil {
				fmt.Fprintf(os.Stderr, "%s: %s: %v\n", fr.File, r.Export, r.Err)
			}
		}
		out[fr.File] = buildOutput(fr.File, fr.Results, useCatalog)
	}

	return writeJSON(cmd, out, pretty)
}

func buildOutput(path string, results []driver.Result, useCatalog bool) map[string]interface{} {
	exports := make(map[string]interface{}, len(results))
	for _, r := range results {
		if r.Err != nil {
			exports[r.Export] = map[string]interface{}{"error": r.Err.Error()}
			continue
		}
		exports[r.Export] = r.Value
	}

	out := map[string]interface{}{"exports": exports}
	if useCatalog {
		matches := make(map[string][]string, len(results))
		cfg := catalog.DefaultConfig()
		for _, r := range results {
			matches[r.Export] = catalog.Classify(cfg, r.Export, nil)
		}
		out["catalog"] = catalog.BuildTree(matches)
	}
	_ = path
	return out
}

func writeJSON(cmd *cobra.Command, v interface{}, pretty bool) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetEscapeHTML(false)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		return err
	}
	return nil
}
