// Package driver wires the container parser and the property
// deserializer into single-file and multi-file decode operations. It is
// the one place in this repository concurrency is introduced, and only
// ever across independent files or independent exports of the same
// file — never across goroutines sharing one Deserializer.
package driver

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/mtojek/uatree/pkg/uatree/container"
	"github.com/mtojek/uatree/pkg/uatree/cursor"
	"github.com/mtojek/uatree/pkg/uatree/nametable"
	"github.com/mtojek/uatree/pkg/uatree/primitive"
	"github.com/mtojek/uatree/pkg/uatree/properties"
	"github.com/mtojek/uatree/pkg/uatree/value"
)

// Result is the outcome of decoding one export. Err is non-nil when that
// export's decode hit a fatal condition; Diagnostics still records any
// warnings collected before the failure.
type Result struct {
	File        string
	Export      string
	Value       value.Value
	Diagnostics []properties.Diagnostic
	Err         error
}

// FileResult is the outcome of decoding one file in a batch.
type FileResult struct {
	File    string
	Results []Result
	Err     error
}

// DecodeFile opens one container file (and, if namesPath is non-empty, a
// separate name-table file) and decodes every export in isolation: a
// per-export fatal error is captured into that export's Result and does
// not prevent the remaining exports from being decoded.
func DecodeFile(path, namesPath string) ([]Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "driver: read %s", path)
	}

	asset, err := container.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "driver: parse %s", path)
	}

	names := asset.Names
	if namesPath != "" {
		names, err = readExternalNameTable(namesPath)
		if err != nil {
			return nil, errors.Wrapf(err, "driver: read name table %s", namesPath)
		}
	}

	results := make([]Result, len(asset.Exports))
	var g errgroup.Group
	g.SetLimit(maxInt(1, len(asset.Exports)))
	for i, exp := range asset.Exports {
		i, exp := i, exp
		g.Go(func() error {
			results[i] = decodeExport(path, exp, names)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func decodeExport(file string, exp container.Export, names *nametable.Table) Result {
	c := cursor.New(exp.Data)
	prim := primitive.New(c)
	resolver := nametable.NewResolver(names, prim)
	d := properties.New(prim, resolver)

	v, err := d.ReadExport()
	if err != nil {
		return Result{
			File:        file,
			Export:      exp.Name,
			Diagnostics: d.Diagnostics,
			Err:         errors.Wrapf(err, "export %q at offset %d, cursor offset %d", exp.Name, exp.SerialOffset, c.Tell()),
		}
	}
	return Result{File: file, Export: exp.Name, Value: v, Diagnostics: d.Diagnostics}
}

// readExternalNameTable reads a standalone name-table file: UTF-8, one
// record per line, formatted "HEXINDEX: NAME". Indices must be
// contiguous from zero; a gap or an out-of-order index is fatal.
func readExternalNameTable(path string) (*nametable.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var index uint64
		var name string
		if _, err := fmt.Sscanf(line, "%x: %s", &index, &name); err != nil {
			return nil, errors.Wrapf(err, "name table line %d: %q", lineNo, line)
		}
		if int(index) != len(names) {
			return nil, errors.Errorf("name table line %d: index %d is not contiguous from zero (expected %d)", lineNo, index, len(names))
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read name table")
	}
	return nametable.New(names), nil
}

// DecodeBatch decodes every file in paths concurrently, bounded by
// concurrency independent goroutines. Each file is decoded by its own
// container.Parse and its own set of Deserializers; no state is shared
// between files. A given file's own decode error never aborts the batch.
func DecodeBatch(paths []string, concurrency int) []FileResult {
	results := make([]FileResult, len(paths))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(maxInt(1, concurrency))
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			res, err := DecodeFile(p, "")
			results[i] = FileResult{File: p, Results: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
