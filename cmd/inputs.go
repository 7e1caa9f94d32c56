package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/edusight-cli/internal/dataset"
	"github.com/KaramelBytes/edusight-cli/internal/filter"
	"github.com/KaramelBytes/edusight-cli/internal/prompt"
)

const maxParallelLoads = 4

// loadFlags are shared by every command that reads datasets.
type loadFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	sheetName  string
	sheetIndex int
	maxRows    int
}

func (f *loadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to load")
	cmd.Flags().IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "maximum rows to read per file (0 = unlimited)")
}

func (f *loadFlags) options() (dataset.LoadOptions, error) {
	opt := dataset.LoadOptions{SheetName: f.sheetName, SheetIndex: f.sheetIndex, MaxRows: f.maxRows}
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.Parse.DecimalSeparator = ','
	case ".", "dot":
		opt.Parse.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.Parse.ThousandsSeparator = ','
	case ".":
		opt.Parse.ThousandsSeparator = '.'
	case "space", " ":
		opt.Parse.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	return opt, nil
}

// expandInputs resolves globs, keeping argument order and dropping repeats.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	return files, nil
}

// loadDatasets reads every input concurrently. A file that fails to load is
// reported and skipped; it is an error only when nothing loads. Results keep
// argument order.
func loadDatasets(cmd *cobra.Command, args []string, f *loadFlags) ([]*dataset.Loaded, error) {
	files, err := expandInputs(args)
	if err != nil {
		return nil, err
	}
	opt, err := f.options()
	if err != nil {
		return nil, err
	}
	loaded := make([]*dataset.Loaded, len(files))
	failed := make([]error, len(files))
	var g errgroup.Group
	g.SetLimit(maxParallelLoads)
	for i, path := range files {
		g.Go(func() error {
			loaded[i], failed[i] = dataset.Load(path, opt)
			return nil
		})
	}
	_ = g.Wait()

	var out []*dataset.Loaded
	names := map[string]struct{}{}
	for i, path := range files {
		if err := failed[i]; err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Skipping %s: %v\n", path, err)
			logger.Warn("dataset load failed", zap.String("path", path), zap.Error(err))
			continue
		}
		ds := loaded[i]
		if _, dup := names[ds.Name]; dup {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Skipping %s: a dataset named %s is already loaded\n", path, ds.Name)
			continue
		}
		names[ds.Name] = struct{}{}
		logger.Debug("dataset loaded", zap.String("name", ds.Name), zap.Int("rows", ds.Table.Len()))
		out = append(out, ds)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no dataset could be loaded")
	}
	return out, nil
}

func newExtractor() *filter.Extractor {
	if cfg == nil {
		return filter.NewExtractor()
	}
	return filter.NewExtractor(filter.WithCodeDigits(cfg.CodeMinDigits, cfg.CodeMaxDigits))
}

func contextOptions(sampleRows int) prompt.ContextOptions {
	if sampleRows > 0 {
		return prompt.ContextOptions{PreviewRows: sampleRows}
	}
	if cfg != nil && cfg.PreviewRows > 0 {
		return prompt.ContextOptions{PreviewRows: cfg.PreviewRows}
	}
	return prompt.ContextOptions{}
}

// resolvePersona picks the flag value, then config, then management.
// Unknown keys fall back to management with a warning on errOut.
func resolvePersona(errOut io.Writer, flag string) prompt.Persona {
	v := flag
	if v == "" && cfg != nil {
		v = cfg.DefaultPersona
	}
	if v == "" {
		return prompt.Management
	}
	p, ok := prompt.ParsePersona(v)
	if !ok {
		fmt.Fprintf(errOut, "⚠ unknown persona %q, using %s (valid: management|teachers|trainers)\n", v, p.Key())
	}
	return p
}
