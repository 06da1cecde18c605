package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"

	ecoflux "github.com/gremau/ecoflux-tools"
	"github.com/gremau/ecoflux-tools/internal/config"
	"github.com/gremau/ecoflux-tools/internal/version"
)

func customUsage() {
	fmt.Fprintf(os.Stderr, "Ecoflux Tools CLI %s\n\n", version.Info().Short())
	fmt.Fprintf(os.Stderr, "Usage: ecoflux-cli [options]\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	fmt.Fprintf(os.Stderr, "  --prepare\n\t\tGap fill and resample the input table\n")
	fmt.Fprintf(os.Stderr, "  --locations\n\t\tList sensor locations found in the input table's column names\n")
	fmt.Fprintf(os.Stderr, "  --config FILE\n\t\tConfiguration file (.json, .yaml)\n")
	fmt.Fprintf(os.Stderr, "  --input FILE\n\t\tInput table (.csv or .parquet), overrides the config\n")
	fmt.Fprintf(os.Stderr, "  --output FILE\n\t\tOutput table (.csv or .parquet), overrides the config\n")
	fmt.Fprintf(os.Stderr, "  --freq F\n\t\tResampling frequency (\"30m\", \"1D\", \"1W\", \"1M\"), overrides the config\n")
	fmt.Fprintf(os.Stderr, "  --measurements M1,M2\n\t\tMeasurement types for --locations, overrides the config\n")
	fmt.Fprintf(os.Stderr, "  --verbose\n\t\tEnable debug logging\n")
	fmt.Fprintf(os.Stderr, "  -v, --version\n\t\tPrint version information and exit\n")
	fmt.Fprintf(os.Stderr, "  -h, --help\n\t\tShow this help message and exit\n")
}

func main() {
	versionFlag := flag.Bool("v", false, "Print version and exit")
	flag.BoolVar(versionFlag, "version", false, "Print version and exit") // alias
	prepareFlag := flag.Bool("prepare", false, "Gap fill and resample the input table")
	locationsFlag := flag.Bool("locations", false, "List sensor locations in the input table")
	configFlag := flag.String("config", "", "Configuration file")
	inputFlag := flag.String("input", "", "Input table path")
	outputFlag := flag.String("output", "", "Output table path")
	freqFlag := flag.String("freq", "", "Resampling frequency")
	measFlag := flag.String("measurements", "", "Comma-separated measurement types")
	verboseFlag := flag.Bool("verbose", false, "Enable debug logging")

	//nolint:reassign // Standard Go pattern for customizing flag usage message
	flag.Usage = customUsage

	flag.Parse()

	if *versionFlag {
		fmt.Print(version.Info().String())
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ecoflux-cli: %v\n", err)
		os.Exit(1)
	}

	applyFlagOverrides(&cfg, *inputFlag, *outputFlag, *freqFlag, *measFlag, *verboseFlag)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "ecoflux-cli: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Verbose)

	switch {
	case *prepareFlag:
		err = runPrepare(cfg)
	case *locationsFlag:
		err = runLocations(cfg)
	default:
		// If no mode is selected, print usage and exit.
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func applyFlagOverrides(cfg *config.Config, input, output, freq, measurements string, verbose bool) {
	if input != "" {
		cfg.InputFile = input
	}
	if output != "" {
		cfg.OutputFile = output
	}
	if freq != "" {
		cfg.Frequency = freq
	}
	if measurements != "" {
		fields := strings.Split(measurements, ",")
		cfg.Measurements = cfg.Measurements[:0]
		for _, field := range fields {
			if trimmed := strings.TrimSpace(field); trimmed != "" {
				cfg.Measurements = append(cfg.Measurements, trimmed)
			}
		}
	}
	if verbose {
		cfg.Verbose = true
	}
}

func tableIOOptions(cfg config.Config) []ecoflux.IOOption {
	return []ecoflux.IOOption{
		ecoflux.WithTimeColumn(cfg.TimeColumn),
		ecoflux.WithMissingValue(cfg.MissingValue),
	}
}

func readTable(cfg config.Config, mem memory.Allocator) (*ecoflux.Table, error) {
	switch strings.ToLower(filepath.Ext(cfg.InputFile)) {
	case ".parquet":
		return ecoflux.ReadParquetFile(cfg.InputFile, mem, tableIOOptions(cfg)...)
	default:
		return ecoflux.ReadCSVFile(cfg.InputFile, mem, tableIOOptions(cfg)...)
	}
}

func writeTable(cfg config.Config, table *ecoflux.Table) error {
	switch strings.ToLower(filepath.Ext(cfg.OutputFile)) {
	case ".parquet":
		return ecoflux.WriteParquetFile(cfg.OutputFile, table, tableIOOptions(cfg)...)
	default:
		return ecoflux.WriteCSVFile(cfg.OutputFile, table, tableIOOptions(cfg)...)
	}
}

// runPrepare reads the input table, applies the configured gap fills in order,
// resamples to the configured frequency and writes the result.
func runPrepare(cfg config.Config) error {
	if cfg.InputFile == "" {
		return fmt.Errorf("no input file configured (use --input or the config file)")
	}
	if cfg.OutputFile == "" {
		return fmt.Errorf("no output file configured (use --output or the config file)")
	}

	mem := memory.NewGoAllocator()
	return ecoflux.WithMemoryManager(mem, func(manager *ecoflux.MemoryManager) error {
		table, err := readTable(cfg, mem)
		if err != nil {
			return err
		}
		manager.Track(table)
		slog.Info("read input table",
			"path", cfg.InputFile, "rows", table.Len(), "columns", table.Width())

		for _, pair := range cfg.GapFills {
			result, err := ecoflux.FillGaps(table, pair.Target, pair.Source)
			if err != nil {
				return fmt.Errorf("filling %s from %s: %w", pair.Target, pair.Source, err)
			}
			manager.Track(result.Table)
			slog.Info("filled gaps",
				"target", pair.Target, "source", pair.Source,
				"gaps", result.Gaps, "filled", result.Filled)

			joined, err := table.ConcatColumns(result.Table)
			if err != nil {
				return fmt.Errorf("appending filled columns for %s: %w", pair.Target, err)
			}
			manager.Track(joined)
			table = joined
		}

		rules := ecoflux.Rules{
			Sum: cfg.Rules.Sum,
			Avg: cfg.Rules.Avg,
			Min: cfg.Rules.Min,
			Max: cfg.Rules.Max,
			Int: cfg.Rules.Int,
		}
		result, err := ecoflux.Resample(table, cfg.Frequency, rules)
		if err != nil {
			return fmt.Errorf("resampling to %s: %w", cfg.Frequency, err)
		}
		manager.Track(result.Table)
		if result.Partial {
			slog.Warn("non-sum aggregations failed, output holds sums only", "cause", result.Cause)
		}

		if err := writeTable(cfg, result.Table); err != nil {
			return err
		}
		slog.Info("wrote output table",
			"path", cfg.OutputFile, "rows", result.Table.Len(), "columns", result.Table.Width())
		return nil
	})
}

// runLocations scans the input table's column names and prints the sensor
// locations found for each configured measurement type.
func runLocations(cfg config.Config) error {
	if cfg.InputFile == "" {
		return fmt.Errorf("no input file configured (use --input or the config file)")
	}
	if len(cfg.Measurements) == 0 {
		return fmt.Errorf("no measurement types configured (use --measurements or the config file)")
	}

	mem := memory.NewGoAllocator()
	table, err := readTable(cfg, mem)
	if err != nil {
		return err
	}
	defer table.Release()

	var opts []ecoflux.LocationsOption
	if cfg.Exclude != "" {
		opts = append(opts, ecoflux.WithExcluded(cfg.Exclude))
	}

	locations, err := ecoflux.Locations(table, cfg.Measurements, opts...)
	if err != nil {
		return err
	}

	// encoding/json writes map keys in sorted order, so the listing is stable.
	encoded, err := json.MarshalIndent(locations, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
