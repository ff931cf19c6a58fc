package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/tmarchal/climatekit/internal/config"
	"github.com/tmarchal/climatekit/internal/era5"
	"github.com/tmarchal/climatekit/internal/gdd"
	"github.com/tmarchal/climatekit/internal/observability"
	"github.com/tmarchal/climatekit/internal/openmeteo"
	"github.com/tmarchal/climatekit/internal/parquet"
	"github.com/tmarchal/climatekit/internal/validation"
)

const usage = `Usage: climatectl <command> [flags]

Commands:
  gdd           cumulative growing degree days for a location and date
  era5          summarize a coordinate selection against a remote ERA5 store
  parquet-urls  list Parquet download URLs for daily climatological data

Run 'climatectl <command> --help' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger, err := observability.NewCLILogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Defaults()

	switch os.Args[1] {
	case "gdd":
		err = runGDD(os.Args[2:], cfg, logger)
	case "era5":
		err = runERA5(os.Args[2:], cfg, logger)
	case "parquet-urls":
		err = runParquetURLs(os.Args[2:], cfg)
	case "--help", "-h", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func runGDD(args []string, cfg *config.Config, logger *zap.Logger) error {
	fs := flag.NewFlagSet("gdd", flag.ContinueOnError)
	lat := fs.Float64("lat", 48.8, "latitude in decimal degrees")
	lon := fs.Float64("lon", 2.49, "longitude in decimal degrees")
	date := fs.String("date", "", "target date YYYY-MM-DD (accumulation runs from January 1 of that year)")
	base := fs.Float64("base", cfg.DefaultBaseTemp, "base temperature in degrees Celsius")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *date == "" {
		fs.Usage()
		return fmt.Errorf("missing required flag -date")
	}
	target, err := validation.ValidateTargetDate(*date, time.Now().UTC())
	if err != nil {
		return err
	}

	client, err := openmeteo.NewClientWithRetry(
		cfg.ArchiveAPIURL,
		cfg.ArchiveAPITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		return err
	}
	svc := gdd.NewService(client, nil, 0)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	logger.Info("fetching daily temperatures",
		zap.Float64("lat", *lat), zap.Float64("lon", *lon), zap.String("date", *date))
	result, err := svc.Cumulative(ctx, *lat, *lon, target, *base)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Printf("Cumulative GDD through %s: %.1f degree-days (base %.1f C, %d days)\n",
		result.EndDate.Format("2006-01-02"), result.Cumulative, result.BaseTemp, result.Days)
	return nil
}

func runERA5(args []string, cfg *config.Config, logger *zap.Logger) error {
	fs := flag.NewFlagSet("era5", flag.ContinueOnError)
	storeURL := fs.String("store", cfg.StoreURL, "Zarr store base URL")
	variable := fs.String("variable", cfg.StoreVariable, "variable name in the store")
	minLat := fs.Float64("min-lat", 43.0, "minimum latitude")
	maxLat := fs.Float64("max-lat", 51.0, "maximum latitude")
	minLon := fs.Float64("min-lon", -5.0, "minimum longitude")
	maxLon := fs.Float64("max-lon", 9.0, "maximum longitude")
	start := fs.String("start", "2020-01-01", "selection start date YYYY-MM-DD")
	end := fs.String("end", "2020-12-31", "selection end date YYYY-MM-DD")
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sel := era5.Selection{LatMin: *minLat, LatMax: *maxLat, LonMin: *minLon, LonMax: *maxLon}
	var err error
	if sel.Start, err = validation.ParseDate(*start); err != nil {
		return err
	}
	if sel.End, err = validation.ParseDate(*end); err != nil {
		return err
	}

	store, err := era5.NewStore(*storeURL, cfg.StoreTimeout)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	logger.Info("reading store metadata", zap.String("store", *storeURL), zap.String("variable", *variable))
	if err := store.Open(ctx); err != nil {
		return err
	}
	arr, err := store.Variable(ctx, *variable)
	if err != nil {
		return err
	}
	summary, err := arr.Select(sel, era5.DefaultGrid())
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Printf("Variable:       %s (%s)\n", summary.Variable, summary.DataType)
	fmt.Printf("Store shape:    %v dims %v\n", summary.Shape, summary.Dimensions)
	fmt.Printf("Chunk shape:    %v\n", summary.ChunkShape)
	fmt.Printf("Selected shape: %v\n", summary.SelectedShape)
	for _, dim := range summary.Dimensions {
		if rng, ok := summary.IndexRanges[dim]; ok {
			fmt.Printf("  %-10s indexes [%d, %d]\n", dim, rng[0], rng[1])
		}
	}
	fmt.Printf("Elements:       %d (~%.1f MiB uncompressed)\n",
		summary.Elements, float64(summary.EstimateBytes)/(1<<20))
	return nil
}

func runParquetURLs(args []string, cfg *config.Config) error {
	fs := flag.NewFlagSet("parquet-urls", flag.ContinueOnError)
	start := fs.Int("start", 1950, "first year of the range")
	end := fs.Int("end", 2020, "last year of the range")
	asJSON := fs.Bool("json", false, "print URLs as JSON")
	asPython := fs.Bool("python", false, "print URLs as Python list literals")
	save := fs.Bool("save", false, "save URLs to a text file instead of printing")
	outFile := fs.String("out", "urls_parquet.txt", "output file used with -save")
	tablePath := fs.String("table", "", "optional YAML period table overriding the built-in one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	table := parquet.DefaultTable()
	if *tablePath != "" {
		var err error
		if table, err = parquet.LoadTable(*tablePath); err != nil {
			return err
		}
	}
	gen := parquet.NewGenerator(cfg.ParquetBaseURL, table)
	cat, err := gen.Catalog(*start, *end)
	if err != nil {
		return err
	}

	switch {
	case *save:
		if err := parquet.SaveToFile(*outFile, cat); err != nil {
			return err
		}
		fmt.Printf("URLs saved to: %s\n", *outFile)
		return nil
	case *asJSON:
		return parquet.RenderJSON(os.Stdout, cat)
	case *asPython:
		return parquet.RenderPython(os.Stdout, cat)
	default:
		return parquet.RenderText(os.Stdout, cat)
	}
}
