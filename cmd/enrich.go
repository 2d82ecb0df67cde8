package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temporal-communities/geolit/internal/areacode"
	"github.com/temporal-communities/geolit/internal/dataset"
	"github.com/temporal-communities/geolit/internal/enrich"
	"github.com/temporal-communities/geolit/internal/fetcher"
	"github.com/temporal-communities/geolit/internal/model"
	"github.com/temporal-communities/geolit/pkg/geonames"
	"github.com/temporal-communities/geolit/pkg/gnd"
	"github.com/temporal-communities/geolit/pkg/wikidata"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [input]",
	Short: "Enrich a dataset with resolved locations",
	Long:  "Loads a TSV/CSV/XLSX dataset, resolves a location for every record via the authority file, the knowledge base and the gazetteer, and writes the enriched table.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		input := cfg.Dataset.Input
		if len(args) > 0 {
			input = args[0]
		}
		if input == "" {
			return eris.New("no input dataset: pass a path or set dataset.input")
		}
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = cfg.Dataset.Output
		}
		debug, _ := cmd.Flags().GetBool("debug-columns")
		debug = debug || cfg.Dataset.DebugColumns

		records, err := dataset.Load(input)
		if err != nil {
			return err
		}

		orchestrator, closers, err := buildOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer closers()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.CreateRun(ctx, input)
		if err != nil {
			return err
		}
		zap.L().Info("run started",
			zap.String("run_id", run.ID),
			zap.String("dataset", input),
			zap.Int("records", len(records)),
		)

		started := time.Now()
		summary, runErr := orchestrator.EnrichAll(ctx, records)
		if runErr != nil {
			// persist what we have before reporting the failure
			if err := st.FailRun(ctx, run.ID, runErr.Error()); err != nil {
				zap.L().Warn("recording failed run", zap.Error(err))
			}
		}

		if err := st.SaveResults(ctx, run.ID, resultsFromRecords(records)); err != nil {
			return err
		}
		if runErr == nil {
			if err := st.CompleteRun(ctx, run.ID, runSummary(summary)); err != nil {
				return err
			}
		}

		if err := dataset.Save(output, records, debug); err != nil {
			return err
		}
		zap.L().Info("run finished",
			zap.String("run_id", run.ID),
			zap.String("output", output),
			zap.Duration("elapsed", time.Since(started)),
		)
		return runErr
	},
}

func init() {
	enrichCmd.Flags().String("output", "", "output TSV path (default from config)")
	enrichCmd.Flags().Bool("debug-columns", false, "keep working columns in the output")
	rootCmd.AddCommand(enrichCmd)
}

// buildOrchestrator wires the external clients per the configured rate
// limits. The returned func closes all transports.
func buildOrchestrator(ctx context.Context) (*enrich.Orchestrator, func(), error) {
	gndFetcher, err := fetcher.New(cfg.GND.RateLimit,
		fetcher.WithTimeout(time.Duration(cfg.GND.TimeoutSecs)*time.Second))
	if err != nil {
		return nil, nil, eris.Wrap(err, "gnd transport")
	}
	wdFetcher, err := fetcher.New(cfg.Wikidata.RateLimit,
		fetcher.WithTimeout(time.Duration(cfg.Wikidata.TimeoutSecs)*time.Second))
	if err != nil {
		gndFetcher.Close()
		return nil, nil, eris.Wrap(err, "wikidata transport")
	}
	gnFetcher, err := fetcher.New(cfg.GeoNames.RateLimit,
		fetcher.WithTimeout(time.Duration(cfg.GeoNames.TimeoutSecs)*time.Second))
	if err != nil {
		gndFetcher.Close()
		wdFetcher.Close()
		return nil, nil, eris.Wrap(err, "geonames transport")
	}
	closers := func() {
		gndFetcher.Close()
		wdFetcher.Close()
		gnFetcher.Close()
	}

	mapper, err := loadMapper(ctx)
	if err != nil {
		closers()
		return nil, nil, err
	}

	orchestrator := enrich.New(
		gnd.NewClient(gndFetcher,
			gnd.WithBaseURL(cfg.GND.BaseURL),
			gnd.WithPageSize(cfg.GND.PageSize)),
		wikidata.NewClient(wdFetcher,
			wikidata.WithBaseURL(cfg.Wikidata.BaseURL)),
		geonames.NewClient(gnFetcher, cfg.GeoNames.Username,
			geonames.WithBaseURL(cfg.GeoNames.BaseURL)),
		mapper,
		enrich.WithUnknownRegionCode(areacode.UnknownRegion),
	)
	return orchestrator, closers, nil
}

// loadMapper builds the area-code tables from a local vocabulary file
// when configured, else downloads the vocabulary.
func loadMapper(ctx context.Context) (*areacode.Mapper, error) {
	if cfg.Vocab.File != "" {
		raw, err := os.ReadFile(cfg.Vocab.File)
		if err != nil {
			return nil, eris.Wrapf(err, "read vocabulary %s", cfg.Vocab.File)
		}
		return areacode.NewMapper(raw)
	}

	transport, err := fetcher.New("1/second")
	if err != nil {
		return nil, eris.Wrap(err, "vocabulary transport")
	}
	defer transport.Close()

	resp, err := transport.Fetch(ctx, cfg.Vocab.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "download vocabulary %s", cfg.Vocab.URL)
	}
	return areacode.NewMapper(resp.Body)
}

func runSummary(s enrich.Summary) *model.RunSummary {
	resolvedBy := make(map[string]int, len(s.ResolvedBy))
	for stage, n := range s.ResolvedBy {
		resolvedBy[string(stage)] = n
	}
	return &model.RunSummary{
		Records:    s.Records,
		Located:    s.Located,
		NoLocation: s.NoLocation,
		NoAreaCode: s.NoAreaCode,
		ResolvedBy: resolvedBy,
	}
}

func resultsFromRecords(records []*enrich.Record) []model.RunResult {
	results := make([]model.RunResult, 0, len(records))
	for _, rec := range records {
		results = append(results, model.RunResult{
			Author:     rec.Author,
			Title:      rec.Title,
			AreaCode:   rec.AreaCode,
			AreaLabel:  rec.AreaLabel,
			GeoNamesID: rec.MappedGeoNames,
			Latitude:   rec.Latitude,
			Longitude:  rec.Longitude,
			Note:       rec.Note,
			ResolvedBy: string(rec.ResolvedBy),
		})
	}
	return results
}
