package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"str-pipeline/arcgis"
	"str-pipeline/config"
	"str-pipeline/models"
	"str-pipeline/scraper/summit"
	"str-pipeline/services"
	"str-pipeline/storage"
	"str-pipeline/utils"
)

var debug bool

func main() {
	root := &cobra.Command{
		Use:           "str-pipeline",
		Short:         "Summit County short-term-rental registry pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(refreshCmd(), ingestCmd(), rosterCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newGISClient(cfg *config.Config, logger *zap.SugaredLogger) *arcgis.Client {
	opts := []arcgis.Option{
		arcgis.WithReferer(cfg.PortalReferer),
		arcgis.WithThrottle(time.Duration(cfg.ThrottleMs) * time.Millisecond),
	}
	if cfg.ArcGISAPIKey != "" {
		opts = append(opts, arcgis.WithToken(cfg.ArcGISAPIKey))
	}
	return arcgis.NewClient(logger, opts...)
}

func newReconciler(cfg *config.Config, client *arcgis.Client, logger *zap.SugaredLogger) *services.Reconciler {
	// LoadRosterSources always returns a usable source list; an error only
	// describes overrides it had to skip.
	sources, err := config.LoadRosterSources(cfg.RosterSourcesPath)
	if err != nil {
		logger.Warnf("[main] Roster source overrides partially applied: %v", err)
	}
	return services.NewReconciler(client, sources, cfg.RosterPageSize, logger)
}

// refreshCmd runs the full derivation pass over listings already in the
// datastore: renewal estimation, owner reclassification, municipal license
// reconciliation, and all rollups.
func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Recompute renewal estimates, municipal matches and rollups",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := utils.NewLogger(debug)
			defer logger.Sync()

			ctx, cancel := signalContext()
			defer cancel()

			store, err := storage.NewPostgres(cfg.DSN(), logger)
			if err != nil {
				return err
			}
			defer store.Close()

			client := newGISClient(cfg, logger)
			summary, err := services.Run(ctx, store, newReconciler(cfg, client, logger), services.Options{
				Logger:   logger,
				PageSize: cfg.PageSize,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Refresh complete\n")
			fmt.Printf("  listings processed:    %d\n", summary.ListingsProcessed)
			fmt.Printf("  roster records:        %d\n", summary.RosterRecords)
			fmt.Printf("  owners reclassified:   %d\n", summary.Reclassified)
			fmt.Printf("  municipal assignments: %d\n", summary.MunicipalAssignments)
			fmt.Printf("  rollup rows:           subdivisions=%d zones=%d municipalities=%d owners=%d timeline=%d summary=%d methods=%d\n",
				summary.SubdivisionRows, summary.ZoneRows, summary.MunicipalityRows,
				summary.OwnerRows, summary.TimelineRows, summary.SummaryRows, summary.MethodRows)
			return nil
		},
	}
}

// ingestCmd pulls the county registration layer and loads the listings
// table, optionally exporting a CSV snapshot.
func ingestCmd() *cobra.Command {
	var writeCSV bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Pull the county registration layer into the listings table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := utils.NewLogger(debug)
			defer logger.Sync()

			ctx, cancel := signalContext()
			defer cancel()

			store, err := storage.NewPostgres(cfg.DSN(), logger)
			if err != nil {
				return err
			}
			defer store.Close()

			client := newGISClient(cfg, logger)
			scraper := summit.New(client, cfg.CountyLayerURL, cfg.RosterPageSize, logger)
			listings, err := scraper.Scrape(ctx)
			if err != nil {
				return err
			}

			if err := store.UpsertListings(ctx, listings); err != nil {
				return err
			}

			if writeCSV {
				csv, err := storage.NewCSVWriter(cfg.CSVOutputPath)
				if err != nil {
					return err
				}
				defer csv.Close()
				if err := csv.WriteListings(listings); err != nil {
					return err
				}
				logger.Infof("[main] Wrote CSV snapshot to %s", cfg.CSVOutputPath)
			}

			fmt.Printf("Ingested %d listings\n", len(listings))
			return nil
		},
	}
	cmd.Flags().BoolVar(&writeCSV, "csv", false, "also export a CSV snapshot")
	return cmd
}

// rosterCmd fetches the municipal license rosters and dumps them as JSON to
// stdout, without touching the datastore.
func rosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster",
		Short: "Fetch municipal license rosters and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := utils.NewLogger(debug)
			defer logger.Sync()

			ctx, cancel := signalContext()
			defer cancel()

			client := newGISClient(cfg, logger)
			records, err := newReconciler(cfg, client, logger).FetchRosters(ctx)
			if err != nil {
				return err
			}

			dump := struct {
				GeneratedAt time.Time                        `json:"generated_at"`
				RecordCount int                              `json:"record_count"`
				Records     []*models.MunicipalLicenseRecord `json:"records"`
			}{
				GeneratedAt: time.Now().UTC(),
				RecordCount: len(records),
				Records:     records,
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(dump)
		},
	}
}
