package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"

	gcspubsub "cloud.google.com/go/pubsub"
	gcsstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/appmeta-scraper/internal/api"
	"github.com/JakeFAU/appmeta-scraper/internal/clock/system"
	"github.com/JakeFAU/appmeta-scraper/internal/config"
	"github.com/JakeFAU/appmeta-scraper/internal/dispatcher"
	"github.com/JakeFAU/appmeta-scraper/internal/extractor"
	"github.com/JakeFAU/appmeta-scraper/internal/fetcher/headless"
	sha256hash "github.com/JakeFAU/appmeta-scraper/internal/hash/sha256"
	idgen "github.com/JakeFAU/appmeta-scraper/internal/id/uuid"
	"github.com/JakeFAU/appmeta-scraper/internal/ledger"
	"github.com/JakeFAU/appmeta-scraper/internal/logging"
	"github.com/JakeFAU/appmeta-scraper/internal/metrics"
	"github.com/JakeFAU/appmeta-scraper/internal/progress"
	pubsubpub "github.com/JakeFAU/appmeta-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/appmeta-scraper/internal/scrape"
	"github.com/JakeFAU/appmeta-scraper/internal/sink"
	"github.com/JakeFAU/appmeta-scraper/internal/snapshot"
	"github.com/JakeFAU/appmeta-scraper/internal/worker"
	"github.com/JakeFAU/appmeta-scraper/internal/worklist"
)

// newScrapeCmd creates and configures the 'scrape' subcommand.
func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs one batch scrape over the worklist",
		Long: `Loads the worklist, partitions it across the configured number of
browser workers, retries failed links for up to the configured number of
rounds, and writes the record and failed-link spreadsheets.`,
		RunE: runScrapeCommand,
	}

	flags := cmd.Flags()
	flags.String("input", "", "path to input spreadsheet with links")
	flags.String("output", "", "path to output spreadsheet")
	flags.Int("start", 0, "1-based start row of links to process")
	flags.Int("end", 0, "1-based end row (inclusive); 0 processes all rows")
	flags.Int("workers", 0, "number of parallel browser workers")
	flags.Int("retry", -1, "number of retry rounds for failed links")
	flags.Bool("save-failed", false, "save failed links to a spreadsheet for future retry")
	flags.Bool("formatting-off", false, "disable output column formatting")
	flags.Bool("headless-off", false, "run the browser visibly instead of headless")

	return cmd
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	applyFlagOverrides(cmd, v)

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runScrape(ctx, cfg, logger)
}

// applyFlagOverrides maps the CLI flags onto viper keys before config load,
// so flags win over file and environment values.
func applyFlagOverrides(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		val, _ := flags.GetString("input")
		v.Set("input.path", val)
	}
	if flags.Changed("output") {
		val, _ := flags.GetString("output")
		v.Set("output.path", val)
	}
	if flags.Changed("start") {
		val, _ := flags.GetInt("start")
		v.Set("input.start_row", val)
	}
	if flags.Changed("end") {
		val, _ := flags.GetInt("end")
		v.Set("input.end_row", val)
	}
	if flags.Changed("workers") {
		val, _ := flags.GetInt("workers")
		v.Set("scrape.worker_count", val)
	}
	if flags.Changed("retry") {
		val, _ := flags.GetInt("retry")
		v.Set("scrape.max_retries", val)
	}
	if flags.Changed("save-failed") {
		val, _ := flags.GetBool("save-failed")
		v.Set("output.persist_failures", val)
	}
	if flags.Changed("formatting-off") {
		val, _ := flags.GetBool("formatting-off")
		v.Set("output.formatting", !val)
	}
	if flags.Changed("headless-off") {
		val, _ := flags.GetBool("headless-off")
		v.Set("headless.visible", val)
	}
}

func runScrape(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	runID, err := idgen.NewUUIDGenerator().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	clock := system.New()
	startedAt := clock.Now()

	source, err := worklist.NewXLSXSource(worklist.Config{
		Path:  cfg.Input.Path,
		Start: cfg.Input.StartRow,
		End:   cfg.Input.EndRow,
	})
	if err != nil {
		return fmt.Errorf("init worklist: %w", err)
	}
	items, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load worklist: %w", err)
	}
	if len(items) == 0 {
		logger.Warn("worklist is empty, nothing to do", zap.String("input", cfg.Input.Path))
		return nil
	}

	factory := headless.NewFactory(headless.Config{
		Visible:           cfg.Headless.Visible,
		UserAgent:         cfg.Headless.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
		WaitExpression:    cfg.Headless.WaitExpression,
		BlockResources:    cfg.Headless.BlockResources,
	}, logger.Named("headless"))
	defer factory.Close()

	snapshots, err := buildSnapshotStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init snapshot store: %w", err)
	}

	publisher, stopPublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}
	defer stopPublisher()

	tracker := progress.NewTracker(runID, len(items), cfg.Scrape.MaxRetries, clock, logger.Named("progress"))
	if cfg.Status.Addr != "" {
		server := api.NewServer(cfg.Status.Addr, tracker, logger.Named("api"))
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown failed", zap.Error(err))
			}
		}()
	}

	proc := worker.New(
		factory,
		extractor.New(),
		snapshots,
		sha256hash.New(),
		worker.Config{
			Delay:          cfg.Delay(),
			RunID:          runID,
			SnapshotPrefix: cfg.Snapshot.Prefix,
		},
		logger.Named("worker"),
	)

	d := dispatcher.New(
		proc,
		dispatcher.Config{
			WorkerCount: cfg.Scrape.WorkerCount,
			MaxRetries:  cfg.Scrape.MaxRetries,
			RunID:       runID,
			Topic:       cfg.PubSub.TopicName,
		},
		tracker,
		publisher,
		clock,
		logger.Named("dispatcher"),
	)

	result, err := d.Run(ctx, items)
	if err != nil {
		return fmt.Errorf("run dispatcher: %w", err)
	}

	if err := writeOutputs(ctx, cfg, result, logger); err != nil {
		return err
	}
	if err := recordLedger(ctx, cfg, runID, startedAt, clock.Now(), result); err != nil {
		// The scrape itself succeeded; a ledger failure should not flip the
		// exit code after the outputs are on disk.
		logger.Error("run ledger write failed", zap.Error(err))
	}

	notFound := 0
	for _, outcome := range result.Outcomes {
		if outcome.Kind == scrape.OutcomeNotFound {
			notFound++
		}
	}
	logger.Info("scrape complete",
		zap.String("run_id", runID),
		zap.Int("succeeded", len(result.Records)),
		zap.Int("not_found", notFound),
		zap.Int("failed", len(result.Failed)),
		zap.String("output", cfg.Output.Path),
	)
	return nil
}

func buildSnapshotStore(ctx context.Context, cfg config.Config) (scrape.SnapshotStore, error) {
	switch cfg.Snapshot.Backend {
	case "", "none":
		return nil, nil
	case "local":
		store, err := snapshot.NewLocalStore(snapshot.LocalConfig{BaseDir: cfg.Snapshot.BaseDir})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "gcs":
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		store, err := snapshot.NewGCSStore(client, snapshot.GCSConfig{Bucket: cfg.Snapshot.Bucket})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Snapshot.Backend)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (scrape.Publisher, func(), error) {
	if cfg.PubSub.TopicName == "" {
		return nil, func() {}, nil
	}
	client, err := gcspubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubsubpub.New(client.Topic(cfg.PubSub.TopicName))
	stop := func() {
		pub.Stop()
		_ = client.Close()
	}
	return pub, stop, nil
}

func writeOutputs(ctx context.Context, cfg config.Config, result dispatcher.Result, logger *zap.Logger) error {
	recordSink, err := sink.NewXLSXRecordSink(sink.Config{
		Path:       cfg.Output.Path,
		Formatting: cfg.Output.Formatting,
	}, logger.Named("sink"))
	if err != nil {
		return fmt.Errorf("init record sink: %w", err)
	}
	if err := recordSink.WriteRecords(ctx, result.Rows()); err != nil {
		return fmt.Errorf("write records: %w", err)
	}

	if !cfg.Output.PersistFailures || len(result.Failed) == 0 {
		return nil
	}
	failureSink, err := sink.NewXLSXFailureSink(sink.Config{
		Path:       cfg.Output.FailedPath,
		Formatting: cfg.Output.Formatting,
	}, logger.Named("sink"))
	if err != nil {
		return fmt.Errorf("init failure sink: %w", err)
	}
	if err := failureSink.WriteFailures(ctx, result.Failed); err != nil {
		return fmt.Errorf("write failures: %w", err)
	}
	return nil
}

func recordLedger(ctx context.Context, cfg config.Config, runID string, startedAt, finishedAt time.Time, result dispatcher.Result) error {
	if cfg.DB.DSN == "" {
		return nil
	}
	store, err := ledger.NewStore(ctx, ledger.Config{
		DSN:           cfg.DB.DSN,
		RunsTable:     cfg.DB.RunsTable,
		OutcomesTable: cfg.DB.OutcomesTable,
		MaxConns:      cfg.DB.MaxConns,
		MinConns:      cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer store.Close()

	notFound := 0
	rows := make([]ledger.OutcomeRow, 0, len(result.Outcomes))
	for rowIdx, outcome := range result.Outcomes {
		if outcome.Kind == scrape.OutcomeNotFound {
			notFound++
		}
		rows = append(rows, ledger.OutcomeRow{
			RunID:  runID,
			Row:    rowIdx,
			URL:    result.Items[rowIdx].URL,
			Kind:   string(outcome.Kind),
			Reason: outcome.Reason,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Row < rows[j].Row })

	summary := ledger.RunSummary{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		TotalItems: len(result.Outcomes),
		Succeeded:  len(result.Records),
		NotFound:   notFound,
		Failed:     len(result.Failed),
		Rounds:     result.Rounds,
	}
	if err := store.RecordRun(ctx, summary); err != nil {
		return err
	}
	return store.RecordOutcomes(ctx, rows)
}
