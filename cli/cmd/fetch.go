package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stainfetch/atlas"
	"github.com/pithecene-io/stainfetch/cli/config"
	"github.com/pithecene-io/stainfetch/cli/render"
	"github.com/pithecene-io/stainfetch/cli/tui"
	"github.com/pithecene-io/stainfetch/downloader"
	"github.com/pithecene-io/stainfetch/fetch"
	"github.com/pithecene-io/stainfetch/ledger"
	"github.com/pithecene-io/stainfetch/log"
	"github.com/pithecene-io/stainfetch/metrics"
	"github.com/pithecene-io/stainfetch/samples"
	"github.com/pithecene-io/stainfetch/tasks"
	"github.com/pithecene-io/stainfetch/types"
)

// Exit codes for the fetch command.
const (
	exitSuccess     = 0
	exitHardFailure = 1
	exitConfigError = 2
)

// defaultBaseURL is where the atlas serves per-channel images.
const defaultBaseURL = "https://images.proteinatlas.org"

// FetchCommand returns the fetch command, the only command that
// writes files.
func FetchCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "outdir",
			Aliases:  []string{"o"},
			Usage:    "Directory to write channel images to",
			Required: true,
		},
	}
	flags = append(flags, inputFlags()...)
	flags = append(flags,
		&cli.IntFlag{
			Name:  "pool-size",
			Usage: "Concurrent download workers",
		},
		&cli.BoolFlag{
			Name:  "skip-existing",
			Usage: "Skip tasks whose destination file already exists with non-zero size",
		},
		&cli.BoolFlag{
			Name:  "skip-failed",
			Usage: "Report success even when some tasks failed",
		},
		&cli.BoolFlag{
			Name:  "fake-images",
			Usage: "Fetch one real image per channel and copy it for the rest",
		},
		&cli.IntFlag{
			Name:  "retry-ceiling",
			Usage: "Max fetch attempts per task for transient failures",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write the JSON run report to this path ('-' for stderr)",
		},
		&cli.StringFlag{
			Name:  "journal",
			Usage: "Write the msgpack outcome journal to this path",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Show a live progress view",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the summary output",
		},
		FormatFlag,
	)

	return &cli.Command{
		Name:   "fetch",
		Usage:  "Download the four channel images for every sample",
		Flags:  flags,
		Action: fetchAction,
	}
}

// settings is the merged flag/config view the fetch and plan actions
// run from. CLI flags always override config values.
type settings struct {
	outdir      string
	samples     string
	cm4aiTable  string
	unique      string
	proteinList string
	baseURL     string
	localDir    string
	imageSuffix string
	atlasDump   string
	report      string
	journal     string
	opts        downloader.Options
	s3          fetch.S3Config
	timeout     time.Duration

	// atlasIdx caches the index when loadRecords already built one for
	// the catalog join, so the fallback resolver reuses it instead of
	// streaming the dump twice.
	atlasIdx *atlas.Index
}

// resolveSettings merges the config file (if any) under the flags.
func resolveSettings(c *cli.Context) (*settings, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	s := &settings{
		outdir:      c.String("outdir"),
		samples:     c.String("samples"),
		cm4aiTable:  c.String("cm4ai-table"),
		unique:      c.String("unique"),
		proteinList: c.String("protein-list"),
		baseURL:     stringOr(c.String("base-url"), cfg.Source.BaseURL),
		localDir:    stringOr(c.String("local-dir"), cfg.Source.LocalDir),
		imageSuffix: stringOr(c.String("image-suffix"), cfg.Output.ImageSuffix),
		atlasDump:   stringOr(c.String("atlas-dump"), cfg.Atlas.Dump),
		report:      stringOr(c.String("report"), cfg.Output.Report),
		journal:     stringOr(c.String("journal"), cfg.Output.Journal),
		opts:        downloader.DefaultOptions(),
		s3: fetch.S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.S3PathStyle,
		},
		timeout: fetch.DefaultRequestTimeout,
	}
	if s.outdir == "" {
		s.outdir = cfg.Output.Dir
	}
	if s.imageSuffix == "" {
		s.imageSuffix = ".jpg"
	}
	if s.baseURL == "" {
		s.baseURL = defaultBaseURL
	}
	if cfg.Source.RequestTimeout.Duration > 0 {
		s.timeout = cfg.Source.RequestTimeout.Duration
	}

	if cfg.Download.PoolSize > 0 {
		s.opts.PoolSize = cfg.Download.PoolSize
	}
	if c.IsSet("pool-size") {
		s.opts.PoolSize = c.Int("pool-size")
	}
	if cfg.Download.RetryCeiling > 0 {
		s.opts.RetryCeiling = cfg.Download.RetryCeiling
	}
	if c.IsSet("retry-ceiling") {
		s.opts.RetryCeiling = c.Int("retry-ceiling")
	}
	if cfg.Download.BackoffBase.Duration > 0 {
		s.opts.BackoffBase = cfg.Download.BackoffBase.Duration
	}
	if cfg.Download.BackoffCap.Duration > 0 {
		s.opts.BackoffCap = cfg.Download.BackoffCap.Duration
	}
	s.opts.SkipExisting = cfg.Download.SkipExisting || c.Bool("skip-existing")
	s.opts.SkipFailed = cfg.Download.SkipFailed || c.Bool("skip-failed")
	s.opts.FakeImages = cfg.Download.FakeImages || c.Bool("fake-images")

	return s, nil
}

func stringOr(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

// loadRecords reads the sample catalog named by the settings. Exactly
// one input source must be given. With --samples or --cm4ai-table the
// protein list only filters; with --unique it drives the catalog join.
func loadRecords(ctx context.Context, s *settings) ([]types.SampleRecord, error) {
	inputs := 0
	for _, in := range []string{s.samples, s.cm4aiTable, s.unique} {
		if in != "" {
			inputs++
		}
	}
	if inputs > 1 {
		return nil, fmt.Errorf("--samples, --cm4ai-table and --unique are mutually exclusive")
	}
	if inputs == 0 {
		return nil, fmt.Errorf("one of --samples, --cm4ai-table or --unique is required")
	}

	if s.unique != "" {
		return loadCatalogJoin(ctx, s)
	}

	var records []types.SampleRecord
	var err error
	switch {
	case s.cm4aiTable != "":
		records, err = samples.ReadCM4AIManifest(s.cm4aiTable)
	default:
		locator := types.SourceLocator{BaseURL: s.baseURL}
		if s.localDir != "" {
			locator = types.SourceLocator{LocalDir: s.localDir}
		}
		records, err = samples.ReadSamplesFile(s.samples, locator)
	}
	if err != nil {
		return nil, err
	}

	if s.proteinList != "" {
		proteins, err := readProteins(s.proteinList)
		if err != nil {
			return nil, err
		}
		records = samples.FilterByProteins(records, proteins)
		if len(records) == 0 {
			return nil, fmt.Errorf("protein list matched no samples")
		}
	}
	return records, nil
}

// loadCatalogJoin derives sample records for a protein list when no
// samples file exists: catalog entries matching the list name the
// antibodies, and the atlas dump supplies the tiles imaged under each.
func loadCatalogJoin(ctx context.Context, s *settings) ([]types.SampleRecord, error) {
	if s.proteinList == "" {
		return nil, fmt.Errorf("--unique requires --protein-list")
	}
	if s.atlasDump == "" {
		return nil, fmt.Errorf("--unique requires --atlas-dump")
	}

	entries, err := samples.ReadCatalogFile(s.unique)
	if err != nil {
		return nil, err
	}
	proteins, err := readProteins(s.proteinList)
	if err != nil {
		return nil, err
	}
	matched := samples.FilterCatalogByProteins(entries, proteins)
	if len(matched) == 0 {
		return nil, fmt.Errorf("protein list matched no catalog entries")
	}

	idx, err := atlas.BuildIndex(ctx, atlas.NewReader(), s.atlasDump)
	if err != nil {
		return nil, fmt.Errorf("atlas index: %w", err)
	}
	s.atlasIdx = idx

	records, err := samples.RecordsFromAtlasURLs(idx.URLs(), matched,
		types.SourceLocator{BaseURL: s.baseURL})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("atlas dump holds no images for the matched antibodies")
	}
	return records, nil
}

func readProteins(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open protein list: %w", err)
	}
	defer f.Close()
	return samples.ReadProteinList(f)
}

// selectBackend picks the fetch backend from the records' locator
// shape: local directories copy, s3:// locators hit object storage,
// anything else goes over HTTP.
func selectBackend(ctx context.Context, s *settings, records []types.SampleRecord) (fetch.Backend, error) {
	if len(records) > 0 && records[0].Locator.LocalDir != "" {
		return fetch.NewLocalBackend(), nil
	}
	if strings.HasPrefix(s.baseURL, "s3://") {
		return fetch.NewS3Backend(ctx, s.s3)
	}
	return fetch.NewHTTPBackendWithClient(&http.Client{Timeout: s.timeout}), nil
}

func fetchAction(c *cli.Context) error {
	s, err := resolveSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	runID := uuid.NewString()
	logger := log.NewLogger(runID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("interrupt received, finishing in-flight fetches", nil)
		cancel()
	}()

	records, err := loadRecords(ctx, s)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	taskSet, err := tasks.Build(records, s.outdir, s.imageSuffix)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	backend, err := selectBackend(ctx, s, records)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	if s.atlasIdx == nil && s.atlasDump != "" {
		idx, err := atlas.BuildIndex(ctx, atlas.NewReader(), s.atlasDump)
		if err != nil {
			return cli.Exit(fmt.Sprintf("atlas index: %v", err), exitConfigError)
		}
		s.atlasIdx = idx
	}
	if s.atlasIdx != nil {
		logger.Info("atlas index loaded", map[string]any{"tiles": s.atlasIdx.Len()})
		s.opts.Fallback = s.atlasIdx.Resolver()
	}

	collector := metrics.NewCollector(backend.Name(), s.opts.PoolSize, runID)
	orch, err := downloader.New(backend, s.opts, logger, collector)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	startedAt := time.Now()
	summary, err := runWithView(ctx, c, orch, taskSet)
	if err != nil {
		return fmt.Errorf("download run failed: %w", err)
	}
	duration := time.Since(startedAt)

	report := ledger.BuildReport(runID, startedAt, duration, summary, collector.Snapshot())
	if s.report != "" {
		if err := ledger.WriteReport(report, s.report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if s.journal != "" {
		if err := ledger.WriteJournal(runID, summary, s.journal); err != nil {
			return fmt.Errorf("write journal: %w", err)
		}
	}

	if !c.Bool("quiet") && !c.Bool("tui") {
		r, err := render.NewRenderer(c)
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		if err := r.Render(report); err != nil {
			return err
		}
	}

	if summary.HasHardFailure {
		return cli.Exit("", exitHardFailure)
	}
	return cli.Exit("", exitSuccess)
}

// runWithView drains the task set, either behind the live progress
// view or plainly.
func runWithView(ctx context.Context, c *cli.Context, orch *downloader.Orchestrator, taskSet []types.ChannelTask) (*ledger.Summary, error) {
	if !c.Bool("tui") {
		return orch.Run(ctx, taskSet)
	}

	done := make(chan tui.DoneMsg, 1)
	var summary *ledger.Summary
	var runErr error
	go func() {
		summary, runErr = orch.Run(ctx, taskSet)
		done <- tui.DoneMsg{Summary: summary}
	}()

	if err := tui.Run(orch.Progress, done); err != nil {
		return nil, fmt.Errorf("progress view: %w", err)
	}
	if runErr != nil {
		return nil, runErr
	}
	return summary, nil
}
