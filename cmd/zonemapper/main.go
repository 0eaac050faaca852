package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zonemap/schoolzone-mapper/internal/common"
	"github.com/zonemap/schoolzone-mapper/internal/extract"
	"github.com/zonemap/schoolzone-mapper/internal/geocode"
	"github.com/zonemap/schoolzone-mapper/internal/llm/ark"
	"github.com/zonemap/schoolzone-mapper/internal/parser"
	"github.com/zonemap/schoolzone-mapper/internal/pipeline"
)

var (
	dryRun  bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "zonemapper",
	Short: "School catchment-zone extraction and mapping pipeline",
	Long: `zonemapper turns raw catchment-zone documents into GeoJSON:
update extracts plain text from source documents, transform runs LLM
extraction into structured school records, polygon geocodes the records
and synthesizes zone polygons.`,
}

var (
	watchMode bool
	inputFile string
)

var updateCmd = &cobra.Command{
	Use:   "update [file]",
	Short: "Extract plain text from source documents",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUpdate,
}

var (
	numWorkers int
	force      bool
)

var transformCmd = &cobra.Command{
	Use:   "transform [file]",
	Short: "Extract structured school records from text via the LLM",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTransform,
}

var (
	city         string
	amapKey      string
	limit        int
	hullMethod   string
	concaveRatio float64
	itemBufferM  float64
)

var polygonCmd = &cobra.Command{
	Use:   "polygon [file]",
	Short: "Geocode school records and synthesize zone polygons",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPolygon,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Report what would be done without writing outputs")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	updateCmd.Flags().BoolVar(&watchMode, "watch", false, "Keep running and process documents as they appear")

	transformCmd.Flags().IntVarP(&numWorkers, "workers", "w", 1, "Concurrent documents")
	transformCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing output (single-file mode)")

	polygonCmd.Flags().StringVar(&city, "city", "", "Geocoding city bias (default from ZONEMAP_CITY)")
	polygonCmd.Flags().StringVar(&amapKey, "key", "", "AMap API key (default from AMAP_KEY)")
	polygonCmd.Flags().IntVar(&limit, "limit", 0, "Process at most N documents (0 = all)")
	polygonCmd.Flags().StringVar(&hullMethod, "hull", "", "Hull method: bbox, convex or concave")
	polygonCmd.Flags().Float64Var(&concaveRatio, "concave-ratio", -1, "Concave hull ratio in [0,1]")
	polygonCmd.Flags().Float64Var(&itemBufferM, "item-buffer-m", -1, "Include-area buffer radius in meters")

	rootCmd.AddCommand(updateCmd, transformCmd, polygonCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func runUpdate(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg := common.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stage := pipeline.NewUpdateStage(cfg, parser.NewRegistry(), dryRun, logger)

	if len(args) == 1 {
		out, err := stage.RunFile(ctx, args[0])
		if err != nil {
			logger.Error("update.file_failed", "path", args[0], "error", err)
			return nil
		}
		logger.Info("update.file_done", "output", out)
		return nil
	}
	if watchMode {
		return stage.Watch(ctx)
	}
	// batch runs are best-effort: per-file failures are in the summary
	if _, err := stage.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("update.failed", "error", err)
	}
	return nil
}

func runTransform(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg := common.LoadConfig()
	if err := cfg.ValidateTransform(); err != nil {
		return err
	}

	client := ark.NewClient(ark.Config{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		Timeout:   cfg.LLM.Timeout,
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)
	extractor := extract.NewExtractor(client, extract.Config{
		DirectThreshold: cfg.LLM.DirectThreshold,
		MaxSegmentChars: cfg.LLM.MaxSegmentChars,
		MaxTokens:       cfg.LLM.MaxTokens,
	}, logger)

	// First interrupt finishes the in-flight documents, second one cancels
	// outright.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var stopping atomic.Bool
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("transform.interrupt", "action", "finishing in-flight documents")
		stopping.Store(true)
		<-sigCh
		cancel()
	}()

	stage := pipeline.NewTransformStage(cfg, extractor, numWorkers, logger)
	stage.ShouldStop = stopping.Load
	stage.DryRun = dryRun

	if len(args) == 1 {
		count, err := stage.RunFile(ctx, args[0], force)
		if err != nil {
			logger.Error("transform.file_failed", "path", args[0], "error", err)
			return nil
		}
		logger.Info("transform.file_done", "path", args[0], "records", count)
		return nil
	}
	if _, err := stage.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("transform.failed", "error", err)
	}
	return nil
}

func runPolygon(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg := common.LoadConfig()
	if city != "" {
		cfg.Geocode.City = city
	}
	if amapKey != "" {
		cfg.Geocode.APIKey = amapKey
	}
	if hullMethod != "" {
		cfg.Polygon.HullMethod = hullMethod
	}
	if concaveRatio >= 0 {
		cfg.Polygon.ConcaveRatio = concaveRatio
	}
	if itemBufferM >= 0 {
		cfg.Polygon.ItemBufferM = itemBufferM
	}
	if err := cfg.ValidatePolygon(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, err := geocode.LoadCache(cfg.Paths.CacheFile)
	if err != nil {
		logger.Warn("polygon.cache_load_failed", "path", cfg.Paths.CacheFile, "error", err)
		cache = geocode.NewCache(cfg.Paths.CacheFile)
	}
	client := geocode.NewClient(geocode.Config{
		APIKey:   cfg.Geocode.APIKey,
		BaseURL:  cfg.Geocode.BaseURL,
		Timeout:  cfg.Geocode.Timeout,
		Interval: cfg.Geocode.Interval,
	}, cache, logger)

	stage := pipeline.NewPolygonStage(cfg, client, cache, limit, dryRun, logger)

	if len(args) == 1 {
		count, err := stage.RunFile(ctx, args[0])
		if err != nil {
			logger.Error("polygon.file_failed", "path", args[0], "error", err)
			return nil
		}
		logger.Info("polygon.file_done", "path", args[0], "polygons", count)
		if !dryRun {
			if err := cache.Save(); err != nil {
				logger.Warn("polygon.cache_save_failed", "error", err)
			}
		}
		return nil
	}
	if _, err := stage.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("polygon.failed", "error", err)
	}
	return nil
}
