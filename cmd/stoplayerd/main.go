package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"stoplayer.opentransportdata.swiss/internal/app"
	"stoplayer.opentransportdata.swiss/internal/config"
	"stoplayer.opentransportdata.swiss/internal/report"
)

const version = "1.0.0"

// configRefreshInterval is how often a remote monitoring document is
// re-fetched when --config-url is used.
const configRefreshInterval = time.Minute

// configMaxRetries bounds the backoff loop for remote config fetches.
const configMaxRetries = 3

func main() {
	var (
		port              = flag.Int("port", 4000, "API server port")
		env               = flag.String("env", "development", "Environment (development|staging|production)")
		configFile        = flag.String("config-file", "", "Path to a local JSON configuration file")
		configURL         = flag.String("config-url", "", "URL to a remote JSON configuration file")
		datasetURL        = flag.String("dataset-url", "https://opentransportdata.swiss/api/explore/v2.1", "Base URL of the stop dataset API")
		dataset           = flag.String("dataset", "didok", "Dataset identifier for the stop registry")
		venuesURL         = flag.String("venues-url", "", "Base URL of the venue directory API")
		gtfsBundle        = flag.String("gtfs-bundle", "", "Path to a local GTFS bundle to use instead of the dataset API")
		locale            = flag.String("locale", "fr", "Locale for generated venue names and prompts")
		fetchInterval     = flag.Duration("fetch-interval", 5*time.Minute, "Interval between region sweeps")
		mergeRadiusMeters = flag.Float64("merge-radius", 0, "Merge candidate radius in meters (0 uses the default)")
	)

	flag.Parse()

	configAuthUser := os.Getenv("CONFIG_AUTH_USER")
	configAuthPass := os.Getenv("CONFIG_AUTH_PASS")

	if err := config.ValidateConfigFlags(configFile, configURL); err != nil {
		fmt.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	report.SetupSentry()
	defer report.FlushSentry()
	report.ConfigureScope(*env, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	client := app.NewPooledClient()

	var (
		monitoring config.Monitoring
		err        error
	)

	if *configFile != "" {
		monitoring, err = config.LoadConfigFromFile(*configFile)
	} else {
		monitoring, err = config.LoadConfigFromURL(ctx, client, *configURL, configAuthUser, configAuthPass, configMaxRetries)
	}

	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if len(monitoring.Regions) == 0 {
		fmt.Println("Error: No regions found in configuration.")
		os.Exit(1)
	}

	cfg := config.NewConfig(*port, *env, monitoring)
	cfg.Locale = *locale
	cfg.DatasetURL = *datasetURL
	cfg.Dataset = *dataset
	cfg.VenuesURL = *venuesURL
	cfg.GtfsBundle = *gtfsBundle
	cfg.FetchInterval = *fetchInterval
	cfg.MergeRadiusMeters = *mergeRadiusMeters

	application := app.New(cfg, logger, client, version)

	application.StartMonitoring(ctx)

	// If a remote URL is specified, refresh the monitoring document
	// periodically so region changes land without a restart.
	if *configURL != "" {
		go application.ConfigService.RefreshConfig(ctx, *configURL, configAuthUser, configAuthPass, configRefreshInterval, configMaxRetries)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      application.Routes(ctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	logger.Info("starting server", "addr", srv.Addr, "env", cfg.Env)
	err = srv.ListenAndServe()
	report.ReportError(err, sentry.LevelFatal)
	report.FlushSentry()
	logger.Error(err.Error())
	os.Exit(1)
}
