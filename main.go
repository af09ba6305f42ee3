package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/yourusername/footprint/db"
	"github.com/yourusername/footprint/handlers"
	"github.com/yourusername/footprint/middleware"
	"github.com/yourusername/footprint/models"
	"github.com/yourusername/footprint/services"
)

var configPath string

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	root := &cobra.Command{
		Use:           "footprint",
		Short:         "Media footprint analysis service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	root.AddCommand(serveCmd(), sniffCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func sniffCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:          "sniff <file>...",
		Short:        "Print format and pixel size read from image headers",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSniff(cmd, args, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 1<<20, "maximum bytes to read per file")
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:          "token <subject>",
		Short:        "Print a bearer token for the report history API",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, expires, err := middleware.GenerateToken(args[0], ttl)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(models.TokenResponse{Token: token, ExpiresAt: expires})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// runSniff prints one "<file>\t<format> <width> <height>" line per argument.
// Unreadable or unrecognized files are reported and make the command fail.
func runSniff(cmd *cobra.Command, files []string, limit int) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			fmt.Fprintf(out, "%s\terror: %v\n", name, err)
			failed++
			continue
		}
		header, _, err := services.SniffReader(f, limit)
		f.Close()
		if err != nil {
			fmt.Fprintf(out, "%s\tnot recognized\n", name)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s\t%s %d %d\n", name, header.Format, header.Width, header.Height)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files not recognized", failed, len(files))
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := services.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := &http.Client{Timeout: config.Search.Timeout}
	search, err := services.NewSearchProvider(config.Search, client)
	providerName := ""
	switch {
	case errors.Is(err, services.ErrNoProvider):
		log.Printf("Search: no API key for %q, reverse-image search disabled", config.Search.Provider)
	case err != nil:
		return err
	default:
		providerName = search.Name()
	}

	var prober *services.MediaProber
	var probe handlers.MediaProbe
	if config.Probe.Enabled {
		prober = services.NewMediaProber(config.Probe, nil)
		probe = prober
	}

	cache, err := services.NewReportCache(config.Cache)
	if err != nil {
		return err
	}
	analyzer := services.NewAnalyzer(config, search, prober, cache)

	deps := appDeps{
		analyzer: analyzer,
		prober:   probe,
		provider: providerName,
	}

	if db.Enabled() {
		if err := db.Connect(); err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		deps.reports = models.NewReportRepository(db.DB)
		deps.pingDB = true
	} else {
		log.Printf("History: DATABASE_URL not set, reports are not stored")
	}

	var archiver *services.Archiver
	if config.Archive.Enabled {
		storage, err := services.NewStorageFromEnv()
		if err != nil {
			return err
		}
		if storage.IsLocal() {
			deps.archiveDir = storage.(*services.LocalStorage).BaseDir()
			log.Printf("Archive: writing reports under %s", deps.archiveDir)
		} else if s3, ok := storage.(*services.S3Storage); ok {
			if err := s3.EnsureBucket(context.Background()); err != nil {
				return fmt.Errorf("archive storage unavailable: %w", err)
			}
		}
		archiver = services.NewArchiver(storage, config.Archive.Prefix)
	}
	if archiver != nil || deps.reports != nil {
		analyzer.SetRecorder(services.NewReportRecorder(archiver, deps.reports))
	}

	limiter := services.NewRateLimiter(config.RateLimiting)
	defer limiter.Stop()
	deps.limiter = limiter

	app := newApp(deps)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server starting on port %s", port)
	return app.Listen(":" + port)
}
