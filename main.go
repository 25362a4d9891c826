package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"listing_detail/config"
	"listing_detail/httputil"
	"listing_detail/logging"
	"listing_detail/models"
	"listing_detail/scheduler"
	"listing_detail/scraper"
	"listing_detail/storage"
	"listing_detail/workers"
)

var (
	extractNow = flag.Bool("scrape", false, "Run extraction for all sites once and exit")
	siteFlag   = flag.String("site", "", "Limit -scrape or -url to one site")
	urlsFlag   = flag.String("url", "", "Comma-separated listing URLs to extract once and exit")
	normalize  = flag.String("normalize", "", "Normalize a raw JSON file and exit")
	outFlag    = flag.String("out", "", "Output path for -normalize (default OUTPUT_NORMALIZED)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath, cfg.LogMaxMB)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting listing_detail...")
	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s, %s handler)", site.Name, id, site.Handler)
	}

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	clients := httputil.NewClients(&cfg.Proxy)
	if cfg.Proxy.URL != "" {
		log.Printf("Proxy: %s", maskConnectionString(cfg.Proxy.URL))
	}

	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore, clients)

	if *normalize != "" {
		out := *outFlag
		if out == "" {
			out = cfg.Output.NormalizedPath
		}
		n, err := orchestrator.NormalizeFile(*normalize, out)
		if err != nil {
			log.Fatalf("Normalize failed: %v", err)
		}
		log.Printf("Normalized %d listings into %s", n, out)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pgStore *storage.PostgresStore
	if cfg.Postgres.URL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare Postgres schema: %v", err)
		}
		orchestrator.SetPostgres(pgStore)
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.URL))
	}

	if cfg.S3.Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to configure S3: %v", err)
		}
		orchestrator.SetUploader(uploader)
		log.Printf("Publishing output to s3://%s/%s", cfg.S3.Bucket, cfg.S3.Prefix)
	}

	// One-shot modes
	if *urlsFlag != "" {
		siteID := *siteFlag
		if siteID == "" {
			siteID = "emlakjet"
		}
		result, err := orchestrator.ExtractURLs(ctx, siteID, splitURLs(*urlsFlag))
		if err != nil {
			log.Fatalf("Extraction failed: %v", err)
		}
		log.Printf("Extracted %d of %d listings", len(result.Records), len(result.Outcomes))
		return
	}
	if *extractNow {
		log.Println("Running extraction...")
		if *siteFlag != "" {
			_, err = orchestrator.RunSite(ctx, *siteFlag)
		} else {
			err = orchestrator.RunAll(ctx)
		}
		if err != nil {
			log.Fatalf("Extraction failed: %v", err)
		}
		log.Println("Extraction complete!")
		return
	}

	// Daemon mode
	var sink workers.ListingSink
	if pgStore != nil {
		sink = pgStore
	}
	normalizer := workers.NewNormalizationWorker(sqliteStore, sink, 100)
	normalizer.SetLogger(func(level models.LogLevel, source, message string) {
		sqliteStore.Log(nil, level, message, source)
	})
	go normalizer.Run(ctx, 5*time.Minute)
	log.Println("Normalization worker started")

	sched := scheduler.New(cfg, orchestrator, sqliteStore)
	sched.SetNormalizer(normalizer)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

func splitURLs(s string) []string {
	var urls []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// maskConnectionString masks the password in a URL-style connection string
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start < 0 {
		return connStr
	}
	start += 3

	at := strings.Index(connStr[start:], "@")
	if at < 0 {
		return connStr
	}
	at += start

	colon := strings.Index(connStr[start:at], ":")
	if colon < 0 {
		return connStr
	}
	colon += start

	return connStr[:colon+1] + "****" + connStr[at:]
}
