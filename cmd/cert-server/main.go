package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certward/certificate-pipeline/internal/config"
	"github.com/certward/certificate-pipeline/internal/dedupe"
	"github.com/certward/certificate-pipeline/internal/handlers"
	"github.com/certward/certificate-pipeline/internal/layout"
	"github.com/certward/certificate-pipeline/internal/pipeline"
	"github.com/certward/certificate-pipeline/internal/recognize/tesseract"
	"github.com/certward/certificate-pipeline/internal/storage"
	"github.com/certward/certificate-pipeline/internal/store"
	"github.com/certward/certificate-pipeline/internal/workflows"
	"github.com/certward/certificate-pipeline/pkg/certificate"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	cfg := config.FromEnv()
	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	certs, err := store.New(db)
	if err != nil {
		log.Fatalf("Failed to initialize certificate store: %v", err)
	}
	sightings, err := dedupe.NewTracker(db)
	if err != nil {
		log.Fatalf("Failed to initialize dedupe tracker: %v", err)
	}
	log.Printf("✓ Connected to Postgres")

	engine, err := tesseract.New(cfg.OCRConcurrency)
	if err != nil {
		log.Fatalf("Failed to initialize Tesseract: %v", err)
	}
	defer engine.Close()
	log.Printf("✓ Tesseract pool ready (concurrency=%d)", cfg.OCRConcurrency)

	// Use the external layout classifier if LAYOUT_API_URL is set,
	// otherwise fall back to the built-in heuristic
	var scorer layout.Scorer
	if cfg.LayoutAPIURL != "" {
		log.Printf("Using layout classifier at: %s", cfg.LayoutAPIURL)
		scorer = layout.NewHTTPScorer(cfg.LayoutAPIURL)
	} else {
		log.Printf("Using built-in heuristic layout scorer")
		scorer = layout.HeuristicScorer{}
	}

	processor := pipeline.New(engine, scorer)
	handler := handlers.New(processor, certs, sightings, cfg.MaxUploadBytes)

	// Scans processed by reference come from a remote scan store when
	// SCAN_API_URL is set, otherwise from a local directory
	var scans workflows.ScanReader
	if cfg.ScanAPIURL != "" {
		log.Printf("Using scan store at: %s", cfg.ScanAPIURL)
		scans = storage.NewHTTPReader(cfg.ScanAPIURL)
	} else {
		log.Printf("Using local scan directory: %s", cfg.ScanDir)
		fs, err := storage.NewFilesystemStorage(cfg.ScanDir)
		if err != nil {
			log.Fatalf("Failed to initialize scan storage: %v", err)
		}
		scans = fs
	}

	workflowRunner := workflows.NewWorkflowRunner()
	certWorkflow := workflows.NewCertificateWorkflow(scans, processor, certs, sightings)
	workflowRunner.Register(certificate.JobCertificate, certWorkflow)
	log.Printf("✓ Registered workflow: %s for job: %s", certWorkflow.Name(), certificate.JobCertificate)
	processHandler := handlers.NewProcessHandler(workflowRunner)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	handler.Routes(r)
	r.Post("/v1/process", processHandler.HandleProcess)
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Certificate service starting on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
