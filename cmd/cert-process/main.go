package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/certward/certificate-pipeline/internal/layout"
	"github.com/certward/certificate-pipeline/internal/pipeline"
	"github.com/certward/certificate-pipeline/internal/recognize/tesseract"
)

// Standalone extractor for quick testing
// Runs the full pipeline on a local scan, no database needed
func main() {
	_ = godotenv.Load()

	uploadedBy := flag.String("uploaded-by", "cli", "value recorded as the uploader")
	layoutAPI := flag.String("layout-api", os.Getenv("LAYOUT_API_URL"), "external layout classifier URL (empty = heuristic)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <scan.png>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}

	engine, err := tesseract.New(1)
	if err != nil {
		log.Fatalf("Failed to initialize Tesseract: %v", err)
	}
	defer engine.Close()

	var scorer layout.Scorer = layout.HeuristicScorer{}
	if *layoutAPI != "" {
		scorer = layout.NewHTTPScorer(*layoutAPI)
	}

	processor := pipeline.New(engine, scorer)
	result := processor.Process(context.Background(), data, filepath.Base(path), *uploadedBy)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))

	if !result.Success {
		os.Exit(1)
	}
}
