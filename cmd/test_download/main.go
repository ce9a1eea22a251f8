package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/grid"
	"github.com/forest-guardian/geotile-dataset/internal/planner"
	"github.com/forest-guardian/geotile-dataset/internal/properties"
	"github.com/forest-guardian/geotile-dataset/internal/sentinel"
)

func main() {
	// Hardcoded test parameters - modify these to test different scenarios
	cell := "9q8yy"
	testDate := time.Date(2022, 3, 6, 0, 0, 0, 0, time.UTC)
	intervalDays := 5

	fmt.Println("=== GeoTile Test Image Download ===")
	fmt.Printf("Cell: %s\n", cell)
	fmt.Printf("Date: %s\n", testDate.Format(planner.DateLayout))
	fmt.Println()

	cfg, err := properties.Load("../../.env", "../.env", ".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if len(cfg.Copernicus.Credentials) == 0 {
		fmt.Println("Make sure you have set the required environment variables:")
		fmt.Println("- COPERNICUS_CLIENT_ID")
		fmt.Println("- COPERNICUS_CLIENT_SECRET")
		fmt.Println("- COPERNICUS_TOKEN_URL")
		fmt.Println("- ROOT_PATH")
		os.Exit(1)
	}

	bound, err := grid.BoundingBox(cell)
	if err != nil {
		log.Fatalf("Failed to get cell bounds: %v", err)
	}
	interval := planner.Interval{Start: testDate, End: testDate.AddDate(0, 0, intervalDays)}

	fmt.Printf("Requesting image for %s %s...\n", cell, interval)
	client := sentinel.NewClient(cfg.Copernicus, cfg.Fetch, sentinel.Sentinel2L2A)
	image, err := client.FetchTile(context.Background(), cell, bound, interval)
	if err != nil {
		log.Fatalf("Failed to get image: %v", err)
	}

	outputPath := filepath.Join(cfg.RootPath, "data", "test_download", fmt.Sprintf("%s_%s.tif", cell, testDate.Format(planner.DateLayout)))
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		log.Fatalf("Failed to create output folder: %v", err)
	}
	if err := os.WriteFile(outputPath, image, 0644); err != nil {
		log.Fatalf("Failed to save image: %v", err)
	}

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Image size: %d bytes\n", len(image))
	fmt.Printf("Saved to: %s\n", outputPath)
}
