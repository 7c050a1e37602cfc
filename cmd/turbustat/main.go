package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"turbustat/internal/models"
	"turbustat/pkg/batch"
	"turbustat/pkg/config"
	"turbustat/pkg/deltavar"
	"turbustat/pkg/grid"
	"turbustat/pkg/statistic"
)

func main() {
	// Parse command line arguments
	image1 := flag.String("image1", "", "CSV file with the first 2D intensity map")
	image2 := flag.String("image2", "", "CSV file with the second 2D intensity map")
	weights1 := flag.String("weights1", "", "Optional CSV weight map for the first image")
	weights2 := flag.String("weights2", "", "Optional CSV weight map for the second image")
	pixelScale := flag.Float64("pixel-scale", 0, "Angular pixel scale in deg/px (0: pixel units)")
	configPath := flag.String("config", "turbustat.yaml", "Configuration file path")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration file and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *image1 == "" || *image2 == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	data1, err := loadDataset(*image1, *weights1, *pixelScale)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", *image1, err)
	}
	data2, err := loadDataset(*image2, *weights2, *pixelScale)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", *image2, err)
	}

	opts := deltavar.Options{
		DiamRatio: cfg.DeltaVariance.DiamRatio,
		Lags:      cfg.DeltaVariance.Lags,
		Bootstrap: deltavar.BootstrapConfig{
			Enabled:  cfg.DeltaVariance.Bootstrap,
			NSamples: cfg.DeltaVariance.BootstrapSamples,
			Alpha:    cfg.DeltaVariance.BootstrapAlpha,
			Seed:     cfg.DeltaVariance.BootstrapSeed,
		},
	}

	if cfg.Output.Verbose {
		fmt.Println("================================")
		fmt.Println("TURBUSTAT: TURBULENCE STATISTICS FOR PPV DATA")
		fmt.Println("================================")
		fmt.Printf("Comparing %s and %s\n", *image1, *image2)
	}

	startTime := time.Now()

	if cfg.Output.CurveDir != "" {
		// Direct comparator path so both curves can be persisted.
		dd, err := deltavar.NewDeltaVarianceDistance(data1, data2, opts, nil)
		if err != nil {
			log.Fatalf("Delta-variance failed: %v", err)
		}
		if err := dd.DistanceMetric(); err != nil {
			log.Fatalf("Distance metric failed: %v", err)
		}
		fmt.Printf("DeltaVariance distance: %.6f\n", dd.Distance)

		for name, curve := range map[string]*deltavar.Curve{
			baseName(*image1): dd.Curve1,
			baseName(*image2): dd.Curve2,
		} {
			path := filepath.Join(cfg.Output.CurveDir, name+"_deltavar.csv")
			if err := saveCurve(curve, path); err != nil {
				log.Printf("Warning: failed to save curve to %s: %v", path, err)
				continue
			}
			if cfg.Output.Verbose {
				fmt.Printf("Curve saved to: %s\n", path)
			}
		}
	} else {
		// Registry path: run every declared statistic over the pair.
		pairs := []batch.Pair{{Name: baseName(*image1) + "_vs_" + baseName(*image2), Data1: data1, Data2: data2}}
		results := batch.Run(pairs, statistic.Registry(opts), cfg.Processing.NumCores)
		for _, res := range results {
			if res.Err != nil {
				log.Printf("Pair %s failed: %v", res.Pair, res.Err)
				continue
			}
			for name, dist := range res.Distances {
				fmt.Printf("%s distance: %.6f\n", name, dist)
			}
		}
	}

	if cfg.Output.Verbose {
		fmt.Printf("\nCompleted in %.2f seconds\n", time.Since(startTime).Seconds())
	}
}

// loadDataset reads an intensity map and optional weight map from CSV
// files into a decoded dataset.
func loadDataset(imagePath, weightsPath string, pixelScale float64) (*models.Dataset, error) {
	img, err := loadGridCSV(imagePath)
	if err != nil {
		return nil, err
	}
	d := &models.Dataset{
		Image: img,
		Header: models.Header{
			Object:        baseName(imagePath),
			PixelScaleDeg: pixelScale,
		},
	}
	if weightsPath != "" {
		w, err := loadGridCSV(weightsPath)
		if err != nil {
			return nil, err
		}
		d.Weights = w
	}
	return d, nil
}

// loadGridCSV decodes a CSV file of float rows into a grid. "nan" cells
// mark missing data.
func loadGridCSV(path string) (*grid.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty image", path)
	}

	height := len(records)
	width := len(records[0])
	data := make([]float64, 0, width*height)
	for y, row := range records {
		if len(row) != width {
			return nil, fmt.Errorf("%s: row %d has %d columns, want %d", path, y, len(row), width)
		}
		for x, field := range row {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: cell (%d,%d): %w", path, y, x, err)
			}
			data = append(data, v)
		}
	}
	return grid.FromData(data, width, height)
}

// saveCurve writes a computed curve as CSV, creating the directory if
// needed.
func saveCurve(c *deltavar.Curve, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.WriteCSV(f)
}

// baseName strips the directory and extension from a path for use as a
// label.
func baseName(path string) string {
	name := filepath.Base(path)
	return name[:len(name)-len(filepath.Ext(name))]
}
