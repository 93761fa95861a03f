package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/config"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/manifest"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/pipeline"
	"github.com/JustinePa/ARMS-marine-alien-SDM/internal/store"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to the study configuration JSON (required)")
		cacheDir    = flag.String("cache-dir", "", "override the cache directory")
		figurePath  = flag.String("figure", "", "override the figure output path")
		diagnostics = flag.Bool("diagnostics", false, "write per-layer diagnostic images and the coverage report")
		listRuns    = flag.Int("list-runs", 0, "print the last N manifest entries and exit")
	)
	flag.Parse()

	if *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}
	if *figurePath != "" {
		cfg.FigurePath = *figurePath
	}
	if *diagnostics {
		cfg.Diagnostics = true
	}

	if *listRuns > 0 {
		if cfg.ManifestPath == "" {
			log.Fatal("list-runs requires manifest_path in the config")
		}
		printRuns(cfg.ManifestPath, *listRuns)
		return
	}

	p, err := pipeline.New(cfg, store.OSFileSystem{})
	if err != nil {
		log.Fatalf("init pipeline: %v", err)
	}
	if err := p.Run(); err != nil {
		log.Fatalf("pipeline: %v", err)
	}
}

func printRuns(manifestPath string, n int) {
	db, err := manifest.Open(manifestPath)
	if err != nil {
		log.Fatalf("open manifest: %v", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(n)
	if err != nil {
		log.Fatalf("list runs: %v", err)
	}
	for _, r := range runs {
		fmt.Printf("%s  %-8s  run=%s  hits=%d misses=%d  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Stage, r.RunID,
			r.CacheHits, r.CacheMisses, r.Duration.Round(time.Millisecond))
	}
}
