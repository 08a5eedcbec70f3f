package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mcmlview/internal/logging"
	"mcmlview/pkg/bitmap"
	"mcmlview/pkg/config"
	"mcmlview/pkg/dataset"
	"mcmlview/pkg/render"
	"mcmlview/pkg/transport"
	"mcmlview/pkg/visualization"
)

// errNoDataset means neither a dataset file nor a synthetic size was given.
var errNoDataset = errors.New("no dataset: set -dataset, dataset.path or -synthetic")

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	datasetPath := flag.String("dataset", "", "Dataset file (overrides dataset.path)")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.address)")
	info := flag.Bool("info", false, "Print dataset header and per-layer statistics, then exit")
	gist := flag.Bool("gist", false, "Print the histogram JSON of the configured layer, then exit")
	snapshot := flag.String("snapshot", "", "Write the initial frame to this BMP file, then exit")
	framesDir := flag.String("frames", "", "Write every displayed frame to this directory")
	synthetic := flag.String("synthetic", "", "Use a generated dataset of size LxXxYxZ instead of a file, e.g. 3x64x64x32")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config file: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *datasetPath != "" {
		cfg.Dataset.Path = *datasetPath
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}
	logging.SetLogger(logging.New(os.Stderr, cfg.Output.Verbose, cfg.Output.LogFormat))

	ds, err := loadDataset(cfg, *synthetic)
	if errors.Is(err, errNoDataset) {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}

	switch {
	case *info:
		printInfo(ds)
		return
	case *gist:
		if err := printGist(ds, cfg); err != nil {
			log.Fatalf("Failed to compute histogram: %v", err)
		}
		return
	}

	engine, err := newEngine(ds, cfg)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	if *snapshot != "" {
		if err := writeSnapshot(engine, *snapshot); err != nil {
			log.Fatalf("Failed to write snapshot: %v", err)
		}
		fmt.Printf("Frame saved to: %s\n", *snapshot)
		return
	}

	if err := serve(engine, cfg, *framesDir); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func loadDataset(cfg *config.Config, synthetic string) (*dataset.Dataset, error) {
	if synthetic != "" {
		var l, x, y, z int
		if _, err := fmt.Sscanf(synthetic, "%dx%dx%dx%d", &l, &x, &y, &z); err != nil {
			return nil, fmt.Errorf("invalid synthetic size %q: %w", synthetic, err)
		}
		return dataset.Synthesize(l, x, y, z)
	}
	if cfg.Dataset.Path == "" {
		return nil, errNoDataset
	}

	order, err := cfg.ByteOrder()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	ds, err := dataset.Open(cfg.Dataset.Path, dataset.WithByteOrder(order))
	if err != nil {
		return nil, err
	}
	fmt.Printf("Loaded %s in %.2f seconds\n", cfg.Dataset.Path, time.Since(start).Seconds())
	return ds, nil
}

func newEngine(ds *dataset.Dataset, cfg *config.Config) (*render.Engine, error) {
	opts := cfg.EngineOptions()
	if cfg.Render.AutoBounds {
		lo, hi, err := dataset.SliceQuantiles(ds.Layer(ds.WrapLayer(opts.Initial.Layer)), ds.WrapZ(opts.Initial.Z), 0.02, 0.98)
		if err != nil {
			return nil, err
		}
		opts.Initial.Lower, opts.Initial.Upper = lo, hi
		logging.Logger().Info("auto bounds", "lower", lo, "upper", hi)
	}
	return render.NewEngine(ds, opts)
}

func printInfo(ds *dataset.Dataset) {
	h := ds.Header
	fmt.Println("================================")
	fmt.Println("MCML DATASET")
	fmt.Println("================================")
	fmt.Printf("Layers: %d\n", h.LayerCount)
	fmt.Printf("Photons: %d\n", h.PhotonCount)
	fmt.Printf("Grid: %d x %d x %d\n", h.DimX, h.DimY, h.DimZ)
	fmt.Printf("Bounds: (%g, %g, %g) - (%g, %g, %g)\n", h.Min.X, h.Min.Y, h.Min.Z, h.Max.X, h.Max.Y, h.Max.Z)

	fmt.Println("\nLayer statistics:")
	for l := 0; l < ds.LayerCount(); l++ {
		s := dataset.ComputeStats(ds.Layer(l))
		fmt.Printf("- Layer %d: min %.6g, max %.6g, mean %.6g, std %.6g, sum %.6g, non-zero %d\n",
			l, s.Min, s.Max, s.Mean, s.StdDev, s.Sum, s.NonZero)
	}
}

func printGist(ds *dataset.Dataset, cfg *config.Config) error {
	engine, err := newEngine(ds, cfg)
	if err != nil {
		return err
	}
	g, err := engine.DefaultGist()
	if err != nil {
		return err
	}
	out, err := json.Marshal(g)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func writeSnapshot(engine *render.Engine, path string) error {
	frame, _, err := engine.Frame()
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bitmap.Write(file, frame); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// serve runs the viewer loop and the HTTP transport until interrupted.
func serve(engine *render.Engine, cfg *config.Config, framesDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var surface visualization.Surface = &visualization.MemorySurface{}
	if framesDir != "" {
		dir, err := visualization.NewDirSurface(framesDir)
		if err != nil {
			return err
		}
		surface = dir
	}
	viewer := visualization.NewViewer(engine, surface, cfg.Render.Interval)
	server := transport.NewServer(transport.ServerConfig{
		Address: cfg.Server.Address,
		Engine:  engine,
	})

	dx, dy, dz := engine.Dataset().Dims()
	fmt.Println("================================")
	fmt.Println("MCML SLICE VIEWER")
	fmt.Println("================================")
	fmt.Printf("Dataset: %d layers of %d x %d x %d\n", engine.Dataset().LayerCount(), dx, dy, dz)
	fmt.Printf("View: %d x %d (%s)\n", cfg.View.Width, cfg.View.Height, cfg.View.Filter)
	fmt.Printf("Listening on http://%s\n", cfg.Server.Address)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		viewer.Run(ctx)
	}()

	// a listen failure also stops the viewer
	err := server.Start(ctx)
	cancel()
	wg.Wait()

	fmt.Printf("\nStopped after %d renders, %d frames displayed\n", engine.Renders(), viewer.Uploads())
	return err
}
