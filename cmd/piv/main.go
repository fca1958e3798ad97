// Command piv runs the displacement analysis over image pairs and writes
// text-column results, optionally recording them to a SQLite store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/flowfield/field"
	"github.com/banshee-data/flowfield/internal/config"
	"github.com/banshee-data/flowfield/internal/imageio"
	"github.com/banshee-data/flowfield/internal/store"
	"github.com/banshee-data/flowfield/internal/units"
	"github.com/banshee-data/flowfield/piv"
)

var (
	frameA     = flag.String("a", "", "First frame of a single pair")
	frameB     = flag.String("b", "", "Second frame of a single pair")
	dir        = flag.String("dir", "", "Directory of frames to pair up (sorted by name)")
	step       = flag.Int("step", 1, "Pairing stride in directory mode: 1 pairs (1,2),(2,3); 2 pairs (1,2),(3,4)")
	configPath = flag.String("config", "", "Analysis config JSON (engine defaults when omitted)")
	outDir     = flag.String("out", ".", "Directory for text results")
	dbPath     = flag.String("db", "", "Optional SQLite results store")
	cpus       = flag.Int("cpus", runtime.NumCPU(), "Concurrent image pairs")
	speedUnits = flag.String("units", units.MPS, "Units for logged mean speed: "+units.GetValidUnitsString())
)

type pair struct {
	a, b string
}

func main() {
	flag.Parse()

	if !units.IsValid(*speedUnits) {
		log.Fatalf("invalid units %q, expected one of: %s", *speedUnits, units.GetValidUnitsString())
	}

	settings := piv.DefaultSettings()
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		if settings, err = cfg.Settings(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}
	}

	pairs, err := collectPairs()
	if err != nil {
		log.Fatal(err)
	}
	if len(pairs) == 0 {
		log.Fatal("no image pairs to process (use -a/-b or -dir)")
	}

	var db *store.Store
	if *dbPath != "" {
		if db, err = store.Open(*dbPath); err != nil {
			log.Fatalf("failed to open results store: %v", err)
		}
		defer db.Close()
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}

	scale, err := units.NewScale(settings.ScalingFactor, settings.DT)
	if err != nil {
		log.Fatalf("invalid physical scale: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Printf("[piv] processing %d pairs with %d workers", len(pairs), *cpus)

	// Pairs are independent; a failed pair is logged and skipped so the
	// rest of the batch continues.
	var g errgroup.Group
	g.SetLimit(*cpus)
	var failed atomic.Int64
	for _, p := range pairs {
		g.Go(func() error {
			if err := processPair(ctx, p, settings, scale, db); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("[piv] %s -> %s failed: %v", p.a, p.b, err)
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("[piv] aborted: %v", err)
	}
	if n := failed.Load(); n > 0 {
		log.Printf("[piv] done, %d of %d pairs failed", n, len(pairs))
		os.Exit(1)
	}
	log.Printf("[piv] done")
}

func collectPairs() ([]pair, error) {
	if *frameA != "" || *frameB != "" {
		if *frameA == "" || *frameB == "" {
			return nil, fmt.Errorf("-a and -b must be given together")
		}
		return []pair{{*frameA, *frameB}}, nil
	}
	if *dir == "" {
		return nil, nil
	}
	if *step < 1 {
		return nil, fmt.Errorf("-step must be at least 1, got %d", *step)
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
			frames = append(frames, filepath.Join(*dir, e.Name()))
		}
	}
	sort.Strings(frames)

	var pairs []pair
	for i := 0; i+1 < len(frames); i += *step {
		pairs = append(pairs, pair{frames[i], frames[i+1]})
	}
	return pairs, nil
}

func processPair(ctx context.Context, p pair, settings piv.Settings, scale units.Scale, db *store.Store) error {
	a, err := imageio.LoadFrame(p.a)
	if err != nil {
		return err
	}
	b, err := imageio.LoadFrame(p.b)
	if err != nil {
		return err
	}
	a, b = imageio.Conform(a, b)

	engine, err := piv.New(settings)
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, a, b)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(p.a), filepath.Ext(p.a))
	outPath := filepath.Join(*outDir, name+".txt")
	if err := imageio.SaveText(outPath, res); err != nil {
		return err
	}

	if db != nil {
		runID, err := db.RecordRun(p.a, p.b, settings, res)
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		log.Printf("[piv] %s recorded as run %s", name, runID)
	}

	meanU, meanV := fieldMeans(res)
	log.Printf("[piv] %s: grid %dx%d mean speed u=%.3f v=%.3f %s, %d flagged, wrote %s",
		name, res.U.Rows, res.U.Cols,
		units.ConvertSpeed(scale.Velocity(meanU), *speedUnits),
		units.ConvertSpeed(scale.Velocity(meanV), *speedUnits),
		*speedUnits, res.Flags.Count(), outPath)
	return nil
}

func fieldMeans(res *piv.Result) (meanU, meanV float64) {
	meanU = mean(res.U)
	meanV = mean(res.V)
	return meanU, meanV
}

func mean(f *field.Field) float64 {
	sum := 0.0
	for _, v := range f.Data {
		sum += v
	}
	if len(f.Data) == 0 {
		return 0
	}
	return sum / float64(len(f.Data))
}
