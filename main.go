// Package main provides the arbor-tracer command: it analyses the dendritic
// arbor of a neuron micrograph and writes the branch measurements.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"arbor-tracer/internal/config"
	"arbor-tracer/internal/graph"
	"arbor-tracer/internal/logging"
	"arbor-tracer/internal/overlay"
	"arbor-tracer/internal/pipeline"
	"arbor-tracer/internal/preprocess"
	"arbor-tracer/internal/raster"
	"arbor-tracer/internal/report"
	"arbor-tracer/internal/skeleton"
	"arbor-tracer/internal/soma"
	"arbor-tracer/internal/version"
	"arbor-tracer/pkg/geometry"

	"github.com/dustin/go-humanize"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	imagePath := flag.String("image", "", "Path to neuron image ("+strings.Join(raster.SupportedFormats(), ", ")+")")
	configPath := flag.String("config", "", "TOML settings file")
	rootFlag := flag.String("root", "", "Soma centre as x,y in processed image pixels")
	radius := flag.Int("radius", -1, "Soma radius in pixels (overrides [root] radius)")
	out := flag.String("out", "", "Report path (.arbor.json); CSV is written next to it")
	overlayPath := flag.String("overlay", "", "Write an overlay image to this path")
	workers := flag.Int("workers", -1, "Measurement goroutines (overrides [pipeline] workers)")
	policy := flag.String("policy", "", "Branch failure policy: failfast or skip")
	verbose := flag.Bool("v", false, "Debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *imagePath == "" || *rootFlag == "" {
		fmt.Println("Usage: arbor-tracer -image <path> -root x,y [-radius r] [-config file.toml] [-out report.arbor.json] [-overlay out.png]")
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Config: %v", err)
		}
	}
	if *radius >= 0 {
		cfg.Root.Radius = *radius
	}
	if *workers >= 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *policy != "" {
		cfg.Pipeline.Policy = *policy
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config: %v", err)
	}

	closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatalf("Logging: %v", err)
	}
	defer closer.Close()

	center, err := parsePoint(*rootFlag)
	if err != nil {
		log.Fatalf("Bad -root: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *imagePath, center, *out, *overlayPath); err != nil {
		closer.Close()
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config, imagePath string, center geometry.Point, out, overlayPath string) error {
	start := time.Now()

	img, err := raster.Load(imagePath)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %s: %dx%d pixels\n", imagePath, img.Width(), img.Height())

	pre, err := preprocess.Run(img.Gray, cfg.Preprocess)
	if err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}
	fmt.Printf("Mask: %s pixels, skeleton: %s pixels\n",
		humanize.Comma(int64(pre.Mask.Count())), humanize.Comma(int64(pre.Skeleton.Count())))

	root, grid, err := soma.FromDisk(skeleton.FromRaster(pre.Skeleton), center, cfg.Root.Radius)
	if err != nil {
		return fmt.Errorf("soma: %w", err)
	}

	res, err := pipeline.Analyze(ctx, grid, pre.Mask, root, cfg.Options())
	if err != nil && (res == nil || res.Graph == nil || !errors.Is(err, graph.ErrDisconnected)) {
		return err
	}
	if err != nil {
		log.Printf("Main path unavailable: %v", err)
	}

	if res.Root.Root != center {
		fmt.Printf("Root moved from %s to %s\n", center, res.Root.Root)
	}
	printSummary(res, img)

	if out != "" {
		f := report.New(res, res.Root)
		f.SetImage(out, imagePath)
		f.PixelsPerMicron = img.PixelsPerMicron
		if err := f.Save(out); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
		csvPath := strings.TrimSuffix(strings.TrimSuffix(out, ".json"), ".arbor") + ".csv"
		if err := writeCSV(csvPath, f); err != nil {
			return err
		}
		info, _ := os.Stat(out)
		size := uint64(0)
		if info != nil {
			size = uint64(info.Size())
		}
		fmt.Printf("Report: %s (%s), table: %s\n", out, humanize.Bytes(size), csvPath)
	}

	if overlayPath != "" {
		opts := overlay.Options{Display: cfg.Display, CurveSamples: cfg.Measure.CurveSamples}
		if err := overlay.Save(overlayPath, pre.Gray, res, res.Root, opts); err != nil {
			return err
		}
		fmt.Printf("Overlay: %s\n", overlayPath)
	}

	fmt.Printf("Done in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func printSummary(res *pipeline.Result, img *raster.Image) {
	fmt.Printf("\nJunctions: %d, branches: %d (dropped %d, skipped %d)\n",
		res.Junctions.Len(), len(res.Branches), res.Dropped, len(res.Skipped))
	fmt.Printf("%-6s %-11s %-11s %6s %10s %10s %5s\n",
		"#", "Start", "End", "Degree", "Thickness", "Length", "Main")
	fmt.Println(strings.Repeat("-", 66))

	for i, b := range res.Branches {
		mark := ""
		if res.MainPath.HasBranch(i) {
			mark = "*"
		}
		fmt.Printf("%-6d %-11s %-11s %6d %10.2f %10.2f %5s\n",
			i, b.Start(), b.End(), b.Degree, b.Thickness, b.Length, mark)
	}

	fmt.Printf("\nMain path: %s px over %d branches", humanize.Ftoa(res.MainPath.Length), len(res.MainPath.Edges))
	if um := img.Microns(res.MainPath.Length); um > 0 {
		fmt.Printf(" (%s µm)", humanize.FtoaWithDigits(um, 1))
	}
	fmt.Println()
}

func writeCSV(path string, f *report.File) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.WriteCSV(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// parsePoint reads "x,y".
func parsePoint(s string) (geometry.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return geometry.Point{}, fmt.Errorf("want x,y, got %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return geometry.Point{}, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return geometry.Point{}, err
	}
	return geometry.Pt(x, y), nil
}
