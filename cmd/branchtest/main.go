// Command branchtest runs the branch pipeline on a binary skeleton image and
// prints the branch table. OpenCV is only used with -thin.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"arbor-tracer/internal/pipeline"
	"arbor-tracer/internal/preprocess"
	"arbor-tracer/internal/raster"
	"arbor-tracer/internal/skeleton"
	"arbor-tracer/pkg/geometry"
)

func main() {
	skelPath := flag.String("skeleton", "", "Binary skeleton image (white on black)")
	maskPath := flag.String("mask", "", "Binary neuron mask (defaults to the unthinned skeleton image)")
	thin := flag.Bool("thin", false, "Thin the skeleton image first")
	x := flag.Int("x", -1, "Root x")
	y := flag.Int("y", -1, "Root y")
	degree := flag.Int("degree", 8, "Polynomial degree")
	policy := flag.String("policy", "skip", "Branch failure policy: failfast or skip")
	flag.Parse()

	if *skelPath == "" || *x < 0 || *y < 0 {
		fmt.Println("Usage: branchtest -skeleton <path> -x <root x> -y <root y> [-mask <path>] [-thin] [-degree 8]")
		os.Exit(1)
	}

	skel, err := loadBitmap(*skelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load skeleton: %v\n", err)
		os.Exit(1)
	}
	mask := skel
	if *thin {
		if skel, err = preprocess.Thin(skel); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to thin skeleton: %v\n", err)
			os.Exit(1)
		}
	}
	if *maskPath != "" {
		if mask, err = loadBitmap(*maskPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load mask: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Skeleton: %dx%d, %d pixels\n", skel.W, skel.H, skel.Count())

	opts := pipeline.DefaultOptions()
	opts.Degree = *degree
	if opts.Policy, err = pipeline.ParsePolicy(*policy); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	root := skeleton.RootInfo{Root: geometry.Pt(*x, *y)}
	res, err := pipeline.Run(context.Background(), skel, mask, root, opts)
	if res == nil || res.Graph == nil {
		fmt.Fprintf(os.Stderr, "Pipeline failed: %v\n", err)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	if res.Root.Root != root.Root {
		fmt.Printf("Root moved from %s to %s\n", root.Root, res.Root.Root)
	}

	fmt.Printf("\nJunctions (%d):\n", res.Junctions.Len())
	for _, j := range res.Junctions.Points() {
		fmt.Printf("  %s\n", j)
	}

	fmt.Printf("\nBranches (%d, %d dropped as too short):\n", len(res.Branches), res.Dropped)
	fmt.Printf("%-6s %-11s %-11s %6s %8s %6s %10s %10s\n",
		"#", "Start", "End", "Points", "Terminal", "Degree", "Thickness", "Length")
	fmt.Println(strings.Repeat("-", 76))
	for i, b := range res.Branches {
		fmt.Printf("%-6d %-11s %-11s %6d %8v %6d %10.2f %10.2f\n",
			i, b.Start(), b.End(), len(b.Points), b.Terminal, b.Degree, b.Thickness, b.Length)
	}
	for _, s := range res.Skipped {
		fmt.Printf("Skipped: %v\n", s)
	}
	for _, r := range res.Rejected {
		fmt.Printf("Not in graph: branch %d (%s)\n", r.Branch, r.Reason)
	}

	fmt.Printf("\nMain path (%.2f px):", res.MainPath.Length)
	for _, n := range res.MainPath.Nodes {
		fmt.Printf(" %s", n)
	}
	fmt.Println()
}

func loadBitmap(path string) (*raster.Bitmap, error) {
	img, err := raster.Load(path)
	if err != nil {
		return nil, err
	}
	return raster.FromGray(img.Gray, 127), nil
}
