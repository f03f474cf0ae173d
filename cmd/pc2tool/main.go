// pc2tool is a CLI utility for inspecting PC2 point caches and body model archives.
package main

import (
	"flag"
	"fmt"
	gomath "math"
	"os"

	"github.com/Faultbox/smplcache/pkg/formats"
	"github.com/Faultbox/smplcache/pkg/math"
	"github.com/Faultbox/smplcache/pkg/smpl"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "dump":
		cmdDump(args)
	case "model":
		cmdModel(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pc2tool - PC2 point cache utility

Usage:
  pc2tool <command> [options]

Commands:
  info <file.pc2>                      Show header and first-frame bounds
  dump [-frame N] [-n N] <file.pc2>    Print vertex positions of one frame
  model <file.npz>                     Show body model dimensions

Examples:
  pc2tool info walk_01.pc2
  pc2tool dump -frame 10 -n 20 walk_01.pc2
  pc2tool model smpl_male.npz`)
}

func mustParse(path string) *formats.PC2 {
	pc, err := formats.ParsePC2File(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return pc
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pc2tool info <file.pc2>")
		os.Exit(1)
	}

	pc := mustParse(args[0])
	h := pc.Header

	elem := "float32"
	if pc.Float16 {
		elem = "float16"
	}

	fmt.Printf("File:        %s\n", args[0])
	fmt.Printf("Version:     %d\n", h.Version)
	fmt.Printf("Vertices:    %d\n", h.NumPoints)
	fmt.Printf("Frames:      %d\n", h.NumSamples)
	fmt.Printf("Start frame: %g\n", h.StartFrame)
	fmt.Printf("Sample rate: %g\n", h.SampleRate)
	fmt.Printf("Components:  %s\n", elem)

	if len(pc.Frames) == 0 || len(pc.Frames[0]) == 0 {
		return
	}
	lo, hi := bounds(pc.Frames[0])
	fmt.Println()
	fmt.Println("First frame bounds:")
	fmt.Printf("  X  %10.4f .. %10.4f\n", lo.X, hi.X)
	fmt.Printf("  Y  %10.4f .. %10.4f\n", lo.Y, hi.Y)
	fmt.Printf("  Z  %10.4f .. %10.4f\n", lo.Z, hi.Z)
}

func cmdDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	frame := fs.Int("frame", 0, "Frame to print")
	limit := fs.Int("n", 0, "Limit output to N vertices (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pc2tool dump [-frame N] [-n N] <file.pc2>")
		os.Exit(1)
	}

	pc := mustParse(fs.Arg(0))
	if *frame < 0 || *frame >= len(pc.Frames) {
		fmt.Fprintf(os.Stderr, "Frame %d out of range (file has %d)\n", *frame, len(pc.Frames))
		os.Exit(1)
	}

	for i, v := range pc.Frames[*frame] {
		if *limit > 0 && i >= *limit {
			fmt.Fprintf(os.Stderr, "\n(showing first %d vertices, use -n 0 for all)\n", *limit)
			break
		}
		fmt.Printf("%6d %12.6f %12.6f %12.6f\n", i, v.X, v.Y, v.Z)
	}
}

func cmdModel(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: pc2tool model <file.npz>")
		os.Exit(1)
	}

	params, err := formats.ReadModelNPZ(args[0], formats.ModelOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	model, err := smpl.NewModel(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model:    %s\n", args[0])
	fmt.Printf("Vertices: %d\n", model.NumVertices())
	fmt.Printf("Faces:    %d\n", len(model.Faces()))
	fmt.Printf("Joints:   %d\n", model.NumJoints())
	fmt.Printf("Shapes:   %d\n", model.NumShapes())

	lo, hi := bounds(params.Template)
	fmt.Printf("Height:   %.4f\n", hi.Y-lo.Y)
}

// bounds returns the per-axis minimum and maximum of a point set.
func bounds(points []math.Vec3) (lo, hi math.Vec3) {
	lo = math.Vec3{X: gomath.Inf(1), Y: gomath.Inf(1), Z: gomath.Inf(1)}
	hi = math.Vec3{X: gomath.Inf(-1), Y: gomath.Inf(-1), Z: gomath.Inf(-1)}
	for _, p := range points {
		lo = math.Vec3{X: gomath.Min(lo.X, p.X), Y: gomath.Min(lo.Y, p.Y), Z: gomath.Min(lo.Z, p.Z)}
		hi = math.Vec3{X: gomath.Max(hi.X, p.X), Y: gomath.Max(hi.Y, p.Y), Z: gomath.Max(hi.Z, p.Z)}
	}
	return lo, hi
}
