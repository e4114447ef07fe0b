// avatar-optimizer consolidates VRM avatar materials: it packs MToon
// textures into per-channel atlases, encodes material parameters into
// a lookup texture, and merges meshes into one draw call per render
// mode.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/WebXR-JP/avatar-optimizer-sub000/internal/config"
	"github.com/WebXR-JP/avatar-optimizer-sub000/internal/logger"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/export"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/optimizer"
	"github.com/WebXR-JP/avatar-optimizer-sub000/pkg/scene"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "optimize", "opt":
		cmdOptimize(args)
	case "info":
		cmdInfo(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`avatar-optimizer - VRM avatar material consolidation

Usage:
  avatar-optimizer <command> [options]

Commands:
  optimize <file.vrm>   Atlas textures and merge meshes into one draw call per render mode
  info <file.vrm>       Show model statistics (meshes, materials, textures)

Options (optimize):
  -o <path>        Output file (default: <input>.optimized.vrm)
  -f               Overwrite an existing output file
  -atlas-size <n>  Atlas width/height in pixels (default 2048)
  -config <path>   Config file path
  -debug           Enable debug logging

Examples:
  avatar-optimizer optimize avatar.vrm
  avatar-optimizer optimize -atlas-size 1024 -o small.vrm avatar.vrm
  avatar-optimizer info avatar.vrm`)
}

func cmdOptimize(args []string) {
	if err := config.ParseFlags(args); err != nil {
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rest := config.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: avatar-optimizer optimize [options] <file.vrm>")
		os.Exit(1)
	}
	input := rest[0]

	output := cfg.Output.Path
	if output == "" {
		output = derivedOutputPath(input)
	}
	if !cfg.Output.Overwrite {
		if _, err := os.Stat(output); err == nil {
			fmt.Fprintf(os.Stderr, "Output exists: %s (use -f to overwrite)\n", output)
			os.Exit(1)
		}
	}

	model, err := scene.Load(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", input, err)
		os.Exit(1)
	}
	logger.Info("model loaded",
		zap.String("path", input),
		zap.Int("meshes", len(model.Meshes)),
		zap.Int("materials", len(model.Materials)))

	opts := optimizer.Options{
		AtlasWidth:    cfg.Atlas.Width,
		AtlasHeight:   cfg.Atlas.Height,
		TexelsPerSlot: cfg.Atlas.TexelsPerSlot,
		SlotAttribute: cfg.Atlas.SlotAttribute,
	}
	res, err := optimizer.Run(model, opts)
	if err != nil {
		if errors.Is(err, optimizer.ErrInvalidMaterial) {
			fmt.Fprintln(os.Stderr, "Error: model contains non-MToon materials; only MToon avatars are supported")
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := export.WriteGLB(model, res, output); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", output, err)
		os.Exit(1)
	}

	fmt.Printf("Optimized: %s\n", output)
	fmt.Printf("  materials: %d -> %d\n", len(model.Materials), len(res.Materials))
	fmt.Printf("  meshes:    %d -> %d (+%d kept for morph targets)\n",
		len(model.Meshes), len(res.Merged), len(model.Excluded))
	if res.Scale < 1 {
		fmt.Printf("  textures downscaled to %.0f%% to fit the %dx%d atlas\n",
			res.Scale*100, opts.AtlasWidth, opts.AtlasHeight)
	}
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: avatar-optimizer info <file.vrm>")
		os.Exit(1)
	}

	model, err := scene.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var verts, tris int
	skinned := 0
	for _, m := range model.Meshes {
		verts += m.Geometry.VertexCount()
		tris += len(m.Geometry.Index) / 3
		if m.Skinned() {
			skinned++
		}
	}
	mtoonCount := 0
	for _, mat := range model.Materials {
		if mat.MToon {
			mtoonCount++
		}
	}

	fmt.Printf("Model:     %s\n", model.Name)
	fmt.Printf("Meshes:    %d (%d skinned, %d with morph targets)\n",
		len(model.Meshes), skinned, len(model.Excluded))
	fmt.Printf("Vertices:  %d\n", verts)
	fmt.Printf("Triangles: %d\n", tris)
	fmt.Printf("Materials: %d (%d MToon)\n", len(model.Materials), mtoonCount)
	fmt.Printf("Textures:  %d\n", len(model.Textures))

	groups := optimizer.GroupByTexturePattern(model.Materials)
	fmt.Printf("\nTexture patterns: %d\n", len(groups))
	for i, g := range groups {
		var names []string
		for _, idx := range g.MaterialIndices {
			names = append(names, model.Materials[idx].Name)
		}
		fmt.Printf("  %d: %dx%d  %s\n", i, g.Size.Width, g.Size.Height, strings.Join(names, ", "))
	}
}

func derivedOutputPath(input string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	if ext == "" {
		ext = ".vrm"
	}
	return base + ".optimized" + ext
}
