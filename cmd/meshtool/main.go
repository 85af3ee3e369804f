// meshtool builds, subdivides, checks and uploads the built-in meshes.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/internal/config"
	"github.com/Faultbox/midgard-mesh/internal/logger"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
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

	command := args[0]
	rest := args[1:]

	switch command {
	case "info":
		err = cmdInfo(cfg, rest)
	case "check":
		err = cmdCheck(cfg, rest)
	case "subdivide", "sub":
		err = cmdSubdivide(cfg, rest)
	case "upload":
		err = cmdUpload(cfg, rest)
	case "list", "ls":
		cmdList()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshtool - mesh topology and subdivision utility

Usage:
  meshtool [global options] <command> [options] <primitive>

Commands:
  info <primitive>        Show mesh statistics
  check <primitive>       Subdivide and run the topology sanity checks
  subdivide <primitive>   Subdivide and report every level
  upload <primitive>      Subdivide and upload the arrays to the GPU
  list                    List primitives and schemes

Global options:
  --config <file>         Config file
  --debug                 Enable debug logging
  --scheme <name>         catmull-clark, loop or butterfly
  --levels <n>            Subdivision levels
  --parallel              Subdivide on a worker pool
  --workers <n>           Worker count
  --no-gpu                Skip GPU uploads

Command options:
  --kind poly|tri         Mesh representation (default: what the scheme refines)
  --scale <f>             Uniform scale applied before subdividing
  --rotate <deg>          Rotation about +y applied before subdividing

Examples:
  meshtool info cube
  meshtool --scheme loop --levels 3 subdivide octahedron
  meshtool --parallel --workers 8 check --kind poly grid
  meshtool --levels 4 upload tetrahedron`)
}
