package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-mesh/internal/config"
	"github.com/Faultbox/midgard-mesh/internal/gpu"
	"github.com/Faultbox/midgard-mesh/internal/logger"
	"github.com/Faultbox/midgard-mesh/internal/primitive"
	"github.com/Faultbox/midgard-mesh/internal/window"
	"github.com/Faultbox/midgard-mesh/pkg/material"
	"github.com/Faultbox/midgard-mesh/pkg/math"
	"github.com/Faultbox/midgard-mesh/pkg/mesh"
	"github.com/Faultbox/midgard-mesh/pkg/subdiv"
)

// meshFlags are the options every mesh command takes.
type meshFlags struct {
	kind   string
	scale  float64
	rotate float64
}

func parseMeshFlags(name string, args []string) (*meshFlags, string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	mf := &meshFlags{}
	fs.StringVar(&mf.kind, "kind", "", "Mesh representation: poly or tri")
	fs.Float64Var(&mf.scale, "scale", 1, "Uniform scale")
	fs.Float64Var(&mf.rotate, "rotate", 0, "Rotation about +y in degrees")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return nil, "", fmt.Errorf("usage: meshtool %s [options] <primitive>", name)
	}
	return mf, fs.Arg(0), nil
}

// build creates the primitive in the representation the configured scheme
// refines, unless --kind says otherwise, and applies the transform flags.
func build(cfg *config.Config, mf *meshFlags, name string) (mesh.Mesh, subdiv.Scheme, error) {
	scheme, err := subdiv.Lookup(cfg.Subdivision.Scheme)
	if err != nil {
		return nil, nil, err
	}
	kind := scheme.Kind()
	switch mf.kind {
	case "":
	case "poly":
		kind = mesh.KindPoly
	case "tri":
		kind = mesh.KindTri
	default:
		return nil, nil, fmt.Errorf("unknown mesh kind %q", mf.kind)
	}

	m, err := primitive.Build(name, material.NewMemoryDepot(), kind, mesh.Options{
		Capacity: cfg.Mesh.InitialCapacity,
		UVLayers: cfg.Mesh.UVLayers,
	})
	if err != nil {
		return nil, nil, err
	}

	if mf.scale != 1 || mf.rotate != 0 {
		s := float32(mf.scale)
		angle := float32(mf.rotate) * math32.Pi / 180
		m.TransformPoints(math.RotateAxis(math.Vec3{Y: 1}, angle).Mul(math.Scale(s, s, s)))
	}
	return m, scheme, nil
}

func subdivide(cfg *config.Config, m mesh.Mesh, scheme subdiv.Scheme) (mesh.Mesh, time.Duration, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sc := cfg.Subdivision
	start := time.Now()
	out, err := subdiv.Subdivide(ctx, m, scheme, sc.Levels, subdiv.Options{
		Parallel:  sc.Parallel,
		Workers:   sc.Workers,
		ChunkSize: sc.ChunkSize,
	})
	return out, time.Since(start), err
}

func printStat(title string, m mesh.Mesh) {
	fmt.Printf("%s (%s)\n", title, m.Kind())
	for _, line := range strings.Split(m.Stat().String(), "\n") {
		fmt.Printf("  %s\n", line)
	}
}

func cmdInfo(cfg *config.Config, args []string) error {
	mf, name, err := parseMeshFlags("info", args)
	if err != nil {
		return err
	}
	m, _, err := build(cfg, mf, name)
	if err != nil {
		return err
	}

	printStat(name, m)
	fmt.Println("  Materials:")
	for _, e := range m.Usage().Entries() {
		fmt.Printf("    %-4d %d faces %v\n", e.Handle, e.Count, m.Usage().Uniforms(e.Handle)["name"])
	}
	return nil
}

func cmdCheck(cfg *config.Config, args []string) error {
	mf, name, err := parseMeshFlags("check", args)
	if err != nil {
		return err
	}
	m, scheme, err := build(cfg, mf, name)
	if err != nil {
		return err
	}
	if !m.SanityCheck() {
		return reportIssues(name, m)
	}

	out, _, err := subdivide(cfg, m, scheme)
	if err != nil {
		return err
	}
	if !out.SanityCheck() {
		return reportIssues(fmt.Sprintf("%s after %d levels", name, cfg.Subdivision.Levels), out)
	}
	fmt.Printf("%s: ok (%s, %d levels)\n", name, scheme.Name(), cfg.Subdivision.Levels)
	return nil
}

func reportIssues(title string, m mesh.Mesh) error {
	issues := m.SanityReport()
	fmt.Printf("%s: %d issues\n", title, len(issues))
	for _, issue := range issues {
		fmt.Printf("  %s\n", issue)
	}
	return errors.New("sanity check failed")
}

func cmdSubdivide(cfg *config.Config, args []string) error {
	mf, name, err := parseMeshFlags("subdivide", args)
	if err != nil {
		return err
	}
	m, scheme, err := build(cfg, mf, name)
	if err != nil {
		return err
	}

	printStat(fmt.Sprintf("%s level 0", name), m)
	one := *cfg
	one.Subdivision.Levels = 1
	var total time.Duration
	for level := 1; level <= cfg.Subdivision.Levels; level++ {
		next, took, err := subdivide(&one, m, scheme)
		if err != nil {
			return fmt.Errorf("level %d: %w", level, err)
		}
		total += took
		printStat(fmt.Sprintf("%s level %d, %s", name, level, took.Round(time.Microsecond)), next)
		if level > 1 {
			releaseUsage(m)
		}
		m = next
	}
	logger.Info("subdivision done",
		zap.String("primitive", name),
		zap.String("scheme", scheme.Name()),
		zap.Int("levels", cfg.Subdivision.Levels),
		zap.Bool("parallel", cfg.Subdivision.Parallel),
		zap.Duration("elapsed", total),
	)
	return nil
}

// releaseUsage gives back the material references of a dropped mesh.
func releaseUsage(m mesh.Mesh) {
	u := m.Usage()
	for _, e := range u.Entries() {
		u.ReleaseRef(e.Handle, e.Count)
	}
}

func cmdUpload(cfg *config.Config, args []string) error {
	mf, name, err := parseMeshFlags("upload", args)
	if err != nil {
		return err
	}
	if !cfg.GPU.Enabled {
		return errors.New("gpu disabled in config")
	}
	m, scheme, err := build(cfg, mf, name)
	if err != nil {
		return err
	}
	out, took, err := subdivide(cfg, m, scheme)
	if err != nil {
		return err
	}

	win, err := window.New(window.Config{
		Title:  "meshtool",
		Width:  cfg.GPU.Width,
		Height: cfg.GPU.Height,
		Hidden: true,
	})
	if err != nil {
		return err
	}
	defer win.Close()

	up, err := gpu.NewUploader()
	if err != nil {
		return err
	}
	defer up.Close()

	touched, err := up.Sync(out)
	if err != nil {
		return err
	}
	tris, err := up.UploadPullBuffer(out)
	if err != nil {
		return err
	}

	// a second sync only re-sends what moved
	out.TransformPoints(math.Translate(0, 1, 0))
	again, err := up.Sync(out)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d levels of %s in %s\n", name, cfg.Subdivision.Levels, scheme.Name(), took.Round(time.Microsecond))
	fmt.Printf("  Textures:   %s\n", strings.Join(touched, ", "))
	fmt.Printf("  Resync:     %s\n", strings.Join(again, ", "))
	fmt.Printf("  Triangles:  %d\n", tris)
	if t := up.Texture("points"); t != nil {
		fmt.Printf("  Points:     %dx%d\n", t.Width, t.Height)
	}
	return nil
}

func cmdList() {
	fmt.Println("Primitives:")
	for _, n := range primitive.Names() {
		fmt.Printf("  %s\n", n)
	}
	fmt.Println("Schemes:")
	for _, n := range subdiv.Names() {
		s, _ := subdiv.Lookup(n)
		fmt.Printf("  %-14s %s meshes\n", n, s.Kind())
	}
}
