package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vzahanych/barcode-scanner/internal/camera"
	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/logger"
)

func main() {
	var configPath string
	var wait time.Duration
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.DurationVar(&wait, "wait", 3*time.Second, "How long to read frames before releasing")
	flag.Parse()

	fmt.Println("=== Camera Acquisition Test ===")
	fmt.Println("This tool acquires a stream with the configured back-end and releases it")
	fmt.Println()

	log, err := logger.New(logger.LogConfig{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfgSvc, err := config.NewService(configPath, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := cfgSvc.Get()

	devices, err := camera.NewMediaDevices(cfg.Camera, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create camera back-end: %v\n", err)
		os.Exit(1)
	}
	mgr := camera.NewManager(devices, camera.ManagerConfigFrom(cfg.Camera), log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Camera.AcquireTimeout+wait+5*time.Second)
	defer cancel()

	found, err := mgr.Devices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to enumerate devices: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Back-end %q reports %d video device(s)\n", cfg.Camera.Backend, len(found))
	for i, d := range found {
		fmt.Printf("  %d. %s (id=%s path=%s)\n", i+1, d.Label, d.ID, d.Path)
	}
	fmt.Println()

	facing := camera.ParseFacing(cfg.Camera.Facing)
	fmt.Printf("Acquiring stream (facing=%s)...\n", facing)
	start := time.Now()
	h, err := mgr.Acquire(ctx, facing)
	if err != nil {
		fmt.Printf("❌ Acquisition failed: %s (%v)\n", camera.KindOf(err), err)
		fmt.Println()
		fmt.Println("To check manually:")
		fmt.Println("  ls -l /dev/video*")
		fmt.Println("  v4l2-ctl --list-devices")
		os.Exit(1)
	}
	fmt.Printf("✅ Acquired %s in %s\n", h.Device().Label, time.Since(start).Round(time.Millisecond))

	time.Sleep(wait)

	feed := h.Feed()
	w, hgt := feed.Size()
	fmt.Printf("  Dimensions:      %dx%d\n", w, hgt)
	fmt.Printf("  Frames read:     %d\n", feed.Frames())
	fmt.Printf("  Torch available: %v\n", h.TorchAvailable())
	if err := feed.Err(); err != nil {
		fmt.Printf("  Track error:     %v\n", err)
	}

	mgr.Release(h)
	stats := mgr.Stats()
	fmt.Println()
	fmt.Printf("Released (acquired=%d released=%d outstanding=%d)\n", stats.Acquired, stats.Released, stats.Outstanding)

	if feed.Frames() == 0 {
		fmt.Println("❌ No frames were delivered")
		os.Exit(1)
	}
	fmt.Println("✅ SUCCESS")
}
