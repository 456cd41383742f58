// Slide Tap Helper - presenter desktop helper for the student tap system
//
// Captures slide screenshots on a trigger (hotkey, HTTP or sentinel file),
// uploads them to the session's cloud backend, and overlays incoming student
// taps as fading dots.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slidetap/internal/autostart"
	"slidetap/internal/config"
	"slidetap/internal/coordinator"
	"slidetap/internal/hotkey"
	"slidetap/internal/overlay"
	"slidetap/internal/screen"
	"slidetap/internal/session"
	"slidetap/internal/tray"
	"slidetap/internal/trigger"
)

var (
	version     = "0.3.0"
	configPath  = flag.String("config", "config.json", "Path to configuration file")
	listMons    = flag.Bool("list", false, "List connected monitors")
	showVer     = flag.Bool("version", false, "Show version")
	testOverlay = flag.Bool("test-overlay", false, "Show the overlay with test dots (no cloud access)")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("slidetap version %s\n", version)
		return
	}

	if *listMons {
		listMonitors()
		return
	}

	cfgMgr := config.NewManager(*configPath)
	if err := cfgMgr.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cfgMgr.Get()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *testOverlay {
		runOverlayTest(cfg)
		return
	}

	runService(cfg)
}

func listMonitors() {
	capturer, err := screen.NewDisplay()
	if err != nil {
		log.Fatalf("Failed to detect monitors: %v", err)
	}

	fmt.Println("Connected Monitors:")
	fmt.Println("-------------------")
	for i := 0; i < capturer.NumMonitors(); i++ {
		b, err := capturer.Bounds(i)
		if err != nil {
			continue
		}
		fmt.Printf("Index %d: %dx%d at (%d, %d)\n", i, b.Dx(), b.Dy(), b.Min.X, b.Min.Y)
	}
}

// runOverlayTest shows the overlay with three reference dots so the operator
// can verify window layering before class, without touching the cloud.
func runOverlayTest(cfg *config.Config) {
	capturer, err := screen.NewDisplay()
	if err != nil {
		log.Fatalf("Failed to detect monitors: %v", err)
	}
	monIdx := cfg.MonitorIndex
	if monIdx >= capturer.NumMonitors() {
		monIdx = 0
	}
	bounds, err := capturer.Bounds(monIdx)
	if err != nil {
		log.Fatalf("Monitor bounds: %v", err)
	}

	surface, err := overlay.New(cfg.OverlayMode, overlayOptions(cfg, bounds))
	if err != nil {
		log.Fatalf("Overlay test failed: %v", err)
	}
	defer surface.Close()

	surface.AddDot(bounds.Min.X+100, bounds.Min.Y+100)
	surface.AddDot(bounds.Min.X+bounds.Dx()/2, bounds.Min.Y+bounds.Dy()/2)
	surface.AddDot(bounds.Max.X-100, bounds.Max.Y-100)

	log.Printf("Overlay test: 3 dots on monitor %d (%dx%d at %d,%d). Press Ctrl+C to exit.",
		monIdx, bounds.Dx(), bounds.Dy(), bounds.Min.X, bounds.Min.Y)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

func runService(cfg *config.Config) {
	log.Printf("Slide Tap Helper %s starting...", version)
	log.Printf("Session ID: %s", cfg.SessionID)
	log.Printf("Monitor: %d", cfg.MonitorIndex)

	ctx := context.Background()

	// Cloud clients: failures here are configuration errors and fatal.
	client, err := session.NewClient(ctx, cfg.ServiceAccountPath, cfg.StorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize cloud clients: %v", err)
	}
	defer client.Close()

	capturer, err := screen.NewDisplay()
	if err != nil {
		log.Fatalf("Failed to detect monitors: %v", err)
	}

	// Overlay: creation failure degrades to a headless surface, it must
	// never take capture down with it.
	monIdx := cfg.MonitorIndex
	if monIdx >= capturer.NumMonitors() {
		log.Printf("Warning: monitor index %d not found, using primary monitor", monIdx)
		monIdx = 0
	}
	bounds, err := capturer.Bounds(monIdx)
	if err != nil {
		log.Fatalf("Monitor bounds: %v", err)
	}
	opts := overlayOptions(cfg, bounds)
	var surface overlay.Surface
	surface, err = overlay.New(cfg.OverlayMode, opts)
	if err != nil {
		log.Printf("Warning: no overlay window (%v), continuing without a visible overlay", err)
		surface = overlay.NewHeadless(opts)
	}

	t := tray.New("SlideTap", "Slide Tap Helper")

	coord := coordinator.New(cfg, client, capturer, surface, t)
	if err := coord.Init(ctx); err != nil {
		log.Printf("Warning: could not read session state: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	go coord.Run(runCtx)

	// Tap response stream
	watcher := session.NewWatcher(client, cfg.SessionID)
	watcher.OnResponse = coord.Enqueue
	watcher.OnSlideIndex = coord.HandleSlideIndex
	watcher.Start(runCtx)

	// Trigger sources; each may be absent without affecting the others.
	var hkMgr *hotkey.Manager
	if cfg.EnableHotkey {
		hkMgr = hotkey.NewManager()
		if err := hkMgr.Start(); err != nil {
			log.Printf("Warning: hotkey engine failed to start: %v", err)
			hkMgr = nil
		} else {
			hkMgr.Register(cfg.Hotkey, func() {
				coord.RequestCapture(trigger.SourceHotkey)
			})
			log.Printf("Press %s to capture", cfg.Hotkey)
		}
	}

	var httpSrc *trigger.HTTPServer
	if cfg.HTTPTriggerEnabled {
		httpSrc = trigger.NewHTTPServer(coord, cfg.HTTPTriggerPort)
		go func() {
			if err := httpSrc.Start(); err != nil {
				log.Printf("Warning: HTTP trigger unavailable: %v", err)
			}
		}()
	}

	var fileSrc *trigger.FileSource
	if cfg.TriggerFile != "" {
		fileSrc = trigger.NewFileSource(coord, cfg.TriggerFile, 0)
		fileSrc.Start()
	}

	if cfg.StartOnBoot && !autostart.IsEnabled() {
		if err := autostart.Enable(); err != nil {
			log.Printf("Warning: could not enable start on login: %v", err)
		}
	}

	// Tray menu
	t.AddMenuItem("Capture now", func() {
		go coord.RequestCapture(trigger.SourceTray)
	})

	t.AddSeparator()

	var startupID int
	startupID = t.AddMenuItem("Start on login", func() {
		if autostart.IsEnabled() {
			if err := autostart.Disable(); err != nil {
				log.Printf("Autostart: %v", err)
			}
		} else {
			if err := autostart.Enable(); err != nil {
				log.Printf("Autostart: %v", err)
			}
		}
		t.SetItemChecked(startupID, autostart.IsEnabled())
	})

	t.AddSeparator()

	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		t.Stop()
	}()

	log.Println("Slide Tap Helper running. Press Ctrl+C to stop.")
	t.Run()

	// Shutdown: release every OS-level registration.
	cancel()
	if fileSrc != nil {
		fileSrc.Stop()
	}
	if httpSrc != nil {
		httpSrc.Stop()
	}
	watcher.Stop()
	if hkMgr != nil {
		hkMgr.Stop()
	}
	surface.Close()
	log.Println("Stopped.")
}

func overlayOptions(cfg *config.Config, bounds image.Rectangle) overlay.Options {
	r, g, b, _ := config.ParseColor(cfg.DotColor)
	return overlay.Options{
		Bounds:   bounds,
		ColorR:   r,
		ColorG:   g,
		ColorB:   b,
		RadiusPx: cfg.DotRadiusPx,
		Fade:     time.Duration(cfg.FadeMs) * time.Millisecond,
		DebugBg:  cfg.OverlayDebugBg,
	}
}
