package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"yv-capture/src/browser"
	"yv-capture/src/capture"
	"yv-capture/src/clipboard"
	"yv-capture/src/config"
	"yv-capture/src/eventloop"
	"yv-capture/src/hotkey"
	"yv-capture/src/logutil"
	"yv-capture/src/messages"
	"yv-capture/src/notification"
	"yv-capture/src/orchestrator"
	"yv-capture/src/panel"
	"yv-capture/src/process"
	"yv-capture/src/router"
	"yv-capture/src/runtimeinit"
	"yv-capture/src/screenshot"
	"yv-capture/src/selection"
	"yv-capture/src/singleinstance"
	"yv-capture/src/stage"
	"yv-capture/src/store"
	"yv-capture/src/tray"
	"yv-capture/src/worker"
)

const appTitle = "YV Capture"

type mainOptions struct {
	capture    string
	clear      bool
	status     bool
	envPath    string
	controlURL string
	storePath  string
}

func (o *mainOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		EnvPathOverride:    o.envPath,
		ControlURLOverride: o.controlURL,
		StorePathOverride:  o.storePath,
	}
}

// request turns one-shot flags into a delegated command, or nil for resident mode.
func (o *mainOptions) request() (*singleinstance.Request, error) {
	n := 0
	if o.capture != "" {
		n++
	}
	if o.clear {
		n++
	}
	if o.status {
		n++
	}
	if n > 1 {
		return nil, errors.New("--capture, --clear and --status are mutually exclusive")
	}
	switch {
	case o.capture != "":
		target, err := capture.ParseTarget(o.capture)
		if err != nil {
			return nil, err
		}
		return &singleinstance.Request{Command: singleinstance.CmdCapture, Target: target}, nil
	case o.clear:
		return &singleinstance.Request{Command: singleinstance.CmdClear}, nil
	case o.status:
		return &singleinstance.Request{Command: singleinstance.CmdStatus}, nil
	}
	return nil, nil
}

// normalizeLegacyArgs maps single-dash long flags (-capture top) to the
// double-dash form cobra expects.
func normalizeLegacyArgs(args []string) []string {
	long := []string{"capture", "clear", "status", "env", "control-url", "store"}
	out := make([]string, len(args))
	copy(out, args)
	for i := 1; i < len(out); i++ {
		arg := out[i]
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		name := strings.TrimPrefix(arg, "-")
		if j := strings.IndexByte(name, '='); j >= 0 {
			name = name[:j]
		}
		for _, l := range long {
			if name == l {
				out[i] = "-" + arg
				break
			}
		}
	}
	return out
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "yv-capture",
		Short:         "Capture page regions into the try-on stage",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}
			if req == nil {
				return runResident(opts, nil)
			}
			// Load .env early so SINGLEINSTANCE_PORT_* are applied before delegation scan
			_, _ = config.LoadWithOptions(opts.loadOptions())
			return handleDelegation(cmd.Context(), singleinstance.NewClient(), *req, func() error {
				if req.Command != singleinstance.CmdCapture {
					return errors.New("no resident running")
				}
				return runResident(opts, req)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.capture, "capture", "", "Start capture mode for a slot (top|bottom) in the resident")
	f.BoolVar(&opts.clear, "clear", false, "Clear the stage and the stored capture")
	f.BoolVar(&opts.status, "status", false, "Print the resident's panel state")
	f.StringVar(&opts.envPath, "env", "", "Path to a .env file")
	f.StringVar(&opts.controlURL, "control-url", "", "DevTools websocket URL of an already running browser")
	f.StringVar(&opts.storePath, "store", "", "Path of the capture store file")
	return cmd
}

// handleDelegation sends req to a running resident and prints its reply.
// Without a resident, fallback runs instead.
func handleDelegation(ctx context.Context, client singleinstance.Client, req singleinstance.Request, fallback func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delegated, body, err := client.Send(ctx, req)
	if !delegated {
		if err != nil {
			log.Printf("Delegation error: %v", err)
		}
		log.Printf("No resident detected (not delegated)")
		return fallback()
	}
	if err != nil {
		return err
	}
	log.Printf("Delegated %s to resident", req.Command)
	fmt.Print(body)
	return nil
}

func main() {
	// Ensure DPI awareness before creating any windows or querying metrics
	enableDPIAwareness()

	os.Args = normalizeLegacyArgs(os.Args)
	opts := &mainOptions{}
	if err := newRootCmd(opts).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runResident owns the browser, the actors, the tray and the IPC endpoint
// until quit. initial, when set, is executed once everything is up.
func runResident(opts *mainOptions, initial *singleinstance.Request) error {
	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  opts.loadOptions(),
		SetupLogging: logutil.Setup,
		PingCutout:   true,
	})
	if err != nil {
		return err
	}
	logMonitorConfiguration()

	// ---------- SINGLE-INSTANCE PRE-FLIGHT ----------
	startPort, _ := singleinstance.GetPortRangeForDebug()
	addr := fmt.Sprintf("127.0.0.1:%d", startPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		pctx, pcancel := context.WithTimeout(context.Background(), time.Second)
		port, ok := singleinstance.DetectResidentPort(pctx)
		pcancel()
		if !ok {
			log.Printf("Pre-flight: port %d busy but no resident answers PING", startPort)
			return fmt.Errorf("port %d is in use by another program: %w", startPort, err)
		}
		log.Printf("Pre-flight: port %d busy → resident already exists on %d", startPort, port)
		return fmt.Errorf("one is already running on port %d", port)
	}
	_ = listener.Close()
	log.Printf("Pre-flight: port %d free → we are the resident", startPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	br, err := browser.Connect(ctx, browser.Options{
		ControlURL: cfg.BrowserControlURL,
		Headless:   cfg.BrowserHeadless,
		StartURL:   cfg.BrowserStartURL,
	})
	if err != nil {
		notification.ShowBlockingError("Browser unavailable", fmt.Sprintf("Startup check failed: %v\n\nSet BROWSER_CONTROL_URL to a running browser or make sure Chromium can be launched.", err))
		return err
	}
	defer br.Close()

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}

	r := router.NewRouter()
	r.SetMessageLogging(cfg.EnableFileLogging)
	mgr := process.NewManager(r)

	var shots orchestrator.Screenshotter = br
	if cfg.ScreenshotBackend == config.ScreenshotBackendPlain {
		shots = screenshot.DisplayCapturer{}
	}
	host := selection.NewHost(selection.NewRegistry(), r.Sender(messages.ProcessSelector, messages.ProcessOrchestrator))
	orch := orchestrator.New(orchestrator.Options{
		Tabs:          br,
		Activator:     host,
		Screenshotter: shots,
		Records:       st,
		Fetcher:       runtimeinit.NewFetcher(cfg),
	})

	pool := worker.New(cfg.ApplyWorkers, cfg.ApplyWorkers*2)
	defer pool.Close()

	var copyPNG func([]byte) error
	if cfg.CopyOnApply {
		copyPNG = clipboard.WriteImage
	}
	pnl := panel.New(panel.Options{
		Store:  st,
		Cutter: runtimeinit.NewCutter(cfg),
		Pool:   pool,
		Send:   r.Sender(messages.ProcessPanel, messages.ProcessOrchestrator),
		Renderer: &stage.Renderer{
			Width:  cfg.StageWidth,
			Height: cfg.StageHeight,
			Assets: stage.LoadAssets(cfg.AssetsDir),
			Fetch:  panel.RemoteFetch(r),
		},
		OutputPath: cfg.StageOutputPath,
		CopyPNG:    copyPNG,
	})

	loop := eventloop.New(pnl, singleinstance.NewServer())
	trayIcon := tray.New(tray.Config{
		Title:     appTitle,
		Tooltip:   fmt.Sprintf("%s - %s top, %s bottom", appTitle, cfg.HotkeyTop, cfg.HotkeyBottom),
		OnCapture: loop.CaptureFunc(),
		OnClear:   loop.ClearFunc(),
		OnExit:    cancel,
	})
	pnl.OnChange(func(v panel.View) { trayIcon.SetStatus(v.Status) })

	for _, p := range []process.Process{
		selection.NewActor(host),
		orchestrator.NewActor(orch),
		panel.NewActor(pnl),
	} {
		if err := mgr.Register(p); err != nil {
			return err
		}
	}
	if err := mgr.StartAll(); err != nil {
		mgr.StopAll()
		return err
	}
	defer mgr.StopAll()

	go func() {
		// systray wants its own locked OS thread on Windows
		runtime.LockOSThread()
		trayIcon.Run()
	}()
	defer trayIcon.Quit()

	hotkey.ListenAll(loop.Bindings(cfg))
	defer hotkey.Stop()

	// Handle SIGINT/SIGTERM
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	go superviseActors(ctx, mgr)

	if initial != nil {
		loop.Trigger(*initial)
	}

	log.Printf("%s initialized (store %s, backend %s)", appTitle, cfg.StorePath, cfg.ScreenshotBackend)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("event loop stopped: %v", err)
		return err
	}
	return nil
}

// superviseActors restarts crashed actors until ctx ends.
func superviseActors(ctx context.Context, mgr *process.Manager) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			mgr.RestartCrashed()
		}
	}
}
