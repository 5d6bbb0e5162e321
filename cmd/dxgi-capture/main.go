package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dxgicapture/service/internal/capture"
	"github.com/dxgicapture/service/internal/config"
	"github.com/dxgicapture/service/internal/controlplane"
	"github.com/dxgicapture/service/internal/displays"
	"github.com/dxgicapture/service/internal/framering"
	"github.com/dxgicapture/service/internal/hardware"
	"github.com/dxgicapture/service/internal/health"
	"github.com/dxgicapture/service/internal/logging"
	"github.com/dxgicapture/service/internal/recording"
	"github.com/dxgicapture/service/internal/recordingstate"
)

var (
	version = "0.1.0"

	cfgFile    string
	pipeFlag   string
	recordMode string
	outputPath string
	fps        uint32
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "dxgi-capture",
	Short: "DXGI Desktop Duplication capture service",
	Run: func(cmd *cobra.Command, args []string) {
		runService()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capture service (runs until terminated)",
	Run: func(cmd *cobra.Command, args []string) {
		runService()
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start recording displays",
	Run: func(cmd *cobra.Command, args []string) {
		sendAndPrint(startRecordingBody())
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop recording",
	Run: func(cmd *cobra.Command, args []string) {
		sendAndPrint(bareCommand(controlplane.KindStopRecording))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query service state",
	Run: func(cmd *cobra.Command, args []string) {
		printStatus()
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available displays (does not require the service)",
	Run: func(cmd *cobra.Command, args []string) {
		listDisplays()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	rootCmd.PersistentFlags().StringVar(&pipeFlag, "pipe", "", "control-plane pipe path (default: well-known per-binary name)")

	startCmd.Flags().StringVar(&recordMode, "mode", "all", `recording mode: "all" or "primary"`)
	startCmd.Flags().StringVar(&outputPath, "output", "", "MP4 output path (shared-memory-only publication if omitted)")
	startCmd.Flags().Uint32Var(&fps, "fps", 0, "target frames per second (service default if omitted)")

	rootCmd.AddCommand(serveCmd, startCmd, stopCmd, statusCmd, listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func resolvePipePath(cfg *config.Config) string {
	if pipeFlag != "" {
		return pipeFlag
	}
	if cfg != nil && cfg.PipeName != "" {
		return cfg.PipeName
	}
	return controlplane.DefaultCapturePipePath()
}

// runService runs the capture daemon: one capture goroutine per enumerated
// display, each publishing into its own frame ring and forwarding frames to
// the process-wide recording state, plus the control-plane pipe server.
func runService() {
	cfg := loadConfig()
	initLogging(cfg)

	log.Info("dxgi-capture service starting", "version", version)

	monitors := controlplane.NewMonitorTable(hardware.NewLoggingAttacher())
	recState := recordingstate.New()
	server := controlplane.NewServer(monitors, recState, controlplane.ServerConfig{
		DefaultFPS:         uint32(cfg.DefaultFPS),
		BroadcastQueueSize: cfg.BroadcastQueueSize,
		BroadcastWorkers:   cfg.BroadcastWorkers,
	})

	path := resolvePipePath(cfg)
	listener, err := controlplane.Listen(path, server)
	if err != nil {
		log.Error("failed to start control plane", "pipe", path, "error", err)
		os.Exit(1)
	}
	defer listener.Close()

	healthMon := health.NewMonitor()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	screens, err := displays.Enumerate()
	if err != nil {
		log.Warn("display enumeration failed, no capture loops will start", "error", err)
	}
	for _, d := range screens {
		healthMon.Update(healthName(d), health.Healthy, d.String())
		go runDisplayCapture(ctx, cfg, d, recState, healthMon)
	}

	go func() {
		if err := listener.Serve(); err != nil {
			log.Error("control plane server stopped", "error", err)
		}
	}()

	log.Info("dxgi-capture service running", "pipe", path, "displays", len(screens))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down dxgi-capture service")
	cancel()
}

func healthName(d displays.Info) string {
	return fmt.Sprintf("display-%d", d.AdapterIndex)
}

// runDisplayCapture owns one display's frame ring and capture loop for the
// lifetime of ctx. Each display gets its own OS thread boosted to the
// multimedia scheduling class, matching capture.rs's per-output worker.
func runDisplayCapture(ctx context.Context, cfg *config.Config, d displays.Info, recState *recordingstate.State, healthMon *health.Monitor) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if revert, err := capture.BoostThreadPriority(); err != nil {
		log.Warn("failed to boost capture thread priority", "display", d.Name, "error", err)
	} else {
		defer revert()
	}

	ring, err := framering.Create(
		framering.NameDXGI(d.AdapterIndex, d.OutputIndex),
		framering.MagicDXGI,
		d.Width, d.Height, d.Width*4,
		cfg.FrameSlotCount,
	)
	if err != nil {
		healthMon.Update(healthName(d), health.Unhealthy, err.Error())
		log.Error("failed to create frame ring", "display", d.Name, "error", err)
		return
	}
	defer ring.Close()

	monitorID := d.AdapterIndex
	submit := func(frame capture.AcquiredFrame) {
		recState.SubmitFrame(monitorID, recording.Frame{
			BGRA:        frame.Pixels,
			Width:       frame.Width,
			Height:      frame.Height,
			Stride:      frame.Stride,
			TimestampUs: frame.TimestampUs,
		})
	}

	err = capture.RunDXGI(ctx, capture.DXGIOptions{
		Name:            d.Name,
		AdapterIndex:    d.AdapterIndex,
		OutputIndex:     d.OutputIndex,
		Width:           d.Width,
		Height:          d.Height,
		Ring:            ring,
		RecordingSubmit: submit,
	})
	if err != nil && ctx.Err() == nil {
		healthMon.Update(healthName(d), health.Unhealthy, err.Error())
		log.Error("capture loop exited", "display", d.Name, "error", err)
	}
}

// --- CLI client subcommands: dispatch to a running service over the
// control-plane pipe (§4.6), matching main.rs's send_and_print pattern. ---

func bareCommand(kind controlplane.CommandKind) []byte {
	body, _ := json.Marshal(string(kind))
	return body
}

func startRecordingBody() []byte {
	screens, err := displays.Enumerate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to enumerate displays: %v\n", err)
		os.Exit(1)
	}

	var ids []uint32
	for _, d := range screens {
		if recordMode == "primary" && !d.IsPrimary {
			continue
		}
		ids = append(ids, d.AdapterIndex)
	}
	if recordMode == "primary" && len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "no primary display found")
		os.Exit(1)
	}

	args := controlplane.StartRecordingArgs{MonitorIDs: ids}
	if outputPath != "" {
		args.OutputPath = &outputPath
	}
	if fps != 0 {
		args.FPS = &fps
	}

	body, _ := json.Marshal(map[string]any{string(controlplane.KindStartRecording): args})
	return body
}

func sendAndPrint(body []byte) {
	reply := sendCommand(body)
	printReply(reply)
}

func sendCommand(body []byte) controlplane.Reply {
	cfg := loadConfig()
	raw, err := controlplane.SendCommand(resolvePipePath(cfg), body)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	reply, err := controlplane.DecodeReply(raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return reply
}

func printReply(reply controlplane.Reply) {
	switch reply.Kind {
	case controlplane.ReplyOk:
		fmt.Println("OK")
	case controlplane.ReplyState:
		printMonitors(reply.State)
	case controlplane.ReplyRecordingStarted:
		fmt.Printf("Recording started: monitors=%v session=%v\n",
			reply.RecordingStarted.MonitorIDs, reply.RecordingStarted.HasSession)
	case controlplane.ReplyRecordingFinished:
		fmt.Printf("Recording finished: %s (%d frames, %dms)\n",
			reply.RecordingFinished.Path, reply.RecordingFinished.Frames, reply.RecordingFinished.DurationMs)
	case controlplane.ReplyRecordingState:
		fmt.Printf("Recording: %v\n", reply.RecordingState.Active)
		if len(reply.RecordingState.MonitorIDs) > 0 {
			fmt.Printf("Monitors: %v\n", reply.RecordingState.MonitorIDs)
		}
	case controlplane.ReplyError:
		fmt.Fprintf(os.Stderr, "Error: %s\n", reply.Error)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "unexpected reply kind %q\n", reply.Kind)
		os.Exit(1)
	}
}

func printMonitors(monitors []controlplane.Monitor) {
	if len(monitors) == 0 {
		fmt.Println("No active captures.")
		return
	}
	fmt.Println("Active captures:")
	for _, m := range monitors {
		name := fmt.Sprintf("monitor %d", m.ID)
		if m.Name != nil {
			name = *m.Name
		}
		fmt.Printf("  [%d] %s enabled=%v modes=%d\n", m.ID, name, m.Enabled, len(m.Modes))
	}
}

func printStatus() {
	state := sendCommand(bareCommand(controlplane.KindState))
	recResp := sendCommand(bareCommand(controlplane.KindRecordingState))
	for _, r := range []controlplane.Reply{state, recResp} {
		if r.Kind == controlplane.ReplyError {
			printReply(r) // prints the error and exits 1
		}
	}

	fmt.Printf("Recording: %v\n", recResp.RecordingState.Active)
	if len(recResp.RecordingState.MonitorIDs) > 0 {
		fmt.Printf("Monitors: %v\n", recResp.RecordingState.MonitorIDs)
	}
	printMonitors(state.State)
}

func listDisplays() {
	screens, err := displays.Enumerate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to enumerate displays: %v\n", err)
		os.Exit(1)
	}
	if len(screens) == 0 {
		fmt.Println("No displays found.")
		return
	}

	sort.Slice(screens, func(i, j int) bool { return screens[i].AdapterIndex < screens[j].AdapterIndex })

	fmt.Println("Available displays:")
	for _, d := range screens {
		primary := ""
		if d.IsPrimary {
			primary = " (primary)"
		}
		fmt.Printf("  [%d] %s %dx%d at (%d,%d)%s\n", d.AdapterIndex, d.Name, d.Width, d.Height, d.Left, d.Top, primary)
	}
}

// initLogging wires structured logging from config, matching the teacher's
// stdout-plus-optional-rotated-file setup.
func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	logFileFallback := false

	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
			logFileFallback = true
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")

	if logFileFallback {
		log.Warn("log file fallback active, logging to stdout only", "requestedFile", cfg.LogFile)
	}
}
