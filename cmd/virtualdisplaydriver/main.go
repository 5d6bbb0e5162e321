package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dxgicapture/service/internal/config"
	"github.com/dxgicapture/service/internal/controlplane"
	"github.com/dxgicapture/service/internal/hardware"
	"github.com/dxgicapture/service/internal/logging"
	"github.com/dxgicapture/service/internal/recordingstate"
)

// This binary hosts (or drives) only the control-plane half of the system:
// real monitor arrival/departure and swap-chain frame production are
// IddCx kernel-mode primitives unreachable from user-mode Go (§1) and are
// modeled no further than the HardwareAttacher seam internal/controlplane
// calls on every transition. serve therefore starts the pipe server with
// an empty, bookkeeping-only monitor table; the driver-command subcommands
// below exercise that bookkeeping and its broadcast semantics exactly as a
// real IddCx host's notify/remove calls would, without one present.

var (
	cfgFile  string
	pipeFlag string

	monitorID      uint32
	monitorName    string
	monitorEnabled bool
	modeWidth      uint32
	modeHeight     uint32
	modeRefresh    uint32

	removeIDs string

	startMonitorIDs string
	startOutput     string
	startFPS        uint32
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "virtualdisplaydriver",
	Short: "Virtual display driver control-plane host and CLI",
	Run: func(cmd *cobra.Command, args []string) {
		runService()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host the control-plane pipe (runs until terminated)",
	Run: func(cmd *cobra.Command, args []string) {
		runService()
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a full monitor-table snapshot containing one monitor",
	Long: `notify reconciles the service's entire monitor table against the
monitor described by these flags: any previously notified monitor not
named here is detached. Real IddCx hosts call Notify with their complete
known set on every change; this CLI exposes that same one-shot semantics.`,
	Run: func(cmd *cobra.Command, args []string) {
		monitor := controlplane.Monitor{
			ID:      monitorID,
			Enabled: monitorEnabled,
		}
		if monitorName != "" {
			monitor.Name = &monitorName
		}
		if modeWidth != 0 && modeHeight != 0 {
			monitor.Modes = []controlplane.Mode{{
				Width:        modeWidth,
				Height:       modeHeight,
				RefreshRates: []uint32{modeRefresh},
			}}
		}
		body, _ := json.Marshal(map[string]any{
			string(controlplane.KindNotify): []controlplane.Monitor{monitor},
		})
		sendAndPrint(body)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Detach the given monitor ids",
	Run: func(cmd *cobra.Command, args []string) {
		ids, err := parseIDs(removeIDs)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		body, _ := json.Marshal(map[string]any{string(controlplane.KindRemove): ids})
		sendAndPrint(body)
	},
}

var removeAllCmd = &cobra.Command{
	Use:   "remove-all",
	Short: "Detach every attached monitor",
	Run: func(cmd *cobra.Command, args []string) {
		sendAndPrint(bareCommand(controlplane.KindRemoveAll))
	},
}

var startRecordingCmd = &cobra.Command{
	Use:   "start-recording",
	Short: "Start a recording session",
	Run: func(cmd *cobra.Command, args []string) {
		ids, err := parseIDs(startMonitorIDs)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		recArgs := controlplane.StartRecordingArgs{MonitorIDs: ids}
		if startOutput != "" {
			recArgs.OutputPath = &startOutput
		}
		if startFPS != 0 {
			recArgs.FPS = &startFPS
		}
		body, _ := json.Marshal(map[string]any{string(controlplane.KindStartRecording): recArgs})
		sendAndPrint(body)
	},
}

var stopRecordingCmd = &cobra.Command{
	Use:   "stop-recording",
	Short: "Stop the active recording session",
	Run: func(cmd *cobra.Command, args []string) {
		sendAndPrint(bareCommand(controlplane.KindStopRecording))
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the current monitor table",
	Run: func(cmd *cobra.Command, args []string) {
		sendAndPrint(bareCommand(controlplane.KindState))
	},
}

var recordingStateCmd = &cobra.Command{
	Use:   "recording-state",
	Short: "Print the current recording state",
	Run: func(cmd *cobra.Command, args []string) {
		sendAndPrint(bareCommand(controlplane.KindRecordingState))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	rootCmd.PersistentFlags().StringVar(&pipeFlag, "pipe", "", "control-plane pipe path (default: well-known per-binary name)")

	notifyCmd.Flags().Uint32Var(&monitorID, "id", 1, "monitor id")
	notifyCmd.Flags().StringVar(&monitorName, "name", "", "monitor display name")
	notifyCmd.Flags().BoolVar(&monitorEnabled, "enabled", true, "monitor enabled state")
	notifyCmd.Flags().Uint32Var(&modeWidth, "width", 1920, "mode width")
	notifyCmd.Flags().Uint32Var(&modeHeight, "height", 1080, "mode height")
	notifyCmd.Flags().Uint32Var(&modeRefresh, "refresh", 60, "mode refresh rate")

	removeCmd.Flags().StringVar(&removeIDs, "ids", "", "comma-separated monitor ids to detach")

	startRecordingCmd.Flags().StringVar(&startMonitorIDs, "monitor-ids", "", "comma-separated monitor ids (empty means all)")
	startRecordingCmd.Flags().StringVar(&startOutput, "output", "", "MP4 output path (shared-memory-only publication if omitted)")
	startRecordingCmd.Flags().Uint32Var(&startFPS, "fps", 0, "target frames per second (service default if omitted)")

	rootCmd.AddCommand(serveCmd, notifyCmd, removeCmd, removeAllCmd,
		startRecordingCmd, stopRecordingCmd, stateCmd, recordingStateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseIDs(csv string) ([]uint32, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var ids []uint32
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid monitor id %q: %w", part, err)
		}
		ids = append(ids, uint32(v))
	}
	return ids, nil
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
	return controlplane.DefaultDriverPipePath()
}

// runService hosts the control-plane pipe with a fresh monitor table and
// recording state, for as long as the process runs. There is no per-display
// capture loop here: driver-variant frame production is the out-of-scope
// IddCx swap-chain processor (§1); this binary only exercises the
// bookkeeping and broadcast side of the protocol.
func runService() {
	cfg := loadConfig()
	initLogging(cfg)

	log.Info("virtualdisplaydriver control plane starting")

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

	go func() {
		if err := listener.Serve(); err != nil {
			log.Error("control plane server stopped", "error", err)
		}
	}()

	log.Info("virtualdisplaydriver control plane running", "pipe", path)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down virtualdisplaydriver control plane")
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

func bareCommand(kind controlplane.CommandKind) []byte {
	body, _ := json.Marshal(string(kind))
	return body
}

func sendAndPrint(body []byte) {
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
	printReply(reply)
}

func printReply(reply controlplane.Reply) {
	switch reply.Kind {
	case controlplane.ReplyOk:
		fmt.Println("OK")
	case controlplane.ReplyState:
		if len(reply.State) == 0 {
			fmt.Println("No monitors attached.")
			break
		}
		fmt.Println("Monitor table:")
		for _, m := range reply.State {
			name := fmt.Sprintf("monitor %d", m.ID)
			if m.Name != nil {
				name = *m.Name
			}
			fmt.Printf("  [%d] %s enabled=%v modes=%d\n", m.ID, name, m.Enabled, len(m.Modes))
		}
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
