package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds the capture daemon's tunables, loaded from a YAML file with
// environment-variable overrides under the DXGICAP_ prefix.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// LogFile, if set, tees logging output to a size-rotated file in
	// addition to stdout. LogMaxSizeMB/LogMaxBackups bound that rotation.
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	// PipeName overrides the default control-plane pipe name for the binary
	// that loads this config (dxgi-capture or virtualdisplaydriver each have
	// their own compiled-in default; this only needs to be set to run a
	// second instance side by side, e.g. for testing).
	PipeName string `mapstructure:"pipe_name"`

	// DefaultFPS is used by StartRecording when the client omits fps.
	DefaultFPS int `mapstructure:"default_fps"`

	// FrameSlotCount is the number of slots in each frame ring (triple
	// buffering by default).
	FrameSlotCount uint32 `mapstructure:"frame_slot_count"`

	// OutputDir is loaded and defaulted to the data directory, but nothing
	// reads it: output paths passed to StartRecording are used as given.
	OutputDir string `mapstructure:"output_dir"`

	// BroadcastQueueSize bounds the per-client change-event channel (§4.6).
	BroadcastQueueSize int `mapstructure:"broadcast_queue_size"`

	// BroadcastWorkers bounds the worker pool dispatching change events to
	// clients.
	BroadcastWorkers int `mapstructure:"broadcast_workers"`
}

func Default() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		LogMaxSizeMB:       50,
		LogMaxBackups:      3,
		DefaultFPS:         5,
		FrameSlotCount:     3,
		OutputDir:          GetDataDir(),
		BroadcastQueueSize: 16,
		BroadcastWorkers:   4,
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("capture")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DXGICAP")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, err := range errs {
			log.Warn("config validation", "error", err)
		}
	}

	return cfg, nil
}

// GetDataDir returns the platform-specific data directory for recorded output.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "DxgiCapture", "recordings")
	default:
		return "/var/lib/dxgi-capture"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "DxgiCapture")
	default:
		return "/etc/dxgi-capture"
	}
}
