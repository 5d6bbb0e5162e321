package config

import (
	"fmt"
	"strings"

	"github.com/dxgicapture/service/internal/logging"
)

var log = logging.L("config")

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"warning": true,
	"error": true,
}

// Validate checks the config for invalid values. Dangerous zero-values that
// would cause panics or nonsensical behavior are clamped to safe defaults;
// the clamp itself is reported as one of the returned errors.
func (c *Config) Validate() []error {
	var errs []error

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if c.LogFile != "" {
		if c.LogMaxSizeMB < 1 {
			errs = append(errs, fmt.Errorf("log_max_size_mb %d is below minimum 1, clamping", c.LogMaxSizeMB))
			c.LogMaxSizeMB = 1
		}
		if c.LogMaxBackups < 0 {
			errs = append(errs, fmt.Errorf("log_max_backups %d is negative, clamping", c.LogMaxBackups))
			c.LogMaxBackups = 0
		}
	}

	if c.DefaultFPS < 1 {
		errs = append(errs, fmt.Errorf("default_fps %d is below minimum 1, clamping", c.DefaultFPS))
		c.DefaultFPS = 1
	} else if c.DefaultFPS > 120 {
		errs = append(errs, fmt.Errorf("default_fps %d exceeds maximum 120, clamping", c.DefaultFPS))
		c.DefaultFPS = 120
	}

	if c.FrameSlotCount < 2 {
		errs = append(errs, fmt.Errorf("frame_slot_count %d is below minimum 2, clamping", c.FrameSlotCount))
		c.FrameSlotCount = 2
	} else if c.FrameSlotCount > 16 {
		errs = append(errs, fmt.Errorf("frame_slot_count %d exceeds maximum 16, clamping", c.FrameSlotCount))
		c.FrameSlotCount = 16
	}

	if c.BroadcastQueueSize < 1 {
		errs = append(errs, fmt.Errorf("broadcast_queue_size %d is below minimum 1, clamping", c.BroadcastQueueSize))
		c.BroadcastQueueSize = 1
	}

	if c.BroadcastWorkers < 1 {
		errs = append(errs, fmt.Errorf("broadcast_workers %d is below minimum 1, clamping", c.BroadcastWorkers))
		c.BroadcastWorkers = 1
	}

	return errs
}
