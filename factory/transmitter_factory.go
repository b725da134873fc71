package factory

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/opd-ai/mediamux"
	"github.com/opd-ai/mediamux/interfaces"
	"github.com/opd-ai/mediamux/limits"
	"github.com/sirupsen/logrus"
)

// Validation constants for configuration bounds checking.
const (
	// MinComponents is the smallest usable component count.
	MinComponents = 1
	// MaxComponents bounds the component count of a single session.
	MaxComponents = 16
	// MinReadBuffer is the smallest per-port receive buffer accepted, in bytes.
	MinReadBuffer = 1500
)

// Environment variables read by NewTransmitterFactory.
const (
	EnvComponents  = "MEDIAMUX_COMPONENTS"
	EnvTOS         = "MEDIAMUX_TOS"
	EnvReadBuffer  = "MEDIAMUX_READ_BUFFER"
	EnvDoTimestamp = "MEDIAMUX_DO_TIMESTAMP"
)

// TransmitterFactory creates transmitters from a default configuration.
// It is safe for concurrent use; all methods are protected by an internal mutex.
type TransmitterFactory struct {
	mu            sync.RWMutex
	defaultConfig *interfaces.TransmitterConfig
}

// NewTransmitterFactory creates a new factory with default configuration
func NewTransmitterFactory() *TransmitterFactory {
	defaultConfig := createDefaultConfig()
	applyEnvironmentOverrides(defaultConfig)
	logConfigurationInfo(defaultConfig)

	return &TransmitterFactory{
		defaultConfig: defaultConfig,
	}
}

// createDefaultConfig initializes the default transmitter configuration.
//
// Default Value Rationale:
//   - Components: 2 - an RTP session with a separate RTCP port
//   - TypeOfService: 0 - unmarked until the application asks for a class
//   - ReadBufferSize: MaxDatagramSize - no datagram is ever truncated
//   - DoTimestamp: true - jitter buffers want arrival times
func createDefaultConfig() *interfaces.TransmitterConfig {
	return &interfaces.TransmitterConfig{
		Components:     mediamux.DefaultComponents,
		TypeOfService:  0,
		ReadBufferSize: limits.MaxDatagramSize,
		DoTimestamp:    true,
	}
}

// applyEnvironmentOverrides updates configuration based on MEDIAMUX_* environment
// variables. Invalid values are logged and ignored.
func applyEnvironmentOverrides(config *interfaces.TransmitterConfig) {
	parseComponentsSetting(config)
	parseTOSSetting(config)
	parseReadBufferSetting(config)
	parseDoTimestampSetting(config)
}

// parseIntSetting reads an integer environment variable within [min, max]. ok is
// false when the variable is unset or invalid; invalid values are logged.
func parseIntSetting(function, envVar string, min, max, current int) (value int, ok bool) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return 0, false
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    function,
			"env_var":     envVar,
			"value":       raw,
			"error":       err.Error(),
			"using_value": current,
		}).Warn("Failed to parse environment variable, using default")
		return 0, false
	}
	if value < min || value > max {
		logrus.WithFields(logrus.Fields{
			"function":    function,
			"env_var":     envVar,
			"value":       value,
			"min":         min,
			"max":         max,
			"using_value": current,
		}).Warn("Environment variable out of bounds, using default")
		return 0, false
	}
	return value, true
}

// parseComponentsSetting updates Components from MEDIAMUX_COMPONENTS.
func parseComponentsSetting(config *interfaces.TransmitterConfig) {
	if v, ok := parseIntSetting("parseComponentsSetting", EnvComponents, MinComponents, MaxComponents, config.Components); ok {
		config.Components = v
	}
}

// parseTOSSetting updates TypeOfService from MEDIAMUX_TOS. Hex values such as
// 0xb8 are accepted as well as decimal ones.
func parseTOSSetting(config *interfaces.TransmitterConfig) {
	raw := os.Getenv(EnvTOS)
	if raw == "" {
		return
	}

	tos, err := strconv.ParseInt(raw, 0, 32)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseTOSSetting",
			"env_var":     EnvTOS,
			"value":       raw,
			"error":       err.Error(),
			"using_value": config.TypeOfService,
		}).Warn("Failed to parse MEDIAMUX_TOS environment variable, using default")
		return
	}
	if err := limits.ValidateTypeOfService(int(tos)); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseTOSSetting",
			"env_var":     EnvTOS,
			"value":       tos,
			"min":         limits.MinTypeOfService,
			"max":         limits.MaxTypeOfService,
			"using_value": config.TypeOfService,
		}).Warn("MEDIAMUX_TOS value out of bounds, using default")
		return
	}
	config.TypeOfService = int(tos)
}

// parseReadBufferSetting updates ReadBufferSize from MEDIAMUX_READ_BUFFER.
func parseReadBufferSetting(config *interfaces.TransmitterConfig) {
	if v, ok := parseIntSetting("parseReadBufferSetting", EnvReadBuffer, MinReadBuffer, limits.MaxDatagramSize, config.ReadBufferSize); ok {
		config.ReadBufferSize = v
	}
}

// parseDoTimestampSetting updates DoTimestamp from MEDIAMUX_DO_TIMESTAMP.
func parseDoTimestampSetting(config *interfaces.TransmitterConfig) {
	if raw := os.Getenv(EnvDoTimestamp); raw != "" {
		doTimestamp, err := strconv.ParseBool(raw)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "parseDoTimestampSetting",
				"env_var":     EnvDoTimestamp,
				"value":       raw,
				"error":       err.Error(),
				"using_value": config.DoTimestamp,
			}).Warn("Failed to parse MEDIAMUX_DO_TIMESTAMP environment variable, using default")
			return
		}
		config.DoTimestamp = doTimestamp
	}
}

func logConfigurationInfo(config *interfaces.TransmitterConfig) {
	logrus.WithFields(logrus.Fields{
		"function":     "NewTransmitterFactory",
		"components":   config.Components,
		"tos":          config.TypeOfService,
		"read_buffer":  config.ReadBufferSize,
		"do_timestamp": config.DoTimestamp,
	}).Info("Created transmitter factory with configuration")
}

// CreateTransmitter creates a transmitter from the default configuration.
func (f *TransmitterFactory) CreateTransmitter() (*mediamux.Transmitter, error) {
	return f.CreateTransmitterWithConfig(nil)
}

// CreateTransmitterWithConfig creates a transmitter with custom configuration. A
// nil config falls back to the factory default.
func (f *TransmitterFactory) CreateTransmitterWithConfig(config *interfaces.TransmitterConfig) (*mediamux.Transmitter, error) {
	if config == nil {
		config = f.GetDefaultConfig()
	}

	logrus.WithFields(logrus.Fields{
		"function":     "CreateTransmitterWithConfig",
		"components":   config.Components,
		"tos":          config.TypeOfService,
		"read_buffer":  config.ReadBufferSize,
		"do_timestamp": config.DoTimestamp,
	}).Info("Creating transmitter")

	t, err := mediamux.NewTransmitter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transmitter: %w", err)
	}
	return t, nil
}

// GetDefaultConfig returns a copy of the current default configuration
func (f *TransmitterFactory) GetDefaultConfig() *interfaces.TransmitterConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c := *f.defaultConfig
	return &c
}

// UpdateDefaultConfig validates config and stores a copy of it as the default.
func (f *TransmitterFactory) UpdateDefaultConfig(config *interfaces.TransmitterConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.Components < MinComponents || config.Components > MaxComponents {
		return fmt.Errorf("components %d out of range [%d, %d]", config.Components, MinComponents, MaxComponents)
	}
	if err := limits.ValidateTypeOfService(config.TypeOfService); err != nil {
		return fmt.Errorf("invalid type of service: %w", err)
	}
	if config.ReadBufferSize != 0 && (config.ReadBufferSize < MinReadBuffer || config.ReadBufferSize > limits.MaxDatagramSize) {
		return fmt.Errorf("read buffer %d out of range [%d, %d]", config.ReadBufferSize, MinReadBuffer, limits.MaxDatagramSize)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	previous := f.defaultConfig
	c := *config
	f.defaultConfig = &c

	logrus.WithFields(logrus.Fields{
		"function":            "UpdateDefaultConfig",
		"previous_components": previous.Components,
		"components":          c.Components,
		"previous_tos":        previous.TypeOfService,
		"tos":                 c.TypeOfService,
		"pipeline":            c.Pipeline != nil,
	}).Info("Updated factory default configuration")

	return nil
}
