package factory

import (
	"errors"
	"testing"

	"github.com/opd-ai/mediamux"
	"github.com/opd-ai/mediamux/interfaces"
	"github.com/opd-ai/mediamux/limits"
	"github.com/opd-ai/mediamux/transport"
)

// clearEnvironment makes tests independent of the caller's MEDIAMUX_* settings.
func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvComponents, EnvTOS, EnvReadBuffer, EnvDoTimestamp} {
		t.Setenv(key, "")
	}
}

// TestNewTransmitterFactory verifies default factory creation
func TestNewTransmitterFactory(t *testing.T) {
	clearEnvironment(t)

	factory := NewTransmitterFactory()
	if factory == nil {
		t.Fatal("NewTransmitterFactory returned nil")
	}

	config := factory.GetDefaultConfig()
	if config.Components != mediamux.DefaultComponents {
		t.Errorf("expected default Components %d, got %d", mediamux.DefaultComponents, config.Components)
	}
	if config.TypeOfService != 0 {
		t.Errorf("expected default TypeOfService 0, got %d", config.TypeOfService)
	}
	if config.ReadBufferSize != limits.MaxDatagramSize {
		t.Errorf("expected default ReadBufferSize %d, got %d", limits.MaxDatagramSize, config.ReadBufferSize)
	}
	if !config.DoTimestamp {
		t.Error("expected DoTimestamp to default to true")
	}
	if config.Pipeline != nil {
		t.Error("expected no default pipeline")
	}
}

// TestEnvironmentVariableParsing verifies environment variable handling
func TestEnvironmentVariableParsing(t *testing.T) {
	tests := []struct {
		name        string
		envKey      string
		envValue    string
		checkFunc   func(*interfaces.TransmitterConfig) bool
		description string
	}{
		{
			name:        "valid_components",
			envKey:      EnvComponents,
			envValue:    "4",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.Components == 4 },
			description: "Components should be 4",
		},
		{
			name:        "components_at_minimum",
			envKey:      EnvComponents,
			envValue:    "1",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.Components == 1 },
			description: "Components should accept the minimum",
		},
		{
			name:        "components_zero",
			envKey:      EnvComponents,
			envValue:    "0",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.Components == 2 },
			description: "Components should fall back to default (2) when zero",
		},
		{
			name:        "components_above_maximum",
			envKey:      EnvComponents,
			envValue:    "17",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.Components == 2 },
			description: "Components should fall back to default (2) above maximum",
		},
		{
			name:        "invalid_components_value",
			envKey:      EnvComponents,
			envValue:    "two",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.Components == 2 },
			description: "Components should fall back to default (2) on invalid value",
		},
		{
			name:        "valid_tos_decimal",
			envKey:      EnvTOS,
			envValue:    "184",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.TypeOfService == 0xb8 },
			description: "TypeOfService should be 184",
		},
		{
			name:        "valid_tos_hex",
			envKey:      EnvTOS,
			envValue:    "0xb8",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.TypeOfService == 0xb8 },
			description: "TypeOfService should accept hex",
		},
		{
			name:        "tos_above_maximum",
			envKey:      EnvTOS,
			envValue:    "256",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.TypeOfService == 0 },
			description: "TypeOfService should fall back to default (0) above 255",
		},
		{
			name:        "tos_negative",
			envKey:      EnvTOS,
			envValue:    "-1",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.TypeOfService == 0 },
			description: "TypeOfService should fall back to default (0) when negative",
		},
		{
			name:        "invalid_tos_value",
			envKey:      EnvTOS,
			envValue:    "EF",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.TypeOfService == 0 },
			description: "TypeOfService should fall back to default (0) on invalid value",
		},
		{
			name:        "valid_read_buffer",
			envKey:      EnvReadBuffer,
			envValue:    "9000",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.ReadBufferSize == 9000 },
			description: "ReadBufferSize should be 9000",
		},
		{
			name:        "read_buffer_below_minimum",
			envKey:      EnvReadBuffer,
			envValue:    "512",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.ReadBufferSize == limits.MaxDatagramSize },
			description: "ReadBufferSize should fall back to default below minimum",
		},
		{
			name:        "read_buffer_above_maximum",
			envKey:      EnvReadBuffer,
			envValue:    "70000",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.ReadBufferSize == limits.MaxDatagramSize },
			description: "ReadBufferSize should fall back to default above maximum",
		},
		{
			name:        "do_timestamp_false",
			envKey:      EnvDoTimestamp,
			envValue:    "false",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return !c.DoTimestamp },
			description: "DoTimestamp should be false",
		},
		{
			name:        "invalid_do_timestamp_value",
			envKey:      EnvDoTimestamp,
			envValue:    "sometimes",
			checkFunc:   func(c *interfaces.TransmitterConfig) bool { return c.DoTimestamp },
			description: "DoTimestamp should fall back to default (true) on invalid value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvironment(t)
			t.Setenv(tt.envKey, tt.envValue)

			factory := NewTransmitterFactory()
			config := factory.GetDefaultConfig()

			if !tt.checkFunc(config) {
				t.Errorf("%s failed: %s", tt.name, tt.description)
			}
		})
	}
}

// TestCreateTransmitter verifies a transmitter is built from the defaults
func TestCreateTransmitter(t *testing.T) {
	clearEnvironment(t)
	t.Setenv(EnvComponents, "3")
	t.Setenv(EnvTOS, "0x20")

	factory := NewTransmitterFactory()
	tr, err := factory.CreateTransmitter()
	if err != nil {
		t.Fatalf("CreateTransmitter failed: %v", err)
	}
	defer tr.Close()

	if tr.Components() != 3 {
		t.Errorf("expected 3 components, got %d", tr.Components())
	}
	if tr.TypeOfService() != 0x20 {
		t.Errorf("expected ToS 0x20, got %#x", tr.TypeOfService())
	}
}

// TestCreateTransmitterWithConfigCustom verifies a custom config wins over defaults
func TestCreateTransmitterWithConfigCustom(t *testing.T) {
	clearEnvironment(t)
	factory := NewTransmitterFactory()

	tr, err := factory.CreateTransmitterWithConfig(&interfaces.TransmitterConfig{Components: 1})
	if err != nil {
		t.Fatalf("CreateTransmitterWithConfig failed: %v", err)
	}
	defer tr.Close()

	if tr.Components() != 1 {
		t.Errorf("expected 1 component, got %d", tr.Components())
	}
}

// TestCreateTransmitterWithConfigInvalid verifies construction errors are surfaced
func TestCreateTransmitterWithConfigInvalid(t *testing.T) {
	clearEnvironment(t)
	factory := NewTransmitterFactory()

	tr, err := factory.CreateTransmitterWithConfig(&interfaces.TransmitterConfig{Components: 0})
	if err == nil {
		tr.Close()
		t.Fatal("expected error for zero components")
	}
	if !errors.Is(err, transport.ErrInvalidArguments) {
		t.Errorf("expected ErrInvalidArguments, got %v", err)
	}
}

// TestGetDefaultConfigReturnsCopy verifies callers cannot mutate the default
func TestGetDefaultConfigReturnsCopy(t *testing.T) {
	clearEnvironment(t)
	factory := NewTransmitterFactory()

	config := factory.GetDefaultConfig()
	config.Components = 9

	if factory.GetDefaultConfig().Components == 9 {
		t.Error("modifying returned config changed the factory default")
	}
}

// TestUpdateDefaultConfig verifies validation and storage of a new default
func TestUpdateDefaultConfig(t *testing.T) {
	clearEnvironment(t)
	factory := NewTransmitterFactory()

	invalid := []*interfaces.TransmitterConfig{
		nil,
		{Components: 0},
		{Components: MaxComponents + 1},
		{Components: 2, TypeOfService: 300},
		{Components: 2, ReadBufferSize: 100},
	}
	for i, config := range invalid {
		if err := factory.UpdateDefaultConfig(config); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}

	update := &interfaces.TransmitterConfig{Components: 1, TypeOfService: 0x88, ReadBufferSize: 4096}
	if err := factory.UpdateDefaultConfig(update); err != nil {
		t.Fatalf("UpdateDefaultConfig failed: %v", err)
	}
	update.Components = 5

	config := factory.GetDefaultConfig()
	if config.Components != 1 || config.TypeOfService != 0x88 || config.ReadBufferSize != 4096 {
		t.Errorf("unexpected default after update: %+v", config)
	}
}
