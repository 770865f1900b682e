package config

import (
	"context"
	"encoding/json"
	"errors"

	"invmon/bus"
	"invmon/types"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxDeviceKey is the context key carrying the board name.
const CtxDeviceKey ctxKey = "device"

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// Load returns the board configuration for device: the reference defaults
// overlaid with the fields present in the embedded JSON.
func Load(device string) (types.AppConfig, error) {
	cfg := types.DefaultAppConfig()
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return cfg, errors.New("no embedded config for device: " + device)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return types.DefaultAppConfig(), errors.New("config " + device + ": " + err.Error())
	}
	return cfg, nil
}

// Sections maps each config/<key> topic key to its typed payload.
func Sections(cfg types.AppConfig) map[string]any {
	return map[string]any{
		"display":   cfg.Display,
		"sensors":   cfg.Sensors,
		"buttons":   cfg.Buttons,
		"telemetry": cfg.Telemetry,
		"watchdog":  cfg.Watchdog,
	}
}

// Topic returns config/<key>.
func Topic(key string) bus.Topic { return bus.T(configPrefix, key) }

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig loads the device config and publishes each section as a
// retained message.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return errors.New("missing device ID in context")
	}
	cfg, err := Load(device)
	if err != nil {
		return err
	}
	for k, v := range Sections(cfg) {
		conn.Publish(conn.NewMessage(Topic(k), v, true))
	}
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("[config]", err.Error())
		}
	}()
}
