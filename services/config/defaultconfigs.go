package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device; absent fields keep the defaults from
// types.DefaultAppConfig.
// -----------------------------------------------------------------------------

const cfgPico = `{
  "display": {
    "panel": "ili9341",
    "rotation": 3,
    "max_retries": 4
  },
  "telemetry": {
    "name": "invmon",
    "period_ms": 2000
  },
  "watchdog": {
    "timeout_ms": 5000,
    "interval_ms": 1000
  }
}`

const cfgPicoST7735 = `{
  "display": {
    "panel": "st7735",
    "spi": {"bus": "spi1", "frequency": 15000000, "sck": 14, "sdo": 15, "sdi": -1, "cs": 13},
    "width": 128,
    "height": 160,
    "rotation": 0,
    "max_retries": 3
  },
  "watchdog": {
    "timeout_ms": 8000,
    "interval_ms": 2000
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico":        []byte(cfgPico),
	"pico-st7735": []byte(cfgPicoST7735),
}
