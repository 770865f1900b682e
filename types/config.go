package types

// AppConfig is the board configuration published on config/<key> topics.
type AppConfig struct {
	Display   DisplayConfig   `json:"display"`
	Sensors   SensorConfig    `json:"sensors"`
	Buttons   ButtonConfig    `json:"buttons"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Watchdog  WatchdogConfig  `json:"watchdog"`
}

type DisplayConfig struct {
	Panel      string    `json:"panel"` // "ili9341" | "st7735"
	SPI        SPIConfig `json:"spi"`
	DC         int       `json:"dc"`
	RST        int       `json:"rst"`
	LED        int       `json:"led"`
	Width      uint16    `json:"width"`
	Height     uint16    `json:"height"`
	Rotation   uint8     `json:"rotation"`
	MaxRetries int       `json:"max_retries"`
	QueueSize  int       `json:"queue_size"`
	// Backlight dim steps in seconds of inactivity: 50%, 25%, off.
	DimAfterS [3]int `json:"dim_after_s"`
}

type SensorConfig struct {
	I2C        I2CConfig `json:"i2c"`
	AHTAddr    uint16    `json:"aht_addr"`
	AHTPeriodM int       `json:"aht_period_ms"`
	CurrentADC int       `json:"current_adc"`
	VoltageADC int       `json:"voltage_adc"`
	ADCPeriodM int       `json:"adc_period_ms"`
	CalcPeriod int       `json:"calc_period_ms"`
	Samples    int       `json:"samples"`
	// Current sensor: volts per amp and zero-current offset in volts.
	SensitivityVPerA float32 `json:"sensitivity_v_per_a"`
	ZeroOffsetV      float32 `json:"zero_offset_v"`
	// Voltage divider ratio (Vin / Vadc) and ADC reference.
	DividerRatio float32 `json:"divider_ratio"`
	VRef         float32 `json:"vref"`
	// Battery model used for runtime estimates.
	CapacityAh float32 `json:"capacity_ah"`
}

type ButtonConfig struct {
	Prev        int `json:"prev"`
	Next        int `json:"next"`
	BLE         int `json:"ble"`
	DebounceMS  int `json:"debounce_ms"`
	LongPressMS int `json:"long_press_ms"`
}

type TelemetryConfig struct {
	Name       string `json:"name"`
	BLE        bool   `json:"ble"`
	PeriodMS   int    `json:"period_ms"`
	SerialLine bool   `json:"serial_line"`
}

type WatchdogConfig struct {
	TimeoutMS  int `json:"timeout_ms"`
	IntervalMS int `json:"interval_ms"`
}

// DefaultAppConfig returns the reference board wiring.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Display: DisplayConfig{
			Panel:      "ili9341",
			SPI:        SPIConfig{Bus: "spi1", Frequency: 65_000_000, SCK: 14, SDO: 15, SDI: NoPin, CS: 13},
			DC:         19,
			RST:        21,
			LED:        18,
			Width:      240,
			Height:     320,
			Rotation:   3,
			MaxRetries: 4,
			QueueSize:  10,
			DimAfterS:  [3]int{30, 60, 120},
		},
		Sensors: SensorConfig{
			I2C:              I2CConfig{Bus: "i2c0", Frequency: 400_000, SDA: 4, SCL: 5},
			AHTAddr:          0x38,
			AHTPeriodM:       2100,
			CurrentADC:       27,
			VoltageADC:       26,
			ADCPeriodM:       15,
			CalcPeriod:       20,
			Samples:          128,
			SensitivityVPerA: 0.066,
			ZeroOffsetV:      1.65,
			DividerRatio:     5.7,
			VRef:             3.3,
			CapacityAh:       35,
		},
		Buttons: ButtonConfig{
			Prev:        10,
			Next:        11,
			BLE:         12,
			DebounceMS:  50,
			LongPressMS: 2000,
		},
		Telemetry: TelemetryConfig{
			Name:       "invmon",
			BLE:        true,
			PeriodMS:   2000,
			SerialLine: true,
		},
		Watchdog: WatchdogConfig{
			TimeoutMS:  5000,
			IntervalMS: 1000,
		},
	}
}
