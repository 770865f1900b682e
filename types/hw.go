package types

// NoPin marks an optional pin as unused.
const NoPin = -1

// SPIConfig selects and configures a SPI controller.
type SPIConfig struct {
	Bus       string `json:"bus"`       // "spi0", "spi1"
	Frequency uint32 `json:"frequency"` // Hz; 0 => driver default
	SCK       int    `json:"sck"`
	SDO       int    `json:"sdo"`
	SDI       int    `json:"sdi"` // NoPin when the panel is write-only
	CS        int    `json:"cs"`  // NoPin when chip-select is tied low
	Mode      uint8  `json:"mode"`
}

// I2CConfig selects and configures an I2C controller.
type I2CConfig struct {
	Bus       string `json:"bus"` // "i2c0", "i2c1"
	Frequency uint32 `json:"frequency"`
	SDA       int    `json:"sda"`
	SCL       int    `json:"scl"`
}
