//go:build tinygo

package oled

import (
	"pendant-go/errcode"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ssd1306"
)

// OpenSSD1306 configures a 128x64 SSD1306 on bus at addr.
func OpenSSD1306(bus drivers.I2C, addr uint16, flip bool) (*Panel, error) {
	if bus == nil {
		return nil, errcode.New(errcode.Hardware, "oled open", "no i2c bus")
	}
	dev := ssd1306.NewI2C(bus)
	dev.Configure(ssd1306.Config{
		Width:    128,
		Height:   64,
		Address:  addr,
		VccState: ssd1306.SWITCHCAPVCC,
	})
	dev.ClearDisplay()
	return New(dev, flip), nil
}
