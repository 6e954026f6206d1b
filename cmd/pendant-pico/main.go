//go:build rp2040 || rp2350

// Command pendant-pico is the RP2040/RP2350 firmware: switches and estop
// on GPIO, software quadrature decoding, SSD1306 on I2C0 and the host link
// on a UART.
package main

import (
	"context"
	"io"
	"machine"
	"os"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"pendant-go/bus"
	"pendant-go/internal/app"
	"pendant-go/internal/config"
	"pendant-go/internal/display/oled"
	"pendant-go/internal/heartbeat"
	"pendant-go/internal/hostlink"
	"pendant-go/internal/hw"
	"pendant-go/internal/hw/rp2"
)

func main() {
	// let USB CDC enumerate before the first log line
	time.Sleep(2 * time.Second)

	cfg, err := config.ForBoard("pico")
	if err != nil {
		println("[main] config:", err.Error())
		halt()
	}
	log := app.NewLogger(cfg.Log, os.Stdout)

	var inputs []rp2.Input
	for i, p := range app.InputPins(cfg) {
		activeLow := cfg.Selector.ActiveLow
		if i == 0 {
			activeLow = cfg.Estop.ActiveLow
		}
		inputs = append(inputs, rp2.Input{Pin: p, ActiveLow: activeLow})
	}
	board, err := rp2.New(inputs, []rp2.Encoder{{
		ID:      hw.Counter(cfg.Encoder.Counter),
		A:       hw.Pin(cfg.Encoder.PinA),
		B:       hw.Pin(cfg.Encoder.PinB),
		Modulus: cfg.Encoder.PPR,
	}})
	if err != nil {
		log.Error("gpio", "err", err)
		halt()
	}

	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	}); err != nil {
		log.Error("i2c", "err", err)
		halt()
	}
	panel, err := oled.OpenSSD1306(i2c, cfg.Display.Address, cfg.Display.Flip)
	if err != nil {
		log.Error("display", "err", err)
		halt()
	}

	hostlink.UARTDial = dialUART

	b := bus.NewBus(4)
	config.Publish(b.NewConnection("config"), cfg)
	p, err := app.New(app.Options{Config: cfg, IO: board, Display: panel, Bus: b, Logger: log})
	if err != nil {
		log.Error("setup", "err", err)
		halt()
	}

	ctx := context.Background()
	tr, err := hostlink.NewTransport(cfg.HostLink.Config)
	if err != nil {
		log.Error("hostlink", "err", err)
		halt()
	}
	go hostlink.New(p.Link, tr, b.NewConnection("hostlink"), log).Run(ctx)
	go heartbeat.New(p.Exec, p.Store.Estop, log, p.Tasks()...).Run(ctx, b.NewConnection("heartbeat"), cfg.Heartbeat.Interval)

	if err := p.Start(); err != nil {
		log.Error("start", "err", err)
		halt()
	}
	err = p.Run(ctx)
	log.Error("pendant halted", "err", err, "cause", p.Exec.HaltErr())
	halt()
}

func dialUART(_ context.Context, c hostlink.Config) (io.WriteCloser, error) {
	u := uartx.UART0
	if c.Port == "uart1" {
		u = uartx.UART1
	}
	if err := u.Configure(uartx.UARTConfig{
		BaudRate: uint32(c.Baud),
		TX:       machine.Pin(c.TxPin),
		RX:       machine.Pin(c.RxPin),
	}); err != nil {
		return nil, err
	}
	return uartWriter{u}, nil
}

type uartWriter struct{ u *uartx.UART }

func (w uartWriter) Write(b []byte) (int, error) { return w.u.Write(b) }
func (uartWriter) Close() error                  { return nil }

// halt parks the core. Outputs were left in the safe state by the fault
// hooks, or were never enabled.
func halt() {
	for {
		time.Sleep(time.Hour)
	}
}
