package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/attitude_controller/internal/config"
	"github.com/relabs-tech/attitude_controller/internal/control"
)

// displayState holds the latest telemetry for the screen.
type displayState struct {
	mu    sync.RWMutex
	cycle control.Cycle
	have  bool
	at    time.Time
}

func (s *displayState) set(c control.Cycle) {
	s.mu.Lock()
	s.cycle, s.have, s.at = c, true, time.Now()
	s.mu.Unlock()
}

func (s *displayState) get() (control.Cycle, bool, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycle, s.have, s.at
}

// addrBus sends every transaction to addr, for panels strapped to a
// different address than the driver's default.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

// staleAfter is how long without telemetry before the screen says so.
const staleAfter = 2 * time.Second

func RunDisplay() error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderLines("Attitude", "controller", "waiting..."), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	state := &displayState{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	token := client.Subscribe(cfg.TopicTelemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var c control.Cycle
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("display: telemetry unmarshal error: %v", err)
			return
		}
		state.set(c)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicTelemetry)

	ctx, cancel := signalContext()
	defer cancel()

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			dev.Draw(dev.Bounds(), renderLines("", "stopped"), image.Point{})
			return nil
		case now := <-ticker.C:
			c, have, at := state.get()
			img := renderStatus(c, have && now.Sub(at) < staleAfter)
			if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}

// statusLines lays out one cycle in four 13-pixel rows.
func statusLines(c control.Cycle, fresh bool) []string {
	if !fresh {
		return []string{"Telemetry", "Waiting..."}
	}
	mode := "ARM"
	if !c.Motors.Armed {
		mode = "IDLE"
	}
	if c.Faults.Any() {
		mode += " !"
	}
	d := c.Motors.Duty
	return []string{
		fmt.Sprintf("T:%3d %s", c.Setpoint.Throttle, mode),
		fmt.Sprintf("P:%6.1f/%4d", c.Attitude.Pitch, c.Setpoint.Pitch),
		fmt.Sprintf("R:%6.1f/%4d", c.Attitude.Roll, c.Setpoint.Roll),
		fmt.Sprintf("%d %d %d %d", d[0]/1000, d[1]/1000, d[2]/1000, d[3]/1000),
	}
}

func renderStatus(c control.Cycle, fresh bool) *image1bit.VerticalLSB {
	return renderLines(statusLines(c, fresh)...)
}

func renderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if i >= 4 {
			break
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawBytes([]byte(line))
	}
	return img
}
