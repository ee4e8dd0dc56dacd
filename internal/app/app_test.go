package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/attitude_controller/internal/attitude"
	"github.com/relabs-tech/attitude_controller/internal/command"
	"github.com/relabs-tech/attitude_controller/internal/config"
	"github.com/relabs-tech/attitude_controller/internal/control"
	"github.com/relabs-tech/attitude_controller/internal/mixer"
	"github.com/relabs-tech/attitude_controller/internal/pid"
	"github.com/relabs-tech/attitude_controller/internal/pwm"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

func TestControlParamsDefaults(t *testing.T) {
	p := ControlParams(config.Default())
	if p.Estimator != attitude.DefaultConfig() {
		t.Errorf("estimator = %+v", p.Estimator)
	}
	if p.Pitch != pid.DefaultConfig() || p.Roll != pid.DefaultConfig() {
		t.Errorf("gains = %+v / %+v", p.Pitch, p.Roll)
	}
	if p.Mixer != mixer.DefaultConfig() {
		t.Errorf("mixer = %+v, want %+v", p.Mixer, mixer.DefaultConfig())
	}
	if p.ThrottleBoost != 0 {
		t.Errorf("boost = %v", p.ThrottleBoost)
	}
}

func TestPWMConfig(t *testing.T) {
	cfg := config.Default()
	cfg.PWMFrequencyHz = 400
	got := pwmConfig(cfg)
	if got.Frequency != 400*physic.Hertz {
		t.Errorf("frequency = %s", got.Frequency)
	}
	if got.Period != 100000 || got.Pins != cfg.PWMPins {
		t.Errorf("config = %+v", got)
	}
	if d := loopInterval(cfg); d != 5*time.Millisecond {
		t.Errorf("interval = %s", d)
	}
}

func TestTrajectory(t *testing.T) {
	for _, name := range []string{"level", "swing"} {
		if _, err := trajectory(name); err != nil {
			t.Errorf("trajectory(%q): %v", name, err)
		}
	}
	if _, err := trajectory("loop"); err == nil {
		t.Error("expected error for unknown trajectory")
	}
}

// The simulator's pieces, stepped by hand.
func TestSimulatedFlight(t *testing.T) {
	params := ControlParams(config.Default())
	src := attitude.NewSyntheticSource(params.Estimator, attitude.Level)
	mailbox := &command.Mailbox{}
	sink := pwm.NewLogSink(true)

	loop, err := control.New(params, src, mailbox, sink)
	if err != nil {
		t.Fatal(err)
	}

	loop.Step()
	for i, d := range sink.Duties() {
		if d != 14000 {
			t.Errorf("motor %d = %d before any command, want idle", i+1, d)
		}
	}

	mailbox.Post("A50APX30Y30P")
	c := loop.Step()
	if !c.Committed || c.Setpoint != (command.Setpoint{Throttle: 50, Pitch: 0, Roll: 0}) {
		t.Fatalf("setpoint = %+v committed=%v", c.Setpoint, c.Committed)
	}
	base := 14000 + 70*50
	for i, d := range sink.Duties() {
		if d < base-500 || d > base+500 {
			t.Errorf("motor %d = %d, want near %d", i+1, d, base)
		}
	}
	if !c.Motors.Armed {
		t.Error("not armed at throttle 50")
	}
}

func TestStatusLines(t *testing.T) {
	if got := statusLines(control.Cycle{}, false); got[1] != "Waiting..." {
		t.Errorf("stale lines = %q", got)
	}

	c := control.Cycle{}
	c.Setpoint.Throttle = 42
	c.Setpoint.Pitch = -5
	c.Attitude.Pitch = -4.5
	c.Motors.Armed = true
	c.Motors.Duty = [4]int{17000, 18000, 19000, 20000}
	c.Faults.Sensor = true
	got := statusLines(c, true)
	want := []string{"T: 42 ARM !", "P:  -4.5/  -5", "R:   0.0/   0", "17 18 19 20"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", got, want)
	}
}

func TestRenderStatusDrawsPixels(t *testing.T) {
	img := renderStatus(control.Cycle{}, true)
	lit := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("nothing drawn")
	}
	if b.Dx() != 128 || b.Dy() != 64 {
		t.Errorf("bounds = %v", b)
	}
}

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type publishRecorder struct {
	mqtt.Client
	topic   string
	payload interface{}
	err     error
}

func (r *publishRecorder) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	r.topic, r.payload = topic, payload
	return doneToken{err: r.err}
}

func TestCommandPublisher(t *testing.T) {
	rec := &publishRecorder{}
	send := commandPublisher(rec, "quad/command")

	if err := send("A50A"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if rec.topic != "quad/command" || rec.payload != "A50A" {
		t.Errorf("published %v to %q", rec.payload, rec.topic)
	}

	rec.payload = nil
	long := "A" + strings.Repeat("1", command.MaxFragmentLen+1) + "A"
	if err := send(long); !errors.Is(err, command.ErrFrameTooLong) {
		t.Errorf("err = %v, want ErrFrameTooLong", err)
	}
	if rec.payload != nil {
		t.Error("invalid fragment was published")
	}

	for _, frag := range []string{"A42", "A150A", "noise"} {
		if err := send(frag); err == nil {
			t.Errorf("send(%q) accepted a fragment the controller drops", frag)
		}
	}
	if rec.payload != nil {
		t.Error("dropped fragment was published")
	}

	rec.err = errors.New("broker gone")
	if err := send("A10A"); err == nil {
		t.Error("expected publish error")
	}
}

type txRecorder struct {
	i2c.Bus
	addrs []uint16
}

func (r *txRecorder) Tx(addr uint16, _, _ []byte) error {
	r.addrs = append(r.addrs, addr)
	return nil
}

func TestAddrBusRewritesAddress(t *testing.T) {
	rec := &txRecorder{}
	b := addrBus{Bus: rec, addr: 0x3D}
	if err := b.Tx(0x3C, []byte{0}, nil); err != nil {
		t.Fatal(err)
	}
	if len(rec.addrs) != 1 || rec.addrs[0] != 0x3D {
		t.Errorf("addresses = %#x", rec.addrs)
	}
}
