package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker             string
	MQTTClientIDController string
	MQTTClientIDConsole    string
	MQTTClientIDWeb        string
	MQTTClientIDDisplay    string

	// Topics
	TopicTelemetry string
	TopicCommand   string

	// Bluetooth serial link
	SerialPort     string
	SerialBaudRate int

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	IMUSelfTest   bool
	IMUCalibrate  bool

	// ESC outputs
	PWMPins        [4]string
	PWMFrequencyHz int
	PWMPeriod      int // duty ticks per period

	// Timing
	LoopInterval     int // milliseconds
	CommandPollTicks int // loop ticks between link drains

	// PID, shared by pitch and roll
	PIDKp        float64
	PIDKi        float64
	PIDKd        float64
	PIDErrSumMin float64
	PIDErrSumMax float64

	// Mixer
	IdleDuty            int
	ThrottleSensitivity int
	PitchSensitivity    float64
	RollSensitivity     float64
	ArmThreshold        int
	CalibrationMode     bool
	ThrottleBoost       float64
	MinTiltCos          float64

	// Estimator
	FilterAlpha float64
	PitchOffset float64 // degrees
	RollOffset  float64 // degrees

	// Telemetry
	TelemetryDivider int // publish every Nth cycle
	TelemetryQueue   int

	// Simulator
	SimTrajectory string // "level" or "swing"

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Default returns the configuration used when a key is absent.
func Default() *Config {
	return &Config{
		MQTTBroker:             "tcp://localhost:1883",
		MQTTClientIDController: "attitude-controller",
		MQTTClientIDConsole:    "attitude-console-subscriber",
		MQTTClientIDWeb:        "attitude-web-subscriber",
		MQTTClientIDDisplay:    "attitude-display-subscriber",

		TopicTelemetry: "quad/telemetry",
		TopicCommand:   "quad/command",

		SerialPort:     "/dev/serial0",
		SerialBaudRate: 9600,

		IMUSPIDevice:  "/dev/spidev0.0",
		IMUCSPin:      "GPIO8",
		IMUAccelRange: 0,
		IMUCalibrate:  true,

		PWMPins:        [4]string{"GPIO12", "GPIO13", "GPIO18", "GPIO19"},
		PWMFrequencyHz: 1000,
		PWMPeriod:      100000,

		LoopInterval:     5,
		CommandPollTicks: 5,

		PIDKp:        3.0,
		PIDKi:        0.2,
		PIDKd:        1.5,
		PIDErrSumMin: -200,
		PIDErrSumMax: 200,

		IdleDuty:            14000,
		ThrottleSensitivity: 70,
		PitchSensitivity:    8,
		RollSensitivity:     8,
		ArmThreshold:        5,
		MinTiltCos:          0.1,

		FilterAlpha: 0.5,
		PitchOffset: 1,
		RollOffset:  -93,

		TelemetryDivider: 20,
		TelemetryQueue:   64,

		SimTrajectory: "swing",

		WebServerPort: 8080,

		DisplayI2CBus:         "",
		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 200,
	}
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct. An empty
// path yields the defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return Default(), nil
	}
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_CONTROLLER":
		c.MQTTClientIDController = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_TELEMETRY":
		c.TopicTelemetry = value
	case "TOPIC_COMMAND":
		c.TopicCommand = value

	// Bluetooth
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseInt(key, value)

	// IMU
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		r, perr := strconv.ParseUint(value, 10, 8)
		if perr != nil || r > 3 {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: must be 0-3", value)
		}
		c.IMUAccelRange = byte(r)
	case "IMU_SELF_TEST":
		c.IMUSelfTest, err = parseBool(key, value)
	case "IMU_CALIBRATE":
		c.IMUCalibrate, err = parseBool(key, value)

	// PWM
	case "PWM_PIN_M1":
		c.PWMPins[0] = value
	case "PWM_PIN_M2":
		c.PWMPins[1] = value
	case "PWM_PIN_M3":
		c.PWMPins[2] = value
	case "PWM_PIN_M4":
		c.PWMPins[3] = value
	case "PWM_FREQUENCY_HZ":
		c.PWMFrequencyHz, err = parseInt(key, value)
	case "PWM_PERIOD":
		c.PWMPeriod, err = parseInt(key, value)

	// Timing
	case "LOOP_INTERVAL":
		c.LoopInterval, err = parseInt(key, value)
	case "COMMAND_POLL_TICKS":
		c.CommandPollTicks, err = parseInt(key, value)

	// PID
	case "PID_KP":
		c.PIDKp, err = parseFloat(key, value)
	case "PID_KI":
		c.PIDKi, err = parseFloat(key, value)
	case "PID_KD":
		c.PIDKd, err = parseFloat(key, value)
	case "PID_ERR_SUM_MIN":
		c.PIDErrSumMin, err = parseFloat(key, value)
	case "PID_ERR_SUM_MAX":
		c.PIDErrSumMax, err = parseFloat(key, value)

	// Mixer
	case "IDLE_DUTY":
		c.IdleDuty, err = parseInt(key, value)
	case "THROTTLE_SENSITIVITY":
		c.ThrottleSensitivity, err = parseInt(key, value)
	case "PITCH_SENSITIVITY":
		c.PitchSensitivity, err = parseFloat(key, value)
	case "ROLL_SENSITIVITY":
		c.RollSensitivity, err = parseFloat(key, value)
	case "ARM_THRESHOLD":
		c.ArmThreshold, err = parseInt(key, value)
	case "CALIBRATION_MODE":
		c.CalibrationMode, err = parseBool(key, value)
	case "THROTTLE_BOOST":
		c.ThrottleBoost, err = parseFloat(key, value)
	case "MIN_TILT_COS":
		c.MinTiltCos, err = parseFloat(key, value)

	// Estimator
	case "FILTER_ALPHA":
		c.FilterAlpha, err = parseFloat(key, value)
	case "PITCH_OFFSET":
		c.PitchOffset, err = parseFloat(key, value)
	case "ROLL_OFFSET":
		c.RollOffset, err = parseFloat(key, value)

	// Telemetry
	case "TELEMETRY_DIVIDER":
		c.TelemetryDivider, err = parseInt(key, value)
	case "TELEMETRY_QUEUE":
		c.TelemetryQueue, err = parseInt(key, value)

	// Simulator
	case "SIM_TRAJECTORY":
		c.SimTrajectory = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, perr)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// validate checks cross-field constraints.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicCommand == "" || c.TopicTelemetry == "" {
		return fmt.Errorf("TOPIC_COMMAND and TOPIC_TELEMETRY are required")
	}
	if c.LoopInterval <= 0 {
		return fmt.Errorf("LOOP_INTERVAL must be positive, got %d", c.LoopInterval)
	}
	if c.CommandPollTicks <= 0 {
		return fmt.Errorf("COMMAND_POLL_TICKS must be positive, got %d", c.CommandPollTicks)
	}
	if c.PWMPeriod <= 0 {
		return fmt.Errorf("PWM_PERIOD must be positive, got %d", c.PWMPeriod)
	}
	if c.PWMFrequencyHz <= 0 {
		return fmt.Errorf("PWM_FREQUENCY_HZ must be positive, got %d", c.PWMFrequencyHz)
	}
	if c.IdleDuty < 0 || c.IdleDuty > c.PWMPeriod {
		return fmt.Errorf("IDLE_DUTY %d outside [0, PWM_PERIOD]", c.IdleDuty)
	}
	if c.PIDErrSumMin > c.PIDErrSumMax {
		return fmt.Errorf("PID_ERR_SUM_MIN %.2f above PID_ERR_SUM_MAX %.2f", c.PIDErrSumMin, c.PIDErrSumMax)
	}
	if c.FilterAlpha <= 0 || c.FilterAlpha > 1 {
		return fmt.Errorf("FILTER_ALPHA must be in (0, 1], got %.3f", c.FilterAlpha)
	}
	if c.MinTiltCos < 0 || c.MinTiltCos >= 1 {
		return fmt.Errorf("MIN_TILT_COS must be in [0, 1), got %.3f", c.MinTiltCos)
	}
	if c.TelemetryDivider < 1 {
		return fmt.Errorf("TELEMETRY_DIVIDER must be at least 1, got %d", c.TelemetryDivider)
	}
	switch c.SimTrajectory {
	case "level", "swing":
	default:
		return fmt.Errorf("SIM_TRAJECTORY must be level or swing, got %q", c.SimTrajectory)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
