// Package config loads the rig configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transports for instrument ports.
const (
	TransportSerial = "serial"
	TransportSPJS   = "spjs"
)

// Camera drivers.
const (
	CameraSim  = "sim"
	CameraNone = "none"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	DataDir  string         `yaml:"data_dir"`
	Logging  LoggingConfig  `yaml:"logging"`
	Camera   CameraConfig   `yaml:"camera"`
	Dosing   DosingConfig   `yaml:"dosing"`
	Degas    DegasConfig    `yaml:"degas"`
	Plate    PlateConfig    `yaml:"plate"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CameraConfig struct {
	Driver        string        `yaml:"driver"`
	Width         int           `yaml:"width"`
	Height        int           `yaml:"height"`
	FrameInterval time.Duration `yaml:"frame_interval"`
	Emissivity    float64       `yaml:"emissivity"`
	Distance      float64       `yaml:"distance"`
}

// PortConfig selects how an instrument is reached.
type PortConfig struct {
	Transport   string        `yaml:"transport"`
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	SPJSURL     string        `yaml:"spjs_url"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type DosingConfig struct {
	PortConfig    `yaml:",inline"`
	PulseCommand  string        `yaml:"pulse_command"`
	ActiveStatus  string        `yaml:"active_status"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	WarmUp        time.Duration `yaml:"warm_up"`
	Fallback      time.Duration `yaml:"fallback"`
	DefaultCycles int           `yaml:"default_cycles"`
	RawLog        string        `yaml:"raw_log"`
}

type DegasStep struct {
	SetPoint float64       `yaml:"setpoint"`
	Hold     time.Duration `yaml:"hold"`
}

type DegasConfig struct {
	PortConfig `yaml:",inline"`
	Slice      time.Duration `yaml:"slice"`
	Steps      []DegasStep   `yaml:"steps"`
}

type PlateConfig struct {
	WellsX int     `yaml:"wells_x"`
	WellsY int     `yaml:"wells_y"`
	Radius float64 `yaml:"radius"`
}

type InfluxDBConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     uint          `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
	QoS      byte   `yaml:"qos"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		HTTP:    HTTPConfig{Addr: ":9091"},
		DataDir: "./data",
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Camera: CameraConfig{
			Driver:        CameraSim,
			Width:         640,
			Height:        480,
			FrameInterval: 100 * time.Millisecond,
			Emissivity:    0.95,
		},
		Dosing: DosingConfig{
			PortConfig: PortConfig{
				Transport:   TransportSerial,
				Port:        "COM6",
				Baud:        9600,
				ReadTimeout: 500 * time.Millisecond,
			},
			PulseCommand:  "1",
			ActiveStatus:  "1",
			PollInterval:  5 * time.Second,
			WarmUp:        10 * time.Second,
			Fallback:      300 * time.Second,
			DefaultCycles: 7,
			RawLog:        "pressure.log",
		},
		Degas: DegasConfig{
			PortConfig: PortConfig{
				Transport:   TransportSerial,
				Port:        "COM5",
				Baud:        9600,
				ReadTimeout: 500 * time.Millisecond,
			},
			Slice: 5 * time.Second,
			Steps: []DegasStep{
				{SetPoint: 80, Hold: 8 * time.Hour},
				{SetPoint: -10, Hold: 30 * time.Minute},
				{SetPoint: 20, Hold: 30 * time.Minute},
			},
		},
		Plate: PlateConfig{WellsX: 12, WellsY: 8, Radius: 10},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "wellrig",
			BatchSize:     100,
			FlushInterval: 10 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker: "tcp://localhost:1883",
			Prefix: "wellrig",
		},
	}
}

// Load reads path over the defaults, applies WELLRIG_* environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			// steps replace the default list rather than merging into it
			cfg.Degas.Steps = nil
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
			if cfg.Degas.Steps == nil {
				cfg.Degas.Steps = Default().Degas.Steps
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	set := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	set("WELLRIG_HTTP_ADDR", &cfg.HTTP.Addr)
	set("WELLRIG_DATA_DIR", &cfg.DataDir)
	set("WELLRIG_LOGGING_LEVEL", &cfg.Logging.Level)
	set("WELLRIG_CAMERA_DRIVER", &cfg.Camera.Driver)
	set("WELLRIG_DOSING_PORT", &cfg.Dosing.Port)
	set("WELLRIG_DOSING_SPJS_URL", &cfg.Dosing.SPJSURL)
	set("WELLRIG_DEGAS_PORT", &cfg.Degas.Port)
	set("WELLRIG_DEGAS_SPJS_URL", &cfg.Degas.SPJSURL)
	set("WELLRIG_INFLUXDB_TOKEN", &cfg.InfluxDB.Token)
	set("WELLRIG_MQTT_PASSWORD", &cfg.MQTT.Password)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (p PortConfig) validate(section string) error {
	switch p.Transport {
	case TransportSerial:
	case TransportSPJS:
		if p.SPJSURL == "" {
			return invalid("%s.spjs_url is required for the spjs transport", section)
		}
	default:
		return invalid("%s.transport %q", section, p.Transport)
	}
	if p.Port == "" {
		return invalid("%s.port is required", section)
	}
	if p.Baud <= 0 {
		return invalid("%s.baud must be positive", section)
	}
	if p.ReadTimeout <= 0 {
		return invalid("%s.read_timeout must be positive", section)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr is required")
	}
	if c.DataDir == "" {
		return invalid("data_dir is required")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return invalid("logging.format %q", c.Logging.Format)
	}

	switch c.Camera.Driver {
	case CameraSim:
		if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
			return invalid("camera size %dx%d", c.Camera.Width, c.Camera.Height)
		}
	case CameraNone:
	default:
		return invalid("camera.driver %q", c.Camera.Driver)
	}
	if c.Camera.FrameInterval <= 0 {
		return invalid("camera.frame_interval must be positive")
	}
	if c.Camera.Emissivity < 0 || c.Camera.Emissivity > 1 {
		return invalid("camera.emissivity must be between 0 and 1")
	}

	if err := c.Dosing.validate("dosing"); err != nil {
		return err
	}
	if c.Dosing.PollInterval <= 0 || c.Dosing.Fallback <= 0 || c.Dosing.WarmUp < 0 {
		return invalid("dosing timings must be positive")
	}
	if c.Dosing.DefaultCycles < 1 {
		return invalid("dosing.default_cycles must be at least 1")
	}
	if c.Dosing.PulseCommand == "" || c.Dosing.ActiveStatus == "" {
		return invalid("dosing.pulse_command and dosing.active_status are required")
	}

	if err := c.Degas.validate("degas"); err != nil {
		return err
	}
	if c.Degas.Slice <= 0 {
		return invalid("degas.slice must be positive")
	}
	if len(c.Degas.Steps) == 0 || len(c.Degas.Steps) > 3 {
		return invalid("degas.steps must have 1 to 3 entries")
	}
	for i, s := range c.Degas.Steps {
		if s.Hold < 0 {
			return invalid("degas.steps[%d].hold is negative", i)
		}
	}

	if c.Plate.WellsX < 2 || c.Plate.WellsX > 26 || c.Plate.WellsY < 2 || c.Plate.WellsY > 26 {
		return invalid("plate well counts must be between 2 and 26")
	}
	if c.Plate.Radius <= 0 {
		return invalid("plate.radius must be positive")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		return invalid("influxdb.url and influxdb.bucket are required when enabled")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return invalid("mqtt.broker is required when enabled")
	}
	if c.MQTT.QoS > 2 {
		return invalid("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}
