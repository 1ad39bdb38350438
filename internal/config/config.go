// Package config loads the beacon daemon configuration from a YAML file with
// BEACON_* environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/sweeney/beacon/internal/device"
	"github.com/sweeney/beacon/internal/gpio"
	"github.com/sweeney/beacon/internal/notify"
)

// DefaultPath is used when -config is not given.
const DefaultPath = "configs/beacon.yaml"

// DefaultIFTTTURL is the IFTTT maker trigger URL; the verbs are event then key.
const DefaultIFTTTURL = "https://maker.ifttt.com/trigger/%s/with/key/%s"

// ErrNoDevices is returned when no device is configured.
var ErrNoDevices = device.ErrNoDevices

// Config is the full daemon configuration.
//
// Durations are Go duration strings ("30s", "15m").
type Config struct {
	LogLevel  string        `mapstructure:"log_level"`
	HTTPAddr  string        `mapstructure:"http_addr"`
	AccessKey string        `mapstructure:"access_key"`
	APIRate   float64       `mapstructure:"api_rate"`
	APIBurst  int           `mapstructure:"api_burst"`
	GPIOChip  string        `mapstructure:"gpio_chip"`
	Heartbeat time.Duration `mapstructure:"heartbeat"`

	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	IFTTT    IFTTTConfig    `mapstructure:"ifttt"`
	Triggers TriggersConfig `mapstructure:"triggers"`
	Devices  []DeviceConfig `mapstructure:"devices"`
}

// MQTTConfig configures the broker connection. An empty Broker disables MQTT.
type MQTTConfig struct {
	Broker     string `mapstructure:"broker"`
	ClientID   string `mapstructure:"client_id"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// WebhookConfig configures the webhook sender. Timeout 0 keeps the
// transport default.
type WebhookConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// SMTPConfig configures the mail relay.
type SMTPConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	SSL                bool          `mapstructure:"ssl"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	From               string        `mapstructure:"from"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// AlertsConfig configures perish alerts. An empty PerishURL disables them.
type AlertsConfig struct {
	PerishURL string `mapstructure:"perish_url"`
}

// IFTTTConfig configures the IFTTT maker webhook used by trigger events.
type IFTTTConfig struct {
	Key         string `mapstructure:"key"`
	URLTemplate string `mapstructure:"url_template"`
}

// URL returns the trigger URL for event.
func (c IFTTTConfig) URL(event string) string {
	return fmt.Sprintf(c.URLTemplate, event, c.Key)
}

// TriggersConfig holds the recipients and budget of the trigger API events.
type TriggersConfig struct {
	ExecuteRecipients []string `mapstructure:"execute_recipients"`
	MotionRecipients  []string `mapstructure:"motion_recipients"`
	PerishSeconds     int      `mapstructure:"perish_seconds"`
}

// DeviceConfig is one configured output. Names are case-insensitive.
type DeviceConfig struct {
	Name       string `mapstructure:"name"`
	Pin        int    `mapstructure:"pin"`
	Scheme     string `mapstructure:"scheme"`
	Visibility string `mapstructure:"visibility"`
	FlashMode  string `mapstructure:"flash_mode"`
}

// setDefaults also registers every key that may come only from the
// environment, since Unmarshal ignores keys viper has not seen.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("access_key", "")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("alerts.perish_url", "")
	v.SetDefault("ifttt.key", "")
	v.SetDefault("http_addr", ":5000")
	v.SetDefault("api_rate", 5.0)
	v.SetDefault("api_burst", 10)
	v.SetDefault("gpio_chip", gpio.DefaultChip)
	v.SetDefault("heartbeat", 15*time.Minute)
	v.SetDefault("mqtt.client_id", "beacon")
	v.SetDefault("mqtt.buffer_size", 256)
	v.SetDefault("webhook.timeout", 30*time.Second)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.timeout", 30*time.Second)
	v.SetDefault("ifttt.url_template", DefaultIFTTTURL)
	v.SetDefault("triggers.perish_seconds", notify.DefaultPerishSeconds)
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.APIRate < 0 {
		return fmt.Errorf("api_rate: must be >= 0")
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat: must be >= 0")
	}
	if c.Webhook.Timeout < 0 {
		return fmt.Errorf("webhook.timeout: must be >= 0")
	}
	if c.Triggers.PerishSeconds < 0 {
		return fmt.Errorf("triggers.perish_seconds: must be >= 0")
	}
	if strings.Count(c.IFTTT.URLTemplate, "%s") != 2 {
		return fmt.Errorf("ifttt.url_template: want two %%s verbs, got %q", c.IFTTT.URLTemplate)
	}
	_, err := c.DeviceConfigs()
	return err
}

// DeviceConfigs converts the device list into registry configs.
func (c *Config) DeviceConfigs() ([]device.Config, error) {
	if len(c.Devices) == 0 {
		return nil, ErrNoDevices
	}
	seen := make(map[string]bool, len(c.Devices))
	out := make([]device.Config, 0, len(c.Devices))
	for i, d := range c.Devices {
		path := fmt.Sprintf("devices[%d]", i)
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("%s.name: required", path)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("%s.name: duplicate device %q", path, name)
		}
		seen[key] = true
		if d.Pin < 0 {
			return nil, fmt.Errorf("%s.pin: must be >= 0", path)
		}
		scheme, err := gpio.ParseScheme(d.Scheme)
		if err != nil {
			return nil, fmt.Errorf("%s.scheme: %w", path, err)
		}
		vis, err := device.ParseVisibility(d.Visibility)
		if err != nil {
			return nil, fmt.Errorf("%s.visibility: %w", path, err)
		}
		mode, err := device.ParseFlashMode(d.FlashMode)
		if err != nil {
			return nil, fmt.Errorf("%s.flash_mode: %w", path, err)
		}
		out = append(out, device.Config{
			Name:       name,
			Pin:        d.Pin,
			Scheme:     scheme,
			Visibility: vis,
			FlashMode:  mode,
		})
	}
	return out, nil
}

// Level returns the parsed log level.
func (c *Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}
