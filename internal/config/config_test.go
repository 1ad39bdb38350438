package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/beacon/internal/device"
	"github.com/sweeney/beacon/internal/gpio"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimal = `
devices:
  - name: kitchen
    pin: 18
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Equal(t, 5.0, cfg.APIRate)
	assert.Equal(t, gpio.DefaultChip, cfg.GPIOChip)
	assert.Equal(t, 15*time.Minute, cfg.Heartbeat)
	assert.Equal(t, 30*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.False(t, cfg.SMTP.InsecureSkipVerify)
	assert.Equal(t, "beacon", cfg.MQTT.ClientID)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Equal(t, 120, cfg.Triggers.PerishSeconds)
	assert.Equal(t, DefaultIFTTTURL, cfg.IFTTT.URLTemplate)

	devs, err := cfg.DeviceConfigs()
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, device.Config{
		Name:       "kitchen",
		Pin:        18,
		Scheme:     gpio.SchemeLogical,
		Visibility: device.Off,
		FlashMode:  device.Help,
	}, devs[0])
}

func TestLoadFullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
log_level: debug
http_addr: "127.0.0.1:8080"
access_key: k3y
heartbeat: 1m
webhook:
  timeout: 5s
smtp:
  host: mail.example.com
  port: 465
  ssl: true
  from: beacon@example.com
ifttt:
  key: abc
triggers:
  execute_recipients: [ops@example.com]
  motion_recipients: [a@example.com, b@example.com]
  perish_seconds: 60
devices:
  - {name: Kitchen, pin: 18, scheme: bcm, visibility: flashing, flash_mode: idk}
  - {name: porch, pin: 11, scheme: board, visibility: "on", flash_mode: fast}
`))
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
	assert.Equal(t, "k3y", cfg.AccessKey)
	assert.Equal(t, time.Minute, cfg.Heartbeat)
	assert.Equal(t, 5*time.Second, cfg.Webhook.Timeout)
	assert.True(t, cfg.SMTP.SSL)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Triggers.MotionRecipients)
	assert.Equal(t, 60, cfg.Triggers.PerishSeconds)
	assert.Equal(t, "https://maker.ifttt.com/trigger/mdet1_ack/with/key/abc", cfg.IFTTT.URL("mdet1_ack"))

	devs, err := cfg.DeviceConfigs()
	require.NoError(t, err)
	require.Len(t, devs, 2)
	assert.Equal(t, "Kitchen", devs[0].Name)
	assert.Equal(t, device.Flashing, devs[0].Visibility)
	assert.Equal(t, device.IDK, devs[0].FlashMode)
	assert.Equal(t, gpio.SchemeBoard, devs[1].Scheme)
	assert.Equal(t, device.On, devs[1].Visibility)
	assert.Equal(t, device.Fast, devs[1].FlashMode)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BEACON_SMTP_PASSWORD", "s3cret")
	t.Setenv("BEACON_ACCESS_KEY", "from-env")
	t.Setenv("BEACON_MQTT_BROKER", "tcp://broker:1883")

	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.SMTP.Password)
	assert.Equal(t, "from-env", cfg.AccessKey)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadNoDevices(t *testing.T) {
	_, err := Load(writeConfig(t, "log_level: info\n"))
	assert.ErrorIs(t, err, ErrNoDevices)
	assert.ErrorIs(t, err, device.ErrNoDevices)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"duplicate name": `
devices:
  - {name: kitchen, pin: 1}
  - {name: KITCHEN, pin: 2}
`,
		"blank name": `
devices:
  - {name: " ", pin: 1}
`,
		"bad scheme": `
devices:
  - {name: kitchen, pin: 1, scheme: wiringpi}
`,
		"bad visibility": `
devices:
  - {name: kitchen, pin: 1, visibility: dim}
`,
		"bad flash mode": `
devices:
  - {name: kitchen, pin: 1, flash_mode: strobe}
`,
		"negative pin": `
devices:
  - {name: kitchen, pin: -1}
`,
		"bad log level": `
log_level: loud
devices:
  - {name: kitchen, pin: 1}
`,
		"bad ifttt template": `
ifttt:
  url_template: "https://example.com/%s"
devices:
  - {name: kitchen, pin: 1}
`,
		"negative perish": `
triggers:
  perish_seconds: -5
devices:
  - {name: kitchen, pin: 1}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
