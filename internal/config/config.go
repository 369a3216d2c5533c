package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	BindAddr string `envconfig:"BIND_ADDR" default:":8080"`

	// Prism gateway connection. Hostname and password have no usable
	// defaults; main validates them at startup.
	PrismHostname string `envconfig:"PRISM_HOSTNAME" default:""`
	PrismPort     int    `envconfig:"PRISM_PORT" default:"9440"`
	PrismUsername string `envconfig:"PRISM_USERNAME" default:"admin"`
	PrismPassword string `envconfig:"PRISM_PASSWORD" default:""`

	// Prism appliances ship self-signed certificates, so verification is
	// off unless explicitly enabled.
	VerifyTLS bool `envconfig:"VERIFY_TLS" default:"false"`

	// Console session timing
	ReconnectDelay   string `envconfig:"RECONNECT_DELAY" default:"30s"`
	LivenessInterval string `envconfig:"LIVENESS_INTERVAL" default:"30s"`

	// Audit storage
	DatabasePath       string `envconfig:"DATABASE_PATH" default:"data/prism-vnc-proxy.db"`
	AuditRetentionDays int    `envconfig:"AUDIT_RETENTION_DAYS" default:"90"`

	// Optional YAML file with extra keysym substitutions for locale
	// layouts the built-in table does not cover.
	LayoutOverrides string `envconfig:"LAYOUT_OVERRIDES" default:""`

	// When set, sessions resolve a second US-layout keysym from the
	// physical scancode for hypervisors that mis-translate locale
	// keyboards.
	USKeyboardFallback bool `envconfig:"US_KEYBOARD_FALLBACK" default:"false"`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("VNCPROXY", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
