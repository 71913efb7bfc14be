// Package config defines the configuration of the inventory service.
package config

import (
	"fmt"
	"strings"

	"github.com/abgdnv/inventory/pkg/config"
	"github.com/abgdnv/inventory/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Database   config.DatabaseConfig   `koanf:"database"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	GRPC       config.GrpcServerConfig `koanf:"grpc"`
	Health     config.HealthConfig     `koanf:"health"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Events     config.EventsConfig     `koanf:"events"`
	Sales      SalesConfig             `koanf:"sales"`
}

// SalesConfig tunes the sale engine.
type SalesConfig struct {
	// StrictUpdateStock refuses sale updates that would take stock below zero.
	StrictUpdateStock bool `koanf:"strictupdatestock"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Database.String())
	b.WriteString(c.GRPC.String())
	b.WriteString(c.Health.String())
	b.WriteString(c.Events.String())
	b.WriteString("\n--- Sales ---\n")
	b.WriteString(fmt.Sprintf("  strictupdatestock: %t\n", c.Sales.StrictUpdateStock))
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.Database,
		&c.Log,
		&c.PProf,
		&c.GRPC,
		&c.Health,
		&c.Shutdown,
		&c.Telemetry,
		&c.Events,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
