package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Overlay is the YAML configuration file. Every field is optional; set
// fields replace the defaults and are in turn replaced by environment
// variables.
type Overlay struct {
	Server struct {
		Address        string `yaml:"address"`
		RequestTimeout string `yaml:"requestTimeout"`
		EnableCORS     *bool  `yaml:"enableCors"`
	} `yaml:"server"`

	Store struct {
		Driver            string `yaml:"driver"`
		TableName         string `yaml:"tableName"`
		BadgerPath        string `yaml:"badgerPath"`
		CollectorMaxPages int    `yaml:"collectorMaxPages"`
	} `yaml:"store"`

	Events struct {
		BusName string `yaml:"busName"`
	} `yaml:"events"`

	Listing struct {
		DefaultLimit int `yaml:"defaultLimit"`
	} `yaml:"listing"`

	Observability struct {
		LogLevel      string `yaml:"logLevel"`
		EnableMetrics *bool  `yaml:"enableMetrics"`
		EnableTracing *bool  `yaml:"enableTracing"`
		OTLPEndpoint  string `yaml:"otlpEndpoint"`
	} `yaml:"observability"`
}

// LoadFile reads and parses a YAML overlay.
func LoadFile(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var o Overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if o.Server.RequestTimeout != "" {
		if _, err := time.ParseDuration(o.Server.RequestTimeout); err != nil {
			return nil, fmt.Errorf("config file %s: server.requestTimeout: %w", path, err)
		}
	}
	return &o, nil
}

// Apply copies every field set in o onto c.
func (c *Config) Apply(o *Overlay) {
	if o == nil {
		return
	}
	setString(&c.ServerAddress, o.Server.Address)
	if d, err := time.ParseDuration(o.Server.RequestTimeout); err == nil {
		c.RequestTimeout = d
	}
	setBool(&c.EnableCORS, o.Server.EnableCORS)

	setString(&c.StoreDriver, o.Store.Driver)
	setString(&c.TableName, o.Store.TableName)
	setString(&c.BadgerPath, o.Store.BadgerPath)
	setInt(&c.CollectorMaxPages, o.Store.CollectorMaxPages)

	setString(&c.EventBusName, o.Events.BusName)
	setInt(&c.DefaultListingLimit, o.Listing.DefaultLimit)

	setString(&c.LogLevel, o.Observability.LogLevel)
	setBool(&c.EnableMetrics, o.Observability.EnableMetrics)
	setBool(&c.EnableTracing, o.Observability.EnableTracing)
	setString(&c.OTLPEndpoint, o.Observability.OTLPEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
