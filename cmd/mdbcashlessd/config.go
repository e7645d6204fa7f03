package main

import (
	"os"

	"github.com/vendbus/mdbcashless/mdb"
	"gopkg.in/yaml.v3"
)

// config is the on-disk shape of the daemon's YAML configuration file.
// Command-line flags override whichever fields they touch.
type config struct {
	Device             string `yaml:"device"`
	ReadTimeoutMS      int    `yaml:"read_timeout_ms"`
	Slot               string `yaml:"slot"` // "primary" or "secondary"
	AutoRestartSession bool   `yaml:"auto_restart_session"`
	SurfaceBusNoise    bool   `yaml:"surface_bus_noise"`

	ReaderConfig struct {
		FeatureLevel           byte   `yaml:"feature_level"`
		CountryCode            uint16 `yaml:"country_code"`
		ScaleFactor            byte   `yaml:"scale_factor"`
		DecimalPlaces          byte   `yaml:"decimal_places"`
		MaxResponseTimeSeconds byte   `yaml:"max_response_time_seconds"`
		MiscOptions            byte   `yaml:"misc_options"`
	} `yaml:"reader_config"`

	Identity struct {
		Manufacturer    string `yaml:"manufacturer"`
		Serial          string `yaml:"serial"`
		Model           string `yaml:"model"`
		SoftwareVersion uint16 `yaml:"software_version"`
	} `yaml:"identity"`
}

func defaultConfig() config {
	c := config{
		Device:             "/dev/ttyUSB0",
		ReadTimeoutMS:      10,
		Slot:               "primary",
		AutoRestartSession: true,
		SurfaceBusNoise:    false,
	}
	rc := mdb.DefaultReaderConfig()
	c.ReaderConfig.FeatureLevel = rc.FeatureLevel
	c.ReaderConfig.CountryCode = rc.CountryCode
	c.ReaderConfig.ScaleFactor = rc.ScaleFactor
	c.ReaderConfig.DecimalPlaces = rc.DecimalPlaces
	c.ReaderConfig.MaxResponseTimeSeconds = rc.MaxResponseTimeSeconds
	c.ReaderConfig.MiscOptions = rc.MiscOptions
	c.Identity.Manufacturer = "VBS"
	c.Identity.Model = "MDBCASHLESS"
	return c
}

func loadConfig(path string) (config, error) {
	c := defaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}

func (c config) slotValue() mdb.Slot {
	if c.Slot == "secondary" {
		return mdb.SlotSecondary
	}
	return mdb.SlotPrimary
}

func (c config) readerConfigValue() mdb.ReaderConfig {
	return mdb.ReaderConfig{
		FeatureLevel:           c.ReaderConfig.FeatureLevel,
		CountryCode:            c.ReaderConfig.CountryCode,
		ScaleFactor:            c.ReaderConfig.ScaleFactor,
		DecimalPlaces:          c.ReaderConfig.DecimalPlaces,
		MaxResponseTimeSeconds: c.ReaderConfig.MaxResponseTimeSeconds,
		MiscOptions:            c.ReaderConfig.MiscOptions,
	}
}

func (c config) identityValue() mdb.Identity {
	return mdb.Identity{
		Manufacturer:    c.Identity.Manufacturer,
		Serial:          c.Identity.Serial,
		Model:           c.Identity.Model,
		SoftwareVersion: c.Identity.SoftwareVersion,
	}
}
