package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// settingsFile is the optional YAML document that overrides the form section:
//
//	service_window:
//	  open: "12:00"
//	  close: "21:30"
//	slot_step: 15m
//	timezone: Europe/London
type settingsFile struct {
	ServiceWindow struct {
		Open  string `yaml:"open"`
		Close string `yaml:"close"`
	} `yaml:"service_window"`
	SlotStep string `yaml:"slot_step"`
	Timezone string `yaml:"timezone"`
}

// ApplySettingsFile overlays the YAML settings at path onto the form
// configuration. Keys absent from the file keep their current value.
func (c *Config) ApplySettingsFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}

	var doc settingsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse settings file %s: %w", path, err)
	}

	if doc.ServiceWindow.Open != "" {
		c.Form.OpenTime = doc.ServiceWindow.Open
	}
	if doc.ServiceWindow.Close != "" {
		c.Form.CloseTime = doc.ServiceWindow.Close
	}
	if doc.SlotStep != "" {
		step, err := time.ParseDuration(doc.SlotStep)
		if err != nil {
			return fmt.Errorf("settings file slot_step: %w", err)
		}
		c.Form.SlotStep = step
	}
	if doc.Timezone != "" {
		c.Form.Timezone = doc.Timezone
	}
	return nil
}

// LoadAll is the startup sequence: env files, environment, then the settings file.
func LoadAll() (*Config, error) {
	LoadEnvFiles()
	cfg := Load()
	if err := cfg.ApplySettingsFile(cfg.Form.SettingsFile); err != nil {
		return nil, err
	}
	return cfg, nil
}
