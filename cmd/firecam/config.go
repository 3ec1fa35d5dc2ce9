// Copyright 2020 Dan Julio
// This file is part of firecam.

package main

import (
	"errors"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"
)

// Config is the daemon's runtime configuration: the camera identity
// reported in every image record and status reply, the wire/storage
// locations, and the GPIO/SPI/I2C names the hardware drivers bind to.
type Config struct {
	Camera string

	ListenAddr string
	StoreFile  string
	RecordRoot string
	MACIface   string

	ThermalSPI      string
	ThermalVsyncPin string

	VisualSPI string

	PowerHoldPin string
}

func (conf *Config) Validate() error {
	if conf.Camera == "" {
		return errors.New("camera name must not be empty")
	}
	if conf.ListenAddr == "" {
		return errors.New("listen-addr must not be empty")
	}
	if conf.StoreFile == "" {
		return errors.New("store-file must not be empty")
	}
	if conf.RecordRoot == "" {
		return errors.New("record-root must not be empty")
	}
	return nil
}

type rawConfig struct {
	Camera string `yaml:"camera"`

	ListenAddr string `yaml:"listen-addr"`
	StoreFile  string `yaml:"store-file"`
	RecordRoot string `yaml:"record-root"`
	MACIface   string `yaml:"mac-iface"`

	ThermalSPI      string `yaml:"thermal-spi"`
	ThermalVsyncPin string `yaml:"thermal-vsync-pin"`

	VisualSPI string `yaml:"visual-spi"`

	PowerHoldPin string `yaml:"power-hold-pin"`
}

var defaultConfig = rawConfig{
	Camera:     "firecam",
	ListenAddr: ":5001",
	StoreFile:  "/etc/firecam/store.bin",
	RecordRoot: "/media/firecam/recordings",
	MACIface:   "eth0",

	ThermalSPI:      "",
	ThermalVsyncPin: "GPIO17",

	VisualSPI: "",

	PowerHoldPin: "GPIO24",
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	conf, err := ParseConfig(buf)
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func ParseConfig(buf []byte) (*Config, error) {
	raw := defaultConfig
	if err := yaml.Unmarshal(buf, &raw); err != nil {
		return nil, err
	}

	conf := &Config{
		Camera:          raw.Camera,
		ListenAddr:      raw.ListenAddr,
		StoreFile:       raw.StoreFile,
		RecordRoot:      raw.RecordRoot,
		MACIface:        raw.MACIface,
		ThermalSPI:      raw.ThermalSPI,
		ThermalVsyncPin: raw.ThermalVsyncPin,
		VisualSPI:       raw.VisualSPI,
		PowerHoldPin:    raw.PowerHoldPin,
	}
	return conf, nil
}
