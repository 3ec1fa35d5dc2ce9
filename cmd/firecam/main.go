// Copyright 2020 Dan Julio
// This file is part of firecam.

package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"github.com/danjulio/firecam/command"
	"github.com/danjulio/firecam/orchestrator"
	"github.com/danjulio/firecam/recorder"
	"github.com/danjulio/firecam/sensor"
	"github.com/danjulio/firecam/store"
	"github.com/danjulio/firecam/syncbus"
	"github.com/danjulio/firecam/thermal"
	"github.com/danjulio/firecam/visual"
	"github.com/danjulio/firecam/wifi"
)

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/firecam.yaml"
	arg.MustParse(&args)
	return args
}

func main() {
	if err := runMain(); err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0)
	}
	log.Printf("version: %s", version)

	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	logConfig(conf)

	log.Print("host initialisation")
	if _, err := host.Init(); err != nil {
		return err
	}

	i2cBus := &syncbus.Mutex{}
	spiBus := &syncbus.Mutex{}

	thermalDriver := thermal.NewDriver(conf.ThermalSPI, conf.ThermalVsyncPin, i2cBus)
	if err := thermalDriver.Open(); err != nil {
		return fmt.Errorf("opening thermal imager: %w", err)
	}
	defer thermalDriver.Close()

	visualDriver := visual.NewDriver(conf.VisualSPI, spiBus)
	if err := visualDriver.Open(); err != nil {
		return fmt.Errorf("opening visual imager: %w", err)
	}
	defer visualDriver.Close()

	adcI2C, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("opening ADC I2C bus: %w", err)
	}
	defer adcI2C.Close()
	adc := sensor.NewADC128D818(adcI2C)
	if err := adc.Init(); err != nil {
		return fmt.Errorf("initialising battery/temperature ADC: %w", err)
	}

	macLow, err := readMACLow(conf.MACIface)
	if err != nil {
		log.Printf("reading %s MAC address: %v (using 00:00 default AP SSID suffix)", conf.MACIface, err)
	}

	if err := os.MkdirAll(filepath.Dir(conf.StoreFile), 0o700); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	pstore := store.New(store.NewFileBacking(conf.StoreFile), macLow)
	if err := pstore.Init(); err != nil {
		return fmt.Errorf("initialising persistent store: %w", err)
	}

	rec := recorder.New(conf.RecordRoot, recorder.DirCardProbe{Root: conf.RecordRoot})

	powerPin := gpioreg.ByName(conf.PowerHoldPin)

	orch := orchestrator.New(conf.Camera, version, thermalDriver, visualDriver, thermalDriver,
		rec, pstore, nil, wifi.UnsupportedReinitialiser{}, orchestrator.NewSystemClock())
	orch.SetPower(gpioPowerController{pin: powerPin})

	sampler, err := sensor.New(lockedADCReader{adc: adc, bus: i2cBus}, orch.ShutdownSet(), orch.ShutdownEvent())
	if err != nil {
		return fmt.Errorf("starting sensor sampler: %w", err)
	}
	orch.SetSampler(sampler)

	responder := command.New(conf.ListenAddr, orch)
	orch.SetResponder(responder)

	svc, err := startService(orch)
	if err != nil {
		log.Printf("dbus service unavailable: %v", err)
	} else {
		defer svc.stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Print("received shutdown signal")
		cancel()
	}()

	go sampler.Run(ctx)
	go watchdogLoop(ctx)
	go func() {
		if err := responder.Serve(ctx); err != nil {
			log.Printf("command responder: %v", err)
		}
	}()

	orch.Run(ctx)
	return nil
}

func logConfig(conf *Config) {
	log.Printf("camera: %s", conf.Camera)
	log.Printf("listen address: %s", conf.ListenAddr)
	log.Printf("store file: %s", conf.StoreFile)
	log.Printf("record root: %s", conf.RecordRoot)
}

// watchdogLoop pings systemd's service watchdog every half its
// timeout interval, matching leptond's per-frame SdNotify cadence
// adapted to this daemon's coarser tick rate.
func watchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			daemon.SdNotify(false, "WATCHDOG=1")
		}
	}
}

// lockedADCReader adapts *sensor.ADC128D818 to sensor.Reader by
// holding the shared I2C bus mutex for the duration of the read,
// matching ADC128D818's documented locking contract.
type lockedADCReader struct {
	adc *sensor.ADC128D818
	bus *syncbus.Mutex
}

func (r lockedADCReader) ReadChannels() ([6]uint16, error) {
	r.bus.Lock()
	defer r.bus.Unlock()
	return r.adc.ReadChannels()
}

// readMACLow returns the last two bytes of iface's hardware address,
// adjusted the way the ESP-IDF soft-AP derivation does (station MAC
// plus one), for the persistent store's default AP SSID.
func readMACLow(iface string) ([2]byte, error) {
	var out [2]byte
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return out, err
	}
	mac := ifi.HardwareAddr
	if len(mac) != 6 {
		return out, fmt.Errorf("%s has no 6-byte MAC address", iface)
	}
	lastTwo := uint16(mac[4])<<8 | uint16(mac[5])
	lastTwo++ // soft-AP MAC is the station MAC plus one
	out[0] = byte(lastTwo >> 8)
	out[1] = byte(lastTwo)
	return out, nil
}

// gpioPowerController releases conf.PowerHoldPin to let the device's
// power supply drop, the Linux-daemon equivalent of the original
// firmware's system_shutoff() GPIO write.
type gpioPowerController struct {
	pin gpio.PinIO
}

func (c gpioPowerController) PowerOff() {
	log.Print("orchestrator: releasing power hold line")
	if c.pin == nil {
		return
	}
	if err := c.pin.Out(gpio.Low); err != nil {
		log.Printf("releasing power hold pin: %v", err)
	}
}
