// Copyright 2020 Dan Julio
// Copyright 2017 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package thermal

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"

	"github.com/danjulio/firecam/syncbus"
)

const (
	// vsyncPollInterval is how often AcquireFrame polls the vsync pin
	// while waiting for the start of the next segment transfer
	// window.
	vsyncPollInterval = 9 * time.Millisecond

	// maxFrameXferWait is the deadline, from the vsync edge, to
	// complete one segment transfer attempt.
	maxFrameXferWait = 9250 * time.Microsecond

	// maxVsyncRetries is how many vsync periods AcquireFrame will
	// spend trying to acquire a frame before giving up. Each try is
	// one vsync period spent on a single segment, and a frame needs
	// four segments, so this allows the sensor several frame periods
	// to recover from a stall, including a flat-field correction
	// cycle.
	maxVsyncRetries = 36
)

// Driver drives a FLIR Lepton3 over SPI (VoSPI video stream) and I2C
// (CCI control interface). It is not goroutine safe; it is intended
// to be owned by a single activity goroutine.
type Driver struct {
	spiName  string
	vsyncPin string
	spiPort  spi.PortCloser
	spiConn  spi.Conn
	vsync    gpio.PinIn

	bus *syncbus.Mutex

	asm *assembler
}

// NewDriver returns a Driver that will use the named SPI port (empty
// string selects the system default) and vsync GPIO pin, coordinating
// with other I2C users of the shared bus through bus.
func NewDriver(spiName, vsyncPin string, bus *syncbus.Mutex) *Driver {
	return &Driver{
		spiName:  spiName,
		vsyncPin: vsyncPin,
		asm:      newAssembler(),
		bus:      bus,
	}
}

// Open starts the VoSPI connection and configures the vsync pin as an
// input.
func (d *Driver) Open() error {
	spiPort, err := spireg.Open(d.spiName)
	if err != nil {
		return fmt.Errorf("thermal: opening SPI port: %w", err)
	}
	spiConn, err := spiPort.Connect(20*1e6, spi.Mode3, 8)
	if err != nil {
		spiPort.Close()
		return fmt.Errorf("thermal: connecting SPI: %w", err)
	}

	vsync := gpioreg.ByName(d.vsyncPin)
	if vsync == nil {
		spiPort.Close()
		return errors.New("thermal: vsync pin not found")
	}
	if err := vsync.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		spiPort.Close()
		return fmt.Errorf("thermal: configuring vsync pin: %w", err)
	}

	d.spiPort = spiPort
	d.spiConn = spiConn
	d.vsync = vsync
	return nil
}

// Close releases the SPI connection.
func (d *Driver) Close() error {
	if d.spiPort == nil {
		return nil
	}
	err := d.spiPort.Close()
	d.spiPort = nil
	d.spiConn = nil
	return err
}

// readPacket implements packetSource by issuing one half-duplex SPI
// transfer of a single VoSPI packet.
func (d *Driver) readPacket() ([]byte, error) {
	rx := make([]byte, vospiPacketLen)
	if err := d.spiConn.Tx(nil, rx); err != nil {
		return nil, err
	}
	return rx, nil
}

// AcquireFrame blocks until a complete frame is available, writing it
// into outFrame, or returns an error once maxVsyncRetries vsync
// cycles have passed without completing a frame.
//
// This mirrors the sensor task's own double loop: each vsync edge
// gives one window to acquire a single segment; a full frame needs
// four consecutive successful segments. An unexpected segment number
// restarts the search from segment 1; a repeated line number or a
// missed deadline only ends that window's attempt (see assembler).
func (d *Driver) AcquireFrame(outFrame *Frame) error {
	for tries := 0; ; tries++ {
		for d.vsync.Read() == gpio.Low {
			time.Sleep(vsyncPollInterval)
		}
		vsyncAt := time.Now()

		complete, err := d.asm.transferSegment(d, vsyncAt.Add(maxFrameXferWait))
		if err != nil {
			return fmt.Errorf("thermal: reading segment: %w", err)
		}
		if complete {
			*outFrame = d.asm.buf
			return nil
		}
		if tries+1 >= maxVsyncRetries {
			return errors.New("thermal: could not acquire frame")
		}
	}
}

// Telemetry80 extracts the 80-word (160-byte) telemetry block from the
// leading words of the last row of a captured Frame.
func Telemetry80(frame *Frame) []byte {
	raw := make([]byte, telemetryWordCount*2)
	for col := 0; col < telemetryWordCount; col++ {
		raw[col*2] = byte(frame[FrameRows-1][col] >> 8)
		raw[col*2+1] = byte(frame[FrameRows-1][col])
	}
	return raw
}

// SetGainMode changes the sensor's gain mode over the CCI interface.
// The I2C bus is shared with the sensor sampler, so this holds d.bus
// for the whole exchange.
func (d *Driver) SetGainMode(mode GainMode) error {
	d.bus.Lock()
	defer d.bus.Unlock()

	i2cBus, err := i2creg.Open("")
	if err != nil {
		return err
	}
	defer i2cBus.Close()
	return newCCI(i2cBus).setGainMode(mode)
}

// GainMode reads the sensor's current gain mode over the CCI
// interface.
func (d *Driver) GainMode() (GainMode, error) {
	d.bus.Lock()
	defer d.bus.Unlock()

	i2cBus, err := i2creg.Open("")
	if err != nil {
		return GainUnknown, err
	}
	defer i2cBus.Close()
	return newCCI(i2cBus).getGainMode()
}
