// Copyright 2020 Dan Julio
// Copyright 2017 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

// Package visual drives the handheld's visual (JPEG) imager. The
// imager shares its SPI bus with the thermal display and touchscreen;
// activity on the bus directed at other devices while offloading an
// image confuses the sensor, so the whole capture-and-drain sequence
// is done with the bus locked, not just the individual transfers.
package visual

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"

	"github.com/danjulio/firecam/syncbus"
)

// ArduChip FIFO control registers and capture-status bits. The sensor
// has no separate trigger/done GPIO lines; capture start, completion
// polling and the FIFO byte count are all read and written as ArduChip
// registers over the same SPI connection used to drain the FIFO.
const (
	arduchipFifo     = 0x04
	fifoClearMask    = 0x01
	fifoStartMask    = 0x02
	fifoWrptrRstMask = 0x10
	fifoRdptrRstMask = 0x20

	arduchipTrig = 0x41
	capDoneMask  = 0x08

	burstFifoRead = 0x3C
	fifoSize1     = 0x42
	fifoSize2     = 0x43
	fifoSize3     = 0x44

	writeBit = 0x80
)

const (
	// jpegWaitInterval and maxJPEGWait mirror the sensor task's own
	// poll-for-capture-done loop.
	jpegWaitInterval = 10 * time.Millisecond
	maxJPEGWait      = 300 * time.Millisecond

	// maxJPEGBytes bounds a single capture; a FIFO length report
	// outside (0, maxJPEGBytes] is rejected before any FIFO data is
	// read, rather than being treated as a legitimately large JPEG.
	maxJPEGBytes = 65536

	jpegStartMarker = 0xD8
	jpegEndMarker   = 0xD9

	// burstChunkBytes is the size of one FIFO burst-read SPI
	// transaction; it has no hardware significance beyond keeping a
	// single Tx call's buffer to a reasonable size.
	burstChunkBytes = 4096
)

// Driver drives the visual imager's trigger-capture-drain cycle.
type Driver struct {
	spiName string

	spiPort spi.PortCloser
	spiConn spi.Conn

	bus *syncbus.Mutex
}

// NewDriver returns a Driver using the named SPI port, sharing bus
// with the display and touchscreen.
func NewDriver(spiName string, bus *syncbus.Mutex) *Driver {
	return &Driver{
		spiName: spiName,
		bus:     bus,
	}
}

// Open configures the SPI connection.
func (d *Driver) Open() error {
	spiPort, err := spireg.Open(d.spiName)
	if err != nil {
		return fmt.Errorf("visual: opening SPI port: %w", err)
	}
	spiConn, err := spiPort.Connect(4*1e6, spi.Mode0, 8)
	if err != nil {
		spiPort.Close()
		return fmt.Errorf("visual: connecting SPI: %w", err)
	}

	d.spiPort = spiPort
	d.spiConn = spiConn
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

// writeReg writes an ArduChip register, ported from ov2640_writeReg:
// the register address with its write bit set, then the value, sent
// as a single full-duplex transaction since periph's spi.Conn has no
// separate command phase.
func (d *Driver) writeReg(addr, value byte) error {
	return d.spiConn.Tx([]byte{addr | writeBit, value}, nil)
}

// readReg reads an ArduChip register, ported from ov2640_readReg.
func (d *Driver) readReg(addr byte) (byte, error) {
	rx := make([]byte, 2)
	if err := d.spiConn.Tx([]byte{addr &^ writeBit, 0}, rx); err != nil {
		return 0, err
	}
	return rx[1], nil
}

// startCapture flushes the FIFO, clears the capture-done flag and
// triggers a new capture, ported from ov2640_capture.
func (d *Driver) startCapture() error {
	if err := d.writeReg(arduchipFifo, fifoRdptrRstMask|fifoWrptrRstMask); err != nil {
		return fmt.Errorf("visual: flushing fifo: %w", err)
	}
	if err := d.writeReg(arduchipFifo, fifoClearMask); err != nil {
		return fmt.Errorf("visual: clearing capture flag: %w", err)
	}
	if err := d.writeReg(arduchipFifo, fifoStartMask); err != nil {
		return fmt.Errorf("visual: starting capture: %w", err)
	}
	return nil
}

// captureDone polls the ArduChip trigger register's capture-done bit,
// ported from ov2640_getBit(ARDUCHIP_TRIG, CAP_DONE_MASK).
func (d *Driver) captureDone() (bool, error) {
	v, err := d.readReg(arduchipTrig)
	if err != nil {
		return false, err
	}
	return v&capDoneMask != 0, nil
}

// fifoLength reads the three FIFO size registers, ported from
// ov2640_readFifoLength.
func (d *Driver) fifoLength() (int, error) {
	len1, err := d.readReg(fifoSize1)
	if err != nil {
		return 0, err
	}
	len2, err := d.readReg(fifoSize2)
	if err != nil {
		return 0, err
	}
	len3, err := d.readReg(fifoSize3)
	if err != nil {
		return 0, err
	}
	return int(len3&0x07)<<16 | int(len2)<<8 | int(len1), nil
}

// Capture triggers the sensor, waits for it to finish encoding a
// frame, and drains the JPEG FIFO into a single buffer, holding the
// shared SPI bus for the whole sequence.
func (d *Driver) Capture() ([]byte, error) {
	d.bus.Lock()
	defer d.bus.Unlock()

	if err := d.startCapture(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(maxJPEGWait)
	for {
		done, err := d.captureDone()
		if err != nil {
			return nil, fmt.Errorf("visual: polling capture status: %w", err)
		}
		if done {
			break
		}
		if time.Now().After(deadline) {
			return nil, errors.New("visual: jpeg image not captured in time")
		}
		time.Sleep(jpegWaitInterval)
	}

	jpeg, err := d.drainFIFO()
	if err != nil {
		return nil, err
	}
	if len(jpeg) == 0 {
		return nil, errors.New("visual: could not get jpeg image")
	}
	return jpeg, nil
}

// drainFIFO reads the FIFO-reported length, sanity-checks it against
// maxJPEGBytes before touching the buffer, then burst-reads exactly
// that many bytes, scanning for the JPEG start/end markers to trim any
// trailing FIFO padding. Ported from ov2640_transferJpeg.
func (d *Driver) drainFIFO() ([]byte, error) {
	length, err := d.fifoLength()
	if err != nil {
		return nil, fmt.Errorf("visual: reading fifo length: %w", err)
	}
	if length == 0 || length > maxJPEGBytes {
		return nil, fmt.Errorf("visual: fifo reported length %d out of range", length)
	}

	buf := make([]byte, 0, length)
	tx := make([]byte, 1+burstChunkBytes)
	tx[0] = burstFifoRead
	rx := make([]byte, len(tx))

	sawStart := false
	read := 0
	for read < length {
		n := burstChunkBytes
		if remaining := length - read; remaining < n {
			n = remaining
		}
		if err := d.spiConn.Tx(tx[:1+n], rx[:1+n]); err != nil {
			return nil, fmt.Errorf("visual: draining jpeg fifo: %w", err)
		}
		buf = append(buf, rx[1:1+n]...)
		read += n

		if !sawStart {
			if i := findMarker(buf, jpegStartMarker); i >= 0 {
				buf = buf[i-1:]
				sawStart = true
			}
		}
		if sawStart {
			if i := findMarker(buf, jpegEndMarker); i >= 0 {
				return buf[:i+1], nil
			}
		}
	}
	return nil, errors.New("visual: jpeg fifo drain did not find end marker")
}

// findMarker returns the index of the second byte of a 0xFF-prefixed
// JPEG marker, or -1 if not present.
func findMarker(buf []byte, marker byte) int {
	for i := 1; i < len(buf); i++ {
		if buf[i-1] == 0xFF && buf[i] == marker {
			return i
		}
	}
	return -1
}
