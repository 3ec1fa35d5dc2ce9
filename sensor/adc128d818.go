// Copyright 2020 Dan Julio
// This file is part of firecam.

package sensor

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/periph/conn/i2c"
)

// ADC128D818 register addresses and masks, ported from the chip's
// register map: 8-channel 12-bit ADC with an internal or external
// reference and a free-running continuous-scan mode.
const (
	adcAddress = 0x1D

	adcRegCfg      = 0x00
	adcCfgStart    = 0x01
	adcRegConv     = 0x07
	adcConvEnable  = 0x01
	adcRegChDis    = 0x08
	adcChDisMask   = 0xC0 // enable channels 0-5
	adcRegACfg     = 0x0B
	adcACfgExtRef  = 0x01
	adcACfgMode1   = 0x02
	adcRegBusy     = 0x0C
	adcPowerupBusy = 0x02
	adcRegChBase   = 0x20
	adcRegManufID  = 0x3E
	adcManufID     = 0x01
	adcRegRevID    = 0x3F
	adcRevID       = 0x09

	adcInitPollInterval = 10 * time.Millisecond
	adcInitTimeout      = time.Second
)

// ADC128D818 is a Reader backed by a real ADC128D818 over I2C, the
// board's system-voltage ADC. Access is unguarded by a bus mutex here
// deliberately: the caller is expected to wrap Bus in the same
// shared-I2C-bus mutex used for the thermal driver's CCI access,
// matching the "one mutex per
// physical bus" discipline.
type ADC128D818 struct {
	dev i2c.Dev
}

// NewADC128D818 returns a Reader for the ADC128D818 on bus.
func NewADC128D818(bus i2c.Bus) *ADC128D818 {
	return &ADC128D818{dev: i2c.Dev{Bus: bus, Addr: adcAddress}}
}

// Init configures the ADC for continuous scanning of channels 0-5
// with an external voltage reference, and verifies its identity
// registers, matching adc128d818.c's adc_init sequence.
func (a *ADC128D818) Init() error {
	deadline := time.Now().Add(adcInitTimeout)
	for {
		busy, err := a.readByte(adcRegBusy)
		if err != nil {
			return fmt.Errorf("sensor: reading ADC busy register: %w", err)
		}
		if busy&adcPowerupBusy == 0 {
			break
		}
		if time.Now().After(deadline) {
			return errors.New("sensor: ADC128D818 power-up timed out")
		}
		time.Sleep(adcInitPollInterval)
	}

	manuf, err := a.readByte(adcRegManufID)
	if err != nil {
		return err
	}
	if manuf != adcManufID {
		return fmt.Errorf("sensor: unexpected ADC manufacturer id %#x", manuf)
	}
	rev, err := a.readByte(adcRegRevID)
	if err != nil {
		return err
	}
	if rev != adcRevID {
		return fmt.Errorf("sensor: unexpected ADC revision id %#x", rev)
	}

	if err := a.writeByte(adcRegCfg, 0x00); err != nil {
		return err
	}
	if err := a.writeByte(adcRegConv, adcConvEnable); err != nil {
		return err
	}
	if err := a.writeByte(adcRegChDis, adcChDisMask); err != nil {
		return err
	}
	if err := a.writeByte(adcRegACfg, adcACfgExtRef|adcACfgMode1); err != nil {
		return err
	}
	return a.writeByte(adcRegCfg, adcCfgStart)
}

// ReadChannels reads all six enabled channels' current conversion
// results.
func (a *ADC128D818) ReadChannels() ([numChannels]uint16, error) {
	var out [numChannels]uint16
	for i := 0; i < int(numChannels); i++ {
		v, err := a.readWord(byte(adcRegChBase + i))
		if err != nil {
			return out, fmt.Errorf("sensor: reading ADC channel %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (a *ADC128D818) writeByte(reg, value byte) error {
	return a.dev.Tx([]byte{reg, value}, nil)
}

func (a *ADC128D818) readByte(reg byte) (byte, error) {
	if err := a.dev.Tx([]byte{reg}, nil); err != nil {
		return 0, err
	}
	rx := make([]byte, 1)
	if err := a.dev.Tx(nil, rx); err != nil {
		return 0, err
	}
	return rx[0], nil
}

// readWord reads a 12-bit conversion result, which the chip returns
// left-justified in the top 12 bits of a 16-bit register.
func (a *ADC128D818) readWord(reg byte) (uint16, error) {
	if err := a.dev.Tx([]byte{reg}, nil); err != nil {
		return 0, err
	}
	rx := make([]byte, 2)
	if err := a.dev.Tx(nil, rx); err != nil {
		return 0, err
	}
	return (uint16(rx[0])<<8 | uint16(rx[1])) >> 4, nil
}
