// Copyright 2020 Dan Julio
// This file is part of firecam.
//
// firecam is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package thermal

import (
	"errors"
	"time"

	"periph.io/x/periph/conn/i2c"
)

// Lepton CCI (Command and Control Interface) register addresses and
// gain-mode command opcodes, ported from the sensor's control
// register map.
const (
	cciAddress = 0x2A // Lepton's fixed I2C slave address

	cciRegStatus     = 0x0002
	cciRegCommand    = 0x0004
	cciRegDataLength = 0x0006
	cciRegData0      = 0x0008

	cciCmdSysSetGainMode = 0x0206
	cciCmdSysGetGainMode = 0x0204

	cciStatusBusyMask = 0x01
	cciStatusBootMask = 0x04

	cciBusyPollInterval = time.Millisecond
	cciBusyTimeout      = time.Second
)

// cci is a thin client for the Lepton's I2C control interface,
// grounded on the sensor's register read/write/busy-wait protocol.
type cci struct {
	dev i2c.Dev
}

func newCCI(bus i2c.Bus) *cci {
	return &cci{dev: i2c.Dev{Bus: bus, Addr: cciAddress}}
}

func (c *cci) writeRegister(reg, value uint16) error {
	buf := []byte{byte(reg >> 8), byte(reg), byte(value >> 8), byte(value)}
	return c.dev.Tx(buf, nil)
}

func (c *cci) readRegister(reg uint16) (uint16, error) {
	addr := []byte{byte(reg >> 8), byte(reg)}
	if err := c.dev.Tx(addr, nil); err != nil {
		return 0, err
	}
	rx := make([]byte, 2)
	if err := c.dev.Tx(nil, rx); err != nil {
		return 0, err
	}
	return uint16(rx[0])<<8 | uint16(rx[1]), nil
}

func (c *cci) waitNotBusy() error {
	deadline := time.Now().Add(cciBusyTimeout)
	for {
		status, err := c.readRegister(cciRegStatus)
		if err != nil {
			return err
		}
		if status&cciStatusBusyMask == 0 && status&cciStatusBootMask != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("thermal: CCI busy timeout")
		}
		time.Sleep(cciBusyPollInterval)
	}
}

func gainModeToCCI(mode GainMode) (uint16, error) {
	switch mode {
	case GainHigh:
		return 0, nil
	case GainLow:
		return 1, nil
	case GainAuto:
		return 2, nil
	default:
		return 0, errors.New("thermal: unknown gain mode")
	}
}

func cciToGainMode(value uint16) GainMode {
	switch value {
	case 0:
		return GainHigh
	case 1:
		return GainLow
	case 2:
		return GainAuto
	default:
		return GainUnknown
	}
}

func (c *cci) setGainMode(mode GainMode) error {
	value, err := gainModeToCCI(mode)
	if err != nil {
		return err
	}

	if err := c.waitNotBusy(); err != nil {
		return err
	}
	if err := c.writeRegister(cciRegData0, value); err != nil {
		return err
	}
	if err := c.writeRegister(cciRegDataLength, 1); err != nil {
		return err
	}
	if err := c.writeRegister(cciRegCommand, cciCmdSysSetGainMode); err != nil {
		return err
	}
	return c.waitNotBusy()
}

func (c *cci) getGainMode() (GainMode, error) {
	if err := c.waitNotBusy(); err != nil {
		return GainUnknown, err
	}
	if err := c.writeRegister(cciRegDataLength, 1); err != nil {
		return GainUnknown, err
	}
	if err := c.writeRegister(cciRegCommand, cciCmdSysGetGainMode); err != nil {
		return GainUnknown, err
	}
	if err := c.waitNotBusy(); err != nil {
		return GainUnknown, err
	}
	value, err := c.readRegister(cciRegData0)
	if err != nil {
		return GainUnknown, err
	}
	return cciToGainMode(value), nil
}
