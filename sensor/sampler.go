// Copyright 2020 Dan Julio
// This file is part of firecam.

// Package sensor periodically samples the six system ADC channels
// (power button, charger STAT1/STAT2, battery, power-enable, board
// temperature), maintains moving averages over them and derives the
// discrete battery/charge/button states the rest of the system reads.
// It mirrors the original firmware's adc_task/adc_utilities pair,
// with the ADC128D818 register access abstracted behind Reader.
package sensor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/danjulio/firecam/notify"
)

const (
	// SampleInterval is how often Sample should be called; longer
	// than the ADC's own continuous-scan period across all six
	// channels.
	SampleInterval = 75 * time.Millisecond

	// buttonHoldDuration is how long the power button must be held
	// continuously before a shutdown is signalled.
	buttonHoldDuration = 1500 * time.Millisecond

	numBattSamples = 16
	numTempSamples = 16
	numStatSamples = 8

	// extVref is the external ADC voltage reference.
	extVref = 2.048

	battADCMult = 5.02

	pwrBtnThreshold = 1.3
	stat1Threshold  = 1.0
	stat2Threshold  = 0.8

	batt75Threshold   = 3.9
	batt50Threshold   = 3.72
	batt25Threshold   = 3.66
	batt0Threshold    = 3.6
	battCritThreshold = 3.4
)

// Channel indexes into the array Reader.ReadChannels returns, matching
// the original firmware's ADC_CUR_*_I ordering.
type Channel int

const (
	ChButton Channel = iota
	ChStat2
	ChBattery
	ChPowerEnable
	ChStat1
	ChTemperature
	numChannels
)

// Reader abstracts the ADC128D818 continuous-scan read. *ADC128D818
// is the hardware implementation: it reads six 12-bit words over I2C
// and leaves holding the shared bus mutex to its caller.
type Reader interface {
	ReadChannels() ([numChannels]uint16, error)
}

// BattState is the discrete battery level the GUI and command
// responder surface.
type BattState int

const (
	Batt100 BattState = iota
	Batt75
	Batt50
	Batt25
	Batt0
	BattCrit
)

// ChargeState is the charger's reported state, derived from the
// MCP73871's STAT1/STAT2 outputs.
type ChargeState int

const (
	ChargeOff ChargeState = iota
	ChargeOn
	ChargeFault
)

// String renders the value used in get_status and the file format's
// "Charge" field.
func (c ChargeState) String() string {
	switch c {
	case ChargeOn:
		return "ON"
	case ChargeFault:
		return "FAULT"
	default:
		return "OFF"
	}
}

// BattStatus is the averaged, debounced battery reading.
type BattStatus struct {
	Voltage float64
	State   BattState
	Charge  ChargeState
}

// Sampler owns the moving-average state and derives BattStatus, board
// temperature and power-button state from it. It notifies shutdown
// on its target Set when either a critical battery condition or a
// sustained button hold is detected, mirroring the original's
// xTaskNotify(task_handle_app, APP_NOTIFY_SHUTDOWN_MASK, eSetBits).
type Sampler struct {
	reader        Reader
	shutdown      *notify.Set
	shutdownEvent notify.Event

	mu     sync.Mutex
	status BattStatus
	temp   float64
	button bool

	battAvg  [numBattSamples]uint16
	battIdx  int
	tempAvg  [numTempSamples]uint16
	tempIdx  int
	stat1Avg [numStatSamples]uint16
	stat2Avg [numStatSamples]uint16
	statIdx  int

	buttonPrev    bool
	poweroffCount int
}

// New returns a Sampler that signals shutdownEvent on shutdown when a
// shutdown condition is detected. It seeds every averaging array from
// one initial read so the first several Sample calls don't report a
// spuriously low average.
func New(reader Reader, shutdown *notify.Set, shutdownEvent notify.Event) (*Sampler, error) {
	s := &Sampler{
		reader:        reader,
		shutdown:      shutdown,
		shutdownEvent: shutdownEvent,
		poweroffCount: pwroffPressSamples(),
		buttonPrev:    true, // assume held at startup, as the original does
	}

	vals, err := reader.ReadChannels()
	if err != nil {
		return nil, err
	}
	for i := range s.battAvg {
		s.battAvg[i] = vals[ChBattery]
	}
	for i := range s.tempAvg {
		s.tempAvg[i] = vals[ChTemperature]
	}
	for i := range s.stat1Avg {
		s.stat1Avg[i] = vals[ChStat1]
		s.stat2Avg[i] = vals[ChStat2]
	}

	s.update(vals)
	return s, nil
}

func pwroffPressSamples() int {
	return int(buttonHoldDuration / SampleInterval)
}

// Sample reads one set of channel values, rolls them into the moving
// averages and re-derives battery/temperature/button state, signalling
// shutdown if warranted.
func (s *Sampler) Sample() error {
	vals, err := s.reader.ReadChannels()
	if err != nil {
		return err
	}

	s.battAvg[s.battIdx] = vals[ChBattery]
	s.battIdx = (s.battIdx + 1) % numBattSamples

	s.tempAvg[s.tempIdx] = vals[ChTemperature]
	s.tempIdx = (s.tempIdx + 1) % numTempSamples

	s.stat1Avg[s.statIdx] = vals[ChStat1]
	s.stat2Avg[s.statIdx] = vals[ChStat2]
	s.statIdx = (s.statIdx + 1) % numStatSamples

	s.update(vals)
	return nil
}

// Run calls Sample every SampleInterval until ctx is cancelled,
// logging nothing itself; callers that want per-sample diagnostics
// should wrap Sample directly.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}

func (s *Sampler) update(vals [numChannels]uint16) {
	battVolts := adcToVolts(computeAverage(s.battAvg[:])) * battADCMult
	battState := classifyBattery(battVolts)

	stat1 := adcToVolts(computeAverage(s.stat1Avg[:])) >= stat1Threshold
	stat2 := adcToVolts(computeAverage(s.stat2Avg[:])) >= stat2Threshold
	chargeState := classifyCharge(stat1, stat2)

	temp := adcToTempLM36(computeAverage(s.tempAvg[:]))

	buttonCur := adcToVolts(vals[ChButton]) >= pwrBtnThreshold
	buttonNow := buttonCur && s.buttonPrev
	s.buttonPrev = buttonCur

	shutdownWanted := battState == BattCrit
	if buttonNow {
		s.poweroffCount--
		if s.poweroffCount <= 0 {
			shutdownWanted = true
			s.poweroffCount = pwroffPressSamples()
		}
	} else {
		s.poweroffCount = pwroffPressSamples()
	}

	s.mu.Lock()
	s.status = BattStatus{Voltage: battVolts, State: battState, Charge: chargeState}
	s.temp = temp
	s.button = buttonNow
	s.mu.Unlock()

	if shutdownWanted && s.shutdown != nil {
		s.shutdown.Signal(s.shutdownEvent)
	}
}

// Battery returns the most recently derived battery status.
func (s *Sampler) Battery() BattStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Temperature returns the most recently derived board temperature, in
// degrees C.
func (s *Sampler) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temp
}

// ButtonPressed reports the debounced power-button state.
func (s *Sampler) ButtonPressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.button
}

func classifyBattery(volts float64) BattState {
	switch {
	case volts <= battCritThreshold:
		return BattCrit
	case volts <= batt0Threshold:
		return Batt0
	case volts <= batt25Threshold:
		return Batt25
	case volts <= batt50Threshold:
		return Batt50
	case volts <= batt75Threshold:
		return Batt75
	default:
		return Batt100
	}
}

// classifyCharge implements the MCP73871 STAT1/STAT2 truth table
// (charge-complete is folded into "off", matching the original).
func classifyCharge(stat1Deasserted, stat2Deasserted bool) ChargeState {
	if !stat1Deasserted {
		if stat2Deasserted {
			return ChargeOn
		}
		return ChargeFault
	}
	return ChargeOff
}

func computeAverage(buf []uint16) uint16 {
	var sum uint32
	for _, v := range buf {
		sum += uint32(v)
	}
	n := uint32(len(buf))
	avg := sum / n
	if sum%n >= n/2 {
		avg++
	}
	return uint16(avg)
}

func adcToVolts(adcVal uint16) float64 {
	return (extVref * float64(adcVal)) / 4095.0
}

// adcToTempLM36 converts a 12-bit ADC reading to degrees C per the
// LM36 temperature sensor's linear transfer function (500mV at 0C,
// 10mV/C), the sensor variant the original firmware builds with by
// default.
func adcToTempLM36(adcVal uint16) float64 {
	mv := adcToVolts(adcVal) * 1000.0
	return (mv - 500.0) / 10.0
}

// adcToTempLMT86 is the alternate conversion for boards fitted with
// an LMT86 thermistor instead of the LM36, a parabolic curve fit from
// the LMT86 datasheet (equation 2, page 10). Unused while the LM36
// build variant is selected, kept for boards that swap the sensor.
func adcToTempLMT86(adcVal uint16) float64 {
	mv := adcToVolts(adcVal) * 1000.0
	t := math.Sqrt(math.Pow(-10.888, 2) + 4*0.00347*(1777.3-mv))
	return ((10.888-t)/(2*-0.00347) + 30.0)
}
