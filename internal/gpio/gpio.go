// Package gpio wraps github.com/stianeikeland/go-rpio/v4 behind a small
// testable interface and a software-PWM generator, grounded on the
// ticker-driven duty-cycle bit-banging used for H-bridge motor control in
// the reference robot client (motorshield.go's PWM/Motor types).
package gpio

import (
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// OutputPin is the minimal surface the PWM backend needs from a GPIO line.
type OutputPin interface {
	High()
	Low()
}

// Open initializes the rpio chip (must be called once before NewOutputPin).
func Open() error { return rpio.Open() }

// Close releases the rpio chip.
func Close() error { return rpio.Close() }

// rpioPin adapts rpio.Pin to OutputPin, configuring it as an output driven
// low before first use (spec §6: "all pins must be ... driven low at
// startup before any PWM is enabled").
type rpioPin struct{ pin rpio.Pin }

// NewOutputPin claims BCM pin number n as a low output.
func NewOutputPin(n int) OutputPin {
	p := rpio.Pin(n)
	p.Output()
	p.Low()
	return &rpioPin{pin: p}
}

func (p *rpioPin) High() { p.pin.High() }
func (p *rpioPin) Low()  { p.pin.Low() }

// PWM is a software PWM generator on a single output pin, ticking at freqHz
// and holding the pin high for duty% of each period.
type PWM struct {
	pin   OutputPin
	freq  time.Duration
	duty  float64 // 0-100
	quit  chan struct{}
	done  chan struct{}
	guard sync.Mutex
}

// NewPWM starts a software PWM generator at freqHz on pin, initial duty 0.
func NewPWM(pin OutputPin, freqHz int) *PWM {
	p := &PWM{
		pin:  pin,
		freq: time.Second / time.Duration(freqHz),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	pin.Low()
	go p.run()
	return p
}

func (p *PWM) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.freq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.guard.Lock()
			d := p.duty / 100.0
			p.guard.Unlock()
			if d <= 0 {
				continue
			}
			high := time.Duration(float64(p.freq) * d)
			p.pin.High()
			time.Sleep(high)
			p.pin.Low()
			time.Sleep(p.freq - high)
		case <-p.quit:
			p.pin.Low()
			return
		}
	}
}

// SetDuty sets the duty cycle, clamped to [0,100].
func (p *PWM) SetDuty(duty float64) {
	if duty < 0 {
		duty = 0
	} else if duty > 100 {
		duty = 100
	}
	p.guard.Lock()
	p.duty = duty
	p.guard.Unlock()
}

// Stop halts the generator goroutine and drives the pin low, waiting for the
// goroutine to exit so callers can safely release hardware afterward.
func (p *PWM) Stop() {
	close(p.quit)
	<-p.done
}
