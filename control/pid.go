// Package control implements the feedback controllers used to drive simulated bodies.
package control

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// PIDConfig holds the gains and goal of a PID controller.
type PIDConfig struct {
	Kp       float64 `json:"Kp" mapstructure:"Kp"`
	Ki       float64 `json:"Ki" mapstructure:"Ki"`
	Kd       float64 `json:"Kd" mapstructure:"Kd"`
	Setpoint float64 `json:"target_distance" mapstructure:"target_distance"`
	// IntegralLimit clamps the integral accumulator to [-IntegralLimit, IntegralLimit] when positive.
	// Zero leaves the accumulator unbounded.
	IntegralLimit float64 `json:"integral_limit" mapstructure:"integral_limit"`
}

// Validate returns an error for gains that are not finite numbers or a negative integral limit.
func (cfg PIDConfig) Validate() error {
	var errs error
	for name, v := range map[string]float64{"Kp": cfg.Kp, "Ki": cfg.Ki, "Kd": cfg.Kd, "target_distance": cfg.Setpoint} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = multierr.Append(errs, errors.Errorf("pid %s must be finite, got %v", name, v))
		}
	}
	if cfg.IntegralLimit < 0 || math.IsNaN(cfg.IntegralLimit) {
		errs = multierr.Append(errs, errors.Errorf("pid integral_limit must be >= 0, got %v", cfg.IntegralLimit))
	}
	return errs
}

// PID is a discrete proportional-integral-derivative controller over a scalar error. It is stepped
// once per control tick; the integral and derivative terms are per tick, not per second.
type PID struct {
	mu        sync.Mutex
	cfg       PIDConfig
	setpoint  float64
	integral  float64
	prevError float64
}

// NewPID returns a PID controller with the given gains and an empty history.
func NewPID(cfg PIDConfig) (*PID, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PID{cfg: cfg, setpoint: cfg.Setpoint}, nil
}

// Calculate computes the control output for a measurement and advances the controller state.
//
//	error = setpoint - measurement
//	output = Kp*error + Ki*Σerror + Kd*(error - previous error)
func (p *PID) Calculate(measurement float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.setpoint - measurement
	p.integral += err
	if limit := p.cfg.IntegralLimit; limit > 0 {
		p.integral = math.Max(-limit, math.Min(limit, p.integral))
	}
	deriv := err - p.prevError
	output := p.cfg.Kp*err + p.cfg.Ki*p.integral + p.cfg.Kd*deriv
	p.prevError = err
	return output
}

// SetGoal changes the setpoint. The integral and previous error are kept, so consecutive goals share
// history unless Reset is called.
func (p *PID) SetGoal(setpoint float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setpoint = setpoint
}

// Goal returns the current setpoint.
func (p *PID) Goal() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setpoint
}

// Reset clears the integral accumulator and previous error.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.integral = 0
	p.prevError = 0
}

// Integral returns the current integral accumulator.
func (p *PID) Integral() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.integral
}

// Config returns the configuration the controller was built with.
func (p *PID) Config() PIDConfig {
	return p.cfg
}
