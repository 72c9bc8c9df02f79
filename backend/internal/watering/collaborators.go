package watering

import (
	"context"
	"fmt"
)

// Supervisor tags reported by the controller.
const (
	TagWatering     = "watering"
	TagMoistureRead = "moisture_read"
)

// MoistureSource reads raw samples from the soil moisture ADC.
type MoistureSource interface {
	ReadRaw(ctx context.Context) (int, error)
}

// Pump switches the water pump.
type Pump interface {
	On(ctx context.Context) error
	Off(ctx context.Context) error
}

// Supervisor receives status and error notifications. All calls are fire-and-forget.
type Supervisor interface {
	StartProcessing(tag string)
	StopProcessing(tag string)
	AddError(tag string)
	FeedWatchdog()
}

type nopSupervisor struct{}

func (nopSupervisor) StartProcessing(string) {}
func (nopSupervisor) StopProcessing(string)  {}
func (nopSupervisor) AddError(string)        {}
func (nopSupervisor) FeedWatchdog()          {}

// safely runs fn and converts a driver panic into an error.
func safely(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
		}
	}()

	return fn()
}
