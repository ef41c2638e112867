package scsi

import (
	"fmt"

	"github.com/ardnew/softscsi/pkg"
)

// Status is the SCSI status byte a target returns in the status phase.
type Status uint8

// SAM status codes.
const (
	StatusGood                Status = 0x00 // Command completed
	StatusCheckCondition      Status = 0x02 // Sense data available
	StatusConditionMet        Status = 0x04 // Search condition met
	StatusBusy                Status = 0x08 // Logical unit busy
	StatusReservationConflict Status = 0x18 // Reserved by another initiator
	StatusTaskSetFull         Status = 0x28 // Task set full
	StatusTaskAborted         Status = 0x40 // Task aborted
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusCheckCondition:
		return "check condition"
	case StatusConditionMet:
		return "condition met"
	case StatusBusy:
		return "busy"
	case StatusReservationConflict:
		return "reservation conflict"
	case StatusTaskSetFull:
		return "task set full"
	case StatusTaskAborted:
		return "task aborted"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(s))
	}
}

// Err returns the corresponding error for the status, or nil for GOOD and
// CONDITION MET.
func (s Status) Err() error {
	switch s {
	case StatusGood, StatusConditionMet:
		return nil
	case StatusCheckCondition:
		return pkg.ErrCheckCondition
	case StatusBusy, StatusTaskSetFull, StatusReservationConflict:
		return pkg.ErrBusy
	case StatusTaskAborted:
		return pkg.ErrCancelled
	default:
		return fmt.Errorf("scsi status 0x%02x", uint8(s))
	}
}

// Direction is the direction of a request's data phase.
type Direction int

// Data phase directions, named from the initiator's point of view.
const (
	DirectionNone Direction = iota // No data phase
	DirectionIn                    // Target to initiator
	DirectionOut                   // Initiator to target
)

// DirectionOf returns the direction encoded by a negotiated length:
// positive lengths flow to the initiator, negative lengths to the target.
func DirectionOf(length int) Direction {
	switch {
	case length > 0:
		return DirectionIn
	case length < 0:
		return DirectionOut
	default:
		return DirectionNone
	}
}

// String returns a human-readable direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "NONE"
	}
}
