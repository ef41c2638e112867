package wd33c93

import "github.com/ardnew/softscsi/pkg"

// State is the controller's transfer state.
type State int

// Controller states.
const (
	StateIdle State = iota
	StatePolledWaitingDataOut
	StatePolledWaitingDataIn
	StatePolledExecuting
	StateCompleteDataIn
	StateCompleteDataOut
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePolledWaitingDataOut:
		return "PolledWaitingDataOut"
	case StatePolledWaitingDataIn:
		return "PolledWaitingDataIn"
	case StatePolledExecuting:
		return "PolledExecuting"
	case StateCompleteDataIn:
		return "CompleteDataIn"
	case StateCompleteDataOut:
		return "CompleteDataOut"
	default:
		return "Unknown"
	}
}

// Phase is the direction of the SCSI information transfer phase.
type Phase int

// Bus phases.
const (
	PhaseDataOut Phase = iota // Initiator to target
	PhaseDataIn               // Target to initiator
)

// String returns the phase name.
func (p Phase) String() string {
	if p == PhaseDataIn {
		return "DataIn"
	}
	return "DataOut"
}

// mci returns the status register phase bits.
func (p Phase) mci() uint8 {
	if p == PhaseDataIn {
		return MCIDataIn
	}
	return MCIDataOut
}

// nextState returns the state entered when the bus reports the negotiated
// length of the executing request. Reports from any other state are not a
// transition.
func nextState(prior State, length int) (State, bool) {
	if prior != StatePolledExecuting {
		return prior, false
	}
	if length > 0 {
		return StateCompleteDataIn, true
	}
	return StateCompleteDataOut, true
}

func (c *Controller) changeState(next State) {
	if c.state == next {
		return
	}
	pkg.LogDebug(pkg.ComponentController, "state change",
		"from", c.state,
		"to", next)
	c.state = next

	switch next {
	case StateCompleteDataIn:
		c.phase = PhaseDataIn
		c.raiseInterrupt(StatusCompletion | StatusMCI | c.phase.mci())
	case StateCompleteDataOut:
		c.phase = PhaseDataOut
		c.raiseInterrupt(StatusCompletion | StatusMCI | c.phase.mci())
	}
}

// raiseInterrupt latches status and asserts the interrupt line.
func (c *Controller) raiseInterrupt(status uint8) {
	c.regs.scsiStatus = status
	c.regs.auxStatus |= AuxInterruptPending
	pkg.LogDebug(pkg.ComponentController, "interrupt", "status", status)
	if c.irq != nil {
		c.irq.Raise()
	}
}

// acknowledge clears the pending interrupt.
func (c *Controller) acknowledge() {
	if c.regs.auxStatus&AuxInterruptPending == 0 {
		return
	}
	c.regs.auxStatus &^= AuxInterruptPending
	if c.irq != nil {
		c.irq.Lower()
	}
}
