package wd33c93

import (
	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/scsi"
)

// The controller is the continuation of every request it submits.
var _ scsi.HBA = (*Controller)(nil)

// current reports whether req is the request bound to the controller.
// Results for abandoned requests are dropped.
func (c *Controller) current(req *scsi.Request, event string) bool {
	if req == nil {
		return false
	}
	if req == c.req {
		return true
	}
	pkg.LogDebug(pkg.ComponentBus, "stale request result",
		"event", event,
		"tag", req.Tag)
	return false
}

// Negotiated implements scsi.HBA. It completes the command phase of the
// executing request: the controller enters CompleteDataIn or
// CompleteDataOut, interrupts, and lets the target proceed to its data or
// status phase.
func (c *Controller) Negotiated(req *scsi.Request, length int) {
	if !c.current(req, "negotiated") {
		return
	}

	next, ok := nextState(c.state, length)
	if !ok {
		pkg.LogWarn(pkg.ComponentBus, "negotiation outside command phase",
			"state", c.state,
			"length", length)
		return
	}

	pkg.LogDebug(pkg.ComponentBus, "length negotiated",
		"tag", req.Tag,
		"length", length)
	c.dir = scsi.DirectionOf(length)
	c.changeState(next)
	c.bus.Continue(req)
}

// TransferData implements scsi.HBA. Data-in bytes are attached to a waiting
// polled transfer; otherwise they stay with the request until Transfer Info
// starts one. Data-out buffers are filled by the next polled transfer.
func (c *Controller) TransferData(req *scsi.Request, n int) {
	if !c.current(req, "transfer data") {
		return
	}

	pkg.LogDebug(pkg.ComponentBus, "data phase",
		"tag", req.Tag,
		"direction", c.dir,
		"bytes", n)

	if c.dir == scsi.DirectionIn && c.state == StatePolledWaitingDataIn && c.xfer != nil {
		c.xfer.attach(req.Buffer()[:n])
	}
}

// Complete implements scsi.HBA. The status byte is left in the Target LUN
// register and the Command Phase register reports completion. The bus goes
// free and the request binding is released.
func (c *Controller) Complete(req *scsi.Request, status scsi.Status) {
	if !c.current(req, "complete") {
		return
	}

	pkg.LogDebug(pkg.ComponentBus, "request complete",
		"tag", req.Tag,
		"status", status)

	c.regs.targetLUN = uint8(status)
	c.regs.commandPhase = CommandPhaseComplete
	c.phase = PhaseDataOut
	c.req = nil
	if c.state == StatePolledExecuting {
		c.changeState(StateIdle)
	}
}

// Cancel implements scsi.HBA. The request binding and any polled transfer
// are released.
func (c *Controller) Cancel(req *scsi.Request) {
	if !c.current(req, "cancel") {
		return
	}

	pkg.LogDebug(pkg.ComponentBus, "request cancelled", "tag", req.Tag)
	c.req = nil
	c.regs.commandPhase = CommandPhaseNone
	if c.xfer != nil {
		c.abortTransfer("request cancelled")
	}
	c.phase = PhaseDataOut
	c.changeState(StateIdle)
}

// dropRequest releases the request binding and withdraws the request from
// the bus. The next transfer is a command phase again.
func (c *Controller) dropRequest(reason string) {
	req := c.req
	if req == nil {
		return
	}
	c.req = nil
	c.dir = scsi.DirectionNone
	c.phase = PhaseDataOut
	pkg.LogDebug(pkg.ComponentBus, "request abandoned",
		"reason", reason,
		"tag", req.Tag)
	c.bus.Cancel(req)
}
