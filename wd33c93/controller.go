package wd33c93

import (
	"fmt"

	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/scsi"
)

// Bus is the SCSI bus the controller initiates requests on. *scsi.Bus
// implements it.
type Bus interface {
	// FindDevice looks up a target by ID.
	FindDevice(target uint8) (scsi.Address, bool)

	// FindLUN looks up a logical unit of a device returned by FindDevice.
	FindLUN(dev scsi.Address, lun uint8) (scsi.Address, bool)

	// Enqueue submits a request. The negotiated length is reported to the
	// request's HBA, possibly after Enqueue returns.
	Enqueue(req *scsi.Request)

	// Continue advances an enqueued request.
	Continue(req *scsi.Request)

	// ColdReset cancels all requests and resets every target.
	ColdReset()

	// Cancel withdraws a request the controller has abandoned. The
	// request's HBA is not called back.
	Cancel(req *scsi.Request)
}

// InterruptLine is the level-triggered output asserted while an interrupt
// is pending.
type InterruptLine interface {
	Raise()
	Lower()
}

// LineFunc adapts a function to InterruptLine. It is called with true on
// Raise and false on Lower.
type LineFunc func(level bool)

// Raise calls f(true).
func (f LineFunc) Raise() { f(true) }

// Lower calls f(false).
func (f LineFunc) Lower() { f(false) }

// Controller is an emulated WD33C93 SCSI bus interface controller in polled
// initiator mode.
//
// A Controller is not safe for concurrent use. Register accesses and bus
// callbacks must be serialized by the caller.
type Controller struct {
	bus Bus
	irq InterruptLine

	regs    registerFile
	pointer uint8
	fifo    *FIFO
	state   State
	phase   Phase
	xfer    *transfer

	// Bus bindings. These are identifiers resolved through the bus, never
	// owning references.
	device *scsi.Address
	lun    *scsi.Address
	req    *scsi.Request
	dir    scsi.Direction // Negotiated data direction of req
}

// New creates a controller attached to bus.
func New(bus Bus) *Controller {
	c := &Controller{
		bus:  bus,
		fifo: NewFIFO(),
	}
	pkg.LogDebug(pkg.ComponentController, "controller created")
	return c
}

// SetInterruptLine connects the interrupt output. A nil line disconnects it.
func (c *Controller) SetInterruptLine(line InterruptLine) {
	c.irq = line
}

// Reset performs a device reset: the state returns to Idle, the phase to
// DataOut, and the bus bindings, FIFO and polled transfer are released.
// Registers, including both status registers, keep their values and the
// SCSI bus is not reset.
func (c *Controller) Reset() {
	if c.xfer != nil {
		c.abortTransfer("device reset")
	}
	c.dropRequest("device reset")
	c.device = nil
	c.lun = nil
	c.state = StateIdle
	c.phase = PhaseDataOut
	if c.fifo != nil {
		c.fifo.Reset()
	}
	pkg.LogDebug(pkg.ComponentController, "device reset")
}

// Close releases the FIFO and any polled transfer buffer. The controller
// rejects all accesses afterward.
func (c *Controller) Close() {
	c.Reset()
	c.fifo = nil
	pkg.LogDebug(pkg.ComponentController, "controller closed")
}

// Read reads the port at addr. Guest errors are logged and returned with a
// value of 0; they never stop the controller.
func (c *Controller) Read(addr uint32) (uint8, error) {
	if c.fifo == nil {
		return 0, pkg.ErrInvalidState
	}

	switch addr {
	case PortAddress:
		return c.auxStatus(), nil
	case PortData:
		idx := c.pointer
		reg := lookupRegister(idx)
		defer c.advance(reg)
		if reg == nil || reg.read == nil {
			pkg.LogGuestError(pkg.ComponentRegister, "read of unimplemented register",
				"register", fmt.Sprintf("0x%02x", idx))
			return 0, fmt.Errorf("read register 0x%02x: %w", idx, pkg.ErrInvalidRegister)
		}
		v, err := reg.read(c)
		pkg.LogDebug(pkg.ComponentRegister, "read", "register", reg.name, "value", v)
		return v, err
	default:
		pkg.LogGuestError(pkg.ComponentRegister, "read of unmapped port", "addr", addr)
		return 0, fmt.Errorf("read port %d: %w", addr, pkg.ErrInvalidRegister)
	}
}

// Write writes v to the port at addr. Guest errors are logged and returned;
// they never stop the controller.
func (c *Controller) Write(addr uint32, v uint8) error {
	if c.fifo == nil {
		return pkg.ErrInvalidState
	}

	switch addr {
	case PortAddress:
		c.pointer = v & registerPointerMask
		return nil
	case PortData:
		idx := c.pointer
		reg := lookupRegister(idx)
		defer c.advance(reg)
		if reg == nil || reg.write == nil {
			pkg.LogGuestError(pkg.ComponentRegister, "write of unimplemented register",
				"register", fmt.Sprintf("0x%02x", idx),
				"value", v)
			return fmt.Errorf("write register 0x%02x: %w", idx, pkg.ErrInvalidRegister)
		}
		pkg.LogDebug(pkg.ComponentRegister, "write", "register", reg.name, "value", v)
		return reg.write(c, v)
	default:
		pkg.LogGuestError(pkg.ComponentRegister, "write of unmapped port", "addr", addr, "value", v)
		return fmt.Errorf("write port %d: %w", addr, pkg.ErrInvalidRegister)
	}
}

// Read8 reads a port for memory-mapped glue that has no error path. Errors
// have already been logged.
func (c *Controller) Read8(addr uint32) uint8 {
	v, _ := c.Read(addr)
	return v
}

// Write8 writes a port for memory-mapped glue that has no error path.
func (c *Controller) Write8(addr uint32, v uint8) {
	_ = c.Write(addr, v)
}

// advance moves the register pointer past a data port access. Data, SCSI
// Status and Auxiliary Status hold the pointer; every other index advances.
func (c *Controller) advance(reg *register) {
	if reg != nil && reg.hold {
		return
	}
	c.pointer = (c.pointer + 1) & registerIncrementMask
}

// State returns the controller state.
func (c *Controller) State() State {
	return c.state
}

// Phase returns the current bus phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Pointer returns the register pointer.
func (c *Controller) Pointer() uint8 {
	return c.pointer
}

// InterruptPending reports whether the interrupt line is asserted.
func (c *Controller) InterruptPending() bool {
	return c.regs.auxStatus&AuxInterruptPending != 0
}

// Peek returns a register value without side effects. The data register
// and unimplemented indices report false.
func (c *Controller) Peek(idx uint8) (uint8, bool) {
	reg := lookupRegister(idx)
	if reg == nil || reg.peek == nil {
		return 0, false
	}
	if idx == RegAuxiliaryStatus && c.fifo != nil {
		return c.auxStatus(), true
	}
	return reg.peek(&c.regs), true
}

// FIFOLen returns the number of bytes queued in the FIFO.
func (c *Controller) FIFOLen() int {
	if c.fifo == nil {
		return 0
	}
	return c.fifo.Len()
}

// Selected returns the address of the selected device.
func (c *Controller) Selected() (scsi.Address, bool) {
	if c.device == nil {
		return scsi.Address{}, false
	}
	return *c.device, true
}
