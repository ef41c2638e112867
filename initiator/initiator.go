package initiator

import (
	"context"
	"fmt"

	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/scsi"
	"github.com/ardnew/softscsi/wd33c93"
)

// DefaultPollLimit is the number of auxiliary status reads spent waiting for
// an interrupt before giving up.
const DefaultPollLimit = 1024

// Port is the register interface of a WD33C93. *wd33c93.Controller
// implements it.
type Port interface {
	Read(addr uint32) (uint8, error)
	Write(addr uint32, v uint8) error
}

// Initiator drives SCSI commands through a controller's two ports the way
// a polled-mode driver does.
type Initiator struct {
	port      Port
	pollLimit int
	target    uint8
	selected  bool
}

// New creates an initiator for port.
func New(port Port) *Initiator {
	return &Initiator{
		port:      port,
		pollLimit: DefaultPollLimit,
	}
}

// SetPollLimit sets how many status polls a wait may take. Values below 1
// select DefaultPollLimit.
func (i *Initiator) SetPollLimit(n int) {
	if n < 1 {
		n = DefaultPollLimit
	}
	i.pollLimit = n
}

// Target returns the selected target ID.
func (i *Initiator) Target() (uint8, bool) {
	return i.target, i.selected
}

// WriteRegister sets the register pointer to reg and writes v.
func (i *Initiator) WriteRegister(reg, v uint8) error {
	if err := i.port.Write(wd33c93.PortAddress, reg); err != nil {
		return err
	}
	return i.port.Write(wd33c93.PortData, v)
}

// ReadRegister sets the register pointer to reg and reads it.
func (i *Initiator) ReadRegister(reg uint8) (uint8, error) {
	if err := i.port.Write(wd33c93.PortAddress, reg); err != nil {
		return 0, err
	}
	return i.port.Read(wd33c93.PortData)
}

// AuxStatus reads the auxiliary status through the address port.
func (i *Initiator) AuxStatus() (uint8, error) {
	return i.port.Read(wd33c93.PortAddress)
}

// Command writes op to the command register.
func (i *Initiator) Command(op uint8) error {
	return i.WriteRegister(wd33c93.RegCommand, op)
}

// setTransferCount loads the 24-bit transfer count.
func (i *Initiator) setTransferCount(n int) error {
	if n < 0 || n > 0xffffff {
		return fmt.Errorf("transfer count %d: %w", n, pkg.ErrInvalidParameter)
	}
	if err := i.port.Write(wd33c93.PortAddress, wd33c93.RegTransferCountMSB); err != nil {
		return err
	}
	for _, b := range []uint8{uint8(n >> 16), uint8(n >> 8), uint8(n)} {
		if err := i.port.Write(wd33c93.PortData, b); err != nil {
			return err
		}
	}
	return nil
}

// waitInterrupt polls the auxiliary status until an interrupt is pending,
// then acknowledges it and returns the SCSI status.
func (i *Initiator) waitInterrupt(ctx context.Context) (uint8, error) {
	for range i.pollLimit {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		aux, err := i.AuxStatus()
		if err != nil {
			return 0, err
		}
		if aux&wd33c93.AuxInterruptPending != 0 {
			return i.ReadRegister(wd33c93.RegSCSIStatus)
		}
	}
	return 0, pkg.ErrTimeout
}

// complete reports whether the Command Phase register shows the current
// command as finished.
func (i *Initiator) complete() (bool, error) {
	phase, err := i.ReadRegister(wd33c93.RegCommandPhase)
	if err != nil {
		return false, err
	}
	return phase == wd33c93.CommandPhaseComplete, nil
}

// waitComplete polls the Command Phase register until the status byte has
// arrived.
func (i *Initiator) waitComplete(ctx context.Context) error {
	for range i.pollLimit {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := i.complete()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return pkg.ErrTimeout
}

// Reset issues the Reset command, resetting the SCSI bus. Every target
// reports UNIT ATTENTION afterward; see WaitReady.
func (i *Initiator) Reset() error {
	i.selected = false
	pkg.LogDebug(pkg.ComponentInitiator, "bus reset")
	return i.Command(wd33c93.CmdReset)
}

// Select selects target and waits for the selection interrupt.
func (i *Initiator) Select(ctx context.Context, target uint8) error {
	i.selected = false

	if err := i.WriteRegister(wd33c93.RegDestinationID, target); err != nil {
		return err
	}
	if err := i.Command(wd33c93.CmdSelectWithATN); err != nil {
		return err
	}

	status, err := i.waitInterrupt(ctx)
	if err != nil {
		return fmt.Errorf("select target %d: %w", target, err)
	}
	if status != wd33c93.StatusCompletion|wd33c93.StatusSelected {
		return fmt.Errorf("select target %d: status 0x%02x: %w", target, status, pkg.ErrPhase)
	}

	i.target = target
	i.selected = true
	pkg.LogDebug(pkg.ComponentInitiator, "target selected", "target", target)
	return nil
}

// transferInfo starts a polled transfer of n bytes on lun.
func (i *Initiator) transferInfo(lun uint8, n int) error {
	if err := i.WriteRegister(wd33c93.RegTargetLUN, lun); err != nil {
		return err
	}
	if err := i.setTransferCount(n); err != nil {
		return err
	}
	if err := i.Command(wd33c93.CmdTransferInfo); err != nil {
		return err
	}
	return i.port.Write(wd33c93.PortAddress, wd33c93.RegData)
}

// Execute runs cdb on lun of the selected target. For DirectionIn, data
// receives up to len(data) bytes; for DirectionOut, data is sent. It
// returns the number of data bytes moved and the target's status byte.
func (i *Initiator) Execute(ctx context.Context, lun uint8, cdb []byte, data []byte, dir scsi.Direction) (int, scsi.Status, error) {
	if !i.selected {
		return 0, 0, fmt.Errorf("execute: %w", pkg.ErrNoDevice)
	}
	if len(cdb) == 0 {
		return 0, 0, fmt.Errorf("execute: empty CDB: %w", pkg.ErrInvalidParameter)
	}

	pkg.LogDebug(pkg.ComponentInitiator, "execute",
		"target", i.target,
		"lun", lun,
		"cdb", cdb,
		"direction", dir,
		"bytes", len(data))

	// Command phase.
	if err := i.transferInfo(lun, len(cdb)); err != nil {
		return 0, 0, err
	}
	for _, b := range cdb {
		if err := i.port.Write(wd33c93.PortData, b); err != nil {
			return 0, 0, err
		}
	}

	status, err := i.waitInterrupt(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("command phase: %w", err)
	}
	if status&^0x07 != wd33c93.StatusCompletion|wd33c93.StatusMCI {
		return 0, 0, fmt.Errorf("command phase status 0x%02x: %w", status, pkg.ErrPhase)
	}

	// Data phase.
	n := 0
	switch phase := status & 0x07; {
	case phase == wd33c93.MCIDataIn && dir == scsi.DirectionIn && len(data) > 0:
		if err := i.transferInfo(lun, len(data)); err != nil {
			return 0, 0, err
		}
		for n < len(data) {
			v, err := i.port.Read(wd33c93.PortData)
			if err != nil {
				// The target sent less than requested.
				break
			}
			data[n] = v
			n++
		}
	case phase == wd33c93.MCIDataIn:
		_ = i.Command(wd33c93.CmdAbort)
		return 0, 0, fmt.Errorf("unexpected data in: %w", pkg.ErrPhase)
	case dir == scsi.DirectionOut && len(data) > 0:
		// A target that refused the command has already completed.
		done, err := i.complete()
		if err != nil {
			return 0, 0, err
		}
		if done {
			break
		}
		if err := i.transferInfo(lun, len(data)); err != nil {
			return 0, 0, err
		}
		for _, b := range data {
			if err := i.port.Write(wd33c93.PortData, b); err != nil {
				return n, 0, err
			}
			n++
		}
	}

	// Status phase.
	if err := i.waitComplete(ctx); err != nil {
		return n, 0, fmt.Errorf("status phase: %w", err)
	}
	st, err := i.ReadRegister(wd33c93.RegTargetLUN)
	if err != nil {
		return n, 0, err
	}
	pkg.LogDebug(pkg.ComponentInitiator, "command complete",
		"opcode", cdb[0],
		"status", scsi.Status(st),
		"bytes", n)
	return n, scsi.Status(st), nil
}
