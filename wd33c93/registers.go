package wd33c93

import (
	"fmt"

	"github.com/ardnew/softscsi/pkg"
)

// registerFile holds the values behind the data port. Multi-byte fields are
// assembled one byte at a time, most significant first.
type registerFile struct {
	ownID          uint8
	control        uint8
	timeoutPeriod  uint8
	totalSectors   uint8
	totalHeads     uint8
	totalCylinders uint32 // 16-bit
	logicalAddress uint32
	sectorNumber   uint8
	headNumber     uint8
	cylinderNumber uint32 // 16-bit
	targetLUN      uint8
	commandPhase   uint8
	syncTransfer   uint8
	transferCount  uint32 // 24-bit
	destinationID  uint8
	sourceID       uint8
	scsiStatus     uint8
	auxStatus      uint8
	command        uint8
}

// Access describes how a register responds to the data port.
type Access int

// Register access kinds.
const (
	AccessReadWrite Access = iota // Stored value
	AccessReadOnly                // Writes are ignored
	AccessSpecial                 // Access has side effects
)

// String returns a short access label.
func (a Access) String() string {
	switch a {
	case AccessReadOnly:
		return "RO"
	case AccessSpecial:
		return "RW*"
	default:
		return "RW"
	}
}

// register is one entry of the data port dispatch table.
type register struct {
	name   string
	access Access
	hold   bool // Pointer does not advance after an access
	peek   func(r *registerFile) uint8
	read   func(c *Controller) (uint8, error)
	write  func(c *Controller, v uint8) error
}

// RegisterInfo describes a register for display.
type RegisterInfo struct {
	Index  uint8
	Name   string
	Access Access
}

var registers [registerIncrementMask + 1]*register

func byteRegister(name string, field func(r *registerFile) *uint8) *register {
	return &register{
		name: name,
		peek: func(r *registerFile) uint8 { return *field(r) },
		read: func(c *Controller) (uint8, error) {
			return *field(&c.regs), nil
		},
		write: func(c *Controller, v uint8) error {
			*field(&c.regs) = v
			return nil
		},
	}
}

// fieldRegister exposes the byte at shift of a wider field.
func fieldRegister(name string, shift uint, field func(r *registerFile) *uint32) *register {
	return &register{
		name: name,
		peek: func(r *registerFile) uint8 { return uint8(*field(r) >> shift) },
		read: func(c *Controller) (uint8, error) {
			return uint8(*field(&c.regs) >> shift), nil
		},
		write: func(c *Controller, v uint8) error {
			p := field(&c.regs)
			*p = *p&^(0xff<<shift) | uint32(v)<<shift
			return nil
		},
	}
}

func init() {
	registers = [...]*register{
		RegOwnID:             byteRegister("Own ID", func(r *registerFile) *uint8 { return &r.ownID }),
		RegControl:           byteRegister("Control", func(r *registerFile) *uint8 { return &r.control }),
		RegTimeoutPeriod:     byteRegister("Timeout Period", func(r *registerFile) *uint8 { return &r.timeoutPeriod }),
		RegTotalSectors:      byteRegister("Total Sectors", func(r *registerFile) *uint8 { return &r.totalSectors }),
		RegTotalHeads:        byteRegister("Total Heads", func(r *registerFile) *uint8 { return &r.totalHeads }),
		RegTotalCylindersMSB: fieldRegister("Total Cylinders MSB", 8, func(r *registerFile) *uint32 { return &r.totalCylinders }),
		RegTotalCylindersLSB: fieldRegister("Total Cylinders LSB", 0, func(r *registerFile) *uint32 { return &r.totalCylinders }),
		RegLogicalAddressMSB: fieldRegister("Logical Address MSB", 24, func(r *registerFile) *uint32 { return &r.logicalAddress }),
		RegLogicalAddress2nd: fieldRegister("Logical Address 2nd", 16, func(r *registerFile) *uint32 { return &r.logicalAddress }),
		RegLogicalAddress3rd: fieldRegister("Logical Address 3rd", 8, func(r *registerFile) *uint32 { return &r.logicalAddress }),
		RegLogicalAddressLSB: fieldRegister("Logical Address LSB", 0, func(r *registerFile) *uint32 { return &r.logicalAddress }),
		RegSectorNumber:      byteRegister("Sector Number", func(r *registerFile) *uint8 { return &r.sectorNumber }),
		RegHeadNumber:        byteRegister("Head Number", func(r *registerFile) *uint8 { return &r.headNumber }),
		RegCylinderNumberMSB: fieldRegister("Cylinder Number MSB", 8, func(r *registerFile) *uint32 { return &r.cylinderNumber }),
		RegCylinderNumberLSB: fieldRegister("Cylinder Number LSB", 0, func(r *registerFile) *uint32 { return &r.cylinderNumber }),
		RegTargetLUN:         byteRegister("Target LUN", func(r *registerFile) *uint8 { return &r.targetLUN }),
		RegCommandPhase:      byteRegister("Command Phase", func(r *registerFile) *uint8 { return &r.commandPhase }),
		RegSynchronousXfer:   byteRegister("Synchronous Transfer", func(r *registerFile) *uint8 { return &r.syncTransfer }),
		RegTransferCountMSB:  fieldRegister("Transfer Count MSB", 16, func(r *registerFile) *uint32 { return &r.transferCount }),
		RegTransferCount2nd:  fieldRegister("Transfer Count 2nd", 8, func(r *registerFile) *uint32 { return &r.transferCount }),
		RegTransferCountLSB:  fieldRegister("Transfer Count LSB", 0, func(r *registerFile) *uint32 { return &r.transferCount }),
		RegDestinationID:     byteRegister("Destination ID", func(r *registerFile) *uint8 { return &r.destinationID }),
		RegSourceID:          byteRegister("Source ID", func(r *registerFile) *uint8 { return &r.sourceID }),
		RegSCSIStatus: {
			name:   "SCSI Status",
			access: AccessReadOnly,
			hold:   true,
			peek:   func(r *registerFile) uint8 { return r.scsiStatus },
			read:   (*Controller).readSCSIStatus,
			write:  readOnly("SCSI Status"),
		},
		RegCommand: {
			name:   "Command",
			access: AccessSpecial,
			peek:   func(r *registerFile) uint8 { return r.command },
			read: func(c *Controller) (uint8, error) {
				return c.regs.command, nil
			},
			write: (*Controller).execute,
		},
		RegData: {
			name:   "Data",
			access: AccessSpecial,
			hold:   true,
			read:   (*Controller).readData,
			write:  (*Controller).writeData,
		},
		RegAuxiliaryStatus: {
			name:   "Auxiliary Status",
			access: AccessReadOnly,
			hold:   true,
			peek:   func(r *registerFile) uint8 { return r.auxStatus },
			read: func(c *Controller) (uint8, error) {
				return c.auxStatus(), nil
			},
			write: readOnly("Auxiliary Status"),
		},
	}
}

func readOnly(name string) func(c *Controller, v uint8) error {
	return func(c *Controller, v uint8) error {
		pkg.LogGuestError(pkg.ComponentRegister, "write to read-only register",
			"register", name,
			"value", v)
		return fmt.Errorf("write %s: %w", name, pkg.ErrInvalidRegister)
	}
}

// lookupRegister returns the table entry for idx, or nil if the index is
// not implemented.
func lookupRegister(idx uint8) *register {
	if int(idx) >= len(registers) {
		return nil
	}
	return registers[idx]
}

// Registers describes every implemented register in index order.
func Registers() []RegisterInfo {
	infos := make([]RegisterInfo, 0, len(registers))
	for i, reg := range registers {
		if reg == nil {
			continue
		}
		infos = append(infos, RegisterInfo{Index: uint8(i), Name: reg.name, Access: reg.access})
	}
	return infos
}

// RegisterName returns the name of the register at idx, or "" if the index
// is not implemented.
func RegisterName(idx uint8) string {
	if reg := lookupRegister(idx); reg != nil {
		return reg.name
	}
	return ""
}

// readSCSIStatus returns the latched status and acknowledges the interrupt.
func (c *Controller) readSCSIStatus() (uint8, error) {
	v := c.regs.scsiStatus
	c.acknowledge()
	return v, nil
}

func (c *Controller) auxStatus() uint8 {
	v := c.regs.auxStatus
	if !c.fifo.IsFull() {
		v |= AuxDataBufferReady
	}
	return v
}

// readData returns the next polled transfer byte while a data-in transfer
// is active, otherwise it pops the FIFO.
func (c *Controller) readData() (uint8, error) {
	if c.state == StatePolledWaitingDataIn {
		return c.getTransfer()
	}
	v, err := c.fifo.Pop()
	if err != nil {
		pkg.LogGuestError(pkg.ComponentRegister, "read from empty FIFO")
	}
	return v, err
}

// writeData stores the next polled transfer byte while a data-out transfer
// is active, otherwise it pushes to the FIFO.
func (c *Controller) writeData(v uint8) error {
	if c.state == StatePolledWaitingDataOut {
		return c.putTransfer(v)
	}
	if err := c.fifo.Push(v); err != nil {
		pkg.LogGuestError(pkg.ComponentRegister, "write to full FIFO", "value", v)
		return err
	}
	return nil
}
