package disk

import (
	"fmt"

	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/scsi"
)

// Product revision reported in INQUIRY data.
const Revision = "1.0"

// unit is one logical unit of a disk.
type unit struct {
	storage   Storage
	inq       Inquiry
	sense     Sense
	attention bool // Unit attention pending after a reset
	prevent   bool // Medium removal prevented
}

// Disk is a SCSI direct-access target with up to eight logical units.
//
// A Disk is driven from the bus thread and is not safe for concurrent use.
// Storage backends may be shared with other goroutines.
type Disk struct {
	vendor  string
	product string
	units   [scsi.MaxLUN + 1]*unit
}

// New creates a disk target with storage attached as LUN 0.
func New(storage Storage, vendor, product string) *Disk {
	d := &Disk{
		vendor:  vendor,
		product: product,
	}
	if storage != nil {
		// LUN 0 is always in range.
		_ = d.AttachLUN(0, storage)
	}
	return d
}

// AttachLUN attaches storage as the given logical unit.
func (d *Disk) AttachLUN(lun uint8, storage Storage) error {
	if lun > scsi.MaxLUN || storage == nil {
		return fmt.Errorf("attach lun %d: %w", lun, pkg.ErrInvalidParameter)
	}
	if d.units[lun] != nil {
		return fmt.Errorf("attach lun %d: %w", lun, pkg.ErrBusy)
	}
	d.units[lun] = &unit{
		storage: storage,
		inq:     NewInquiry(DeviceTypeDisk, storage.IsRemovable(), d.vendor, d.product, Revision),
	}
	pkg.LogDebug(pkg.ComponentTarget, "lun attached",
		"lun", lun,
		"blocks", storage.BlockCount(),
		"blockSize", storage.BlockSize())
	return nil
}

// Storage returns the storage of a logical unit or nil.
func (d *Disk) Storage(lun uint8) Storage {
	if lun > scsi.MaxLUN || d.units[lun] == nil {
		return nil
	}
	return d.units[lun].storage
}

// Sense returns the pending sense data of a logical unit.
func (d *Disk) Sense(lun uint8) Sense {
	if lun > scsi.MaxLUN || d.units[lun] == nil {
		return Sense{}
	}
	return d.units[lun].sense
}

// HasLUN implements scsi.Target.
func (d *Disk) HasLUN(lun uint8) bool {
	return lun <= scsi.MaxLUN && d.units[lun] != nil
}

// Reset implements scsi.Target. Every logical unit reports UNIT ATTENTION
// on its next command other than INQUIRY or REQUEST SENSE.
func (d *Disk) Reset() {
	for _, u := range d.units {
		if u == nil {
			continue
		}
		u.attention = true
		u.prevent = false
		u.setSense(SenseUnitAttention, ASCPowerOnReset)
	}
	pkg.LogDebug(pkg.ComponentTarget, "disk reset", "product", d.product)
}

// NewCommand implements scsi.Target.
func (d *Disk) NewCommand(lun uint8, cdb []byte) scsi.Command {
	if !d.HasLUN(lun) || len(cdb) == 0 {
		return nil
	}
	return d.units[lun].parse(cdb)
}

func (u *unit) setSense(key, asc uint8) {
	u.sense = Sense{Key: key, ASC: asc}
}

func (u *unit) clearSense() {
	u.sense = Sense{}
}
