package disk

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/scsi"
)

// command is a parsed CDB. Data-in commands produce their data when parsed;
// data-out commands commit the received data when continued after the
// transfer.
type command struct {
	name   string
	length int
	data   []byte
	status scsi.Status
	commit func(data []byte) scsi.Status
	sent   bool
}

// Length implements scsi.Command.
func (c *command) Length() int {
	return c.length
}

// Continue implements scsi.Command.
func (c *command) Continue(req *scsi.Request) {
	if !c.sent && len(c.data) > 0 {
		c.sent = true
		req.TransferData(c.data)
		return
	}

	status := c.status
	if c.commit != nil {
		status = c.commit(c.data)
		c.commit = nil
	}
	req.Complete(status)
}

func good(name string) *command {
	return &command{name: name}
}

func dataIn(name string, data []byte) *command {
	return &command{name: name, length: len(data), data: data}
}

func dataOut(name string, n int, commit func([]byte) scsi.Status) *command {
	return &command{name: name, length: -n, data: make([]byte, n), commit: commit}
}

func (u *unit) fail(name string, key, asc uint8) *command {
	u.setSense(key, asc)
	return &command{name: name, status: scsi.StatusCheckCondition}
}

// cdbLength returns the CDB length implied by an opcode's group code.
func cdbLength(opcode uint8) int {
	switch opcode >> 5 {
	case 0:
		return 6
	case 1, 2:
		return 10
	case 4:
		return 16
	case 5:
		return 12
	default:
		return 6
	}
}

func parseU16BE(b []byte, offset int) uint16 {
	return binary.BigEndian.Uint16(b[offset:])
}

func parseU32BE(b []byte, offset int) uint32 {
	return binary.BigEndian.Uint32(b[offset:])
}

// parse dispatches a CDB to its handler.
func (u *unit) parse(cdb []byte) *command {
	opcode := cdb[0]

	pkg.LogDebug(pkg.ComponentTarget, "SCSI command",
		"opcode", opcode,
		"cdb", cdb)

	if len(cdb) < cdbLength(opcode) {
		return u.fail("short cdb", SenseIllegalRequest, ASCInvalidFieldInCDB)
	}

	if u.attention && opcode != OpInquiry && opcode != OpRequestSense {
		u.attention = false
		return u.fail("unit attention", SenseUnitAttention, ASCPowerOnReset)
	}

	switch opcode {
	case OpTestUnitReady:
		return u.testUnitReady()
	case OpRequestSense:
		return u.requestSense(cdb)
	case OpInquiry:
		return u.inquiry(cdb)
	case OpReadCapacity10:
		return u.readCapacity10()
	case OpRead6:
		lba, blocks := read6Range(cdb)
		return u.read("READ(6)", lba, blocks)
	case OpRead10:
		return u.read("READ(10)", parseU32BE(cdb, 2), uint32(parseU16BE(cdb, 7)))
	case OpWrite6:
		lba, blocks := read6Range(cdb)
		return u.write("WRITE(6)", lba, blocks)
	case OpWrite10:
		return u.write("WRITE(10)", parseU32BE(cdb, 2), uint32(parseU16BE(cdb, 7)))
	case OpModeSense6:
		return u.modeSense6(cdb)
	case OpStartStopUnit:
		return u.startStopUnit(cdb)
	case OpPreventAllowRemoval:
		u.prevent = cdb[4]&0x01 != 0
		u.clearSense()
		return good("PREVENT/ALLOW MEDIUM REMOVAL")
	case OpSynchronizeCache10:
		return u.synchronizeCache()
	case OpVerify10:
		return u.verify10(cdb)
	case OpReadFormatCapacities:
		return u.readFormatCapacities(cdb)
	default:
		pkg.LogWarn(pkg.ComponentTarget, "unsupported SCSI command",
			"opcode", opcode)
		return u.fail("unsupported", SenseIllegalRequest, ASCInvalidCommand)
	}
}

// read6Range decodes the 21-bit LBA and 8-bit block count of a 6-byte
// READ or WRITE. A count of zero means 256 blocks.
func read6Range(cdb []byte) (uint32, uint32) {
	lba := uint32(cdb[1]&0x1f)<<16 | uint32(cdb[2])<<8 | uint32(cdb[3])
	blocks := uint32(cdb[4])
	if blocks == 0 {
		blocks = 256
	}
	return lba, blocks
}

func (u *unit) testUnitReady() *command {
	if !u.storage.IsPresent() {
		return u.fail("TEST UNIT READY", SenseNotReady, ASCMediumNotPresent)
	}
	u.clearSense()
	return good("TEST UNIT READY")
}

func (u *unit) requestSense(cdb []byte) *command {
	alloc := int(cdb[4])
	if alloc == 0 {
		alloc = SenseSize
	}

	buf := make([]byte, SenseSize)
	n := u.sense.MarshalTo(buf)
	u.attention = false
	u.clearSense()

	return dataIn("REQUEST SENSE", buf[:min(alloc, n)])
}

func (u *unit) inquiry(cdb []byte) *command {
	if cdb[1]&0x01 != 0 {
		// Vital product data pages are not implemented.
		return u.fail("INQUIRY", SenseIllegalRequest, ASCInvalidFieldInCDB)
	}

	alloc := int(parseU16BE(cdb, 3))
	if alloc == 0 {
		return good("INQUIRY")
	}

	buf := make([]byte, InquiryStandardSize)
	n := u.inq.MarshalTo(buf)
	return dataIn("INQUIRY", buf[:min(alloc, n)])
}

func (u *unit) readCapacity10() *command {
	if !u.storage.IsPresent() {
		return u.fail("READ CAPACITY(10)", SenseNotReady, ASCMediumNotPresent)
	}

	count := u.storage.BlockCount()
	resp := Capacity{BlockLength: u.storage.BlockSize()}
	switch {
	case count == 0:
		resp.LastLBA = 0
	case count > 0xFFFFFFFF:
		resp.LastLBA = 0xFFFFFFFF
	default:
		resp.LastLBA = uint32(count - 1)
	}

	buf := make([]byte, ReadCapacity10Size)
	resp.MarshalTo(buf)
	u.clearSense()
	return dataIn("READ CAPACITY(10)", buf)
}

// checkBlocks validates a media access. It returns a failed command, or nil
// if the access may proceed.
func (u *unit) checkBlocks(name string, lba, blocks uint32) *command {
	if !u.storage.IsPresent() {
		return u.fail(name, SenseNotReady, ASCMediumNotPresent)
	}
	if blocks > MaxTransferBlocks {
		return u.fail(name, SenseIllegalRequest, ASCInvalidFieldInCDB)
	}
	if uint64(lba)+uint64(blocks) > u.storage.BlockCount() {
		return u.fail(name, SenseIllegalRequest, ASCLBAOutOfRange)
	}
	return nil
}

// storageFailure records sense data for a storage error.
func (u *unit) storageFailure(name string, err error) scsi.Status {
	pkg.LogWarn(pkg.ComponentTarget, "storage error", "command", name, "error", err)
	switch {
	case errors.Is(err, pkg.ErrReadOnly):
		u.setSense(SenseDataProtect, ASCWriteProtected)
	case errors.Is(err, pkg.ErrNoDevice):
		u.setSense(SenseNotReady, ASCMediumNotPresent)
	case errors.Is(err, io.EOF):
		u.setSense(SenseIllegalRequest, ASCLBAOutOfRange)
	default:
		u.setSense(SenseMediumError, ASCNoAdditionalInfo)
	}
	return scsi.StatusCheckCondition
}

func (u *unit) read(name string, lba, blocks uint32) *command {
	if blocks == 0 {
		return good(name)
	}
	if failed := u.checkBlocks(name, lba, blocks); failed != nil {
		return failed
	}

	pkg.LogDebug(pkg.ComponentTarget, name,
		"lba", lba,
		"blocks", blocks)

	buf := make([]byte, int(blocks)*int(u.storage.BlockSize()))
	if err := u.storage.ReadBlocks(uint64(lba), blocks, buf); err != nil {
		return &command{name: name, status: u.storageFailure(name, err)}
	}

	u.clearSense()
	return dataIn(name, buf)
}

func (u *unit) write(name string, lba, blocks uint32) *command {
	if blocks == 0 {
		return good(name)
	}
	if failed := u.checkBlocks(name, lba, blocks); failed != nil {
		return failed
	}
	if u.storage.IsReadOnly() {
		return u.fail(name, SenseDataProtect, ASCWriteProtected)
	}

	pkg.LogDebug(pkg.ComponentTarget, name,
		"lba", lba,
		"blocks", blocks)

	n := int(blocks) * int(u.storage.BlockSize())
	return dataOut(name, n, func(data []byte) scsi.Status {
		if err := u.storage.WriteBlocks(uint64(lba), blocks, data); err != nil {
			return u.storageFailure(name, err)
		}
		u.clearSense()
		return scsi.StatusGood
	})
}

func (u *unit) modeSense6(cdb []byte) *command {
	alloc := int(cdb[4])
	if alloc == 0 {
		return good("MODE SENSE(6)")
	}

	resp := modeSense6{writeProtect: u.storage.IsReadOnly()}
	buf := make([]byte, ModeSense6Size)
	n := resp.MarshalTo(buf)
	return dataIn("MODE SENSE(6)", buf[:min(alloc, n)])
}

func (u *unit) startStopUnit(cdb []byte) *command {
	start := cdb[4]&0x01 != 0
	loej := cdb[4]&0x02 != 0

	pkg.LogDebug(pkg.ComponentTarget, "START/STOP UNIT",
		"start", start,
		"loej", loej)

	if loej && !start && u.storage.IsRemovable() {
		if u.prevent {
			return u.fail("START/STOP UNIT", SenseIllegalRequest, ASCInvalidFieldInCDB)
		}
		if err := u.storage.Eject(); err != nil {
			return u.fail("START/STOP UNIT", SenseIllegalRequest, ASCInvalidFieldInCDB)
		}
	}

	u.clearSense()
	return good("START/STOP UNIT")
}

func (u *unit) synchronizeCache() *command {
	if err := u.storage.Sync(); err != nil {
		return u.fail("SYNCHRONIZE CACHE(10)", SenseHardwareError, ASCNoAdditionalInfo)
	}
	u.clearSense()
	return good("SYNCHRONIZE CACHE(10)")
}

func (u *unit) verify10(cdb []byte) *command {
	lba := parseU32BE(cdb, 2)
	blocks := uint32(parseU16BE(cdb, 7))
	if uint64(lba)+uint64(blocks) > u.storage.BlockCount() {
		return u.fail("VERIFY(10)", SenseIllegalRequest, ASCLBAOutOfRange)
	}
	u.clearSense()
	return good("VERIFY(10)")
}

func (u *unit) readFormatCapacities(cdb []byte) *command {
	if !u.storage.IsPresent() {
		return u.fail("READ FORMAT CAPACITIES", SenseNotReady, ASCMediumNotPresent)
	}

	alloc := int(parseU16BE(cdb, 7))
	if alloc == 0 {
		return good("READ FORMAT CAPACITIES")
	}

	resp := formatCapacity{
		blocks:      uint32(min(u.storage.BlockCount(), 0xFFFFFFFF)),
		blockLength: u.storage.BlockSize(),
	}
	buf := make([]byte, FormatCapacitySize)
	n := resp.MarshalTo(buf)
	return dataIn("READ FORMAT CAPACITIES", buf[:min(alloc, n)])
}
