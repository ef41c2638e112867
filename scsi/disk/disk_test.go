package disk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/scsi"
)

// driver is an HBA that runs requests to completion synchronously.
type driver struct {
	bus    *scsi.Bus
	out    []byte
	in     []byte
	length int
	status scsi.Status
	done   bool
}

func (d *driver) Negotiated(req *scsi.Request, length int) {
	d.length = length
	d.bus.Continue(req)
}

func (d *driver) TransferData(req *scsi.Request, n int) {
	if req.Direction() == scsi.DirectionOut {
		copy(req.Buffer()[:n], d.out)
	} else {
		d.in = append(d.in, req.Buffer()[:n]...)
	}
	d.bus.Continue(req)
}

func (d *driver) Complete(req *scsi.Request, status scsi.Status) {
	d.status = status
	d.done = true
}

func (d *driver) Cancel(req *scsi.Request) {}

type fixture struct {
	bus  *scsi.Bus
	disk *Disk
	ram  *MemoryStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ram := NewMemoryStorage(64*DefaultBlockSize, DefaultBlockSize)
	d := New(ram, "SOFTSCSI", "RAMDISK")
	bus := scsi.NewBus(scsi.DefaultBusInfo())
	if err := bus.Attach(2, d); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	return &fixture{bus: bus, disk: d, ram: ram}
}

// exec runs cdb on LUN 0 and returns the data-in bytes and final status.
func (f *fixture) exec(t *testing.T, cdb []byte, out []byte) ([]byte, scsi.Status) {
	t.Helper()
	drv := &driver{bus: f.bus, out: out}
	req := scsi.NewRequest(scsi.Address{Target: 2}, cdb, drv)
	f.bus.Enqueue(req)
	if !drv.done {
		t.Fatalf("command 0x%02x did not complete", cdb[0])
	}
	return drv.in, drv.status
}

func read10(lba uint32, blocks uint16) []byte {
	cdb := make([]byte, 10)
	cdb[0] = OpRead10
	binary.BigEndian.PutUint32(cdb[2:], lba)
	binary.BigEndian.PutUint16(cdb[7:], blocks)
	return cdb
}

func write10(lba uint32, blocks uint16) []byte {
	cdb := read10(lba, blocks)
	cdb[0] = OpWrite10
	return cdb
}

func TestInquiry(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		alloc   uint8
		wantLen int
	}{
		{"full", 36, InquiryStandardSize},
		{"oversized allocation", 96, InquiryStandardSize},
		{"truncated", 5, 5},
		{"zero allocation", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, status := f.exec(t, []byte{OpInquiry, 0, 0, 0, tt.alloc, 0}, nil)
			if status != scsi.StatusGood {
				t.Fatalf("status = %v, want good", status)
			}
			if len(data) != tt.wantLen {
				t.Fatalf("len(data) = %d, want %d", len(data), tt.wantLen)
			}
			if tt.wantLen < InquiryStandardSize {
				return
			}
			inq, ok := UnmarshalInquiry(data)
			if !ok {
				t.Fatal("UnmarshalInquiry() failed")
			}
			if inq.DeviceType != DeviceTypeDisk {
				t.Errorf("DeviceType = %d, want %d", inq.DeviceType, DeviceTypeDisk)
			}
			if got := string(inq.Vendor[:]); got != "SOFTSCSI" {
				t.Errorf("Vendor = %q, want SOFTSCSI", got)
			}
			if got := string(inq.Product[:]); got != "RAMDISK         " {
				t.Errorf("Product = %q, want padded RAMDISK", got)
			}
		})
	}
}

func TestInquiryVPDRejected(t *testing.T) {
	f := newFixture(t)

	_, status := f.exec(t, []byte{OpInquiry, 0x01, 0x80, 0, 36, 0}, nil)
	if status != scsi.StatusCheckCondition {
		t.Fatalf("status = %v, want check condition", status)
	}
	if got := f.disk.Sense(0); got.Key != SenseIllegalRequest || got.ASC != ASCInvalidFieldInCDB {
		t.Errorf("Sense() = %+v, want illegal request/invalid field", got)
	}
}

func TestReadCapacity(t *testing.T) {
	f := newFixture(t)

	data, status := f.exec(t, make([]byte, 10), nil)
	if status != scsi.StatusGood || data != nil {
		t.Fatalf("TEST UNIT READY = %v, % x", status, data)
	}

	cdb := make([]byte, 10)
	cdb[0] = OpReadCapacity10
	data, status = f.exec(t, cdb, nil)
	if status != scsi.StatusGood {
		t.Fatalf("status = %v, want good", status)
	}
	capacity, ok := UnmarshalCapacity(data)
	if !ok {
		t.Fatalf("UnmarshalCapacity(% x) failed", data)
	}
	if capacity.LastLBA != 63 || capacity.BlockLength != DefaultBlockSize {
		t.Errorf("capacity = %+v, want last LBA 63, block 512", capacity)
	}
	if capacity.Blocks() != 64 {
		t.Errorf("Blocks() = %d, want 64", capacity.Blocks())
	}
}

func TestWriteThenRead(t *testing.T) {
	f := newFixture(t)

	payload := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 2*DefaultBlockSize/4)

	_, status := f.exec(t, write10(5, 2), payload)
	if status != scsi.StatusGood {
		t.Fatalf("WRITE(10) status = %v, want good", status)
	}
	if got := f.ram.Bytes()[5*DefaultBlockSize : 7*DefaultBlockSize]; !bytes.Equal(got, payload) {
		t.Fatal("storage does not hold written blocks")
	}

	data, status := f.exec(t, read10(5, 2), nil)
	if status != scsi.StatusGood {
		t.Fatalf("READ(10) status = %v, want good", status)
	}
	if !bytes.Equal(data, payload) {
		t.Error("READ(10) data differs from written data")
	}

	// READ(6) of the same block.
	data, status = f.exec(t, []byte{OpRead6, 0, 0, 6, 1, 0}, nil)
	if status != scsi.StatusGood {
		t.Fatalf("READ(6) status = %v, want good", status)
	}
	if !bytes.Equal(data, payload[DefaultBlockSize:]) {
		t.Error("READ(6) data differs from written data")
	}
}

func TestWrite6(t *testing.T) {
	f := newFixture(t)

	payload := bytes.Repeat([]byte{0x5a}, DefaultBlockSize)
	_, status := f.exec(t, []byte{OpWrite6, 0, 0, 9, 1, 0}, payload)
	if status != scsi.StatusGood {
		t.Fatalf("WRITE(6) status = %v, want good", status)
	}
	if got := f.ram.Bytes()[9*DefaultBlockSize]; got != 0x5a {
		t.Errorf("block 9 byte 0 = 0x%02x, want 0x5a", got)
	}
}

func TestCheckConditions(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		cdb      []byte
		wantKey  uint8
		wantASC  uint8
		wantData bool
	}{
		{
			name:    "read out of range",
			cdb:     read10(63, 2),
			wantKey: SenseIllegalRequest,
			wantASC: ASCLBAOutOfRange,
		},
		{
			name:    "read too many blocks",
			cdb:     read10(0, MaxTransferBlocks+1),
			wantKey: SenseIllegalRequest,
			wantASC: ASCInvalidFieldInCDB,
		},
		{
			name:    "write protected",
			setup:   func(f *fixture) { f.ram.SetReadOnly(true) },
			cdb:     write10(0, 1),
			wantKey: SenseDataProtect,
			wantASC: ASCWriteProtected,
		},
		{
			name:    "medium not present",
			setup:   func(f *fixture) { f.ram.SetPresent(false) },
			cdb:     make([]byte, 6),
			wantKey: SenseNotReady,
			wantASC: ASCMediumNotPresent,
		},
		{
			name:    "unsupported opcode",
			cdb:     []byte{0xc0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			wantKey: SenseIllegalRequest,
			wantASC: ASCInvalidCommand,
		},
		{
			name:    "short cdb",
			cdb:     []byte{OpRead10, 0, 0},
			wantKey: SenseIllegalRequest,
			wantASC: ASCInvalidFieldInCDB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			_, status := f.exec(t, tt.cdb, make([]byte, DefaultBlockSize))
			if status != scsi.StatusCheckCondition {
				t.Fatalf("status = %v, want check condition", status)
			}

			// REQUEST SENSE reports and clears the condition.
			data, status := f.exec(t, []byte{OpRequestSense, 0, 0, 0, SenseSize, 0}, nil)
			if status != scsi.StatusGood {
				t.Fatalf("REQUEST SENSE status = %v, want good", status)
			}
			sense, ok := UnmarshalSense(data)
			if !ok {
				t.Fatalf("UnmarshalSense(% x) failed", data)
			}
			if sense.Key != tt.wantKey || sense.ASC != tt.wantASC {
				t.Errorf("sense = %+v, want key 0x%02x asc 0x%02x", sense, tt.wantKey, tt.wantASC)
			}
			if !f.disk.Sense(0).IsZero() {
				t.Errorf("sense not cleared: %+v", f.disk.Sense(0))
			}
		})
	}
}

func TestResetUnitAttention(t *testing.T) {
	f := newFixture(t)
	f.bus.ColdReset()

	// INQUIRY is exempt from unit attention.
	if _, status := f.exec(t, []byte{OpInquiry, 0, 0, 0, 36, 0}, nil); status != scsi.StatusGood {
		t.Fatalf("INQUIRY status = %v, want good", status)
	}

	tur := make([]byte, 6)
	if _, status := f.exec(t, tur, nil); status != scsi.StatusCheckCondition {
		t.Fatalf("first TEST UNIT READY = %v, want check condition", status)
	}
	if got := f.disk.Sense(0); got.Key != SenseUnitAttention || got.ASC != ASCPowerOnReset {
		t.Errorf("Sense() = %+v, want unit attention/power on reset", got)
	}
	if _, status := f.exec(t, tur, nil); status != scsi.StatusGood {
		t.Errorf("second TEST UNIT READY = %v, want good", status)
	}
}

func TestModeSense6(t *testing.T) {
	tests := []struct {
		name     string
		readOnly bool
		want     byte
	}{
		{"writable", false, 0},
		{"write protected", true, ModeSenseWriteProtect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ram.SetReadOnly(tt.readOnly)
			data, status := f.exec(t, []byte{OpModeSense6, 0, 0x3f, 0, 192, 0}, nil)
			if status != scsi.StatusGood || len(data) != ModeSense6Size {
				t.Fatalf("MODE SENSE(6) = %v, % x", status, data)
			}
			if data[2] != tt.want {
				t.Errorf("device parameter = 0x%02x, want 0x%02x", data[2], tt.want)
			}
		})
	}
}

func TestStartStopEject(t *testing.T) {
	f := newFixture(t)
	f.ram.SetRemovable(true)

	eject := []byte{OpStartStopUnit, 0, 0, 0, 0x02, 0}

	// Prevented removal refuses the eject.
	if _, status := f.exec(t, []byte{OpPreventAllowRemoval, 0, 0, 0, 1, 0}, nil); status != scsi.StatusGood {
		t.Fatalf("PREVENT status = %v", status)
	}
	if _, status := f.exec(t, eject, nil); status != scsi.StatusCheckCondition {
		t.Fatalf("eject while prevented = %v, want check condition", status)
	}

	f.exec(t, []byte{OpPreventAllowRemoval, 0, 0, 0, 0, 0}, nil)
	if _, status := f.exec(t, eject, nil); status != scsi.StatusGood {
		t.Fatalf("eject status = %v, want good", status)
	}
	if f.ram.IsPresent() {
		t.Error("medium still present after eject")
	}
}

func TestMiscCommands(t *testing.T) {
	f := newFixture(t)

	sync := make([]byte, 10)
	sync[0] = OpSynchronizeCache10
	if _, status := f.exec(t, sync, nil); status != scsi.StatusGood {
		t.Errorf("SYNCHRONIZE CACHE status = %v", status)
	}

	verify := read10(0, 64)
	verify[0] = OpVerify10
	if _, status := f.exec(t, verify, nil); status != scsi.StatusGood {
		t.Errorf("VERIFY status = %v", status)
	}

	rfc := make([]byte, 10)
	rfc[0] = OpReadFormatCapacities
	rfc[8] = 0xfc
	data, status := f.exec(t, rfc, nil)
	if status != scsi.StatusGood || len(data) != FormatCapacitySize {
		t.Fatalf("READ FORMAT CAPACITIES = %v, % x", status, data)
	}
	if got := binary.BigEndian.Uint32(data[4:8]); got != 64 {
		t.Errorf("block count = %d, want 64", got)
	}
}

func TestAttachLUN(t *testing.T) {
	d := New(NewMemoryStorage(4096, 512), "V", "P")

	tests := []struct {
		name    string
		lun     uint8
		storage Storage
		wantErr error
	}{
		{"second lun", 1, NewMemoryStorage(4096, 512), nil},
		{"occupied", 0, NewMemoryStorage(4096, 512), pkg.ErrBusy},
		{"out of range", 8, NewMemoryStorage(4096, 512), pkg.ErrInvalidParameter},
		{"nil storage", 2, nil, pkg.ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.AttachLUN(tt.lun, tt.storage)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AttachLUN(%d) error = %v, want %v", tt.lun, err, tt.wantErr)
			}
		})
	}

	if !d.HasLUN(1) || d.HasLUN(2) || d.HasLUN(9) {
		t.Error("HasLUN() reports wrong units")
	}
	if d.Storage(1) == nil || d.Storage(3) != nil {
		t.Error("Storage() reports wrong units")
	}
	if d.NewCommand(3, []byte{0}) != nil {
		t.Error("NewCommand() on missing lun returned a command")
	}
}
