package scsi

import (
	"errors"
	"testing"

	"github.com/ardnew/softscsi/pkg"
)

// recorder is an HBA that records every callback.
type recorder struct {
	negotiated []int
	transfers  []int
	statuses   []Status
	cancelled  int

	onTransfer func(req *Request, n int)
}

func (r *recorder) Negotiated(req *Request, length int) {
	r.negotiated = append(r.negotiated, length)
}

func (r *recorder) TransferData(req *Request, n int) {
	r.transfers = append(r.transfers, n)
	if r.onTransfer != nil {
		r.onTransfer(req, n)
	}
}

func (r *recorder) Complete(req *Request, status Status) {
	r.statuses = append(r.statuses, status)
}

func (r *recorder) Cancel(req *Request) {
	r.cancelled++
}

// echoTarget answers every CDB with a copy of the CDB as data in, except
// opcode 0xff which asks for len(cdb) bytes of data out.
type echoTarget struct {
	luns   map[uint8]bool
	resets int
	stored []byte
}

func (e *echoTarget) HasLUN(lun uint8) bool { return e.luns[lun] }

func (e *echoTarget) NewCommand(lun uint8, cdb []byte) Command {
	if len(cdb) == 0 {
		return nil
	}
	return &echoCommand{t: e, cdb: cdb}
}

func (e *echoTarget) Reset() { e.resets++ }

type echoCommand struct {
	t     *echoTarget
	cdb   []byte
	buf   []byte
	stage int
}

func (c *echoCommand) Length() int {
	if c.cdb[0] == 0xff {
		return -len(c.cdb)
	}
	return len(c.cdb)
}

func (c *echoCommand) Continue(req *Request) {
	switch c.stage {
	case 0:
		c.stage = 1
		c.buf = make([]byte, len(c.cdb))
		if c.cdb[0] != 0xff {
			copy(c.buf, c.cdb)
		}
		req.TransferData(c.buf)
	default:
		if c.cdb[0] == 0xff {
			c.t.stored = append([]byte(nil), c.buf...)
		}
		req.Complete(StatusGood)
	}
}

func newEchoBus(t *testing.T) (*Bus, *echoTarget) {
	t.Helper()
	bus := NewBus(DefaultBusInfo())
	target := &echoTarget{luns: map[uint8]bool{0: true, 2: true}}
	if err := bus.Attach(3, target); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	return bus, target
}

func TestNewBusClampsLimits(t *testing.T) {
	bus := NewBus(BusInfo{MaxTarget: 15, MaxLUN: 31})
	info := bus.Info()
	if info.MaxTarget != MaxTarget || info.MaxLUN != MaxLUN {
		t.Errorf("Info() = %+v, want MaxTarget=%d MaxLUN=%d", info, MaxTarget, MaxLUN)
	}
}

func TestAttach(t *testing.T) {
	bus, _ := newEchoBus(t)

	tests := []struct {
		name    string
		id      uint8
		target  Target
		wantErr error
	}{
		{"occupied", 3, &echoTarget{}, pkg.ErrBusy},
		{"out of range", 8, &echoTarget{}, pkg.ErrInvalidParameter},
		{"nil target", 4, nil, pkg.ErrInvalidParameter},
		{"free slot", 5, &echoTarget{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bus.Attach(tt.id, tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Attach(%d) error = %v, want %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestFindDeviceAndLUN(t *testing.T) {
	bus, _ := newEchoBus(t)

	dev, ok := bus.FindDevice(3)
	if !ok {
		t.Fatal("FindDevice(3) not found")
	}
	if dev != (Address{Target: 3}) {
		t.Errorf("FindDevice(3) = %v, want 3:0", dev)
	}

	if _, ok := bus.FindDevice(4); ok {
		t.Error("FindDevice(4) found a missing target")
	}
	if _, ok := bus.FindDevice(200); ok {
		t.Error("FindDevice(200) found an out-of-range target")
	}

	lun, ok := bus.FindLUN(dev, 2)
	if !ok || lun != (Address{Target: 3, LUN: 2}) {
		t.Errorf("FindLUN(3, 2) = %v, %v, want 3:2, true", lun, ok)
	}
	if _, ok := bus.FindLUN(dev, 1); ok {
		t.Error("FindLUN(3, 1) found a missing LUN")
	}
	if _, ok := bus.FindLUN(Address{Target: 6}, 0); ok {
		t.Error("FindLUN on a missing target succeeded")
	}
}

func TestRequestDataIn(t *testing.T) {
	bus, _ := newEchoBus(t)
	hba := &recorder{}

	req := NewRequest(Address{Target: 3}, []byte{0x12, 0x34, 0x56}, hba)
	bus.Enqueue(req)

	if len(hba.negotiated) != 1 || hba.negotiated[0] != 3 {
		t.Fatalf("negotiated = %v, want [3]", hba.negotiated)
	}
	if req.Direction() != DirectionIn {
		t.Errorf("Direction() = %v, want IN", req.Direction())
	}
	if req.Tag == 0 {
		t.Error("Tag not assigned")
	}
	if bus.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", bus.Pending())
	}

	bus.Continue(req)
	if len(hba.transfers) != 1 || hba.transfers[0] != 3 {
		t.Fatalf("transfers = %v, want [3]", hba.transfers)
	}
	if got := req.Buffer(); string(got) != "\x12\x34\x56" {
		t.Errorf("Buffer() = % x, want 12 34 56", got)
	}

	bus.Continue(req)
	if len(hba.statuses) != 1 || hba.statuses[0] != StatusGood {
		t.Fatalf("statuses = %v, want [good]", hba.statuses)
	}
	if !req.IsDone() || req.State() != RequestDone {
		t.Errorf("State() = %v, want done", req.State())
	}
	if bus.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", bus.Pending())
	}

	// Further continues are ignored.
	bus.Continue(req)
	if len(hba.statuses) != 1 {
		t.Errorf("completed twice: %v", hba.statuses)
	}
}

func TestRequestDataOut(t *testing.T) {
	bus, target := newEchoBus(t)
	hba := &recorder{}
	hba.onTransfer = func(req *Request, n int) {
		copy(req.Buffer()[:n], []byte{0xaa, 0xbb})
	}

	req := NewRequest(Address{Target: 3}, []byte{0xff, 0x00}, hba)
	bus.Enqueue(req)
	if req.Length() != -2 || req.Direction() != DirectionOut {
		t.Fatalf("Length() = %d, want -2", req.Length())
	}

	bus.Continue(req)
	bus.Continue(req)

	if string(target.stored) != "\xaa\xbb" {
		t.Errorf("stored = % x, want aa bb", target.stored)
	}
	if req.Status() != StatusGood {
		t.Errorf("Status() = %v, want good", req.Status())
	}
}

func TestEnqueueMissingUnit(t *testing.T) {
	bus, _ := newEchoBus(t)

	tests := []struct {
		name string
		addr Address
		cdb  []byte
	}{
		{"missing target", Address{Target: 5}, []byte{0x00}},
		{"missing lun", Address{Target: 3, LUN: 1}, []byte{0x00}},
		{"unparsed cdb", Address{Target: 3}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hba := &recorder{}
			req := NewRequest(tt.addr, tt.cdb, hba)
			bus.Enqueue(req)
			if len(hba.negotiated) != 1 || hba.negotiated[0] != 0 {
				t.Fatalf("negotiated = %v, want [0]", hba.negotiated)
			}
			bus.Continue(req)
			if len(hba.statuses) != 1 || hba.statuses[0] != StatusCheckCondition {
				t.Errorf("statuses = %v, want [check condition]", hba.statuses)
			}
		})
	}
}

func TestEnqueueTwice(t *testing.T) {
	bus, _ := newEchoBus(t)
	hba := &recorder{}

	req := NewRequest(Address{Target: 3}, []byte{0x01}, hba)
	bus.Enqueue(req)
	bus.Enqueue(req)

	if len(hba.negotiated) != 1 {
		t.Errorf("negotiated %d times, want 1", len(hba.negotiated))
	}
}

func TestColdReset(t *testing.T) {
	bus, target := newEchoBus(t)
	hba := &recorder{}

	first := NewRequest(Address{Target: 3}, []byte{0x01}, hba)
	second := NewRequest(Address{Target: 3}, []byte{0x02}, hba)
	bus.Enqueue(first)
	bus.Enqueue(second)

	bus.ColdReset()

	if hba.cancelled != 2 {
		t.Errorf("cancelled = %d, want 2", hba.cancelled)
	}
	if target.resets != 1 {
		t.Errorf("target resets = %d, want 1", target.resets)
	}
	if bus.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", bus.Pending())
	}
	if first.State() != RequestCancelled {
		t.Errorf("State() = %v, want cancelled", first.State())
	}

	// A cancelled request cannot complete.
	first.Complete(StatusGood)
	if len(hba.statuses) != 0 {
		t.Errorf("cancelled request completed: %v", hba.statuses)
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name      string
		cdb       []byte
		continues int
		enqueue   bool
		want      RequestState
		status    Status
	}{
		{"new", []byte{0x01}, 0, false, RequestCancelled, StatusTaskAborted},
		{"queued", []byte{0x01}, 0, true, RequestCancelled, StatusTaskAborted},
		{"data in", []byte{0x01, 0x02}, 1, true, RequestCancelled, StatusTaskAborted},
		{"data out", []byte{0xff, 0x00}, 1, true, RequestCancelled, StatusTaskAborted},
		{"done", []byte{0x01}, 2, true, RequestDone, StatusGood},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus, target := newEchoBus(t)
			hba := &recorder{}

			req := NewRequest(Address{Target: 3}, tt.cdb, hba)
			if tt.enqueue {
				bus.Enqueue(req)
			}
			for i := 0; i < tt.continues; i++ {
				bus.Continue(req)
			}

			bus.Cancel(req)

			if req.State() != tt.want {
				t.Errorf("State() = %v, want %v", req.State(), tt.want)
			}
			if req.Status() != tt.status {
				t.Errorf("Status() = %v, want %v", req.Status(), tt.status)
			}
			if bus.Pending() != 0 {
				t.Errorf("Pending() = %d, want 0", bus.Pending())
			}
			if hba.cancelled != 0 {
				t.Errorf("HBA cancel callbacks = %d, want 0", hba.cancelled)
			}

			// A withdrawn request goes nowhere.
			bus.Continue(req)
			if tt.want == RequestCancelled && len(hba.statuses) != 0 {
				t.Errorf("withdrawn request completed: %v", hba.statuses)
			}
			if target.stored != nil {
				t.Errorf("target stored % x after cancel", target.stored)
			}
		})
	}
}

func TestDetachCancelsRequests(t *testing.T) {
	bus, target := newEchoBus(t)
	hba := &recorder{}

	req := NewRequest(Address{Target: 3}, []byte{0x01}, hba)
	bus.Enqueue(req)

	if got := bus.Detach(3); got != target {
		t.Errorf("Detach(3) = %v, want attached target", got)
	}
	if hba.cancelled != 1 {
		t.Errorf("cancelled = %d, want 1", hba.cancelled)
	}
	if bus.Target(3) != nil {
		t.Error("target still attached")
	}
	if bus.Detach(3) != nil {
		t.Error("second Detach returned a target")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		status  Status
		name    string
		wantErr error
	}{
		{StatusGood, "good", nil},
		{StatusConditionMet, "condition met", nil},
		{StatusCheckCondition, "check condition", pkg.ErrCheckCondition},
		{StatusBusy, "busy", pkg.ErrBusy},
		{StatusTaskSetFull, "task set full", pkg.ErrBusy},
		{StatusTaskAborted, "task aborted", pkg.ErrCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			err := tt.status.Err()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Err() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Err() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if Status(0x7e).Err() == nil {
		t.Error("unknown status has no error")
	}
}

func TestDirectionOf(t *testing.T) {
	tests := []struct {
		length int
		want   Direction
	}{
		{512, DirectionIn},
		{-512, DirectionOut},
		{0, DirectionNone},
	}

	for _, tt := range tests {
		if got := DirectionOf(tt.length); got != tt.want {
			t.Errorf("DirectionOf(%d) = %v, want %v", tt.length, got, tt.want)
		}
	}
}
