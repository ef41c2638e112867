package scsi

import (
	"fmt"
	"sort"

	"github.com/ardnew/softscsi/pkg"
)

// Bus limits for a narrow SCSI bus.
const (
	MaxTarget = 7 // Highest target ID
	MaxLUN    = 7 // Highest logical unit number
)

// Address identifies a logical unit on the bus.
type Address struct {
	Target uint8
	LUN    uint8
}

// String returns the address as "target:lun".
func (a Address) String() string {
	return fmt.Sprintf("%d:%d", a.Target, a.LUN)
}

// Command is a parsed CDB bound to a logical unit.
type Command interface {
	// Length returns the data length the command expects. Positive lengths
	// flow to the initiator, negative lengths to the target, zero means no
	// data phase.
	Length() int

	// Continue advances the command. It either hands the next data chunk to
	// the initiator with req.TransferData or finishes with req.Complete.
	Continue(req *Request)
}

// Target is a device attached to the bus at a target ID.
type Target interface {
	// HasLUN returns true if the logical unit exists.
	HasLUN(lun uint8) bool

	// NewCommand parses cdb for the given logical unit. A nil result is
	// treated as an unsupported command.
	NewCommand(lun uint8, cdb []byte) Command

	// Reset returns the target to its power-on state.
	Reset()
}

// BusInfo describes the capabilities of a bus.
type BusInfo struct {
	MaxTarget uint8 // Highest addressable target ID
	MaxLUN    uint8 // Highest addressable logical unit
}

// DefaultBusInfo returns the limits of a narrow bus without tagged queuing.
func DefaultBusInfo() BusInfo {
	return BusInfo{MaxTarget: MaxTarget, MaxLUN: MaxLUN}
}

// Bus connects an initiator to up to eight targets and tracks in-flight
// requests. It is not safe for concurrent use; all calls are expected on the
// emulation thread.
type Bus struct {
	info     BusInfo
	targets  [MaxTarget + 1]Target
	inflight map[uint32]*Request
	nextTag  uint32
}

// NewBus creates an empty bus. Limits above the narrow-bus maximum are clamped.
func NewBus(info BusInfo) *Bus {
	if info.MaxTarget > MaxTarget {
		info.MaxTarget = MaxTarget
	}
	if info.MaxLUN > MaxLUN {
		info.MaxLUN = MaxLUN
	}
	return &Bus{
		info:     info,
		inflight: make(map[uint32]*Request),
	}
}

// Info returns the bus limits.
func (b *Bus) Info() BusInfo {
	return b.info
}

// Attach connects t at target ID id.
func (b *Bus) Attach(id uint8, t Target) error {
	if id > b.info.MaxTarget || t == nil {
		return fmt.Errorf("attach target %d: %w", id, pkg.ErrInvalidParameter)
	}
	if b.targets[id] != nil {
		return fmt.Errorf("attach target %d: %w", id, pkg.ErrBusy)
	}
	b.targets[id] = t
	pkg.LogInfo(pkg.ComponentBus, "target attached", "id", id)
	return nil
}

// Detach disconnects the target at id, cancelling its in-flight requests.
// Returns the detached target or nil.
func (b *Bus) Detach(id uint8) Target {
	if id > b.info.MaxTarget {
		return nil
	}
	t := b.targets[id]
	if t == nil {
		return nil
	}
	for _, req := range b.pending() {
		if req.Addr.Target == id {
			b.retire(req)
			req.cancel()
		}
	}
	b.targets[id] = nil
	pkg.LogInfo(pkg.ComponentBus, "target detached", "id", id)
	return t
}

// Target returns the target at id or nil.
func (b *Bus) Target(id uint8) Target {
	if id > b.info.MaxTarget {
		return nil
	}
	return b.targets[id]
}

// FindDevice looks up the target with the given ID. The returned address
// refers to LUN 0 of that target.
func (b *Bus) FindDevice(id uint8) (Address, bool) {
	if b.Target(id) == nil {
		return Address{}, false
	}
	return Address{Target: id}, true
}

// FindLUN looks up a logical unit of a previously found device.
func (b *Bus) FindLUN(dev Address, lun uint8) (Address, bool) {
	t := b.Target(dev.Target)
	if t == nil || lun > b.info.MaxLUN || !t.HasLUN(lun) {
		return Address{}, false
	}
	return Address{Target: dev.Target, LUN: lun}, true
}

// Enqueue parses the request's CDB on its target and reports the negotiated
// length to the request's HBA. Requests for a missing target or logical
// unit negotiate no data and complete with CHECK CONDITION.
func (b *Bus) Enqueue(req *Request) {
	if req.state != RequestNew {
		pkg.LogWarn(pkg.ComponentBus, "request already enqueued", "tag", req.Tag)
		return
	}

	b.nextTag++
	req.Tag = b.nextTag
	req.bus = b
	b.inflight[req.Tag] = req

	var cmd Command
	if t := b.Target(req.Addr.Target); t != nil && t.HasLUN(req.Addr.LUN) {
		cmd = t.NewCommand(req.Addr.LUN, req.CDB)
	} else {
		pkg.LogWarn(pkg.ComponentBus, "request for missing unit", "addr", req.Addr)
	}
	if cmd == nil {
		cmd = checkCondition{}
	}

	req.cmd = cmd
	req.length = cmd.Length()
	req.state = RequestQueued

	pkg.LogDebug(pkg.ComponentBus, "request enqueued",
		"tag", req.Tag,
		"addr", req.Addr,
		"opcode", fmt.Sprintf("0x%02x", req.Opcode()),
		"length", req.length)

	if req.hba != nil {
		req.hba.Negotiated(req, req.length)
	}
}

// Continue advances an enqueued request.
func (b *Bus) Continue(req *Request) {
	if req.IsDone() || req.cmd == nil {
		pkg.LogDebug(pkg.ComponentBus, "continue ignored", "tag", req.Tag, "state", req.state)
		return
	}
	req.cmd.Continue(req)
}

// ColdReset cancels every in-flight request and resets all targets.
func (b *Bus) ColdReset() {
	pkg.LogInfo(pkg.ComponentBus, "bus reset", "inflight", len(b.inflight))
	for _, req := range b.pending() {
		b.retire(req)
		req.cancel()
	}
	for _, t := range b.targets {
		if t != nil {
			t.Reset()
		}
	}
}

// Cancel withdraws a request its HBA has abandoned. The request is retired
// as aborted without calling back into the HBA. Finished requests are left
// unchanged.
func (b *Bus) Cancel(req *Request) {
	if req.IsDone() {
		return
	}
	b.retire(req)
	req.state = RequestCancelled
	req.status = StatusTaskAborted
	pkg.LogDebug(pkg.ComponentBus, "request withdrawn", "tag", req.Tag)
}

// Pending returns the number of in-flight requests.
func (b *Bus) Pending() int {
	return len(b.inflight)
}

// pending returns in-flight requests in tag order.
func (b *Bus) pending() []*Request {
	reqs := make([]*Request, 0, len(b.inflight))
	for _, req := range b.inflight {
		reqs = append(reqs, req)
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].Tag < reqs[j].Tag })
	return reqs
}

func (b *Bus) retire(req *Request) {
	delete(b.inflight, req.Tag)
}

// checkCondition fails a request that no target could parse.
type checkCondition struct{}

func (checkCondition) Length() int { return 0 }

func (checkCondition) Continue(req *Request) {
	req.Complete(StatusCheckCondition)
}
