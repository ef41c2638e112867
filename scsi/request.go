package scsi

import (
	"fmt"

	"github.com/ardnew/softscsi/pkg"
)

// HBA receives the asynchronous results of the requests it enqueues.
// A bus may deliver these synchronously from Enqueue and Continue or defer
// them; an HBA must accept both.
type HBA interface {
	// Negotiated reports the data length the target expects for req.
	// Positive lengths flow to the initiator, negative lengths to the target
	// and zero means there is no data phase.
	Negotiated(req *Request, length int)

	// TransferData reports that the first n bytes of req.Buffer() are ready
	// to be drained (data in) or must be filled (data out) before the
	// request is continued.
	TransferData(req *Request, n int)

	// Complete reports the final status of req.
	Complete(req *Request, status Status)

	// Cancel reports that req was discarded without completing.
	Cancel(req *Request)
}

// RequestState tracks a request through its lifecycle.
type RequestState int

// Request lifecycle states.
const (
	RequestNew       RequestState = iota // Created, not enqueued
	RequestQueued                        // Enqueued, length negotiated
	RequestData                          // Data buffer handed to the HBA
	RequestDone                          // Completed with a status
	RequestCancelled                     // Discarded by a bus reset
)

// String returns a string representation of the request state.
func (s RequestState) String() string {
	switch s {
	case RequestNew:
		return "new"
	case RequestQueued:
		return "queued"
	case RequestData:
		return "data"
	case RequestDone:
		return "done"
	case RequestCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Request is a single SCSI command addressed to a logical unit.
type Request struct {
	Addr Address // Target and logical unit
	CDB  []byte  // Command descriptor block
	Tag  uint32  // Assigned by the bus on enqueue

	hba    HBA
	cmd    Command
	bus    *Bus
	length int
	buf    []byte
	status Status
	state  RequestState
}

// NewRequest creates a request for the logical unit at addr. The CDB is
// copied. hba is the continuation that receives the request's results.
func NewRequest(addr Address, cdb []byte, hba HBA) *Request {
	return &Request{
		Addr: addr,
		CDB:  append([]byte(nil), cdb...),
		hba:  hba,
	}
}

// Opcode returns the operation code of the CDB, or 0 for an empty CDB.
func (r *Request) Opcode() uint8 {
	if len(r.CDB) == 0 {
		return 0
	}
	return r.CDB[0]
}

// Length returns the negotiated data length.
func (r *Request) Length() int {
	return r.length
}

// Direction returns the direction of the request's data phase.
func (r *Request) Direction() Direction {
	return DirectionOf(r.length)
}

// Buffer returns the data buffer last handed to the HBA.
func (r *Request) Buffer() []byte {
	return r.buf
}

// Status returns the final status. Valid once the request is done.
func (r *Request) Status() Status {
	return r.status
}

// State returns the request lifecycle state.
func (r *Request) State() RequestState {
	return r.state
}

// IsDone returns true if the request completed or was cancelled.
func (r *Request) IsDone() bool {
	return r.state == RequestDone || r.state == RequestCancelled
}

// String returns a short description for logging.
func (r *Request) String() string {
	return fmt.Sprintf("req#%d %s op=0x%02x len=%d %s", r.Tag, r.Addr, r.Opcode(), r.length, r.state)
}

// TransferData hands buf to the HBA as the next chunk of the data phase.
// Commands call this from Continue.
func (r *Request) TransferData(buf []byte) {
	if r.IsDone() {
		return
	}
	r.buf = buf
	r.state = RequestData
	pkg.LogDebug(pkg.ComponentBus, "transfer data", "tag", r.Tag, "bytes", len(buf))
	if r.hba != nil {
		r.hba.TransferData(r, len(buf))
	}
}

// Complete finishes the request with the given status. Commands call this
// from Continue. Completing a finished request has no effect.
func (r *Request) Complete(status Status) {
	if r.IsDone() {
		return
	}
	r.state = RequestDone
	r.status = status
	if r.bus != nil {
		r.bus.retire(r)
	}
	pkg.LogDebug(pkg.ComponentBus, "request complete", "tag", r.Tag, "status", status)
	if r.hba != nil {
		r.hba.Complete(r, status)
	}
}

func (r *Request) cancel() {
	if r.IsDone() {
		return
	}
	r.state = RequestCancelled
	r.status = StatusTaskAborted
	pkg.LogDebug(pkg.ComponentBus, "request cancelled", "tag", r.Tag)
	if r.hba != nil {
		r.hba.Cancel(r)
	}
}
