package wd33c93

import (
	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/scsi"
)

// transfer is the context of one polled transfer. The buffer is owned by
// the controller for data out and borrowed from the request for data in.
type transfer struct {
	buf  []byte
	pos  int
	size int
}

// beginTransfer starts a polled transfer of size bytes with the bound
// logical unit. For data out the buffer is allocated here; for data in it
// is attached once the target hands its data over.
func (c *Controller) beginTransfer(size int, phase Phase) {
	if c.xfer != nil {
		c.abortTransfer("transfer restarted")
	}
	c.xfer = &transfer{size: size}
	if phase == PhaseDataOut {
		c.xfer.buf = make([]byte, size)
	}
	pkg.LogDebug(pkg.ComponentTransfer, "polled transfer started",
		"lun", *c.lun,
		"size", size,
		"phase", phase)
}

// attach points the data-in transfer at data handed over by the target.
// A short buffer shortens the transfer.
func (t *transfer) attach(buf []byte) {
	t.buf = buf
	t.pos = 0
	if len(buf) < t.size {
		t.size = len(buf)
	}
}

func (t *transfer) done() bool {
	return t.pos == t.size
}

// abortTransfer drops an unfinished transfer.
func (c *Controller) abortTransfer(reason string) {
	if c.xfer == nil {
		return
	}
	if !c.xfer.done() {
		pkg.LogWarn(pkg.ComponentTransfer, "polled transfer aborted",
			"reason", reason,
			"pos", c.xfer.pos,
			"size", c.xfer.size)
	}
	c.releaseTransfer()
}

func (c *Controller) releaseTransfer() {
	c.xfer = nil
}

// putTransfer stores one data-out byte. The byte that fills the transfer
// hands it to the bus.
func (c *Controller) putTransfer(v uint8) error {
	t := c.xfer
	if t == nil {
		pkg.LogGuestError(pkg.ComponentTransfer, "data write without transfer")
		return pkg.ErrNoTransfer
	}
	if t.pos >= t.size {
		pkg.LogGuestError(pkg.ComponentTransfer, "polled write past end",
			"pos", t.pos,
			"size", t.size)
		return pkg.ErrTransferOverrun
	}

	t.buf[t.pos] = v
	t.pos++
	if t.done() {
		c.submit()
	}
	return nil
}

// getTransfer returns one data-in byte. The byte that drains the transfer
// lets the target continue.
func (c *Controller) getTransfer() (uint8, error) {
	t := c.xfer
	if t == nil {
		pkg.LogGuestError(pkg.ComponentTransfer, "data read without transfer")
		return 0, pkg.ErrNoTransfer
	}
	if t.pos >= t.size {
		pkg.LogGuestError(pkg.ComponentTransfer, "polled read past end",
			"pos", t.pos,
			"size", t.size)
		return 0, pkg.ErrTransferOverrun
	}
	if t.buf == nil {
		pkg.LogGuestError(pkg.ComponentTransfer, "polled read before data arrived",
			"pos", t.pos)
		return 0, pkg.ErrNoTransfer
	}

	v := t.buf[t.pos]
	t.pos++
	if t.done() && c.req != nil && c.req.State() == scsi.RequestData {
		pkg.LogDebug(pkg.ComponentTransfer, "polled transfer drained", "size", t.size)
		c.bus.Continue(c.req)
	}
	return v, nil
}

// submit hands a filled data-out transfer to the bus. If the bound request
// is waiting for data out, the bytes are its data; otherwise they are the
// CDB of a new request on the bound logical unit.
func (c *Controller) submit() {
	t := c.xfer
	c.releaseTransfer()

	if req := c.req; req != nil && req.State() == scsi.RequestData && c.dir == scsi.DirectionOut {
		copy(req.Buffer(), t.buf)
		pkg.LogDebug(pkg.ComponentTransfer, "data out delivered",
			"tag", req.Tag,
			"bytes", len(t.buf))
		c.changeState(StatePolledExecuting)
		c.bus.Continue(req)
		return
	}

	if c.lun == nil {
		pkg.LogGuestError(pkg.ComponentTransfer, "command without logical unit")
		c.changeState(StateIdle)
		return
	}
	if c.req != nil {
		pkg.LogWarn(pkg.ComponentTransfer, "request superseded", "tag", c.req.Tag)
		c.dropRequest("superseded")
	}

	req := scsi.NewRequest(*c.lun, t.buf, c)
	c.req = req
	c.dir = scsi.DirectionNone
	c.regs.commandPhase = CommandPhaseCommand
	c.changeState(StatePolledExecuting)
	pkg.LogDebug(pkg.ComponentTransfer, "command submitted",
		"lun", *c.lun,
		"cdb", t.buf)
	c.bus.Enqueue(req)
}
