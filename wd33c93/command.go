package wd33c93

import (
	"fmt"

	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/scsi"
)

// opcode is one entry of the command dispatch table.
type opcode struct {
	name string
	run  func(c *Controller) error
}

var commands = map[uint8]opcode{
	CmdReset:                {"Reset", (*Controller).cmdReset},
	CmdAbort:                {"Abort", (*Controller).cmdAbort},
	CmdAssertATN:            {"Assert ATN", nil},
	CmdNegateACK:            {"Negate ACK", nil},
	CmdDisconnect:           {"Disconnect", nil},
	CmdReselect:             {"Reselect", nil},
	CmdSelectWithATN:        {"Select-with-ATN", (*Controller).cmdSelect},
	CmdSelectWithoutATN:     {"Select-without-ATN", (*Controller).cmdSelect},
	CmdSelectWithATNXfer:    {"Select-with-ATN-and-Transfer", (*Controller).cmdSelect},
	CmdSelectWithoutATNXfer: {"Select-without-ATN-and-Transfer", (*Controller).cmdSelect},
	CmdReselectReceive:      {"Reselect-and-Receive-Data", nil},
	CmdReselectSend:         {"Reselect-and-Send-Data", nil},
	CmdWaitSelectReceive:    {"Wait-for-Select-and-Receive", nil},
	CmdSendStatusComplete:   {"Send-Status-and-Command-Complete", nil},
	CmdSendDisconnect:       {"Send-Disconnect-Message", nil},
	CmdSetIDI:               {"Set IDI", nil},
	CmdReceiveCommand:       {"Receive Command", nil},
	CmdReceiveData:          {"Receive Data", nil},
	CmdReceiveMessageOut:    {"Receive Message Out", nil},
	CmdReceiveUnspecOut:     {"Receive Unspecified Info Out", nil},
	CmdSendStatus:           {"Send Status", nil},
	CmdSendData:             {"Send Data", nil},
	CmdSendMessageIn:        {"Send Message In", nil},
	CmdSendUnspecIn:         {"Send Unspecified Info In", nil},
	CmdTranslateAddress:     {"Translate Address", nil},
	CmdTransferInfo:         {"Transfer Info", (*Controller).cmdTransferInfo},
}

// CommandName returns the name of a command opcode, or "" if the opcode is
// not recognized.
func CommandName(op uint8) string {
	return commands[op].name
}

// execute runs the command written to the command register.
func (c *Controller) execute(op uint8) error {
	c.regs.command = op

	cmd, ok := commands[op]
	if !ok {
		pkg.LogGuestError(pkg.ComponentCommand, "unsupported command",
			"opcode", fmt.Sprintf("0x%02x", op))
		return fmt.Errorf("command 0x%02x: %w", op, pkg.ErrUnsupportedCommand)
	}
	if cmd.run == nil {
		pkg.LogDebug(pkg.ComponentCommand, "command accepted", "command", cmd.name)
		return nil
	}

	pkg.LogDebug(pkg.ComponentCommand, "command", "command", cmd.name, "state", c.state)
	return cmd.run(c)
}

func (c *Controller) cmdReset() error {
	c.bus.ColdReset()
	c.Reset()
	return nil
}

func (c *Controller) cmdAbort() error {
	if c.xfer != nil {
		c.abortTransfer("abort command")
	}
	c.dropRequest("abort command")
	c.changeState(StateIdle)
	return nil
}

func (c *Controller) cmdSelect() error {
	id := c.regs.destinationID & TargetMask
	dev, ok := c.bus.FindDevice(id)
	if !ok {
		// No timeout interrupt: the command completes silently, but the
		// previous target is no longer selected.
		pkg.LogWarn(pkg.ComponentCommand, "selection failed", "target", id)
		c.deselect("selection failed")
		return fmt.Errorf("select target %d: %w", id, pkg.ErrNoDevice)
	}

	c.deselect("new selection")
	c.device = &dev

	pkg.LogDebug(pkg.ComponentCommand, "target selected", "target", id)
	c.raiseInterrupt(StatusCompletion | StatusSelected)
	return nil
}

// deselect drops the target binding along with any transfer or request in
// progress. Status registers and the interrupt line are left alone.
func (c *Controller) deselect(reason string) {
	c.abortTransfer(reason)
	c.dropRequest(reason)
	c.device = nil
	c.lun = nil
	c.changeState(StateIdle)
}

func (c *Controller) cmdTransferInfo() error {
	if c.device == nil {
		pkg.LogGuestError(pkg.ComponentCommand, "transfer without selection")
		return fmt.Errorf("transfer info: %w", pkg.ErrNoDevice)
	}

	lunID := c.regs.targetLUN & LUNMask
	lun, ok := c.bus.FindLUN(*c.device, lunID)
	if !ok {
		pkg.LogWarn(pkg.ComponentCommand, "logical unit not found",
			"target", c.device.Target,
			"lun", lunID)
		return fmt.Errorf("transfer info lun %d: %w", lunID, pkg.ErrNoLUN)
	}

	mode := (c.regs.control >> ControlDMAShift) & ControlDMAMask
	if mode != ControlDMAPolled {
		pkg.LogGuestError(pkg.ComponentCommand, "unsupported DMA mode", "mode", mode)
		return fmt.Errorf("transfer info mode %d: %w", mode, pkg.ErrUnsupportedDMAMode)
	}

	if c.regs.transferCount == 0 {
		pkg.LogGuestError(pkg.ComponentCommand, "zero transfer count", "phase", c.phase)
		return fmt.Errorf("transfer info count: %w", pkg.ErrInvalidParameter)
	}

	c.lun = &lun
	c.beginTransfer(int(c.regs.transferCount), c.phase)

	if c.phase == PhaseDataOut {
		c.changeState(StatePolledWaitingDataOut)
		return nil
	}

	if req := c.req; req != nil && req.State() == scsi.RequestData && c.dir == scsi.DirectionIn {
		c.xfer.attach(req.Buffer())
	}
	c.changeState(StatePolledWaitingDataIn)
	return nil
}
