package initiator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/scsi"
	"github.com/ardnew/softscsi/scsi/disk"
)

// CommandError reports a command that finished with a status other than
// GOOD. Sense holds the data fetched with REQUEST SENSE after a CHECK
// CONDITION.
type CommandError struct {
	Opcode uint8
	Status scsi.Status
	Sense  disk.Sense
}

// Error implements error.
func (e *CommandError) Error() string {
	if e.Status == scsi.StatusCheckCondition {
		return fmt.Sprintf("command 0x%02x: %s (key 0x%x asc 0x%02x ascq 0x%02x)",
			e.Opcode, e.Status, e.Sense.Key, e.Sense.ASC, e.Sense.ASCQ)
	}
	return fmt.Sprintf("command 0x%02x: %s", e.Opcode, e.Status)
}

// Unwrap returns the error class of the status.
func (e *CommandError) Unwrap() error {
	return e.Status.Err()
}

// run executes cdb and turns a bad status into a *CommandError.
func (i *Initiator) run(ctx context.Context, lun uint8, cdb, data []byte, dir scsi.Direction) (int, error) {
	n, status, err := i.Execute(ctx, lun, cdb, data, dir)
	if err != nil {
		return n, err
	}
	if status.Err() == nil {
		return n, nil
	}

	cmdErr := &CommandError{Opcode: cdb[0], Status: status}
	if status == scsi.StatusCheckCondition && cdb[0] != disk.OpRequestSense {
		if sense, err := i.RequestSense(ctx, lun); err == nil {
			cmdErr.Sense = sense
		}
	}
	pkg.LogDebug(pkg.ComponentInitiator, "command failed", "error", cmdErr)
	return n, cmdErr
}

// TestUnitReady issues TEST UNIT READY.
func (i *Initiator) TestUnitReady(ctx context.Context, lun uint8) error {
	_, err := i.run(ctx, lun, make([]byte, 6), nil, scsi.DirectionNone)
	return err
}

// WaitReady issues TEST UNIT READY until it succeeds, consuming the UNIT
// ATTENTION a target reports after a reset. It gives up after attempts
// tries.
func (i *Initiator) WaitReady(ctx context.Context, lun uint8, attempts int) error {
	var err error
	for range max(attempts, 1) {
		err = i.TestUnitReady(ctx, lun)
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) || cmdErr.Sense.Key != disk.SenseUnitAttention {
			return err
		}
	}
	return err
}

// RequestSense fetches the pending sense data of lun.
func (i *Initiator) RequestSense(ctx context.Context, lun uint8) (disk.Sense, error) {
	buf := make([]byte, disk.SenseSize)
	cdb := []byte{disk.OpRequestSense, 0, 0, 0, disk.SenseSize, 0}
	n, err := i.run(ctx, lun, cdb, buf, scsi.DirectionIn)
	if err != nil {
		return disk.Sense{}, err
	}
	sense, ok := disk.UnmarshalSense(buf[:n])
	if !ok {
		return disk.Sense{}, fmt.Errorf("request sense: %d bytes: %w", n, pkg.ErrPhase)
	}
	return sense, nil
}

// Inquiry fetches standard INQUIRY data.
func (i *Initiator) Inquiry(ctx context.Context, lun uint8) (disk.Inquiry, error) {
	buf := make([]byte, disk.InquiryStandardSize)
	cdb := []byte{disk.OpInquiry, 0, 0, 0, disk.InquiryStandardSize, 0}
	n, err := i.run(ctx, lun, cdb, buf, scsi.DirectionIn)
	if err != nil {
		return disk.Inquiry{}, err
	}
	inq, ok := disk.UnmarshalInquiry(buf[:n])
	if !ok {
		return disk.Inquiry{}, fmt.Errorf("inquiry: %d bytes: %w", n, pkg.ErrPhase)
	}
	return inq, nil
}

// ReadCapacity issues READ CAPACITY (10).
func (i *Initiator) ReadCapacity(ctx context.Context, lun uint8) (disk.Capacity, error) {
	buf := make([]byte, disk.ReadCapacity10Size)
	cdb := make([]byte, 10)
	cdb[0] = disk.OpReadCapacity10
	n, err := i.run(ctx, lun, cdb, buf, scsi.DirectionIn)
	if err != nil {
		return disk.Capacity{}, err
	}
	capacity, ok := disk.UnmarshalCapacity(buf[:n])
	if !ok {
		return disk.Capacity{}, fmt.Errorf("read capacity: %d bytes: %w", n, pkg.ErrPhase)
	}
	return capacity, nil
}

func rw10(opcode uint8, lba uint32, blocks uint16) []byte {
	cdb := make([]byte, 10)
	cdb[0] = opcode
	binary.BigEndian.PutUint32(cdb[2:6], lba)
	binary.BigEndian.PutUint16(cdb[7:9], blocks)
	return cdb
}

// Read issues READ (10) for blocks blocks of blockSize bytes at lba.
func (i *Initiator) Read(ctx context.Context, lun uint8, lba uint32, blocks uint16, blockSize uint32) ([]byte, error) {
	buf := make([]byte, int(blocks)*int(blockSize))
	n, err := i.run(ctx, lun, rw10(disk.OpRead10, lba, blocks), buf, scsi.DirectionIn)
	if err != nil {
		return nil, err
	}
	if n != len(buf) {
		return buf[:n], fmt.Errorf("read %d of %d bytes: %w", n, len(buf), pkg.ErrPhase)
	}
	return buf, nil
}

// Write issues WRITE (10) of data at lba. data must be a whole number of
// blocks of blockSize bytes.
func (i *Initiator) Write(ctx context.Context, lun uint8, lba uint32, blockSize uint32, data []byte) error {
	if blockSize == 0 || len(data)%int(blockSize) != 0 {
		return fmt.Errorf("write %d bytes in %d-byte blocks: %w", len(data), blockSize, pkg.ErrInvalidParameter)
	}
	blocks := len(data) / int(blockSize)
	if blocks > 0xffff {
		return fmt.Errorf("write %d blocks: %w", blocks, pkg.ErrInvalidParameter)
	}
	_, err := i.run(ctx, lun, rw10(disk.OpWrite10, lba, uint16(blocks)), data, scsi.DirectionOut)
	return err
}

// SynchronizeCache issues SYNCHRONIZE CACHE (10) for the whole unit.
func (i *Initiator) SynchronizeCache(ctx context.Context, lun uint8) error {
	cdb := make([]byte, 10)
	cdb[0] = disk.OpSynchronizeCache10
	_, err := i.run(ctx, lun, cdb, nil, scsi.DirectionNone)
	return err
}
