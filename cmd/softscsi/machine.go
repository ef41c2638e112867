package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardnew/softscsi/initiator"
	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/scsi"
	"github.com/ardnew/softscsi/scsi/disk"
	"github.com/ardnew/softscsi/wd33c93"
)

const (
	vendorID       = "SOFTSCSI"
	defaultMemSize = 1 << 20
	readyAttempts  = 3
)

// machine is a controller wired to a bus of disks, with an initiator
// driving its ports.
type machine struct {
	bus   *scsi.Bus
	ctrl  *wd33c93.Controller
	ini   *initiator.Initiator
	irqs  int
	files []*disk.FileStorage
}

// newMachine attaches the disks named by opts. Without any, a RAM disk is
// attached at target 0.
func newMachine(opts *Options) (*machine, error) {
	m := &machine{bus: scsi.NewBus(scsi.DefaultBusInfo())}

	mems := opts.Mems
	if len(mems) == 0 && len(opts.Disks) == 0 {
		mems = []string{fmt.Sprintf("0=%d", defaultMemSize)}
	}

	for _, s := range mems {
		id, value, err := parseAttach(s)
		if err != nil {
			return nil, m.fail(err)
		}
		size, err := parseSize(value)
		if err != nil {
			return nil, m.fail(err)
		}
		ram := disk.NewMemoryStorage(size, opts.BlockSize)
		ram.SetReadOnly(opts.ReadOnly)
		if err := m.bus.Attach(id, disk.New(ram, vendorID, "RAMDISK")); err != nil {
			return nil, m.fail(err)
		}
	}

	for _, s := range opts.Disks {
		id, path, err := parseAttach(s)
		if err != nil {
			return nil, m.fail(err)
		}
		f, err := disk.OpenFileStorage(path, opts.BlockSize, opts.ReadOnly)
		if err != nil {
			return nil, m.fail(err)
		}
		m.files = append(m.files, f)
		if err := m.bus.Attach(id, disk.New(f, vendorID, "IMAGE")); err != nil {
			return nil, m.fail(err)
		}
	}

	m.ctrl = wd33c93.New(m.bus)
	m.ctrl.SetInterruptLine(wd33c93.LineFunc(func(level bool) {
		if level {
			m.irqs++
		}
	}))
	m.ini = initiator.New(m.ctrl)
	pkg.LogInfo(pkg.ComponentCLI, "machine ready",
		"targets", m.targets(),
		"blockSize", opts.BlockSize,
		"readOnly", opts.ReadOnly)
	return m, nil
}

// fail closes whatever was opened and returns err.
func (m *machine) fail(err error) error {
	return errors.Join(err, m.Close())
}

// Close shuts the controller down and closes image files.
func (m *machine) Close() error {
	if m.ctrl != nil {
		m.ctrl.Close()
	}
	var errs []error
	for _, f := range m.files {
		errs = append(errs, f.Close())
	}
	m.files = nil
	return errors.Join(errs...)
}

// open selects target and waits until lun is ready.
func (m *machine) open(ctx context.Context, target, lun uint8) error {
	if err := m.ini.Select(ctx, target); err != nil {
		return err
	}
	if err := m.ini.WaitReady(ctx, lun, readyAttempts); err != nil {
		return fmt.Errorf("target %d lun %d not ready: %w", target, lun, err)
	}
	return nil
}

// targets returns the IDs of attached targets.
func (m *machine) targets() []uint8 {
	var ids []uint8
	for id := range uint8(scsi.MaxTarget + 1) {
		if m.bus.Target(id) != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// parseTarget parses a target ID argument.
func parseTarget(s string) (uint8, error) {
	id, err := parseByte(s)
	if err != nil || id > scsi.MaxTarget {
		return 0, fmt.Errorf("target %q: %w", s, pkg.ErrInvalidParameter)
	}
	return id, nil
}
