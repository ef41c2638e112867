package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/scsi/disk"
	"github.com/ardnew/softscsi/wd33c93"
)

// TargetInfo describes one logical unit for scan and inquiry output.
type TargetInfo struct {
	Target     uint8  `json:"target"`
	LUN        uint8  `json:"lun"`
	Present    bool   `json:"present"`
	DeviceType uint8  `json:"device_type"`
	Removable  bool   `json:"removable"`
	Vendor     string `json:"vendor,omitempty"`
	Product    string `json:"product,omitempty"`
	Revision   string `json:"revision,omitempty"`
	Blocks     uint64 `json:"blocks,omitempty"`
	BlockSize  uint32 `json:"block_size,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func trimField(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

// describe runs INQUIRY and READ CAPACITY on an opened unit.
func (m *machine) describe(cmd *cobra.Command, target, lun uint8) (TargetInfo, error) {
	info := TargetInfo{Target: target, LUN: lun, Present: true}

	inq, err := m.ini.Inquiry(cmd.Context(), lun)
	if err != nil {
		return info, err
	}
	info.DeviceType = inq.DeviceType
	info.Removable = inq.Removable
	info.Vendor = trimField(inq.Vendor[:])
	info.Product = trimField(inq.Product[:])
	info.Revision = trimField(inq.Revision[:])

	capacity, err := m.ini.ReadCapacity(cmd.Context(), lun)
	if err != nil {
		return info, err
	}
	info.Blocks = capacity.Blocks()
	info.BlockSize = capacity.BlockLength
	return info, nil
}

func printTarget(w io.Writer, info TargetInfo) {
	if !info.Present {
		fmt.Fprintf(w, "target %d: not present\n", info.Target)
		return
	}
	fmt.Fprintf(w, "target %d lun %d: %-8s %-16s %-4s %d x %d bytes\n",
		info.Target, info.LUN, info.Vendor, info.Product, info.Revision,
		info.Blocks, info.BlockSize)
}

func newScanCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Select every target ID and report which respond",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newMachine(opts)
			if err != nil {
				return err
			}
			defer m.Close()

			var found []TargetInfo
			for id := range uint8(8) {
				info := TargetInfo{Target: id, LUN: opts.LUN}
				if err := m.open(cmd.Context(), id, opts.LUN); err != nil {
					if !errors.Is(err, pkg.ErrNoDevice) {
						return err
					}
					if !opts.JSON {
						printTarget(cmd.OutOrStdout(), info)
					}
					continue
				}
				info, err = m.describe(cmd, id, opts.LUN)
				if err != nil {
					return err
				}
				found = append(found, info)
				if !opts.JSON {
					printTarget(cmd.OutOrStdout(), info)
				}
			}
			if opts.JSON {
				return writeJSON(cmd.OutOrStdout(), found)
			}
			return nil
		},
	}
}

func newInquiryCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "inquiry <id>",
		Short: "Report INQUIRY data and capacity of a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			m, err := newMachine(opts)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.open(cmd.Context(), id, opts.LUN); err != nil {
				return err
			}
			info, err := m.describe(cmd, id, opts.LUN)
			if err != nil {
				return err
			}
			if opts.JSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			printTarget(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

func newReadCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id> <lba> [count]",
		Short: "Read blocks and print a hexdump",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			lba, err := strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return fmt.Errorf("lba %q: %w", args[1], pkg.ErrInvalidParameter)
			}
			count := uint64(1)
			if len(args) == 3 {
				count, err = strconv.ParseUint(args[2], 0, 16)
				if err != nil || count == 0 || count > disk.MaxTransferBlocks {
					return fmt.Errorf("count %q: %w", args[2], pkg.ErrInvalidParameter)
				}
			}

			m, err := newMachine(opts)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.open(cmd.Context(), id, opts.LUN); err != nil {
				return err
			}
			data, err := m.ini.Read(cmd.Context(), opts.LUN, uint32(lba), uint16(count), opts.BlockSize)
			if err != nil {
				return err
			}
			hexdump(cmd.OutOrStdout(), data, uint64(lba)*uint64(opts.BlockSize), dumpWidth(cmd.OutOrStdout()))
			return nil
		},
	}
}

func newWriteCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "write <id> <lba> <file>",
		Short: "Write a file to a target, padded to whole blocks",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			lba, err := strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return fmt.Errorf("lba %q: %w", args[1], pkg.ErrInvalidParameter)
			}
			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			if len(data) == 0 {
				return fmt.Errorf("%s: empty file: %w", args[2], pkg.ErrInvalidParameter)
			}
			bs := int(opts.BlockSize)
			if rem := len(data) % bs; rem != 0 {
				data = append(data, make([]byte, bs-rem)...)
			}

			m, err := newMachine(opts)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.open(cmd.Context(), id, opts.LUN); err != nil {
				return err
			}
			for off := 0; off < len(data); off += disk.MaxTransferBlocks * bs {
				chunk := data[off:min(off+disk.MaxTransferBlocks*bs, len(data))]
				if err := m.ini.Write(cmd.Context(), opts.LUN, uint32(lba)+uint32(off/bs), opts.BlockSize, chunk); err != nil {
					return err
				}
			}
			if err := m.ini.SynchronizeCache(cmd.Context(), opts.LUN); err != nil {
				return err
			}
			if !opts.JSON {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d blocks at lba %d\n", len(data)/bs, lba)
			}
			return nil
		},
	}
}

// RegisterValue is one row of a register dump.
type RegisterValue struct {
	Index  uint8  `json:"index"`
	Name   string `json:"name"`
	Access string `json:"access"`
	Value  uint8  `json:"value"`
}

// dumpRegisters reads every implemented register without side effects.
func dumpRegisters(ctrl *wd33c93.Controller) []RegisterValue {
	var out []RegisterValue
	for _, r := range wd33c93.Registers() {
		v, ok := ctrl.Peek(r.Index)
		if !ok {
			continue
		}
		out = append(out, RegisterValue{
			Index:  r.Index,
			Name:   r.Name,
			Access: r.Access.String(),
			Value:  v,
		})
	}
	return out
}

func printRegisters(w io.Writer, regs []RegisterValue) {
	for _, r := range regs {
		fmt.Fprintf(w, "0x%02x  %-22s %-10s 0x%02x\n", r.Index, r.Name, r.Access, r.Value)
	}
}

func newRegsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "regs",
		Short: "Dump the register file of a freshly reset controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newMachine(opts)
			if err != nil {
				return err
			}
			defer m.Close()

			regs := dumpRegisters(m.ctrl)
			if opts.JSON {
				return writeJSON(cmd.OutOrStdout(), regs)
			}
			printRegisters(cmd.OutOrStdout(), regs)
			return nil
		},
	}
}
