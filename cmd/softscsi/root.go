package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ardnew/softscsi/pkg"
	"github.com/ardnew/softscsi/pkg/prof"
	"github.com/ardnew/softscsi/scsi"
	"github.com/ardnew/softscsi/scsi/disk"
)

// Options holds the flags shared by every command.
type Options struct {
	Disks     []string // id=path image files
	Mems      []string // id=size RAM disks
	BlockSize uint32   // Block size of attached media
	ReadOnly  bool     // Attach media write-protected
	LUN       uint8    // Logical unit addressed by commands
	Verbose   bool     // Debug logging
	JSON      bool     // JSON output

	Profile prof.Config // Profiles to collect; needs the profile build tag
}

// DefaultOptions returns the options used when no flags are given.
func DefaultOptions() *Options {
	return &Options{
		BlockSize: disk.DefaultBlockSize,
	}
}

func newRootCommand(opts *Options) *cobra.Command {
	var session *prof.Session

	root := &cobra.Command{
		Use:           "softscsi",
		Short:         "Emulated WD33C93 SCSI controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			format := pkg.LogFormatText
			if opts.JSON {
				format = pkg.LogFormatJSON
			}
			pkg.SetLogFormat(cmd.ErrOrStderr(), format)
			if opts.Verbose {
				pkg.SetLogLevel(slog.LevelDebug)
			}
			if opts.BlockSize == 0 || opts.BlockSize%disk.DefaultBlockSize != 0 {
				return fmt.Errorf("block size %d: %w", opts.BlockSize, pkg.ErrInvalidParameter)
			}
			if opts.LUN > scsi.MaxLUN {
				return fmt.Errorf("lun %d: %w", opts.LUN, pkg.ErrInvalidParameter)
			}
			if opts.Profile.IsZero() {
				return nil
			}
			if !prof.Enabled {
				pkg.LogWarn(pkg.ComponentCLI, "profiling not compiled in; rebuild with -tags profile")
			}
			var err error
			session, err = prof.Start(opts.Profile)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return session.Stop()
		},
	}

	flags := root.PersistentFlags()
	flags.StringArrayVar(&opts.Disks, "disk", nil, "attach image file as target (id=path)")
	flags.StringArrayVar(&opts.Mems, "mem", nil, "attach RAM disk as target (id=size, e.g. 0=4m)")
	flags.Uint32Var(&opts.BlockSize, "block-size", opts.BlockSize, "logical block size in bytes")
	flags.BoolVar(&opts.ReadOnly, "read-only", false, "write-protect attached media")
	flags.Uint8Var(&opts.LUN, "lun", 0, "logical unit addressed by commands")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&opts.JSON, "json", false, "JSON output")
	flags.StringVar(&opts.Profile.CPU, "cpuprofile", "", "write a CPU profile to file")
	flags.StringVar(&opts.Profile.Heap, "memprofile", "", "write a heap profile to file")

	root.AddCommand(
		newScanCommand(opts),
		newInquiryCommand(opts),
		newReadCommand(opts),
		newWriteCommand(opts),
		newRegsCommand(opts),
		newMonitorCommand(opts),
		newScriptCommand(opts),
	)
	return root
}

// parseAttach splits an id=value attachment flag.
func parseAttach(s string) (uint8, string, error) {
	id, value, ok := strings.Cut(s, "=")
	if !ok || value == "" {
		return 0, "", fmt.Errorf("attachment %q: want id=value: %w", s, pkg.ErrInvalidParameter)
	}
	n, err := strconv.ParseUint(id, 10, 8)
	if err != nil || n > scsi.MaxTarget {
		return 0, "", fmt.Errorf("attachment %q: target id: %w", s, pkg.ErrInvalidParameter)
	}
	return uint8(n), value, nil
}

// parseSize parses a byte count with an optional k, m or g suffix.
func parseSize(s string) (uint64, error) {
	ss := strings.ToLower(strings.TrimSpace(s))
	mult := uint64(1)
	switch {
	case strings.HasSuffix(ss, "k"):
		mult = 1 << 10
	case strings.HasSuffix(ss, "m"):
		mult = 1 << 20
	case strings.HasSuffix(ss, "g"):
		mult = 1 << 30
	}
	if mult > 1 {
		ss = ss[:len(ss)-1]
	}
	v, err := strconv.ParseUint(ss, 0, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("size %q: %w", s, pkg.ErrInvalidParameter)
	}
	return v * mult, nil
}

// parseByte parses a decimal or 0x-prefixed byte value.
func parseByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("value %q: %w", s, pkg.ErrInvalidParameter)
	}
	return uint8(v), nil
}
