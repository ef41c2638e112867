// Command softscsi drives an emulated WD33C93 SCSI controller attached to
// RAM or file-backed disks.
//
// Usage:
//
//	softscsi [flags] <command> [args]
//
// Disks are attached with --mem id=size (RAM disk) or --disk id=path
// (image file). Without either, a 1 MiB RAM disk is attached at target 0.
//
// Commands:
//
//	scan                      list responding targets
//	inquiry <id>              INQUIRY and READ CAPACITY
//	read <id> <lba> [count]   hexdump blocks
//	write <id> <lba> <file>   write a file, padded to whole blocks
//	regs                      dump the register file
//	monitor                   interactive register monitor
//	script <file.lua>         run a Lua script against the ports
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand(DefaultOptions()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
