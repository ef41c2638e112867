// Package wd33c93 emulates the register interface of a WD33C93 SCSI bus
// interface controller driving a [scsi.Bus] in polled initiator mode.
//
// The chip is visible through two byte ports. Writing [PortAddress] selects
// an internal register; [PortData] then reads or writes it and advances the
// pointer, so multi-byte fields such as the transfer count are loaded with
// consecutive data port writes. Reading [PortAddress] returns the auxiliary
// status.
//
// A typical polled command looks like this from the driver's side:
//
//	select:   DestinationID=id, Command=Select-with-ATN, wait for INT
//	command:  TargetLUN=lun, TransferCount=len(cdb), Command=Transfer Info,
//	          write the CDB bytes to Data, wait for INT
//	data:     TransferCount=n, Command=Transfer Info, move n bytes via Data
//	status:   read the status byte from TargetLUN
//
// Reading SCSI Status acknowledges the interrupt. Only the polled DMA mode
// is implemented.
package wd33c93
