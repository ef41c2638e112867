// Package disk implements a SCSI direct-access block device for the scsi bus.
//
// A [Disk] answers the common SCSI-2 disk command set: TEST UNIT READY,
// REQUEST SENSE, INQUIRY, READ CAPACITY (10), READ (6/10), WRITE (6/10),
// MODE SENSE (6), START STOP UNIT, PREVENT ALLOW MEDIUM REMOVAL,
// SYNCHRONIZE CACHE (10), VERIFY (10) and READ FORMAT CAPACITIES. Each
// logical unit keeps its own sense data and is backed by a [Storage]:
//
//	ram := disk.NewMemoryStorage(1<<20, disk.DefaultBlockSize)
//	d := disk.New(ram, "SOFTSCSI", "RAMDISK")
//	bus.Attach(0, d)
//
// Image files are attached with [OpenFileStorage].
//
// After a bus reset every logical unit reports UNIT ATTENTION once, the
// way real disks do.
package disk
