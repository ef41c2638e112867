// Package scsi models a parallel SCSI bus as seen by a host adapter.
//
// A [Bus] holds up to eight [Target] devices. A host adapter creates a
// [Request] for a logical unit with [NewRequest], passing itself as the
// [HBA] continuation, and drives it through the bus:
//
//  1. [Bus.Enqueue] parses the CDB on the target and reports the negotiated
//     data length through [HBA.Negotiated]. The sign of the length encodes
//     the direction of the data phase.
//  2. [Bus.Continue] lets the target hand over a data buffer through
//     [HBA.TransferData], or finish through [HBA.Complete].
//  3. After the adapter drains or fills the buffer it calls [Bus.Continue]
//     again until the request completes.
//
// [Bus.ColdReset] cancels all in-flight requests through [HBA.Cancel] and
// resets every target.
//
// The bus performs no locking. Requests, targets and the adapter are
// expected to run on a single emulation thread, and callbacks may be
// delivered synchronously from within Enqueue and Continue.
package scsi
