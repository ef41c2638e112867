// Package initiator models a polled-mode SCSI driver running against a
// WD33C93 register interface.
//
// Every operation is carried out through the controller's address and data
// ports, exactly as guest software would: selection, the command phase, the
// polled data phase and the status byte left in the Target LUN register.
//
//	c := wd33c93.New(bus)
//	i := initiator.New(c)
//	if err := i.Select(ctx, 0); err != nil {
//	    return err
//	}
//	inq, err := i.Inquiry(ctx, 0)
//
// Commands that end in CHECK CONDITION return a *CommandError carrying the
// sense data, which matches pkg.ErrCheckCondition with errors.Is.
package initiator
