package pkg

import "errors"

// Controller and bus errors.
var (
	// ErrInvalidRegister indicates an access to an unimplemented register index.
	ErrInvalidRegister = errors.New("invalid register")

	// ErrUnsupportedCommand indicates an unrecognized command opcode.
	ErrUnsupportedCommand = errors.New("unsupported command")

	// ErrUnsupportedDMAMode indicates a transfer in a DMA mode other than polled.
	ErrUnsupportedDMAMode = errors.New("unsupported DMA mode")

	// ErrNoDevice indicates the target is not present on the bus.
	ErrNoDevice = errors.New("target not present")

	// ErrNoLUN indicates the logical unit is not present on the selected target.
	ErrNoLUN = errors.New("logical unit not present")

	// ErrFIFOFull indicates a push into a full FIFO.
	ErrFIFOFull = errors.New("FIFO full")

	// ErrFIFOEmpty indicates a pop from an empty FIFO.
	ErrFIFOEmpty = errors.New("FIFO empty")

	// ErrTransferOverrun indicates an access past the declared size of a polled transfer.
	ErrTransferOverrun = errors.New("polled transfer overrun")

	// ErrNoTransfer indicates a data access with no polled transfer buffer attached.
	ErrNoTransfer = errors.New("no polled transfer buffer")

	// ErrCancelled indicates a cancelled request.
	ErrCancelled = errors.New("request cancelled")

	// ErrInvalidState indicates an invalid controller state for the operation.
	ErrInvalidState = errors.New("invalid controller state")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrBusy indicates the resource is busy.
	ErrBusy = errors.New("resource busy")

	// ErrTimeout indicates no completion interrupt was observed.
	ErrTimeout = errors.New("no completion interrupt")

	// ErrCheckCondition indicates the target finished a command with CHECK CONDITION.
	ErrCheckCondition = errors.New("check condition")

	// ErrPhase indicates the target entered an unexpected bus phase.
	ErrPhase = errors.New("unexpected bus phase")

	// ErrReadOnly indicates a write to read-only media.
	ErrReadOnly = errors.New("medium is read-only")
)
