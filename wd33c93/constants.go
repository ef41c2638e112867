package wd33c93

// Externally visible port offsets.
const (
	PortAddress = 0x00 // Write: register pointer. Read: auxiliary status.
	PortData    = 0x01 // Register selected by the pointer
)

// Internal register indices.
const (
	RegOwnID              = 0x00
	RegControl            = 0x01
	RegTimeoutPeriod      = 0x02
	RegTotalSectors       = 0x03
	RegTotalHeads         = 0x04
	RegTotalCylindersMSB  = 0x05
	RegTotalCylindersLSB  = 0x06
	RegLogicalAddressMSB  = 0x07
	RegLogicalAddress2nd  = 0x08
	RegLogicalAddress3rd  = 0x09
	RegLogicalAddressLSB  = 0x0a
	RegSectorNumber       = 0x0b
	RegHeadNumber         = 0x0c
	RegCylinderNumberMSB  = 0x0d
	RegCylinderNumberLSB  = 0x0e
	RegTargetLUN          = 0x0f
	RegCommandPhase       = 0x10
	RegSynchronousXfer    = 0x11
	RegTransferCountMSB   = 0x12
	RegTransferCount2nd   = 0x13
	RegTransferCountLSB   = 0x14
	RegDestinationID      = 0x15
	RegSourceID           = 0x16
	RegSCSIStatus         = 0x17
	RegCommand            = 0x18
	RegData               = 0x19
	RegAuxiliaryStatus    = 0x1f
	registerPointerMask   = 0x7f // Bits kept when the pointer is written
	registerIncrementMask = 0x1f // Range the pointer wraps within
)

// Auxiliary status bits.
const (
	AuxDataBufferReady  = 0x01 // FIFO can accept a byte
	AuxInterruptPending = 0x80 // Cleared by reading SCSI status
)

// SCSI status register values.
const (
	StatusCompletion = 0x10 // Command completed successfully
	StatusSelected   = 0x01 // With completion: selection finished
	StatusMCI        = 0x08 // With completion: bus phase changed
	MCIDataOut       = 0x00 // Phase bits for data out
	MCIDataIn        = 0x01 // Phase bits for data in
)

// Command Phase register progress codes.
const (
	CommandPhaseNone     = 0x00 // No command in progress
	CommandPhaseCommand  = 0x30 // Command bytes sent to the target
	CommandPhaseComplete = 0x60 // Status received, command complete
)

// Control register DMA mode field.
const (
	ControlDMAShift  = 5
	ControlDMAMask   = 0x7
	ControlDMAPolled = 0x0
)

// Command opcodes.
const (
	CmdReset                = 0x00
	CmdAbort                = 0x01
	CmdAssertATN            = 0x02
	CmdNegateACK            = 0x03
	CmdDisconnect           = 0x04
	CmdReselect             = 0x05
	CmdSelectWithATN        = 0x06
	CmdSelectWithoutATN     = 0x07
	CmdSelectWithATNXfer    = 0x08
	CmdSelectWithoutATNXfer = 0x09
	CmdReselectReceive      = 0x0a
	CmdReselectSend         = 0x0b
	CmdWaitSelectReceive    = 0x0c
	CmdSendStatusComplete   = 0x0d
	CmdSendDisconnect       = 0x0e
	CmdSetIDI               = 0x0f
	CmdReceiveCommand       = 0x10
	CmdReceiveData          = 0x11
	CmdReceiveMessageOut    = 0x12
	CmdReceiveUnspecOut     = 0x13
	CmdSendStatus           = 0x14
	CmdSendData             = 0x15
	CmdSendMessageIn        = 0x16
	CmdSendUnspecIn         = 0x17
	CmdTranslateAddress     = 0x18
	CmdTransferInfo         = 0x20
)

// FIFOSize is the capacity of the data FIFO in bytes.
const FIFOSize = 12

// TargetMask selects the target ID bits of the destination ID register.
const TargetMask = 0x07

// LUNMask selects the logical unit bits of the target LUN register.
const LUNMask = 0x07
