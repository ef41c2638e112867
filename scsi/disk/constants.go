package disk

// SCSI operation codes handled by the disk.
const (
	OpTestUnitReady        = 0x00 // Test if unit is ready
	OpRequestSense         = 0x03 // Request sense data
	OpRead6                = 0x08 // Read blocks (6-byte)
	OpWrite6               = 0x0A // Write blocks (6-byte)
	OpInquiry              = 0x12 // Get device information
	OpModeSense6           = 0x1A // Get mode parameters (6-byte)
	OpStartStopUnit        = 0x1B // Start/stop unit
	OpPreventAllowRemoval  = 0x1E // Prevent/allow medium removal
	OpReadFormatCapacities = 0x23 // Read format capacities
	OpReadCapacity10       = 0x25 // Read capacity (10-byte)
	OpRead10               = 0x28 // Read blocks (10-byte)
	OpWrite10              = 0x2A // Write blocks (10-byte)
	OpVerify10             = 0x2F // Verify blocks (10-byte)
	OpSynchronizeCache10   = 0x35 // Synchronize cache (10-byte)
)

// Sense keys.
const (
	SenseNoSense        = 0x00
	SenseNotReady       = 0x02
	SenseMediumError    = 0x03
	SenseHardwareError  = 0x04
	SenseIllegalRequest = 0x05
	SenseUnitAttention  = 0x06
	SenseDataProtect    = 0x07
	SenseAbortedCommand = 0x0B
)

// Additional sense codes.
const (
	ASCNoAdditionalInfo  = 0x00 // No additional sense information
	ASCInvalidCommand    = 0x20 // Invalid command operation code
	ASCLBAOutOfRange     = 0x21 // Logical block address out of range
	ASCInvalidFieldInCDB = 0x24 // Invalid field in CDB
	ASCLUNNotSupported   = 0x25 // Logical unit not supported
	ASCWriteProtected    = 0x27 // Write protected
	ASCPowerOnReset      = 0x29 // Power on, reset, or bus device reset occurred
	ASCMediumNotPresent  = 0x3A // Medium not present
)

// Peripheral device types.
const (
	DeviceTypeDisk  = 0x00 // Direct access block device
	DeviceTypeCDROM = 0x05 // CD-ROM device
)

// INQUIRY data.
const (
	InquiryStandardSize       = 36   // Standard INQUIRY data length
	InquiryVersionSCSI2       = 0x02 // SCSI-2 version
	InquiryResponseFormatSCSI = 0x02 // SCSI-2 response data format
	InquiryRMB                = 0x80 // Removable media bit
)

// Sizes of fixed-length responses.
const (
	SenseSize          = 18 // Fixed-format sense data
	ReadCapacity10Size = 8
	ModeSense6Size     = 4 // Header only
	FormatCapacitySize = 12
)

// ModeSenseWriteProtect is the WP bit of the device-specific parameter.
const ModeSenseWriteProtect = 0x80

// DefaultBlockSize is the logical block size of a freshly created disk.
const DefaultBlockSize = 512

// MaxTransferBlocks bounds a single READ or WRITE so the data phase fits in
// one buffer.
const MaxTransferBlocks = 256
