package disk

import "encoding/binary"

// Inquiry is standard INQUIRY data.
type Inquiry struct {
	DeviceType uint8    // Peripheral device type
	Removable  bool     // Removable medium
	Version    uint8    // SCSI version
	Vendor     [8]byte  // Vendor identification (ASCII)
	Product    [16]byte // Product identification (ASCII)
	Revision   [4]byte  // Product revision (ASCII)
}

// NewInquiry creates INQUIRY data for a SCSI-2 device. Strings are padded
// with spaces or truncated to their field widths.
func NewInquiry(deviceType uint8, removable bool, vendor, product, revision string) Inquiry {
	inq := Inquiry{
		DeviceType: deviceType,
		Removable:  removable,
		Version:    InquiryVersionSCSI2,
	}
	padCopy(inq.Vendor[:], vendor)
	padCopy(inq.Product[:], product)
	padCopy(inq.Revision[:], revision)
	return inq
}

// MarshalTo writes the INQUIRY data to buf.
// Returns the number of bytes written, or 0 if buf is too small.
func (r *Inquiry) MarshalTo(buf []byte) int {
	if len(buf) < InquiryStandardSize {
		return 0
	}

	clear(buf[:InquiryStandardSize])
	buf[0] = r.DeviceType
	if r.Removable {
		buf[1] = InquiryRMB
	}
	buf[2] = r.Version
	buf[3] = InquiryResponseFormatSCSI
	buf[4] = InquiryStandardSize - 5
	copy(buf[8:16], r.Vendor[:])
	copy(buf[16:32], r.Product[:])
	copy(buf[32:36], r.Revision[:])

	return InquiryStandardSize
}

// UnmarshalInquiry decodes INQUIRY data returned by a target.
func UnmarshalInquiry(buf []byte) (Inquiry, bool) {
	var inq Inquiry
	if len(buf) < InquiryStandardSize {
		return inq, false
	}
	inq.DeviceType = buf[0] & 0x1f
	inq.Removable = buf[1]&InquiryRMB != 0
	inq.Version = buf[2]
	copy(inq.Vendor[:], buf[8:16])
	copy(inq.Product[:], buf[16:32])
	copy(inq.Revision[:], buf[32:36])
	return inq, true
}

// Capacity is READ CAPACITY (10) data.
type Capacity struct {
	LastLBA     uint32 // Last logical block address
	BlockLength uint32 // Block length in bytes
}

// Blocks returns the number of addressable blocks.
func (c Capacity) Blocks() uint64 {
	return uint64(c.LastLBA) + 1
}

// MarshalTo writes the capacity to buf.
// Returns the number of bytes written, or 0 if buf is too small.
func (c *Capacity) MarshalTo(buf []byte) int {
	if len(buf) < ReadCapacity10Size {
		return 0
	}
	binary.BigEndian.PutUint32(buf[0:4], c.LastLBA)
	binary.BigEndian.PutUint32(buf[4:8], c.BlockLength)
	return ReadCapacity10Size
}

// UnmarshalCapacity decodes READ CAPACITY (10) data.
func UnmarshalCapacity(buf []byte) (Capacity, bool) {
	if len(buf) < ReadCapacity10Size {
		return Capacity{}, false
	}
	return Capacity{
		LastLBA:     binary.BigEndian.Uint32(buf[0:4]),
		BlockLength: binary.BigEndian.Uint32(buf[4:8]),
	}, true
}

// Sense is fixed-format sense data.
type Sense struct {
	Key  uint8 // Sense key (bits 0-3)
	ASC  uint8 // Additional sense code
	ASCQ uint8 // Additional sense code qualifier
}

// IsZero returns true if no sense condition is pending.
func (s Sense) IsZero() bool {
	return s.Key == SenseNoSense && s.ASC == ASCNoAdditionalInfo && s.ASCQ == 0
}

// MarshalTo writes current-error fixed-format sense data to buf.
// Returns the number of bytes written, or 0 if buf is too small.
func (s *Sense) MarshalTo(buf []byte) int {
	if len(buf) < SenseSize {
		return 0
	}

	clear(buf[:SenseSize])
	buf[0] = 0x70 // Current error, fixed format
	buf[2] = s.Key & 0x0F
	buf[7] = SenseSize - 8
	buf[12] = s.ASC
	buf[13] = s.ASCQ

	return SenseSize
}

// UnmarshalSense decodes fixed-format sense data.
func UnmarshalSense(buf []byte) (Sense, bool) {
	if len(buf) < 14 || buf[0]&0x7e != 0x70 {
		return Sense{}, false
	}
	return Sense{Key: buf[2] & 0x0F, ASC: buf[12], ASCQ: buf[13]}, true
}

// modeSense6 is the MODE SENSE (6) parameter header. No block descriptors
// or mode pages follow it.
type modeSense6 struct {
	writeProtect bool
}

func (m *modeSense6) MarshalTo(buf []byte) int {
	if len(buf) < ModeSense6Size {
		return 0
	}
	buf[0] = ModeSense6Size - 1
	buf[1] = 0
	buf[2] = 0
	if m.writeProtect {
		buf[2] = ModeSenseWriteProtect
	}
	buf[3] = 0
	return ModeSense6Size
}

// formatCapacity is a READ FORMAT CAPACITIES list holding one current
// capacity descriptor.
type formatCapacity struct {
	blocks      uint32
	blockLength uint32
}

func (f *formatCapacity) MarshalTo(buf []byte) int {
	if len(buf) < FormatCapacitySize {
		return 0
	}
	clear(buf[:4])
	buf[3] = 8 // Capacity list length
	binary.BigEndian.PutUint32(buf[4:8], f.blocks)
	buf[8] = 0x02 // Formatted media
	// Block length is 24-bit
	buf[9] = uint8(f.blockLength >> 16)
	buf[10] = uint8(f.blockLength >> 8)
	buf[11] = uint8(f.blockLength)
	return FormatCapacitySize
}

func padCopy(dst []byte, s string) {
	for i := range dst {
		if i < len(s) {
			dst[i] = s[i]
		} else {
			dst[i] = ' '
		}
	}
}
