package disk

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ardnew/softscsi/pkg"
)

// Storage is a block device backing one logical unit.
type Storage interface {
	// BlockSize returns the size of a block in bytes.
	BlockSize() uint32

	// BlockCount returns the total number of blocks.
	BlockCount() uint64

	// ReadBlocks reads blocks starting at lba into buf.
	ReadBlocks(lba uint64, blocks uint32, buf []byte) error

	// WriteBlocks writes blocks from buf starting at lba.
	WriteBlocks(lba uint64, blocks uint32, buf []byte) error

	// Sync flushes cached writes.
	Sync() error

	// IsReadOnly returns true if writes are refused.
	IsReadOnly() bool

	// IsRemovable returns true if the medium can be ejected.
	IsRemovable() bool

	// IsPresent returns true if a medium is loaded.
	IsPresent() bool

	// Eject unloads a removable medium.
	Eject() error
}

// checkRange validates a block range against a device of count blocks and
// a buffer of len bytes.
func checkRange(lba uint64, blocks, blockSize uint32, count uint64, buflen int) (off, n int64, err error) {
	if lba+uint64(blocks) > count {
		return 0, 0, fmt.Errorf("blocks %d+%d of %d: %w", lba, blocks, count, io.EOF)
	}
	n = int64(blocks) * int64(blockSize)
	if int64(buflen) < n {
		return 0, 0, io.ErrShortBuffer
	}
	return int64(lba) * int64(blockSize), n, nil
}

// MemoryStorage is a RAM disk.
type MemoryStorage struct {
	data      []byte
	blockSize uint32
	readOnly  bool
	removable bool
	present   bool
	mutex     sync.RWMutex
}

// NewMemoryStorage creates a zeroed RAM disk of size bytes rounded down to a
// whole number of blocks.
func NewMemoryStorage(size uint64, blockSize uint32) *MemoryStorage {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	size -= size % uint64(blockSize)
	return &MemoryStorage{
		data:      make([]byte, size),
		blockSize: blockSize,
		present:   true,
	}
}

// BlockSize returns the block size.
func (m *MemoryStorage) BlockSize() uint32 {
	return m.blockSize
}

// BlockCount returns the number of blocks.
func (m *MemoryStorage) BlockCount() uint64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return uint64(len(m.data)) / uint64(m.blockSize)
}

// ReadBlocks copies blocks out of memory.
func (m *MemoryStorage) ReadBlocks(lba uint64, blocks uint32, buf []byte) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if !m.present {
		return pkg.ErrNoDevice
	}
	off, n, err := checkRange(lba, blocks, m.blockSize, uint64(len(m.data))/uint64(m.blockSize), len(buf))
	if err != nil {
		return err
	}
	copy(buf, m.data[off:off+n])
	return nil
}

// WriteBlocks copies blocks into memory.
func (m *MemoryStorage) WriteBlocks(lba uint64, blocks uint32, buf []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.present {
		return pkg.ErrNoDevice
	}
	if m.readOnly {
		return pkg.ErrReadOnly
	}
	off, n, err := checkRange(lba, blocks, m.blockSize, uint64(len(m.data))/uint64(m.blockSize), len(buf))
	if err != nil {
		return err
	}
	copy(m.data[off:off+n], buf)
	return nil
}

// Sync is a no-op.
func (m *MemoryStorage) Sync() error {
	return nil
}

// Bytes returns a copy of the disk contents.
func (m *MemoryStorage) Bytes() []byte {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]byte(nil), m.data...)
}

// IsReadOnly returns whether writes are refused.
func (m *MemoryStorage) IsReadOnly() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.readOnly
}

// SetReadOnly sets the write-protect flag.
func (m *MemoryStorage) SetReadOnly(readOnly bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.readOnly = readOnly
}

// IsRemovable returns whether the medium is removable.
func (m *MemoryStorage) IsRemovable() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.removable
}

// SetRemovable sets the removable flag.
func (m *MemoryStorage) SetRemovable(removable bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.removable = removable
}

// IsPresent returns whether a medium is loaded.
func (m *MemoryStorage) IsPresent() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.present
}

// SetPresent loads or unloads the medium.
func (m *MemoryStorage) SetPresent(present bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.present = present
}

// Eject unloads a removable medium.
func (m *MemoryStorage) Eject() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.removable {
		return pkg.ErrInvalidParameter
	}
	m.present = false
	return nil
}

// FileStorage is a raw disk image file.
type FileStorage struct {
	file      *os.File
	blockSize uint32
	blocks    uint64
	readOnly  bool
	mutex     sync.RWMutex
}

// OpenFileStorage opens the disk image at path. A trailing partial block is
// not addressable.
func OpenFileStorage(path string, blockSize uint32, readOnly bool) (*FileStorage, error) {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}

	flags := os.O_RDWR
	if readOnly {
		flags = os.O_RDONLY
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open disk image: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat disk image: %w", err)
	}

	pkg.LogDebug(pkg.ComponentTarget, "disk image opened",
		"path", path,
		"bytes", stat.Size(),
		"readOnly", readOnly)

	return &FileStorage{
		file:      file,
		blockSize: blockSize,
		blocks:    uint64(stat.Size()) / uint64(blockSize),
		readOnly:  readOnly,
	}, nil
}

// BlockSize returns the block size.
func (f *FileStorage) BlockSize() uint32 {
	return f.blockSize
}

// BlockCount returns the number of whole blocks in the image.
func (f *FileStorage) BlockCount() uint64 {
	return f.blocks
}

// ReadBlocks reads blocks from the image.
func (f *FileStorage) ReadBlocks(lba uint64, blocks uint32, buf []byte) error {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if f.file == nil {
		return os.ErrClosed
	}
	off, n, err := checkRange(lba, blocks, f.blockSize, f.blocks, len(buf))
	if err != nil {
		return err
	}
	_, err = f.file.ReadAt(buf[:n], off)
	return err
}

// WriteBlocks writes blocks to the image.
func (f *FileStorage) WriteBlocks(lba uint64, blocks uint32, buf []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file == nil {
		return os.ErrClosed
	}
	if f.readOnly {
		return pkg.ErrReadOnly
	}
	off, n, err := checkRange(lba, blocks, f.blockSize, f.blocks, len(buf))
	if err != nil {
		return err
	}
	_, err = f.file.WriteAt(buf[:n], off)
	return err
}

// Sync flushes the image to disk.
func (f *FileStorage) Sync() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.readOnly || f.file == nil {
		return nil
	}
	return f.file.Sync()
}

// IsReadOnly returns whether the image was opened read-only.
func (f *FileStorage) IsReadOnly() bool {
	return f.readOnly
}

// IsRemovable returns false.
func (f *FileStorage) IsRemovable() bool {
	return false
}

// IsPresent returns true until the image is closed.
func (f *FileStorage) IsPresent() bool {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.file != nil
}

// Eject is not supported.
func (f *FileStorage) Eject() error {
	return pkg.ErrInvalidParameter
}

// Close closes the image file.
func (f *FileStorage) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
