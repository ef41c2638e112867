package wd33c93

import "github.com/ardnew/softscsi/pkg"

// FIFO is the fixed-capacity byte queue behind the data register.
type FIFO struct {
	data  [FIFOSize]byte
	head  int
	count int
}

// NewFIFO returns an empty FIFO.
func NewFIFO() *FIFO {
	return &FIFO{}
}

// Push appends v. A full FIFO rejects the byte and is left unchanged.
func (f *FIFO) Push(v uint8) error {
	if f.count == FIFOSize {
		return pkg.ErrFIFOFull
	}
	f.data[(f.head+f.count)%FIFOSize] = v
	f.count++
	return nil
}

// Pop removes and returns the oldest byte.
func (f *FIFO) Pop() (uint8, error) {
	if f.count == 0 {
		return 0, pkg.ErrFIFOEmpty
	}
	v := f.data[f.head]
	f.head = (f.head + 1) % FIFOSize
	f.count--
	return v, nil
}

// Len returns the number of queued bytes.
func (f *FIFO) Len() int { return f.count }

// IsFull reports whether a push would be rejected.
func (f *FIFO) IsFull() bool { return f.count == FIFOSize }

// IsEmpty reports whether a pop would fail.
func (f *FIFO) IsEmpty() bool { return f.count == 0 }

// Reset discards all queued bytes.
func (f *FIFO) Reset() {
	f.head = 0
	f.count = 0
}
