package splitter

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/prn-tf/contentstore/internal/domain"
)

// CountingReader reads a byte stream line by line while tracking how many
// bytes have been consumed. A line ends with "\n", "\r" or "\r\n"; the
// terminator is part of the line. Lines longer than the configured limit
// fail with domain.ErrLineOverflow.
//
// CountingReader is not safe for concurrent use.
type CountingReader struct {
	r           *bufio.Reader
	bytesRead   int64
	maxLineSize int64
}

// NewCountingReader wraps r. maxLineSize is the largest accepted line in bytes,
// terminator included.
func NewCountingReader(r io.Reader, maxLineSize int64) *CountingReader {
	return &CountingReader{
		r:           bufio.NewReader(r),
		maxLineSize: maxLineSize,
	}
}

// BytesRead returns the number of bytes consumed since construction.
func (c *CountingReader) BytesRead() int64 {
	return c.bytesRead
}

// MaxLineSize returns the current line limit.
func (c *CountingReader) MaxLineSize() int64 {
	return c.maxLineSize
}

// SetMaxLineSize changes the limit applied to subsequent lines.
func (c *CountingReader) SetMaxLineSize(n int64) {
	c.maxLineSize = n
}

// ReadLine returns the next line including its terminator.
// It returns io.EOF once the stream is exhausted.
func (c *CountingReader) ReadLine() ([]byte, error) {
	var line []byte
	n, err := c.scan(func(b byte) {
		line = append(line, b)
	})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	return line, nil
}

// SkipLine consumes the next line without retaining it and returns its size.
// It returns 0 and io.EOF once the stream is exhausted.
func (c *CountingReader) SkipLine() (int64, error) {
	n, err := c.scan(nil)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// scan consumes one line, passing every byte to emit when it is non-nil.
// It returns the line length; 0 means the stream was already at its end.
func (c *CountingReader) scan(emit func(byte)) (int64, error) {
	start := c.bytesRead
	var n int64

	consume := func(b byte) error {
		n++
		c.bytesRead++
		if n > c.maxLineSize {
			return domain.NewDomainError(domain.ErrLineOverflow,
				fmt.Sprintf("line starting at offset %d is longer than %d bytes", start, c.maxLineSize), "")
		}
		if emit != nil {
			emit(b)
		}
		return nil
	}

	for {
		b, err := c.r.ReadByte()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("read line: %w", err)
		}

		if err := consume(b); err != nil {
			return n, err
		}

		switch b {
		case '\n':
			return n, nil
		case '\r':
			next, err := c.r.Peek(1)
			if err == nil && next[0] == '\n' {
				_, _ = c.r.ReadByte()
				if err := consume('\n'); err != nil {
					return n, err
				}
			} else if err != nil && !errors.Is(err, io.EOF) {
				return n, fmt.Errorf("read line: %w", err)
			}
			return n, nil
		}
	}
}
