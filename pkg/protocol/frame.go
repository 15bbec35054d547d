package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// DefaultMaxFrameSize bounds a single framed payload on stream transports.
const DefaultMaxFrameSize = 64 << 10

// ErrFrameTooLarge is returned when a frame header announces more than the allowed size.
var ErrFrameTooLarge = errors.New("frame too large")

// FrameReader is what ReadFrame needs from its source; *bufio.Reader satisfies it.
type FrameReader interface {
	io.Reader
	io.ByteReader
}

// WriteFrame writes payload prefixed by its uvarint length in a single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, 0, len(payload)+binary.MaxVarintLen64)
	buf = protowire.AppendVarint(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed payload. It returns io.EOF only when the
// stream ends cleanly between frames.
func ReadFrame(r FrameReader, maxSize int) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && size > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, maxSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
