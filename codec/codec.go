// Package codec reads and writes block files: rlp encoded blocks concatenated back to back with no framing.
// Block boundaries are only recoverable by decoding, a file is consumed by decoding until io.EOF.
package codec

import (
	"bufio"
	"errors"
	"io"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/fdymylja/blockexport/status"
)

// MaxBlockSize bounds the encoded size of one block read by a Decoder. Length prefixes announcing more
// fail with rlp.ErrValueTooLarge before anything is allocated.
const MaxBlockSize = 32 * 1024 * 1024

// Encoder appends blocks to a writer
type Encoder struct {
	w       io.Writer
	written uint64
}

// NewEncoder builds an Encoder writing to w, w should be buffered
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode appends the rlp encoding of block, failures are status.ErrEncode
func (e *Encoder) Encode(block *types.Block) error {
	data, err := rlp.EncodeToBytes(block)
	if err != nil {
		return status.NewErrBlock(block.NumberU64(), status.ErrEncode, err)
	}
	n, err := e.w.Write(data)
	e.written += uint64(n)
	if err != nil {
		return status.NewErrBlock(block.NumberU64(), status.ErrIO, err)
	}
	return nil
}

// BytesWritten returns the number of bytes handed to the writer
func (e *Encoder) BytesWritten() uint64 {
	return e.written
}

// Decoder reads blocks one at a time from a reader
type Decoder struct {
	r      *bufio.Reader
	stream *rlp.Stream
	read   uint64
}

// NewDecoder builds a Decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	br := bufio.NewReader(r)
	return &Decoder{
		r:      br,
		stream: rlp.NewStream(br, MaxBlockSize),
	}
}

// Decode returns the next block. It returns io.EOF when the input ends on a block boundary and an error
// matching status.ErrDecode when the input holds a malformed or truncated block. The decoder never skips bytes
// to resynchronise, once an error is returned the rest of the input is not usable.
func (d *Decoder) Decode() (*types.Block, error) {
	if _, err := d.r.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.Join(status.ErrIO, err)
	}
	// the limit applies per block
	d.stream.Reset(d.r, MaxBlockSize)
	block := new(types.Block)
	if err := d.stream.Decode(block); err != nil {
		// input ending inside a block is a truncation, not a clean end of stream
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Join(status.ErrDecode, err)
	}
	d.read++
	return block, nil
}

// Decoded returns the number of blocks decoded so far
func (d *Decoder) Decoded() uint64 {
	return d.read
}

// DecodeNext decodes exactly one block from the front of buf and returns the bytes after it.
// An empty buf returns io.EOF.
func DecodeNext(buf []byte) (*types.Block, []byte, error) {
	if len(buf) == 0 {
		return nil, nil, io.EOF
	}
	_, _, rest, err := rlp.Split(buf)
	if err != nil {
		return nil, buf, errors.Join(status.ErrDecode, err)
	}
	block := new(types.Block)
	if err := rlp.DecodeBytes(buf[:len(buf)-len(rest)], block); err != nil {
		return nil, buf, errors.Join(status.ErrDecode, err)
	}
	return block, rest, nil
}

// ReadAll decodes blocks from r until the end of the input
func ReadAll(r io.Reader) ([]*types.Block, error) {
	var blocks []*types.Block
	d := NewDecoder(r)
	for {
		block, err := d.Decode()
		if errors.Is(err, io.EOF) {
			return blocks, nil
		}
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, block)
	}
}
