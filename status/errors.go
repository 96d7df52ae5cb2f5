package status

import (
	"errors"
	"fmt"
)

// Kinds of export failures, every error returned by the export pipeline matches exactly one of them with errors.Is
var (
	// ErrIO is returned when the output target can't be created, written, flushed or closed
	ErrIO = errors.New("output i/o failure")
	// ErrTransport is returned on network or protocol failures of the rpc node
	ErrTransport = errors.New("rpc transport failure")
	// ErrNotFound is returned when the node has no block at the requested number
	ErrNotFound = errors.New("block not found")
	// ErrFieldMissing is returned when a mandatory block field is absent from the node response
	ErrFieldMissing = errors.New("mandatory block field missing")
	// ErrTxDecode is returned when a transaction wire form can't be decoded
	ErrTxDecode = errors.New("transaction decode failure")
	// ErrHashMismatch is returned when verification is on and the converted block hash differs from the node's
	ErrHashMismatch = errors.New("block hash mismatch")
	// ErrEncode is returned when a block can't be rlp encoded into the output stream
	ErrEncode = errors.New("block encode failure")
	// ErrDecode is returned when the input stream holds a malformed block
	ErrDecode = errors.New("block decode failure")
)

// ErrClosed is returned when an operation is attempted on an instance that was closed
var ErrClosed = errors.New("unable to make operation: instance is closed")

// ErrBlock defines a failure tied to one block number, Kind is one of the sentinels above and Err is the cause
type ErrBlock struct {
	BlockNumber uint64
	Kind        error
	Err         error
}

// NewErrBlock builds an ErrBlock
func NewErrBlock(blockNumber uint64, kind, err error) *ErrBlock {
	return &ErrBlock{
		BlockNumber: blockNumber,
		Kind:        kind,
		Err:         err,
	}
}

// Error implements error interface
func (e *ErrBlock) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("block %d: %s", e.BlockNumber, e.Kind)
	}
	return fmt.Sprintf("block %d: %s: %s", e.BlockNumber, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *ErrBlock) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ErrMissingField names the mandatory field that was absent
type ErrMissingField struct {
	Field string
}

func (e *ErrMissingField) Error() string {
	return fmt.Sprintf("field %q is missing", e.Field)
}

// Is makes every ErrMissingField match ErrFieldMissing
func (e *ErrMissingField) Is(target error) bool {
	return target == ErrFieldMissing
}

// ErrTxIndex wraps a decode failure of the transaction at Index
type ErrTxIndex struct {
	Index int
	Err   error
}

func (e *ErrTxIndex) Error() string {
	return fmt.Sprintf("transaction %d: %s", e.Index, e.Err)
}

func (e *ErrTxIndex) Unwrap() error {
	return e.Err
}
