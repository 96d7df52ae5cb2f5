package status

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrBlock_Is(t *testing.T) {
	err := NewErrBlock(10, ErrTransport, io.ErrUnexpectedEOF)
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Equal(t, "block 10: rpc transport failure: unexpected EOF", err.Error())

	var blockErr *ErrBlock
	require.True(t, errors.As(err, &blockErr))
	require.EqualValues(t, 10, blockErr.BlockNumber)
}

func TestErrBlock_NoCause(t *testing.T) {
	err := NewErrBlock(7, ErrNotFound, nil)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "block 7: block not found", err.Error())
}

func TestErrMissingField(t *testing.T) {
	err := NewErrBlock(1, ErrFieldMissing, &ErrMissingField{Field: "mixHash"})
	require.ErrorIs(t, err, ErrFieldMissing)

	var missing *ErrMissingField
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "mixHash", missing.Field)
}

func TestErrTxIndex(t *testing.T) {
	err := NewErrBlock(3, ErrTxDecode, &ErrTxIndex{Index: 2, Err: io.EOF})
	require.ErrorIs(t, err, ErrTxDecode)
	require.ErrorIs(t, err, io.EOF)
	require.Contains(t, err.Error(), "transaction 2")
}
