// Package convert maps the node's json blocks into canonical go-ethereum blocks
package convert

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fdymylja/blockexport/interfaces"
	"github.com/fdymylja/blockexport/status"
)

// WithdrawalsMode selects how the withdrawals of a block are carried over
type WithdrawalsMode int

const (
	// WithdrawalsEmpty gives blocks that report withdrawals an empty withdrawals list
	WithdrawalsEmpty WithdrawalsMode = iota
	// WithdrawalsCopy carries the node's withdrawal entries over
	WithdrawalsCopy
)

// ParseWithdrawalsMode parses "empty" or "copy"
func ParseWithdrawalsMode(s string) (WithdrawalsMode, error) {
	switch s {
	case "", "empty":
		return WithdrawalsEmpty, nil
	case "copy":
		return WithdrawalsCopy, nil
	default:
		return 0, fmt.Errorf("unknown withdrawals mode %q", s)
	}
}

func (m WithdrawalsMode) String() string {
	if m == WithdrawalsCopy {
		return "copy"
	}
	return "empty"
}

// Converter turns raw blocks into canonical blocks, the zero value is ready to use
type Converter struct {
	// Withdrawals selects how withdrawal entries are carried over
	Withdrawals WithdrawalsMode
	// Verify compares the hash of the converted header with the hash reported by the node
	Verify bool
}

// Convert maps raw into a canonical block. It does not modify raw and holds no state.
// Errors are reported against the number raw carries, see ConvertAt.
func (c Converter) Convert(raw *interfaces.RawBlock) (*types.Block, error) {
	return c.ConvertAt(raw.NumberU64(), raw)
}

// ConvertAt is Convert for the block requested as blockNumber, errors carry blockNumber even when the number
// field of raw is missing.
func (c Converter) ConvertAt(blockNumber uint64, raw *interfaces.RawBlock) (*types.Block, error) {
	header, err := Header(raw)
	if err != nil {
		return nil, status.NewErrBlock(blockNumber, status.ErrFieldMissing, err)
	}
	txs, err := Transactions(raw.Transactions)
	if err != nil {
		return nil, status.NewErrBlock(blockNumber, status.ErrTxDecode, err)
	}
	body := types.Body{
		Transactions: txs,
		// post merge blocks have no ommers
		Uncles: []*types.Header{},
	}
	if raw.Withdrawals != nil {
		body.Withdrawals = []*types.Withdrawal{}
		if c.Withdrawals == WithdrawalsCopy {
			body.Withdrawals = append(body.Withdrawals, *raw.Withdrawals...)
		}
	}
	block := types.NewBlockWithHeader(header).WithBody(body)
	if c.Verify && raw.Hash != nil && block.Hash() != *raw.Hash {
		return nil, status.NewErrBlock(blockNumber, status.ErrHashMismatch,
			fmt.Errorf("node reported %s, converted header hashes to %s", raw.Hash, block.Hash()))
	}
	return block, nil
}

// Header builds the canonical header of raw, it fails with *status.ErrMissingField when a mandatory field is absent
func Header(raw *interfaces.RawBlock) (*types.Header, error) {
	missing := func(field string) error {
		return &status.ErrMissingField{Field: field}
	}
	switch {
	case raw.Number == nil:
		return nil, missing("number")
	case raw.ParentHash == nil:
		return nil, missing("parentHash")
	case raw.UncleHash == nil:
		return nil, missing("sha3Uncles")
	case raw.Miner == nil:
		return nil, missing("miner")
	case raw.StateRoot == nil:
		return nil, missing("stateRoot")
	case raw.TransactionsRoot == nil:
		return nil, missing("transactionsRoot")
	case raw.ReceiptsRoot == nil:
		return nil, missing("receiptsRoot")
	case raw.LogsBloom == nil:
		return nil, missing("logsBloom")
	case raw.Difficulty == nil:
		return nil, missing("difficulty")
	case raw.GasLimit == nil:
		return nil, missing("gasLimit")
	case raw.GasUsed == nil:
		return nil, missing("gasUsed")
	case raw.Timestamp == nil:
		return nil, missing("timestamp")
	case raw.MixHash == nil:
		return nil, missing("mixHash")
	case raw.Nonce == nil:
		return nil, missing("nonce")
	}
	if field := forkFieldGap(raw); field != "" {
		return nil, missing(field)
	}
	header := &types.Header{
		ParentHash:  *raw.ParentHash,
		UncleHash:   *raw.UncleHash,
		Coinbase:    *raw.Miner,
		Root:        *raw.StateRoot,
		TxHash:      *raw.TransactionsRoot,
		ReceiptHash: *raw.ReceiptsRoot,
		Bloom:       *raw.LogsBloom,
		Difficulty:  new(big.Int).Set(raw.Difficulty.ToInt()),
		Number:      new(big.Int).Set(raw.Number.ToInt()),
		GasLimit:    uint64(*raw.GasLimit),
		GasUsed:     uint64(*raw.GasUsed),
		Time:        uint64(*raw.Timestamp),
		Extra:       append([]byte{}, raw.ExtraData...),
		MixDigest:   *raw.MixHash,
		Nonce:       *raw.Nonce,
	}
	if raw.BaseFee != nil {
		header.BaseFee = new(big.Int).Set(raw.BaseFee.ToInt())
	}
	if raw.WithdrawalsRoot != nil {
		root := *raw.WithdrawalsRoot
		header.WithdrawalsHash = &root
	}
	if raw.BlobGasUsed != nil {
		used := uint64(*raw.BlobGasUsed)
		header.BlobGasUsed = &used
	}
	if raw.ExcessBlobGas != nil {
		excess := uint64(*raw.ExcessBlobGas)
		header.ExcessBlobGas = &excess
	}
	if raw.ParentBeaconBlockRoot != nil {
		root := *raw.ParentBeaconBlockRoot
		header.ParentBeaconRoot = &root
	}
	return header, nil
}

// forkFieldGap returns the first fork field that is absent while a later one is present. The header encoding
// has no way to skip an optional field, such a header would not decode back.
func forkFieldGap(raw *interfaces.RawBlock) string {
	forkFields := []struct {
		name    string
		present bool
	}{
		{"baseFeePerGas", raw.BaseFee != nil},
		{"withdrawalsRoot", raw.WithdrawalsRoot != nil},
		{"blobGasUsed", raw.BlobGasUsed != nil},
		{"excessBlobGas", raw.ExcessBlobGas != nil},
		{"parentBeaconBlockRoot", raw.ParentBeaconBlockRoot != nil},
	}
	last := -1
	for i, f := range forkFields {
		if f.present {
			last = i
		}
	}
	for _, f := range forkFields[:last+1] {
		if !f.present {
			return f.name
		}
	}
	return ""
}

// Transactions decodes the wire form of every raw transaction, failures are reported as *status.ErrTxIndex
func Transactions(raws []interfaces.RawTransaction) (types.Transactions, error) {
	txs := make(types.Transactions, len(raws))
	for i, raw := range raws {
		envelope, err := raw.Envelope()
		if err != nil {
			return nil, &status.ErrTxIndex{Index: i, Err: err}
		}
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(envelope); err != nil {
			return nil, &status.ErrTxIndex{Index: i, Err: err}
		}
		txs[i] = tx
	}
	return txs, nil
}
