package interfaces

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// RawBlock is the node's json representation of a block as returned by eth_getBlockByNumber with full transactions.
// Header fields are pointers so that a field the node did not send can be told apart from a zero value.
type RawBlock struct {
	Hash             *common.Hash      `json:"hash"`
	ParentHash       *common.Hash      `json:"parentHash"`
	UncleHash        *common.Hash      `json:"sha3Uncles"`
	Miner            *common.Address   `json:"miner"`
	StateRoot        *common.Hash      `json:"stateRoot"`
	TransactionsRoot *common.Hash      `json:"transactionsRoot"`
	ReceiptsRoot     *common.Hash      `json:"receiptsRoot"`
	LogsBloom        *types.Bloom      `json:"logsBloom"`
	Difficulty       *hexutil.Big      `json:"difficulty"`
	Number           *hexutil.Big      `json:"number"`
	GasLimit         *hexutil.Uint64   `json:"gasLimit"`
	GasUsed          *hexutil.Uint64   `json:"gasUsed"`
	Timestamp        *hexutil.Uint64   `json:"timestamp"`
	ExtraData        hexutil.Bytes     `json:"extraData"`
	MixHash          *common.Hash      `json:"mixHash"`
	Nonce            *types.BlockNonce `json:"nonce"`

	BaseFee               *hexutil.Big    `json:"baseFeePerGas"`         // EIP-1559
	WithdrawalsRoot       *common.Hash    `json:"withdrawalsRoot"`       // EIP-4895
	BlobGasUsed           *hexutil.Uint64 `json:"blobGasUsed"`           // EIP-4844
	ExcessBlobGas         *hexutil.Uint64 `json:"excessBlobGas"`         // EIP-4844
	ParentBeaconBlockRoot *common.Hash    `json:"parentBeaconBlockRoot"` // EIP-4788

	Transactions []RawTransaction `json:"transactions"`
	// Withdrawals is nil when the node did not report withdrawals for the block
	Withdrawals *types.Withdrawals `json:"withdrawals"`
}

// NumberU64 returns the block number or 0 if the node did not send it
func (b *RawBlock) NumberU64() uint64 {
	if b.Number == nil {
		return 0
	}
	return b.Number.ToInt().Uint64()
}

// RawTransaction is the node's json object of a transaction
type RawTransaction json.RawMessage

// ErrNotTransactionObject is returned when the node sent a transaction hash instead of a full transaction object
var ErrNotTransactionObject = errors.New("transaction is not a json object")

// MarshalJSON implements json.Marshaler
func (tx RawTransaction) MarshalJSON() ([]byte, error) {
	if tx == nil {
		return []byte("null"), nil
	}
	return tx, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (tx *RawTransaction) UnmarshalJSON(data []byte) error {
	*tx = append((*tx)[0:0], data...)
	return nil
}

// Envelope returns the wire form of the transaction: the typed transaction envelope (EIP-2718) or the plain
// rlp list of legacy transactions. Nodes that expose the "raw" field have it returned verbatim, otherwise the
// envelope is rebuilt from the signed json fields.
func (tx RawTransaction) Envelope() ([]byte, error) {
	trimmed := bytes.TrimSpace(tx)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotTransactionObject
	}
	var withRaw struct {
		Raw hexutil.Bytes `json:"raw"`
	}
	if err := json.Unmarshal(trimmed, &withRaw); err != nil {
		return nil, err
	}
	if len(withRaw.Raw) > 0 {
		return withRaw.Raw, nil
	}
	signed := new(types.Transaction)
	if err := signed.UnmarshalJSON(trimmed); err != nil {
		return nil, err
	}
	return signed.MarshalBinary()
}
