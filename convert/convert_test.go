package convert

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/require"

	"github.com/fdymylja/blockexport/interfaces"
	"github.com/fdymylja/blockexport/mocks"
	"github.com/fdymylja/blockexport/status"
)

func testBlock(t *testing.T, withdrawals int) *types.Block {
	t.Helper()
	blocks := mocks.MustLoad(mocks.SyntheticChain(100, 100, mocks.ChainOptions{
		TxsPerBlock: 6,
		Withdrawals: withdrawals,
	}))
	return blocks[0]
}

func rawBlock(t *testing.T, block *types.Block, mutate func(map[string]interface{})) *interfaces.RawBlock {
	t.Helper()
	raw, err := mocks.RawBlock(block, mutate)
	require.NoError(t, err)
	return raw
}

func trieHasher() types.TrieHasher {
	return trie.NewStackTrie(nil)
}

func encode(t *testing.T, block *types.Block) []byte {
	t.Helper()
	data, err := rlp.EncodeToBytes(block)
	require.NoError(t, err)
	return data
}

func TestConvert_CopyReproducesBlock(t *testing.T) {
	block := testBlock(t, 3)
	converted, err := Converter{Withdrawals: WithdrawalsCopy, Verify: true}.Convert(rawBlock(t, block, nil))
	require.NoError(t, err)
	require.Equal(t, block.Hash(), converted.Hash())
	require.Equal(t, encode(t, block), encode(t, converted))
	require.Empty(t, converted.Uncles())
}

func TestConvert_EmptyWithdrawals(t *testing.T) {
	block := testBlock(t, 3)
	converted, err := Converter{}.Convert(rawBlock(t, block, nil))
	require.NoError(t, err)
	require.NotNil(t, converted.Withdrawals())
	require.Empty(t, converted.Withdrawals())
	// the header keeps the node's withdrawals root
	require.Equal(t, block.Header().WithdrawalsHash, converted.Header().WithdrawalsHash)
	require.Equal(t, block.Hash(), converted.Hash())
}

func TestConvert_NoWithdrawalsSupport(t *testing.T) {
	block := testBlock(t, -1)
	converted, err := Converter{Withdrawals: WithdrawalsCopy}.Convert(rawBlock(t, block, nil))
	require.NoError(t, err)
	require.Nil(t, converted.Withdrawals())
	require.Nil(t, converted.Header().WithdrawalsHash)
}

func TestConvert_TransactionsReDecoded(t *testing.T) {
	block := testBlock(t, 0)
	converted, err := Converter{}.Convert(rawBlock(t, block, nil))
	require.NoError(t, err)
	require.Len(t, converted.Transactions(), len(block.Transactions()))
	for i, tx := range block.Transactions() {
		require.Equal(t, tx.Hash(), converted.Transactions()[i].Hash())
		require.Equal(t, tx.Type(), converted.Transactions()[i].Type())
	}
	require.Equal(t, block.TxHash(), types.DeriveSha(converted.Transactions(), trieHasher()))
}

func TestConvert_RawFieldPreferred(t *testing.T) {
	block := testBlock(t, 0)
	tx := block.Transactions()[2]
	envelope, err := tx.MarshalBinary()
	require.NoError(t, err)
	raw := rawBlock(t, block, func(fields map[string]interface{}) {
		// a node exposing the raw envelope needs nothing else
		fields["transactions"] = []interface{}{
			map[string]interface{}{"raw": hexutil.Bytes(envelope)},
		}
	})
	txs, err := Transactions(raw.Transactions)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, tx.Hash(), txs[0].Hash())
}

func TestConvert_OptionalFieldsAbsent(t *testing.T) {
	block := testBlock(t, -1)
	raw := rawBlock(t, block, func(fields map[string]interface{}) {
		delete(fields, "baseFeePerGas")
		delete(fields, "blobGasUsed")
		delete(fields, "excessBlobGas")
		delete(fields, "parentBeaconBlockRoot")
		delete(fields, "extraData")
	})
	converted, err := Converter{}.Convert(raw)
	require.NoError(t, err)
	header := converted.Header()
	require.Nil(t, header.BaseFee)
	require.Nil(t, header.BlobGasUsed)
	require.Nil(t, header.ExcessBlobGas)
	require.Nil(t, header.ParentBeaconRoot)
	require.Empty(t, header.Extra)
	require.EqualValues(t, 100, converted.NumberU64())
}

func TestConvert_MandatoryFieldMissing(t *testing.T) {
	mandatory := []string{
		"number", "parentHash", "sha3Uncles", "miner", "stateRoot", "transactionsRoot", "receiptsRoot",
		"logsBloom", "difficulty", "gasLimit", "gasUsed", "timestamp", "mixHash", "nonce",
	}
	block := testBlock(t, 1)
	for _, field := range mandatory {
		t.Run(field, func(t *testing.T) {
			raw := rawBlock(t, block, func(fields map[string]interface{}) {
				delete(fields, field)
			})
			_, err := Converter{}.Convert(raw)
			require.ErrorIs(t, err, status.ErrFieldMissing)
			var missing *status.ErrMissingField
			require.ErrorAs(t, err, &missing)
			require.Equal(t, field, missing.Field)
		})
	}
}

func TestConvert_TxDecodeError(t *testing.T) {
	block := testBlock(t, 0)
	cases := map[string]interface{}{
		"hash only":    block.Transactions()[0].Hash(),
		"bad envelope": map[string]interface{}{"raw": "0x02deadbeef"},
		"bad json":     map[string]interface{}{"type": "0x2", "nonce": "0x1"},
	}
	for name, broken := range cases {
		t.Run(name, func(t *testing.T) {
			raw := rawBlock(t, block, func(fields map[string]interface{}) {
				txs := fields["transactions"].([]json.RawMessage)
				data, err := json.Marshal(broken)
				require.NoError(t, err)
				txs[1] = data
			})
			_, err := Converter{}.Convert(raw)
			require.ErrorIs(t, err, status.ErrTxDecode)
			var txErr *status.ErrTxIndex
			require.ErrorAs(t, err, &txErr)
			require.Equal(t, 1, txErr.Index)
		})
	}
}

func TestConvert_VerifyHash(t *testing.T) {
	block := testBlock(t, 1)
	raw := rawBlock(t, block, func(fields map[string]interface{}) {
		fields["gasUsed"] = hexutil.Uint64(block.GasUsed() + 1)
	})
	_, err := Converter{Verify: true}.Convert(raw)
	require.ErrorIs(t, err, status.ErrHashMismatch)

	// without verification the edited value is carried over as is
	converted, err := Converter{}.Convert(raw)
	require.NoError(t, err)
	require.Equal(t, block.GasUsed()+1, converted.GasUsed())
}

func TestParseWithdrawalsMode(t *testing.T) {
	mode, err := ParseWithdrawalsMode("copy")
	require.NoError(t, err)
	require.Equal(t, WithdrawalsCopy, mode)
	mode, err = ParseWithdrawalsMode("")
	require.NoError(t, err)
	require.Equal(t, WithdrawalsEmpty, mode)
	_, err = ParseWithdrawalsMode("drop")
	require.Error(t, err)
}

func TestConvert_ForkFieldGap(t *testing.T) {
	cases := map[string]string{
		"withdrawalsRoot":       "withdrawalsRoot",
		"baseFeePerGas":         "baseFeePerGas",
		"excessBlobGas":         "excessBlobGas",
		"parentBeaconBlockRoot": "",
	}
	block := testBlock(t, 1)
	for deleted, want := range cases {
		t.Run(deleted, func(t *testing.T) {
			raw := rawBlock(t, block, func(fields map[string]interface{}) {
				delete(fields, deleted)
			})
			converted, err := Converter{}.Convert(raw)
			if want == "" {
				// dropping the last fork field leaves a header of the previous fork
				require.NoError(t, err)
				require.Nil(t, converted.Header().ParentBeaconRoot)
				decoded := new(types.Block)
				require.NoError(t, rlp.DecodeBytes(encode(t, converted), decoded))
				require.Equal(t, converted.Hash(), decoded.Hash())
				return
			}
			require.ErrorIs(t, err, status.ErrFieldMissing)
			var missing *status.ErrMissingField
			require.ErrorAs(t, err, &missing)
			require.Equal(t, want, missing.Field)
		})
	}
}

func TestConvertAt_ReportsRequestedNumber(t *testing.T) {
	block := testBlock(t, 1)
	raw := rawBlock(t, block, func(fields map[string]interface{}) {
		delete(fields, "number")
	})

	_, err := Converter{}.ConvertAt(100, raw)
	require.ErrorIs(t, err, status.ErrFieldMissing)
	var blockErr *status.ErrBlock
	require.ErrorAs(t, err, &blockErr)
	require.Equal(t, uint64(100), blockErr.BlockNumber)

	converted, err := Converter{}.ConvertAt(100, rawBlock(t, block, nil))
	require.NoError(t, err)
	require.Equal(t, block.Hash(), converted.Hash())
}
