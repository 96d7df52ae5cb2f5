package mocks

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/fdymylja/blockexport/generators"
)

// ChainID is the chain id used to sign synthetic transactions
var ChainID = big.NewInt(1337)

// BlockLoader produces the blocks served by a Node
type BlockLoader func() ([]*types.Block, error)

// Marker returns the extra data stamped on synthetic block number n, it lets tests tell blocks apart after a round trip
func Marker(n uint64) []byte {
	return []byte(fmt.Sprintf("block-%d", n))
}

// ChainOptions parametrises synthetic chains
type ChainOptions struct {
	// TxsPerBlock is the number of signed transactions per block
	TxsPerBlock int
	// Withdrawals is the number of withdrawals per block, -1 builds pre-shanghai blocks without withdrawals
	Withdrawals int
	// Key signs transactions, a fresh key is generated when nil
	Key *ecdsa.PrivateKey
}

// SyntheticChain returns a BlockLoader building blocks start..end (inclusive) with cancun style headers
func SyntheticChain(start, end uint64, options ChainOptions) BlockLoader {
	return func() ([]*types.Block, error) {
		key := options.Key
		if key == nil {
			key = generators.MustPrivateKey()
		}
		var (
			blocks []*types.Block
			parent common.Hash
			nonce  uint64
		)
		for n := start; n <= end; n++ {
			txs, err := generators.SignedTransactions(key, ChainID, nonce, options.TxsPerBlock)
			if err != nil {
				return nil, err
			}
			nonce += uint64(len(txs))
			block := SyntheticBlock(n, parent, txs, withdrawals(n, options.Withdrawals))
			blocks = append(blocks, block)
			parent = block.Hash()
			if n == end {
				break
			}
		}
		return blocks, nil
	}
}

// MustLoad runs a BlockLoader and panics on failure
func MustLoad(loader BlockLoader) []*types.Block {
	blocks, err := loader()
	if err != nil {
		panic(err)
	}
	return blocks
}

// SyntheticBlock assembles a block with every header field of its fork set and consistent transaction and
// withdrawal roots. A nil withdrawals slice builds a london block: base fee but no withdrawals, blob or beacon
// fields, since later headers can't omit the withdrawals root. Otherwise the header is a cancun one.
func SyntheticBlock(n uint64, parent common.Hash, txs []*types.Transaction, withdrawals []*types.Withdrawal) *types.Block {
	header := &types.Header{
		ParentHash:  parent,
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    common.BigToAddress(new(big.Int).SetUint64(0xc0ffee)),
		Root:        crypto.Keccak256Hash(Marker(n), []byte("state")),
		TxHash:      types.DeriveSha(types.Transactions(txs), trie.NewStackTrie(nil)),
		ReceiptHash: crypto.Keccak256Hash(Marker(n), []byte("receipts")),
		Bloom:       types.BytesToBloom(crypto.Keccak256(Marker(n))),
		Difficulty:  new(big.Int),
		Number:      new(big.Int).SetUint64(n),
		GasLimit:    30_000_000,
		GasUsed:     uint64(len(txs)) * 21_000,
		Time:        1_700_000_000 + n*12,
		Extra:       Marker(n),
		MixDigest:   crypto.Keccak256Hash(Marker(n), []byte("randao")),
		Nonce:       types.BlockNonce{},
		BaseFee:     big.NewInt(int64(1_000_000_000 + n)),
	}
	if withdrawals != nil {
		var (
			root          = types.DeriveSha(types.Withdrawals(withdrawals), trie.NewStackTrie(nil))
			blobGasUsed   = uint64(131072)
			excessBlobGas = n * 10
			beaconRoot    = crypto.Keccak256Hash(Marker(n), []byte("beacon"))
		)
		header.WithdrawalsHash = &root
		header.BlobGasUsed = &blobGasUsed
		header.ExcessBlobGas = &excessBlobGas
		header.ParentBeaconRoot = &beaconRoot
	}
	return types.NewBlockWithHeader(header).WithBody(types.Body{
		Transactions: txs,
		Withdrawals:  withdrawals,
	})
}

func withdrawals(n uint64, count int) []*types.Withdrawal {
	if count < 0 {
		return nil
	}
	ws := make([]*types.Withdrawal, count)
	for i := range ws {
		ws[i] = &types.Withdrawal{
			Index:     n*100 + uint64(i),
			Validator: uint64(i),
			Address:   common.BigToAddress(new(big.Int).SetUint64(0xbeef + uint64(i))),
			Amount:    32_000_000_000 + n,
		}
	}
	return ws
}
