package generators

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fdymylja/utils"
	"github.com/holiman/uint256"
)

// TxKinds lists the transaction types produced by SignedTransactions, in the order they are cycled
var TxKinds = []uint8{
	types.LegacyTxType,
	types.AccessListTxType,
	types.DynamicFeeTxType,
	types.BlobTxType,
}

// SignedTransactions builds n transactions signed by key, cycling through TxKinds. Nonces start at nonce.
func SignedTransactions(key *ecdsa.PrivateKey, chainID *big.Int, nonce uint64, n int) (txs []*types.Transaction, err error) {
	defer utils.WrapErrorP(&err)
	signer := types.LatestSignerForChainID(chainID)
	txs = make([]*types.Transaction, n)
	for i := range txs {
		data := txData(TxKinds[i%len(TxKinds)], chainID, nonce+uint64(i))
		txs[i], err = types.SignNewTx(key, signer, data)
		if err != nil {
			return nil, err
		}
	}
	return txs, nil
}

// txData fills the fields of a transaction of the given type with deterministic values derived from nonce
func txData(kind uint8, chainID *big.Int, nonce uint64) types.TxData {
	to := common.BigToAddress(new(big.Int).SetUint64(0xdead0000 + nonce))
	value := big.NewInt(int64(nonce) + 1)
	data := []byte{byte(nonce), 0xca, 0xfe}
	accessList := types.AccessList{{
		Address:     to,
		StorageKeys: []common.Hash{common.BigToHash(new(big.Int).SetUint64(nonce))},
	}}
	switch kind {
	case types.AccessListTxType:
		return &types.AccessListTx{
			ChainID:    chainID,
			Nonce:      nonce,
			GasPrice:   big.NewInt(2_000_000_000),
			Gas:        50_000,
			To:         &to,
			Value:      value,
			Data:       data,
			AccessList: accessList,
		}
	case types.DynamicFeeTxType:
		return &types.DynamicFeeTx{
			ChainID:    chainID,
			Nonce:      nonce,
			GasTipCap:  big.NewInt(1_000_000_000),
			GasFeeCap:  big.NewInt(3_000_000_000),
			Gas:        50_000,
			To:         &to,
			Value:      value,
			Data:       data,
			AccessList: accessList,
		}
	case types.BlobTxType:
		return &types.BlobTx{
			ChainID:    uint256.MustFromBig(chainID),
			Nonce:      nonce,
			GasTipCap:  uint256.NewInt(1_000_000_000),
			GasFeeCap:  uint256.NewInt(3_000_000_000),
			Gas:        50_000,
			To:         to,
			Value:      uint256.MustFromBig(value),
			Data:       data,
			AccessList: accessList,
			BlobFeeCap: uint256.NewInt(1),
			BlobHashes: []common.Hash{blobHash(nonce)},
		}
	default:
		return &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: big.NewInt(2_000_000_000),
			Gas:      21_000,
			To:       &to,
			Value:    value,
			Data:     data,
		}
	}
}

// blobHash returns a hash carrying the kzg commitment version byte
func blobHash(nonce uint64) common.Hash {
	h := common.BigToHash(new(big.Int).SetUint64(nonce + 1))
	h[0] = 0x01
	return h
}
