package generators

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
)

func TestPrivateKeys(t *testing.T) {
	amount := 10
	keys, err := PrivateKeys(amount)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range keys {
		if k == nil {
			t.Fatal("nil key generated")
		}
	}
}

func TestSignedTransactions(t *testing.T) {
	chainID := big.NewInt(1337)
	txs, err := SignedTransactions(MustPrivateKey(), chainID, 5, 8)
	if err != nil {
		t.Fatal(err)
	}
	signer := types.LatestSignerForChainID(chainID)
	for i, tx := range txs {
		if tx.Type() != TxKinds[i%len(TxKinds)] {
			t.Fatalf("tx %d has type %d", i, tx.Type())
		}
		if tx.Nonce() != 5+uint64(i) {
			t.Fatalf("tx %d has nonce %d", i, tx.Nonce())
		}
		if _, err := types.Sender(signer, tx); err != nil {
			t.Fatalf("tx %d: %s", i, err)
		}
	}
}
