package mocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/require"

	"github.com/fdymylja/blockexport/interfaces"
	"github.com/fdymylja/blockexport/status"
)

func TestSyntheticChain(t *testing.T) {
	blocks := MustLoad(SyntheticChain(5, 9, ChainOptions{TxsPerBlock: 5, Withdrawals: 3}))
	require.Len(t, blocks, 5)
	for i, b := range blocks {
		require.Equal(t, uint64(5+i), b.NumberU64())
		require.Equal(t, Marker(b.NumberU64()), b.Extra())
		require.Len(t, b.Transactions(), 5)
		require.Len(t, b.Withdrawals(), 3)
		require.Equal(t, b.TxHash(), types.DeriveSha(b.Transactions(), trie.NewStackTrie(nil)))
		if i > 0 {
			require.Equal(t, blocks[i-1].Hash(), b.ParentHash())
		}
	}
	// every transaction kind is represented
	kinds := map[uint8]bool{}
	for _, tx := range blocks[0].Transactions() {
		kinds[tx.Type()] = true
	}
	require.Len(t, kinds, 4)
}

func TestSyntheticChain_NoWithdrawals(t *testing.T) {
	blocks := MustLoad(SyntheticChain(1, 1, ChainOptions{Withdrawals: -1}))
	header := blocks[0].Header()
	require.Nil(t, blocks[0].Withdrawals())
	require.Nil(t, header.WithdrawalsHash)
	// a london header, later fork fields can't be encoded without the withdrawals root
	require.NotNil(t, header.BaseFee)
	require.Nil(t, header.BlobGasUsed)
	require.Nil(t, header.ExcessBlobGas)
	require.Nil(t, header.ParentBeaconRoot)
}

func TestSyntheticChain_RLPRoundTrip(t *testing.T) {
	for _, withdrawals := range []int{-1, 0, 2} {
		blocks := MustLoad(SyntheticChain(1, 3, ChainOptions{TxsPerBlock: 4, Withdrawals: withdrawals}))
		for _, b := range blocks {
			data, err := rlp.EncodeToBytes(b)
			require.NoError(t, err)
			decoded := new(types.Block)
			require.NoError(t, rlp.DecodeBytes(data, decoded), "withdrawals %d", withdrawals)
			require.Equal(t, b.Hash(), decoded.Hash())
			require.Equal(t, b.Extra(), decoded.Extra())
		}
	}
}

func call(ctx context.Context, node *Node, n string) (*interfaces.RawBlock, error) {
	var raw *interfaces.RawBlock
	err := node.CallContext(ctx, &raw, "eth_getBlockByNumber", n, true)
	return raw, err
}

func TestNode(t *testing.T) {
	blocks := MustLoad(SyntheticChain(1, 2, ChainOptions{TxsPerBlock: 2, Withdrawals: 1}))
	node := NewNode(blocks...)

	raw, err := call(context.Background(), node, "0x2")
	require.NoError(t, err)
	require.Equal(t, uint64(2), raw.NumberU64())
	require.Equal(t, blocks[1].Hash(), *raw.Hash)
	require.Len(t, raw.Transactions, 2)
	require.NotNil(t, raw.Withdrawals)

	raw, err = call(context.Background(), node, "0x3")
	require.NoError(t, err)
	require.Nil(t, raw)

	cause := errors.New("boom")
	node.FailAt(1, cause)
	_, err = call(context.Background(), node, "0x1")
	require.ErrorIs(t, err, cause)

	node.SetMutator(func(_ uint64, fields map[string]interface{}) { delete(fields, "withdrawals") })
	raw, err = call(context.Background(), node, "0x2")
	require.NoError(t, err)
	require.Nil(t, raw.Withdrawals)

	require.Equal(t, []uint64{2, 3, 1, 2}, node.Calls())
	require.Equal(t, 1, node.Peak())

	node.Close()
	_, err = call(context.Background(), node, "0x2")
	require.ErrorIs(t, err, status.ErrClosed)
}

func TestNode_Latency(t *testing.T) {
	node := NewNode(MustLoad(SyntheticChain(1, 1, ChainOptions{Withdrawals: -1}))...)
	node.SetLatency(1, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := call(ctx, node, "0x1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNode_UnsupportedCalls(t *testing.T) {
	node := NewNode()
	var out interface{}
	require.Error(t, node.CallContext(context.Background(), &out, "eth_blockNumber"))
	require.Error(t, node.CallContext(context.Background(), &out, "eth_getBlockByNumber", "0x1", false))
	require.Error(t, node.CallContext(context.Background(), &out, "eth_getBlockByNumber", 1, true))
}
