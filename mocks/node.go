package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fdymylja/blockexport/conversions"
	"github.com/fdymylja/blockexport/interfaces"
	"github.com/fdymylja/blockexport/status"
)

// Node emulates the block queries of an ethereum json-rpc node, it implements interfaces.Caller.
// Blocks are rendered the way eth_getBlockByNumber renders them with full transactions.
type Node struct {
	mu sync.Mutex

	closed   bool
	blocks   map[uint64]*types.Block
	latency  map[uint64]time.Duration
	failures map[uint64]error
	mutate   func(blockNumber uint64, fields map[string]interface{})

	calls    []uint64
	served   []uint64
	inFlight int
	peak     int
}

var _ interfaces.Caller = (*Node)(nil)

// NewNode builds a Node serving blocks
func NewNode(blocks ...*types.Block) *Node {
	n := &Node{
		blocks:   make(map[uint64]*types.Block, len(blocks)),
		latency:  make(map[uint64]time.Duration),
		failures: make(map[uint64]error),
	}
	for _, b := range blocks {
		n.blocks[b.NumberU64()] = b
	}
	return n
}

// SetLatency delays the response for blockNumber by d
func (n *Node) SetLatency(blockNumber uint64, d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.latency[blockNumber] = d
}

// FailAt makes requests for blockNumber fail with err
func (n *Node) FailAt(blockNumber uint64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[blockNumber] = err
}

// SetMutator registers f to edit the json fields of every block before it is sent
func (n *Node) SetMutator(f func(blockNumber uint64, fields map[string]interface{})) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mutate = f
}

// Calls returns the block numbers requested so far, in arrival order
func (n *Node) Calls() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint64(nil), n.calls...)
}

// Served returns the block numbers whose responses completed so far, in completion order
func (n *Node) Served() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint64(nil), n.served...)
}

// Peak returns the highest number of requests served at once
func (n *Node) Peak() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.peak
}

// Close makes the node refuse further requests
func (n *Node) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
}

// CallContext implements interfaces.Caller, only eth_getBlockByNumber with full transactions is supported
func (n *Node) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if method != "eth_getBlockByNumber" {
		return fmt.Errorf("the method %s does not exist/is not available", method)
	}
	if len(args) != 2 || args[1] != true {
		return fmt.Errorf("unexpected arguments %v", args)
	}
	blockNumber, err := conversions.ParseBlockNumberArg(args[0])
	if err != nil {
		return err
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return status.ErrClosed
	}
	n.calls = append(n.calls, blockNumber)
	n.inFlight++
	if n.inFlight > n.peak {
		n.peak = n.inFlight
	}
	delay, failure := n.latency[blockNumber], n.failures[blockNumber]
	block, mutate := n.blocks[blockNumber], n.mutate
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.inFlight--
		n.served = append(n.served, blockNumber)
		n.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failure != nil {
		return failure
	}
	if block == nil {
		return json.Unmarshal([]byte("null"), result)
	}
	fields, err := RPCMarshalBlock(block)
	if err != nil {
		return err
	}
	if mutate != nil {
		mutate(blockNumber, fields)
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

// RPCMarshalBlock renders block like eth_getBlockByNumber(number, true)
func RPCMarshalBlock(block *types.Block) (map[string]interface{}, error) {
	head := block.Header()
	fields := map[string]interface{}{
		"number":           (*hexutil.Big)(head.Number),
		"hash":             block.Hash(),
		"parentHash":       head.ParentHash,
		"nonce":            head.Nonce,
		"mixHash":          head.MixDigest,
		"sha3Uncles":       head.UncleHash,
		"logsBloom":        head.Bloom,
		"stateRoot":        head.Root,
		"miner":            head.Coinbase,
		"difficulty":       (*hexutil.Big)(head.Difficulty),
		"extraData":        hexutil.Bytes(head.Extra),
		"gasLimit":         hexutil.Uint64(head.GasLimit),
		"gasUsed":          hexutil.Uint64(head.GasUsed),
		"timestamp":        hexutil.Uint64(head.Time),
		"transactionsRoot": head.TxHash,
		"receiptsRoot":     head.ReceiptHash,
		"size":             hexutil.Uint64(block.Size()),
		"uncles":           []interface{}{},
	}
	if head.BaseFee != nil {
		fields["baseFeePerGas"] = (*hexutil.Big)(head.BaseFee)
	}
	if head.WithdrawalsHash != nil {
		fields["withdrawalsRoot"] = head.WithdrawalsHash
	}
	if head.BlobGasUsed != nil {
		fields["blobGasUsed"] = hexutil.Uint64(*head.BlobGasUsed)
	}
	if head.ExcessBlobGas != nil {
		fields["excessBlobGas"] = hexutil.Uint64(*head.ExcessBlobGas)
	}
	if head.ParentBeaconRoot != nil {
		fields["parentBeaconBlockRoot"] = head.ParentBeaconRoot
	}
	txs := make([]json.RawMessage, len(block.Transactions()))
	for i, tx := range block.Transactions() {
		data, err := tx.MarshalJSON()
		if err != nil {
			return nil, err
		}
		txs[i] = data
	}
	fields["transactions"] = txs
	if block.Withdrawals() != nil {
		fields["withdrawals"] = block.Withdrawals()
	}
	return fields, nil
}

// RawBlock renders block to json and decodes it back the way a Caller would, mutate can edit the json fields first
func RawBlock(block *types.Block, mutate func(fields map[string]interface{})) (*interfaces.RawBlock, error) {
	fields, err := RPCMarshalBlock(block)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(fields)
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	raw := new(interfaces.RawBlock)
	return raw, json.Unmarshal(data, raw)
}
