package nodeop

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/fdymylja/blockexport/conversions"
	"github.com/fdymylja/blockexport/interfaces"
	"github.com/fdymylja/blockexport/status"
)

// MethodBlockByNumber is the json-rpc method used to pull blocks
const MethodBlockByNumber = "eth_getBlockByNumber"

// FetchBlockByNumber pulls the block with the given number from the node including full transaction objects.
// A null response fails with status.ErrNotFound, every error of the caller with status.ErrTransport.
func FetchBlockByNumber(ctx context.Context, caller interfaces.Caller, blockNumber uint64) (*interfaces.RawBlock, error) {
	var block *interfaces.RawBlock
	err := caller.CallContext(ctx, &block, MethodBlockByNumber, conversions.BlockNumberArg(blockNumber), true)
	if err != nil {
		return nil, status.NewErrBlock(blockNumber, status.ErrTransport, err)
	}
	if block == nil {
		return nil, status.NewErrBlock(blockNumber, status.ErrNotFound, nil)
	}
	return block, nil
}

// Options defines the parameters of a Fetcher
type Options struct {
	// RequestsPerSecond caps the rate of requests sent to the node, 0 disables the limit
	RequestsPerSecond float64
	// Burst is the number of requests allowed above the rate, defaults to 1 when a rate is set
	Burst int
	// Observe is called with the duration of every request, it can be nil
	Observe func(d time.Duration, err error)
}

// Fetcher pulls raw blocks from a node. It is safe for concurrent use as long as the Caller is.
type Fetcher struct {
	caller  interfaces.Caller
	limiter *rate.Limiter
	observe func(d time.Duration, err error)
}

var _ interfaces.BlockFetcher = (*Fetcher)(nil)

// NewFetcher builds a Fetcher on top of caller
func NewFetcher(caller interfaces.Caller, options Options) *Fetcher {
	f := &Fetcher{
		caller:  caller,
		observe: options.Observe,
	}
	if options.RequestsPerSecond > 0 {
		burst := options.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), burst)
	}
	return f
}

// Fetch pulls a block by number, waiting for the rate limiter first when one is configured
func (f *Fetcher) Fetch(ctx context.Context, blockNumber uint64) (block *interfaces.RawBlock, err error) {
	if f.limiter != nil {
		if err = f.limiter.Wait(ctx); err != nil {
			return nil, status.NewErrBlock(blockNumber, status.ErrTransport, err)
		}
	}
	start := time.Now()
	block, err = FetchBlockByNumber(ctx, f.caller, blockNumber)
	if f.observe != nil {
		f.observe(time.Since(start), err)
	}
	return block, err
}
