// interfaces.go lists the collaborators the export pipeline depends on
package interfaces

import (
	"context"
)

// Caller defines the subset of a json-rpc client used to query ethereum nodes, *rpc.Client implements it
type Caller interface {
	// CallContext performs a json-rpc call with the given arguments and unmarshals the result into result.
	// A json null result leaves a pointer result untouched.
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// BlockFetcher defines the behaviour of the types used to pull raw blocks by number
type BlockFetcher interface {
	// Fetch pulls the block with the given number including full transaction bodies
	Fetch(ctx context.Context, blockNumber uint64) (*RawBlock, error)
}
