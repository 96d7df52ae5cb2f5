package conversions

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fdymylja/utils"
)

// BlockNumberArg converts a block number to the hex quantity expected by eth_getBlockByNumber
func BlockNumberArg(blockNumber uint64) string {
	return hexutil.EncodeUint64(blockNumber)
}

// ParseBlockNumberArg converts a block number argument back to uint64, the argument must be a 0x prefixed quantity
func ParseBlockNumberArg(arg interface{}) (blockNumber uint64, err error) {
	defer utils.WrapErrorP(&err)
	str, ok := arg.(string)
	if !ok {
		return 0, fmt.Errorf("block number argument is %T, not a string", arg)
	}
	return hexutil.DecodeUint64(str)
}
