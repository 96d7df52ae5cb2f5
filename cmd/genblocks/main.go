// Command genblocks writes synthetic signed blocks as a block file, the same format blockexport produces.
// The files are fixtures for importers and for blockexport inspect.
package main

import (
	"bufio"
	"errors"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/fdymylja/blockexport/codec"
	"github.com/fdymylja/blockexport/mocks"
	"github.com/fdymylja/blockexport/output"
)

var app = &cli.App{
	Name:  "genblocks",
	Usage: "generate a block file of synthetic blocks",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file, a local path or s3://bucket/key", Required: true},
		&cli.Uint64Flag{Name: "start", Usage: "First block number", Value: 1},
		&cli.Uint64Flag{Name: "end", Usage: "Last block number, inclusive", Value: 100},
		&cli.IntFlag{Name: "txs", Usage: "Transactions per block", Value: 4},
		&cli.IntFlag{Name: "withdrawals", Usage: "Withdrawals per block, -1 for blocks without withdrawals", Value: 2},
	},
	Action: genBlocks,
}

func main() {
	if err := app.Run(os.Args); err != nil {
		log.Error("Fatal", "err", err)
		os.Exit(1)
	}
}

func genBlocks(c *cli.Context) (err error) {
	start, end := c.Uint64("start"), c.Uint64("end")
	if start > end {
		return errors.New("start block must not be greater than end block")
	}
	blocks, err := mocks.SyntheticChain(start, end, mocks.ChainOptions{
		TxsPerBlock: c.Int("txs"),
		Withdrawals: c.Int("withdrawals"),
	})()
	if err != nil {
		return err
	}

	w, err := output.Open(c.String("path"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(w)
	enc := codec.NewEncoder(bw)
	for _, b := range blocks {
		if err := enc.Encode(b); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	log.Info("Generated blocks", "path", c.String("path"), "blocks", len(blocks), "bytes", enc.BytesWritten())
	return nil
}
