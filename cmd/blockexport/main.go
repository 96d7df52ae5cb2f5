// Command blockexport exports ranges of ethereum blocks from a json-rpc node to rlp block files.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/urfave/cli/v2"

	"github.com/fdymylja/blockexport/codec"
	"github.com/fdymylja/blockexport/export"
	"github.com/fdymylja/blockexport/metrics"
	"github.com/fdymylja/blockexport/nodeop"
	"github.com/fdymylja/blockexport/output"
	"github.com/fdymylja/blockexport/status"
)

var (
	configFlag = &cli.PathFlag{
		Name:  "config",
		Usage: "YAML file with the export options, flags override it",
	}
	rpcFlag = &cli.StringFlag{
		Name:    "rpc",
		Aliases: []string{"r"},
		Usage:   "JSON-RPC endpoint of the node to export from (http, ws or ipc)",
	}
	pathFlag = &cli.StringFlag{
		Name:    "path",
		Aliases: []string{"p"},
		Usage:   "Output file, a local path or s3://bucket/key",
	}
	startFlag = &cli.Uint64Flag{
		Name:  "start",
		Usage: "First block to export",
		Value: defaultStart,
	}
	endFlag = &cli.Uint64Flag{
		Name:  "end",
		Usage: "Last block to export, inclusive",
	}
	concurrencyFlag = &cli.IntFlag{
		Name:  "concurrency",
		Usage: "Maximum number of block requests in flight",
		Value: defaultConfig().Concurrency,
	}
	chunkSizeFlag = &cli.Uint64Flag{
		Name:  "chunk-size",
		Usage: "Number of blocks fetched before they are written",
		Value: defaultConfig().ChunkSize,
	}
	rpsFlag = &cli.Float64Flag{
		Name:  "rps",
		Usage: "Maximum block requests per second, 0 disables the limit",
	}
	burstFlag = &cli.IntFlag{
		Name:  "burst",
		Usage: "Requests allowed above --rps",
	}
	verifyFlag = &cli.BoolFlag{
		Name:  "verify",
		Usage: "Verify the hash of every converted block against the node",
	}
	withdrawalsFlag = &cli.StringFlag{
		Name:  "withdrawals",
		Usage: "How withdrawals are written: empty (keep the container, drop entries) or copy",
		Value: defaultConfig().Withdrawals,
	}
	bufferFlag = &cli.StringFlag{
		Name:  "buffer",
		Usage: "Size of the output write buffer",
		Value: defaultBuffer,
	}
	progressFlag = &cli.DurationFlag{
		Name:  "progress",
		Usage: "Interval between progress logs",
		Value: defaultConfig().Progress,
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Serve prometheus metrics on this address, disabled when empty",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: defaultVerbosity,
	}
)

var blocksCommand = &cli.Command{
	Name:  "blocks",
	Usage: "Export a range of blocks to a file",
	Flags: []cli.Flag{
		configFlag, rpcFlag, pathFlag, startFlag, endFlag,
		concurrencyFlag, chunkSizeFlag, rpsFlag, burstFlag,
		verifyFlag, withdrawalsFlag, bufferFlag, progressFlag,
		metricsAddrFlag, verbosityFlag,
	},
	Action: exportBlocks,
}

var inspectCommand = &cli.Command{
	Name:  "inspect",
	Usage: "Decode a block file and report its content",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     pathFlag.Name,
			Aliases:  pathFlag.Aliases,
			Usage:    "Block file, a local path or s3://bucket/key",
			Required: true,
		},
		verbosityFlag,
	},
	Action: inspectBlocks,
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "blockexport",
		Usage:    "export ethereum blocks from a json-rpc node as concatenated rlp",
		Commands: []*cli.Command{blocksCommand, inspectCommand},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Error("Fatal", "err", err)
		os.Exit(1)
	}
}

func setupLogging(verbosity int) {
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), false)))
}

func exportBlocks(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	setupLogging(cfg.Verbosity)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	exportCfg, err := cfg.exportConfig()
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		exportCfg.Metrics = metrics.New()
		if err := exportCfg.Metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	}

	client, err := rpc.DialContext(ctx, cfg.RPC)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", status.ErrTransport, cfg.RPC, err)
	}
	defer client.Close()

	fetcher := nodeop.NewFetcher(client, nodeop.Options{
		RequestsPerSecond: cfg.RPS,
		Burst:             cfg.Burst,
		Observe:           exportCfg.Metrics.ObserveFetch,
	})
	exporter := export.New(fetcher, exportCfg)
	defer exporter.Close()

	rng := cfg.blockRange()
	log.Info("Connected to node", "rpc", cfg.RPC, "output", cfg.Path)
	if err := exporter.Export(ctx, rng, cfg.Path); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Export interrupted", "written", exporter.BlocksProcessed(), "total", exporter.TotalBlocks())
		}
		return err
	}
	return nil
}

func inspectBlocks(c *cli.Context) error {
	setupLogging(c.Int(verbosityFlag.Name))

	path := c.String(pathFlag.Name)
	r, err := output.OpenReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	var (
		dec         = codec.NewDecoder(r)
		first, last uint64
		txs         int
		withdrawals int
	)
	for {
		block, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("block file %s, after %d blocks: %w", path, dec.Decoded(), err)
		}
		if dec.Decoded() == 1 {
			first = block.NumberU64()
		}
		last = block.NumberU64()
		txs += len(block.Transactions())
		withdrawals += len(block.Withdrawals())
		log.Debug("Block", "number", block.NumberU64(), "hash", block.Hash(), "txs", len(block.Transactions()))
	}
	if dec.Decoded() == 0 {
		log.Info("Block file is empty", "path", path)
		return nil
	}
	log.Info("Block file", "path", path, "blocks", dec.Decoded(), "first", first, "last", last,
		"txs", txs, "withdrawals", withdrawals)
	return nil
}
