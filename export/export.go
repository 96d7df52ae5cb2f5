// Package export pulls a range of blocks from a node and streams them, rlp encoded and in order, to an output.
//
// The range is processed one chunk at a time. Every block of a chunk is fetched and converted concurrently,
// bounded by a gate shared by the whole export, and the chunk is written in block number order once all of
// its blocks are ready. The output is flushed after every chunk: a failed export leaves exactly the chunks
// that completed before the failure.
package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/fdymylja/blockexport/blockrange"
	"github.com/fdymylja/blockexport/codec"
	"github.com/fdymylja/blockexport/convert"
	"github.com/fdymylja/blockexport/gate"
	"github.com/fdymylja/blockexport/interfaces"
	"github.com/fdymylja/blockexport/metrics"
	"github.com/fdymylja/blockexport/output"
	"github.com/fdymylja/blockexport/status"
)

const (
	// DefaultBufferSize is the size of the write buffer in front of the output
	DefaultBufferSize = 4 * 1024 * 1024
	// DefaultProgressInterval is the minimum time between two progress logs
	DefaultProgressInterval = 10 * time.Second
)

// Config is used to construct a new Exporter, zero values select the defaults
type Config struct {
	// ChunkSize is the number of blocks fetched before writing, defaults to blockrange.DefaultChunkSize
	ChunkSize uint64
	// Concurrency is the number of requests in flight at most, defaults to gate.DefaultConcurrency
	Concurrency int
	// BufferSize is the size of the output write buffer
	BufferSize int
	// Converter maps node blocks to canonical blocks
	Converter convert.Converter
	// ProgressInterval is the minimum time between two progress logs
	ProgressInterval time.Duration
	// Logger defaults to the root logger
	Logger log.Logger
	// Metrics is optional
	Metrics *metrics.Metrics
}

func (c Config) withDefaults() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = blockrange.DefaultChunkSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = gate.DefaultConcurrency
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = DefaultProgressInterval
	}
	if c.Logger == nil {
		c.Logger = log.Root()
	}
	return c
}

// Exporter writes ranges of blocks pulled through a BlockFetcher.
// Exports run by the same Exporter share its gate.
type Exporter struct {
	fetcher interfaces.BlockFetcher
	cfg     Config
	gate    *gate.Gate
	log     log.Logger

	totalBlocks     atomic.Uint64
	blocksProcessed atomic.Uint64
}

// New builds an Exporter
func New(fetcher interfaces.BlockFetcher, cfg Config) *Exporter {
	cfg = cfg.withDefaults()
	g := gate.New(cfg.Concurrency)
	if cfg.Metrics != nil {
		g.OnChange(cfg.Metrics.SetInFlight)
	}
	return &Exporter{
		fetcher: fetcher,
		cfg:     cfg,
		gate:    g,
		log:     cfg.Logger,
	}
}

// Gate returns the gate bounding the requests of the exporter
func (e *Exporter) Gate() *gate.Gate {
	return e.gate
}

// TotalBlocks returns the number of blocks of the last export started
func (e *Exporter) TotalBlocks() uint64 {
	return e.totalBlocks.Load()
}

// BlocksProcessed returns the number of blocks written by the last export started
func (e *Exporter) BlocksProcessed() uint64 {
	return e.blocksProcessed.Load()
}

// Close makes running and future exports fail with status.ErrClosed
func (e *Exporter) Close() {
	e.gate.Close()
}

// Export writes rng to target, a local path or an s3://bucket/key url.
// The target is created or truncated, failing to open or close it is status.ErrIO. When the export fails
// an s3 upload is aborted, a local file keeps the chunks written before the failure.
func (e *Exporter) Export(ctx context.Context, rng blockrange.Range, target string) (err error) {
	w, err := output.Open(target)
	if err != nil {
		return err
	}
	defer func() {
		err = closeOutput(w, target, err)
	}()
	return e.ExportTo(ctx, rng, w)
}

// closeOutput commits w if the export succeeded, otherwise it aborts w when possible and returns the export error
func closeOutput(w io.WriteCloser, target string, exportErr error) error {
	if exportErr != nil {
		if a, ok := w.(output.Aborter); ok {
			a.Abort(exportErr)
			return exportErr
		}
		if err := w.Close(); err != nil {
			log.Warn("Failed to close output", "target", target, "err", err)
		}
		return exportErr
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", status.ErrIO, target, err)
	}
	return nil
}

// ExportTo writes rng to w. It returns the first failure, blocks of the chunks completed before it are
// already written to w.
func (e *Exporter) ExportTo(ctx context.Context, rng blockrange.Range, w io.Writer) error {
	e.totalBlocks.Store(rng.Len())
	e.blocksProcessed.Store(0)

	bw := bufio.NewWriterSize(w, e.cfg.BufferSize)
	enc := codec.NewEncoder(bw)

	start := time.Now()
	lastLog := start
	e.log.Info("Exporting blocks", "range", rng, "blocks", rng.Len(), "chunk", e.cfg.ChunkSize, "concurrency", e.gate.Size())

	planner := rng.Chunks(e.cfg.ChunkSize)
	for chunk, ok := planner.Next(); ok; chunk, ok = planner.Next() {
		blocks, err := e.fetchChunk(ctx, chunk)
		if err != nil {
			e.log.Error("Export failed", "chunk", chunk, "err", err)
			return err
		}
		written := enc.BytesWritten()
		for _, block := range blocks {
			if err := enc.Encode(block); err != nil {
				return err
			}
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("%w: flush chunk %s: %w", status.ErrIO, chunk, err)
		}
		e.cfg.Metrics.ChunkWritten(len(blocks), enc.BytesWritten()-written)
		processed := e.blocksProcessed.Add(uint64(len(blocks)))
		e.log.Debug("Chunk written", "chunk", chunk, "bytes", enc.BytesWritten()-written)

		if now := time.Now(); now.Sub(lastLog) >= e.cfg.ProgressInterval {
			lastLog = now
			elapsed := now.Sub(start)
			e.log.Info("Export progress",
				"processed", processed,
				"remaining", rng.Len()-processed,
				"blk/s", fmt.Sprintf("%.2f", float64(processed)/elapsed.Seconds()),
				"elapsed", common.PrettyDuration(elapsed))
		}
	}

	e.log.Info("Export complete", "blocks", e.blocksProcessed.Load(), "bytes", enc.BytesWritten(),
		"elapsed", common.PrettyDuration(time.Since(start)))
	return nil
}

// fetchChunk fetches and converts every block of chunk, the result is in block number order
func (e *Exporter) fetchChunk(ctx context.Context, chunk blockrange.Chunk) ([]*types.Block, error) {
	results := make([]*types.Block, chunk.Len())
	g, gctx := errgroup.WithContext(ctx)
	for i, n := range chunk.Numbers() {
		i, n := i, n
		permit, err := e.gate.Acquire(gctx)
		if err != nil {
			// a failed task cancels gctx, its error is the cause
			if werr := g.Wait(); werr != nil {
				return nil, werr
			}
			return nil, err
		}
		g.Go(func() error {
			raw, err := e.fetcher.Fetch(gctx, n)
			permit.Release()
			if err != nil {
				return err
			}
			if raw == nil {
				return status.NewErrBlock(n, status.ErrNotFound, nil)
			}
			block, err := e.cfg.Converter.ConvertAt(n, raw)
			if err != nil {
				return err
			}
			results[i] = block
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
