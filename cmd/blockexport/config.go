package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/fdymylja/blockexport/blockrange"
	"github.com/fdymylja/blockexport/convert"
	"github.com/fdymylja/blockexport/export"
	"github.com/fdymylja/blockexport/gate"
)

const (
	defaultStart     = 1
	defaultBuffer    = "4MB"
	defaultVerbosity = 3
)

// config defines the options of the blocks command. Values are read from the yaml file given with --config
// first, flags set on the command line override them.
type config struct {
	RPC         string            `yaml:"rpc"`
	Path        string            `yaml:"path"`
	Start       uint64            `yaml:"start"`
	End         *uint64           `yaml:"end"`
	Concurrency int               `yaml:"concurrency"`
	ChunkSize   uint64            `yaml:"chunk_size"`
	RPS         float64           `yaml:"rps"`
	Burst       int               `yaml:"burst"`
	Verify      bool              `yaml:"verify"`
	Withdrawals string            `yaml:"withdrawals"`
	Buffer      datasize.ByteSize `yaml:"buffer"`
	Progress    time.Duration     `yaml:"progress"`
	MetricsAddr string            `yaml:"metrics_addr"`
	Verbosity   int               `yaml:"verbosity"`
}

func defaultConfig() config {
	var buffer datasize.ByteSize
	_ = buffer.UnmarshalText([]byte(defaultBuffer))
	return config{
		Start:       defaultStart,
		Concurrency: gate.DefaultConcurrency,
		ChunkSize:   blockrange.DefaultChunkSize,
		Withdrawals: convert.WithdrawalsEmpty.String(),
		Buffer:      buffer,
		Progress:    export.DefaultProgressInterval,
		Verbosity:   defaultVerbosity,
	}
}

// readConfigFile decodes the yaml file at path over cfg, unknown keys are rejected
func readConfigFile(path string, cfg *config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

// loadConfig builds the configuration of the blocks command
func loadConfig(c *cli.Context) (*config, error) {
	cfg := defaultConfig()
	if c.IsSet(configFlag.Name) {
		if err := readConfigFile(c.Path(configFlag.Name), &cfg); err != nil {
			return nil, err
		}
	}

	if c.IsSet(rpcFlag.Name) {
		cfg.RPC = c.String(rpcFlag.Name)
	}
	if c.IsSet(pathFlag.Name) {
		cfg.Path = c.String(pathFlag.Name)
	}
	if c.IsSet(startFlag.Name) {
		cfg.Start = c.Uint64(startFlag.Name)
	}
	if c.IsSet(endFlag.Name) {
		end := c.Uint64(endFlag.Name)
		cfg.End = &end
	}
	if c.IsSet(concurrencyFlag.Name) {
		cfg.Concurrency = c.Int(concurrencyFlag.Name)
	}
	if c.IsSet(chunkSizeFlag.Name) {
		cfg.ChunkSize = c.Uint64(chunkSizeFlag.Name)
	}
	if c.IsSet(rpsFlag.Name) {
		cfg.RPS = c.Float64(rpsFlag.Name)
	}
	if c.IsSet(burstFlag.Name) {
		cfg.Burst = c.Int(burstFlag.Name)
	}
	if c.IsSet(verifyFlag.Name) {
		cfg.Verify = c.Bool(verifyFlag.Name)
	}
	if c.IsSet(withdrawalsFlag.Name) {
		cfg.Withdrawals = c.String(withdrawalsFlag.Name)
	}
	if c.IsSet(bufferFlag.Name) {
		if err := cfg.Buffer.UnmarshalText([]byte(c.String(bufferFlag.Name))); err != nil {
			return nil, fmt.Errorf("invalid --%s: %w", bufferFlag.Name, err)
		}
	}
	if c.IsSet(progressFlag.Name) {
		cfg.Progress = c.Duration(progressFlag.Name)
	}
	if c.IsSet(metricsAddrFlag.Name) {
		cfg.MetricsAddr = c.String(metricsAddrFlag.Name)
	}
	if c.IsSet(verbosityFlag.Name) {
		cfg.Verbosity = c.Int(verbosityFlag.Name)
	}
	return &cfg, cfg.validate()
}

func (cfg *config) validate() error {
	switch {
	case cfg.RPC == "":
		return errors.New("no rpc endpoint specified")
	case cfg.Path == "":
		return errors.New("no output path specified")
	case cfg.End == nil:
		return errors.New("no end block specified")
	case cfg.Concurrency <= 0:
		return fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	case cfg.ChunkSize == 0:
		return errors.New("chunk size must be positive")
	case cfg.ChunkSize > blockrange.MaxChunkSize:
		return fmt.Errorf("chunk size must be at most %d, got %d", blockrange.MaxChunkSize, cfg.ChunkSize)
	case cfg.Buffer.Bytes() == 0:
		return errors.New("buffer size must be positive")
	}
	if _, err := convert.ParseWithdrawalsMode(cfg.Withdrawals); err != nil {
		return err
	}
	return nil
}

// blockRange returns the inclusive range to export, validate must have succeeded
func (cfg *config) blockRange() blockrange.Range {
	return blockrange.New(cfg.Start, *cfg.End)
}

func (cfg *config) exportConfig() (export.Config, error) {
	mode, err := convert.ParseWithdrawalsMode(cfg.Withdrawals)
	if err != nil {
		return export.Config{}, err
	}
	return export.Config{
		ChunkSize:        cfg.ChunkSize,
		Concurrency:      cfg.Concurrency,
		BufferSize:       int(cfg.Buffer.Bytes()),
		Converter:        convert.Converter{Withdrawals: mode, Verify: cfg.Verify},
		ProgressInterval: cfg.Progress,
	}, nil
}
