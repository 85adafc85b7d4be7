package anytrain

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/JasonZHM/magic-microlensing/anyconv"
	"github.com/JasonZHM/magic-microlensing/anydata"
	"github.com/JasonZHM/magic-microlensing/anyenc"
	"github.com/JasonZHM/magic-microlensing/anygen"
	"github.com/JasonZHM/magic-microlensing/anysgd"
	"github.com/JasonZHM/magic-microlensing/anysolve"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

// Model names stored in Config.Model.
const (
	ModelEncoder   = "encoder"
	ModelGenerator = "generator"
)

// NoLoad is the Config.Load value of a fresh experiment.
const NoLoad = -1

// Config is the full configuration of a training run.
//
// A Config is a plain value: it is built once from
// defaults and flags, then passed by value to everything
// that needs it.
type Config struct {
	Model string `json:"model"`

	Iterations int     `json:"niters"`
	LR         float64 `json:"lr"`
	BatchSize  int     `json:"batch_size"`

	Dataset   string `json:"dataset"`
	SaveDir   string `json:"save"`
	LogDir    string `json:"log_dir"`
	MetricsDB string `json:"metrics_db"`

	// Load is the id of an experiment to resume, or NoLoad.
	Load   int   `json:"load"`
	Resume int   `json:"resume"`
	Seed   int64 `json:"random_seed"`

	Latent    int `json:"latents"`
	Units     int `json:"units"`
	GenLayers int `json:"gen_layers"`

	Encoder       string `json:"encoder"`
	GridPoints    int    `json:"grid_points"`
	ResBlocks     int    `json:"res_blocks"`
	HiddenSize    int    `json:"hidden_size"`
	Hidden        int    `json:"hidden"`
	Bidirectional bool   `json:"bidirectional"`
	BidirMerge    string `json:"bidir_merge"`

	Depth      int `json:"depth"`
	EvenWindow int `json:"window_even"`
	RandWindow int `json:"window_rand"`

	CheckpointEvery int `json:"checkpoint_every"`
	TrainSize       int `json:"train_size"`
	TestSize        int `json:"test_size"`

	MaxGradNorm float64 `json:"max_grad_norm"`
	LRDecay     float64 `json:"lr_decay"`
	MinLR       float64 `json:"min_lr"`
	Optimizer   string  `json:"optimizer"`

	RTol    float64 `json:"rtol"`
	ATol    float64 `json:"atol"`
	Adjoint bool    `json:"adjoint"`

	Precision string `json:"precision"`
	Debug     bool   `json:"debug"`
}

// DefaultEncoderConfig returns the settings of the
// encoder experiments.
func DefaultEncoderConfig() Config {
	return Config{
		Model:           ModelEncoder,
		Iterations:      1000,
		LR:              4e-6,
		BatchSize:       128,
		Dataset:         "random-even-batch-0.db",
		SaveDir:         "experiments",
		LogDir:          "logs",
		Load:            NoLoad,
		Seed:            42,
		Latent:          32,
		Encoder:         anyenc.KindConv,
		GridPoints:      2048,
		ResBlocks:       15,
		HiddenSize:      128,
		Hidden:          3,
		BidirMerge:      anyenc.MergeMean,
		Depth:           3,
		EvenWindow:      10,
		RandWindow:      2,
		CheckpointEvery: 20,
		TestSize:        1024,
		MaxGradNorm:     20,
		LRDecay:         0.99,
		Optimizer:       "adam",
		RTol:            anysolve.DefaultRTol,
		ATol:            anysolve.DefaultATol,
		Precision:       "float64",
	}
}

// DefaultGeneratorConfig returns the settings of the
// generator experiments.
//
// The generator trains at a constant rate without
// clipping and checkpoints once per epoch.
func DefaultGeneratorConfig() Config {
	return Config{
		Model:      ModelGenerator,
		Iterations: 500,
		LR:         4e-6,
		BatchSize:  128,
		Dataset:    "random-even-batch-0.db",
		SaveDir:    "experiments",
		LogDir:     "logs",
		Load:       NoLoad,
		Seed:       42,
		Latent:     32,
		Units:      1024,
		GenLayers:  5,
		TrainSize:  2048,
		TestSize:   1024,
		LRDecay:    1,
		Optimizer:  "adam",
		RTol:       anysolve.DefaultRTol,
		ATol:       anysolve.DefaultATol,
		Precision:  "float64",
	}
}

// ParseFlags parses command-line flags on top of base.
func ParseFlags(name string, base Config, args []string) (Config, error) {
	cfg := base
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.IntVar(&cfg.Iterations, "niters", cfg.Iterations, "number of epochs")
	fs.Float64Var(&cfg.LR, "lr", cfg.LR, "starting learning rate")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "mini-batch size")
	fs.StringVar(&cfg.Dataset, "dataset", cfg.Dataset, "path of the dataset database")
	fs.StringVar(&cfg.SaveDir, "save", cfg.SaveDir, "directory for checkpoints")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for log files")
	fs.StringVar(&cfg.MetricsDB, "metrics-db", cfg.MetricsDB, "sqlite metrics database (empty to disable)")
	fs.IntVar(&cfg.Load, "load", cfg.Load, "id of the experiment to load (-1 for a new experiment)")
	fs.IntVar(&cfg.Resume, "resume", cfg.Resume, "epoch to resume from")
	fs.Int64Var(&cfg.Seed, "random-seed", cfg.Seed, "random seed")
	fs.IntVar(&cfg.Latent, "latents", cfg.Latent, "dimension of the latent state")
	fs.IntVar(&cfg.TestSize, "test-size", cfg.TestSize, "number of held-out samples")
	fs.Float64Var(&cfg.MaxGradNorm, "max-grad-norm", cfg.MaxGradNorm, "gradient norm bound (0 to disable)")
	fs.Float64Var(&cfg.LRDecay, "lr-decay", cfg.LRDecay, "learning rate decay per epoch")
	fs.Float64Var(&cfg.MinLR, "min-lr", cfg.MinLR, "lowest learning rate (0 for lr/10)")
	fs.StringVar(&cfg.Optimizer, "optimizer", cfg.Optimizer, "adam, rmsprop, momentum or sgd")
	fs.Float64Var(&cfg.RTol, "rtol", cfg.RTol, "solver relative tolerance")
	fs.Float64Var(&cfg.ATol, "atol", cfg.ATol, "solver absolute tolerance")
	fs.BoolVar(&cfg.Adjoint, "adjoint", cfg.Adjoint, "use adjoint gradients through solves")
	fs.StringVar(&cfg.Precision, "precision", cfg.Precision, "float32 or float64")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "print activation statistics")
	switch base.Model {
	case ModelEncoder:
		fs.StringVar(&cfg.Encoder, "encoder", cfg.Encoder, "encoder variant: conv or cde")
		fs.IntVar(&cfg.GridPoints, "grid-points", cfg.GridPoints, "path samples fed to the conv encoder")
		fs.IntVar(&cfg.ResBlocks, "res-blocks", cfg.ResBlocks, "residual blocks in the conv encoder")
		fs.IntVar(&cfg.HiddenSize, "hidden-size", cfg.HiddenSize, "width of the CDE field")
		fs.IntVar(&cfg.Hidden, "hidden", cfg.Hidden, "hidden layers of the CDE field")
		fs.BoolVar(&cfg.Bidirectional, "bidirectional", cfg.Bidirectional, "also integrate the CDE backward")
		fs.StringVar(&cfg.BidirMerge, "bidir-merge", cfg.BidirMerge,
			"combine bidirectional end states: mean or gate")
		fs.IntVar(&cfg.Depth, "depth", cfg.Depth, "log-signature depth")
		fs.IntVar(&cfg.EvenWindow, "window-even", cfg.EvenWindow, "log-signature window for even curves")
		fs.IntVar(&cfg.RandWindow, "window-rand", cfg.RandWindow, "log-signature window for irregular curves")
		fs.IntVar(&cfg.CheckpointEvery, "checkpoint-every", cfg.CheckpointEvery, "steps between checkpoints")
	case ModelGenerator:
		fs.IntVar(&cfg.Units, "units", cfg.Units, "units per layer of the ODE function")
		fs.IntVar(&cfg.GenLayers, "gen-layers", cfg.GenLayers, "hidden layers of the ODE function")
		fs.IntVar(&cfg.TrainSize, "train-size", cfg.TrainSize, "number of training samples")
		fs.IntVar(&cfg.CheckpointEvery, "checkpoint-every", cfg.CheckpointEvery,
			"steps between checkpoints (0 for once per epoch)")
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("%s: unexpected arguments %v", name, fs.Args())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks for invalid settings.
func (c Config) Validate() error {
	switch c.Model {
	case ModelEncoder, ModelGenerator:
	default:
		return fmt.Errorf("unknown model %q", c.Model)
	}
	switch {
	case c.Iterations < 0:
		return errors.New("niters must be non-negative")
	case c.LR <= 0:
		return errors.New("lr must be positive")
	case c.BatchSize <= 0:
		return errors.New("batch size must be positive")
	case c.Latent <= 0:
		return errors.New("latents must be positive")
	case c.Resume < 0:
		return errors.New("resume epoch must be non-negative")
	case c.Load < NoLoad:
		return fmt.Errorf("invalid experiment id %d", c.Load)
	case c.CheckpointEvery < 0:
		return errors.New("checkpoint interval must be non-negative")
	case c.TestSize < 0 || c.TrainSize < 0:
		return errors.New("sample counts must be non-negative")
	case c.MaxGradNorm < 0:
		return errors.New("max grad norm must be non-negative")
	case c.LRDecay <= 0 || c.LRDecay > 1:
		return errors.New("lr decay must be in (0, 1]")
	case c.MinLR < 0:
		return errors.New("min lr must be non-negative")
	case c.RTol <= 0 || c.ATol <= 0:
		return errors.New("solver tolerances must be positive")
	case c.SaveDir == "":
		return errors.New("save directory is required")
	}
	if _, err := c.Creator(); err != nil {
		return err
	}
	if _, err := c.Transformer(); err != nil {
		return err
	}
	if c.Model == ModelEncoder {
		switch c.Encoder {
		case anyenc.KindConv, anyenc.KindCDE:
		default:
			return fmt.Errorf("unknown encoder %q", c.Encoder)
		}
		switch c.BidirMerge {
		case anyenc.MergeMean, anyenc.MergeGate:
		default:
			return fmt.Errorf("unknown bidirectional merge %q", c.BidirMerge)
		}
		if c.GridPoints < 2 || c.Depth < 1 || c.EvenWindow < 1 || c.RandWindow < 1 {
			return errors.New("grid points, depth and windows must be positive")
		}
		if c.CheckpointEvery == 0 {
			return errors.New("checkpoint interval must be positive")
		}
	} else if c.Units <= 0 || c.GenLayers < 0 {
		return errors.New("units must be positive and gen layers non-negative")
	}
	return nil
}

// Creator returns the vector creator for the configured
// precision.
func (c Config) Creator() (anyvec.Creator, error) {
	switch c.Precision {
	case "float64", "":
		return anyvec64.DefaultCreator{}, nil
	case "float32":
		return anyvec32.DefaultCreator{}, nil
	default:
		return nil, fmt.Errorf("unknown precision %q", c.Precision)
	}
}

// Transformer creates a fresh optimizer.
// It returns nil for plain SGD.
func (c Config) Transformer() (anysgd.Transformer, error) {
	switch c.Optimizer {
	case "adam", "":
		return &anysgd.Adam{}, nil
	case "rmsprop":
		return &anysgd.RMSProp{}, nil
	case "momentum":
		return &anysgd.Momentum{Momentum: 0.9}, nil
	case "sgd":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", c.Optimizer)
	}
}

// Rater returns the learning rate schedule.
//
// The rate decays once per epoch and never drops below
// MinLR, or LR/10 when MinLR is zero.
func (c Config) Rater() anysgd.Rater {
	if c.LRDecay == 1 {
		return anysgd.ConstRater(c.LR)
	}
	lowest := c.MinLR
	if lowest == 0 {
		lowest = c.LR / 10
	}
	return &anysgd.DecayRater{Base: c.LR, Decay: c.LRDecay, Min: lowest}
}

// SolverOptions returns the integrator settings.
func (c Config) SolverOptions() anysolve.Options {
	opts := anysolve.DefaultOptions()
	opts.RTol = c.RTol
	opts.ATol = c.ATol
	opts.Adjoint = c.Adjoint
	return opts
}

// EncoderOptions returns the encoder preprocessing
// settings.
func (c Config) EncoderOptions() anydata.EncoderOptions {
	opts := anydata.DefaultEncoderOptions()
	opts.TestSize = c.TestSize
	opts.Depth = c.Depth
	opts.EvenWindow = c.EvenWindow
	opts.RandWindow = c.RandWindow
	return opts
}

// GeneratorOptions returns the generator preprocessing
// settings.
func (c Config) GeneratorOptions() anydata.GeneratorOptions {
	return anydata.GeneratorOptions{TrainSize: c.TrainSize, TestSize: c.TestSize}
}

// EncoderConfig returns the architecture of an encoder
// for data with the given shape.
func (c Config) EncoderConfig(channels, outputs int) anyenc.Config {
	cfg := anyenc.DefaultConfig(channels, outputs)
	cfg.Kind = c.Encoder
	cfg.Latent = c.Latent
	cfg.GridPoints = c.GridPoints
	cfg.ResBlocks = c.ResBlocks
	cfg.HiddenSize = c.HiddenSize
	cfg.Hidden = c.Hidden
	cfg.Bidirectional = c.Bidirectional
	cfg.Merge = c.BidirMerge
	cfg.Solver = c.SolverOptions()
	cfg.Rand = c.NewRand()
	if c.Debug && c.Encoder == anyenc.KindConv {
		fc := anyconv.DefaultFeaturizerConfig(c.GridPoints, c.Latent)
		fc.ResBlocks = c.ResBlocks
		fc.Debug = true
		cfg.Featurizer = &fc
	}
	return cfg
}

// GeneratorConfig returns the architecture of a generator
// for data with the given shape.
func (c Config) GeneratorConfig(labels, channels int) anygen.Config {
	cfg := anygen.DefaultConfig(labels, channels)
	cfg.Latent = c.Latent
	cfg.Units = c.Units
	cfg.GenLayers = c.GenLayers
	cfg.Solver = c.SolverOptions()
	cfg.Rand = c.NewRand()
	return cfg
}

// NewRand returns a fresh source seeded with c.Seed.
func (c Config) NewRand() *rand.Rand {
	return rand.New(rand.NewSource(c.Seed))
}

// CheckpointPath returns the checkpoint file of an
// experiment.
func (c Config) CheckpointPath(id int) string {
	return filepath.Join(c.SaveDir, fmt.Sprintf("experiment_%d.ckpt", id))
}

// LogPath returns the log file of an experiment.
func (c Config) LogPath(id int) string {
	return filepath.Join(c.LogDir, fmt.Sprintf("%s_%d.log", c.Model, id))
}

// MarshalIndent encodes the config for logs.
func (c Config) MarshalIndent() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
