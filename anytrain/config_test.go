package anytrain

import (
	"testing"

	"github.com/JasonZHM/magic-microlensing/anysgd"
	"github.com/unixpickle/anyvec/anyvec32"
)

func TestParseFlags(t *testing.T) {
	cfg, err := ParseFlags("enc", DefaultEncoderConfig(), []string{
		"-lr", "0.01", "-encoder", "cde", "-batch-size", "4", "-load", "12", "-resume", "3",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LR != 0.01 || cfg.Encoder != "cde" || cfg.BatchSize != 4 || cfg.Load != 12 ||
		cfg.Resume != 3 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.GridPoints != 2048 || cfg.Seed != 42 {
		t.Error("defaults were not kept")
	}

	if _, err := ParseFlags("enc", DefaultEncoderConfig(), []string{"-encoder", "rnn"}); err == nil {
		t.Error("expected error for unknown encoder")
	}
	if _, err := ParseFlags("enc", DefaultEncoderConfig(), []string{"-units", "3"}); err == nil {
		t.Error("expected error for generator flag")
	}
	if _, err := ParseFlags("gen", DefaultGeneratorConfig(), []string{"extra"}); err == nil {
		t.Error("expected error for positional argument")
	}

	gen, err := ParseFlags("gen", DefaultGeneratorConfig(), []string{"-units", "16",
		"-precision", "float32"})
	if err != nil {
		t.Fatal(err)
	}
	if gen.Units != 16 {
		t.Errorf("unexpected units %d", gen.Units)
	}
	c, err := gen.Creator()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(anyvec32.DefaultCreator); !ok {
		t.Errorf("unexpected creator %T", c)
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.LR = 0 },
		func(c *Config) { c.BatchSize = 0 },
		func(c *Config) { c.LRDecay = 1.5 },
		func(c *Config) { c.Optimizer = "lbfgs" },
		func(c *Config) { c.Precision = "float16" },
		func(c *Config) { c.CheckpointEvery = 0 },
		func(c *Config) { c.Load = -2 },
		func(c *Config) { c.Model = "rnn" },
		func(c *Config) { c.BidirMerge = "max" },
	}
	for i, f := range bad {
		cfg := DefaultEncoderConfig()
		f(&cfg)
		if cfg.Validate() == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
	if err := DefaultGeneratorConfig().Validate(); err != nil {
		t.Error(err)
	}
}

func TestConfigRater(t *testing.T) {
	cfg := DefaultEncoderConfig()
	rater := cfg.Rater()
	if r := rater.Rate(0); r != cfg.LR*0.99 {
		t.Errorf("unexpected first rate %g", r)
	}
	if r := rater.Rate(10000); r != cfg.LR/10 {
		t.Errorf("rate should bottom out at lr/10, got %g", r)
	}
	gen := DefaultGeneratorConfig()
	if _, ok := gen.Rater().(anysgd.ConstRater); !ok {
		t.Error("generator should use a constant rate")
	}
}
