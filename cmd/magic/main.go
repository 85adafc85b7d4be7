package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/JasonZHM/magic-microlensing/anydata"
	"github.com/JasonZHM/magic-microlensing/anyenc"
	"github.com/JasonZHM/magic-microlensing/anygen"
	"github.com/JasonZHM/magic-microlensing/anytrain"
	"github.com/unixpickle/rip"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "enc":
		return runEncoder(ctx, args[1:])
	case "gen":
		return runGenerator(ctx, args[1:])
	case "eval":
		return runEval(ctx, args[1:])
	case "synth":
		return runSynth(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runEncoder(ctx context.Context, args []string) error {
	cfg, err := anytrain.ParseFlags("enc", anytrain.DefaultEncoderConfig(), args)
	if err != nil {
		return err
	}
	dataset, err := anydata.Load(ctx, cfg.Dataset)
	if err != nil {
		return err
	}
	log.Println("Preprocessing...")
	data, err := anydata.EncoderSamples(dataset, cfg.EncoderOptions())
	if err != nil {
		return err
	}
	sink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	log.Println("Press ctrl+c once to stop...")
	return anytrain.TrainEncoder(cfg, data, sink, rip.NewRIP().Chan())
}

func runGenerator(ctx context.Context, args []string) error {
	cfg, err := anytrain.ParseFlags("gen", anytrain.DefaultGeneratorConfig(), args)
	if err != nil {
		return err
	}
	dataset, err := anydata.Load(ctx, cfg.Dataset)
	if err != nil {
		return err
	}
	log.Println("Preprocessing...")
	data, err := anydata.GeneratorSamples(dataset, cfg.GeneratorOptions())
	if err != nil {
		return err
	}
	sink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	log.Println("Press ctrl+c once to stop...")
	return anytrain.TrainGenerator(cfg, data, sink, rip.NewRIP().Chan())
}

func runEval(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	ckptPath := fs.String("ckpt", "", "checkpoint file")
	datasetPath := fs.String("dataset", "", "dataset database (default: the checkpoint's)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ckptPath == "" {
		return usageError("eval requires -ckpt")
	}
	ckpt, err := anytrain.LoadCheckpoint(*ckptPath)
	if err != nil {
		return err
	}
	cfg := ckpt.Config
	if *datasetPath != "" {
		cfg.Dataset = *datasetPath
	}
	dataset, err := anydata.Load(ctx, cfg.Dataset)
	if err != nil {
		return err
	}

	switch cfg.Model {
	case anytrain.ModelEncoder:
		data, err := anydata.EncoderSamples(dataset, cfg.EncoderOptions())
		if err != nil {
			return err
		}
		enc, warning, err := anytrain.LoadEncoder(ckpt, data.Channels, data.Outputs)
		if err != nil {
			return err
		}
		if warning != nil {
			log.Println("warning:", warning)
		}
		trainer := &anyenc.Trainer{Encoder: enc}
		divisors := anyenc.Log10Divisors(data.Outputs)
		for _, set := range []struct {
			name    string
			samples anyenc.SampleList
		}{{"even", data.TestEven}, {"irregular", data.TestRand}} {
			if len(set.samples) == 0 {
				continue
			}
			m, err := trainer.Evaluate(set.samples, cfg.BatchSize, divisors)
			if err != nil {
				return err
			}
			fmt.Printf("%s: loss %g, mse_log10q %g, mse_log10s %g\n", set.name, m.Loss,
				m.ChannelMSE[0], m.ChannelMSE[1])
		}
	case anytrain.ModelGenerator:
		data, err := anydata.GeneratorSamples(dataset, cfg.GeneratorOptions())
		if err != nil {
			return err
		}
		gen, warning, err := anytrain.LoadGenerator(ckpt, data.Labels, data.Channels)
		if err != nil {
			return err
		}
		if warning != nil {
			log.Println("warning:", warning)
		}
		trainer := &anygen.Trainer{Generator: gen, Times: data.Times}
		loss, err := trainer.Evaluate(data.Test)
		if err != nil {
			return err
		}
		fmt.Printf("test loss %g\n", loss)
	default:
		return fmt.Errorf("unknown model %q in checkpoint", cfg.Model)
	}
	return nil
}

func runSynth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	out := fs.String("out", "", "output dataset database")
	n := fs.Int("n", 4096, "number of light curves")
	length := fs.Int("length", 1000, "samples per evenly sampled curve")
	seed := fs.Int64("seed", 42, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return usageError("synth requires -out")
	}
	if *n <= 0 || *length < 2 {
		return fmt.Errorf("invalid size: n=%d length=%d", *n, *length)
	}
	dataset := anydata.Synthetic(*n, *length, *seed)
	if err := dataset.Save(ctx, *out); err != nil {
		return err
	}
	log.Printf("Wrote %d curves to %s", *n, *out)
	return nil
}

func openSink(ctx context.Context, cfg anytrain.Config) (anytrain.Sink, error) {
	if cfg.MetricsDB == "" {
		return anytrain.NopSink{}, nil
	}
	return anytrain.OpenSQLiteSink(ctx, cfg.MetricsDB)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: magic <enc|gen|eval|synth> [flags]", msg)
}
