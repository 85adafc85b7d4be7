package anytrain

import (
	"fmt"

	"github.com/JasonZHM/magic-microlensing/anydata"
	"github.com/JasonZHM/magic-microlensing/anygen"
	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anysgd"
)

// TrainGenerator trains a generator on preprocessed data.
//
// With cfg.CheckpointEvery set to 0, the generator is
// checkpointed and evaluated at the start of every epoch.
func TrainGenerator(cfg Config, data *anydata.GeneratorData, sink Sink,
	done <-chan struct{}) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Model != ModelGenerator {
		return fmt.Errorf("train generator: config is for a %s", cfg.Model)
	}
	if len(data.Train) == 0 {
		return fmt.Errorf("train generator: no training samples")
	}
	c, err := cfg.Creator()
	if err != nil {
		return err
	}
	genCfg := cfg.GeneratorConfig(data.Labels, data.Channels)
	gen, err := anygen.New(c, genCfg)
	if err != nil {
		return err
	}
	exp, err := newExperiment(cfg, sink, anynn.NamedParameters("", gen))
	if err != nil {
		return err
	}
	defer exp.Close()
	if err := exp.Restore(); err != nil {
		return err
	}
	exp.Logger.Printf("Generator with %d labels, %d times, %d train samples",
		data.Labels, len(data.Times), len(data.Train))

	trainer := &anygen.Trainer{
		Generator: gen,
		Times:     data.Times,
		Params:    gen.Parameters(),
	}
	transformer, err := cfg.Transformer()
	if err != nil {
		return err
	}
	samples := append(anygen.SampleList{}, data.Train...)
	sched := newSchedule(cfg, samples.Len())
	every := cfg.CheckpointEvery
	if every == 0 {
		every = sched.Batches
	}
	sgd := &anysgd.SGD{
		Fetcher:      trainer,
		Gradienter:   trainer,
		Transformer:  transformer,
		Samples:      samples,
		Rater:        cfg.Rater(),
		Rand:         genCfg.Rand,
		BatchSize:    cfg.BatchSize,
		MaxGradNorm:  cfg.MaxGradNorm,
		NumProcessed: cfg.Resume * samples.Len(),
	}
	sgd.StepFunc = func() error {
		step := float64(sched.Step)
		exp.Logger.Printf("batch %d/%d, loss %g", sched.Index(), sched.Batches,
			trainer.LastCost)
		err := exp.Scalars(step, map[string]float64{
			"gradient_norm":   sgd.LastGradNorm,
			"learning_rate":   sgd.LastRate,
			"loss/batch_loss": trainer.LastCost,
		})
		if err != nil {
			return err
		}
		if sched.Step%every != 0 {
			return nil
		}
		if err := exp.Save(sched.Epoch(), sched.Step); err != nil {
			return err
		}
		return evaluateGenerator(exp, trainer, data, sched)
	}

	if err := sched.run(sgd, done); err != nil {
		return err
	}
	return exp.Save(sched.Epoch(), sched.Step)
}

func evaluateGenerator(exp *experiment, trainer *anygen.Trainer, data *anydata.GeneratorData,
	sched *schedule) error {
	if len(data.Test) == 0 {
		return nil
	}
	loss, err := trainer.Evaluate(data.Test)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	exp.Logger.Printf("Epoch %d, Batch %d, Test Loss %g", sched.Epoch(), sched.Index(), loss)
	step := float64(sched.Step)
	if err := exp.Sink.Scalar("loss/test_loss", step, loss); err != nil {
		return err
	}
	return exp.Histograms(step)
}

// LoadGenerator rebuilds a generator from a checkpoint.
func LoadGenerator(ckpt *Checkpoint, labels, channels int) (*anygen.Generator,
	*CompatibilityWarning, error) {
	c, err := ckpt.Config.Creator()
	if err != nil {
		return nil, nil, err
	}
	gen, err := anygen.New(c, ckpt.Config.GeneratorConfig(labels, channels))
	if err != nil {
		return nil, nil, err
	}
	warning, err := ApplyState(anynn.NamedParameters("", gen), ckpt.State)
	if err != nil {
		return nil, nil, err
	}
	return gen, warning, nil
}
