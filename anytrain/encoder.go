package anytrain

import (
	"fmt"

	"github.com/JasonZHM/magic-microlensing/anydata"
	"github.com/JasonZHM/magic-microlensing/anyenc"
	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anysgd"
	"github.com/unixpickle/anydiff"
)

// Learning rate multipliers of the encoder parameter
// groups. The vector field trains at the base rate.
const (
	InitialRateScale = 100
	ReadoutRateScale = 100
)

// TrainEncoder trains an encoder on preprocessed data.
//
// Training stops after cfg.Iterations epochs or when done
// is closed; either way a final checkpoint is written.
func TrainEncoder(cfg Config, data *anydata.EncoderData, sink Sink,
	done <-chan struct{}) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Model != ModelEncoder {
		return fmt.Errorf("train encoder: config is for a %s", cfg.Model)
	}
	if len(data.Train) == 0 {
		return fmt.Errorf("train encoder: no training samples")
	}
	if data.Outputs != 2 {
		return fmt.Errorf("train encoder: expected log q and log s targets, got %d outputs",
			data.Outputs)
	}
	c, err := cfg.Creator()
	if err != nil {
		return err
	}
	encCfg := cfg.EncoderConfig(data.Channels, data.Outputs)
	enc, err := anyenc.New(c, encCfg)
	if err != nil {
		return err
	}
	exp, err := newExperiment(cfg, sink, anynn.NamedParameters("", enc))
	if err != nil {
		return err
	}
	defer exp.Close()
	if err := exp.Restore(); err != nil {
		return err
	}
	exp.Logger.Printf("Encoder %s with %d channels, %d train samples",
		cfg.Encoder, data.Channels, len(data.Train))

	divisors := anyenc.Log10Divisors(data.Outputs)
	trainer := &anyenc.Trainer{
		Encoder:  enc,
		Params:   enc.Parameters(),
		Divisors: divisors,
	}
	transformer, err := cfg.Transformer()
	if err != nil {
		return err
	}
	samples := append(anyenc.SampleList{}, data.Train...)
	sched := newSchedule(cfg, samples.Len())
	sgd := &anysgd.SGD{
		Fetcher:      trainer,
		Gradienter:   trainer,
		Transformer:  transformer,
		Samples:      samples,
		Rater:        cfg.Rater(),
		Rand:         encCfg.Rand,
		BatchSize:    cfg.BatchSize,
		MaxGradNorm:  cfg.MaxGradNorm,
		Scales:       encoderScales(enc.ParamGroups()),
		NumProcessed: cfg.Resume * samples.Len(),
	}
	sgd.StatusFunc = func(batch anysgd.SampleList) error {
		if sched.Index() != 0 {
			return nil
		}
		epoch := sched.Epoch()
		rate := sgd.Rater.Rate(float64(epoch))
		exp.Logger.Printf("Epoch %d, Learning Rate %g", epoch, rate)
		return exp.Sink.Scalar("learning_rate", float64(epoch), rate)
	}
	sgd.StepFunc = func() error {
		step := float64(sched.Step)
		exp.Logger.Printf("batch %d/%d, loss %g, mse_log10q %g, mse_log10s %g",
			sched.Index(), sched.Batches, trainer.LastCost,
			trainer.LastChannelMSE[0], trainer.LastChannelMSE[1])
		err := exp.Scalars(step, map[string]float64{
			"gradient_norm":        sgd.LastGradNorm,
			"loss/batch_loss":      trainer.LastCost,
			"mse/batch_mse_log10q": trainer.LastChannelMSE[0],
			"mse/batch_mse_log10s": trainer.LastChannelMSE[1],
		})
		if err != nil {
			return err
		}
		if sched.Step%cfg.CheckpointEvery != 0 {
			return nil
		}
		if err := exp.Save(sched.Epoch(), sched.Step); err != nil {
			return err
		}
		return evaluateEncoder(exp, trainer, data, step/float64(cfg.CheckpointEvery))
	}

	if err := sched.run(sgd, done); err != nil {
		return err
	}
	return exp.Save(sched.Epoch(), sched.Step)
}

func encoderScales(groups *anyenc.Groups) map[*anydiff.Var]float64 {
	res := map[*anydiff.Var]float64{}
	for _, v := range groups.Initial {
		res[v] = InitialRateScale
	}
	for _, v := range groups.Readout {
		res[v] = ReadoutRateScale
	}
	return res
}

func evaluateEncoder(exp *experiment, trainer *anyenc.Trainer, data *anydata.EncoderData,
	step float64) error {
	if len(data.TestEven) == 0 {
		return nil
	}
	bs := exp.Config.BatchSize
	even, err := trainer.Evaluate(data.TestEven, bs, trainer.Divisors)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	scalars := map[string]float64{
		"loss/test_loss":      even.Loss,
		"mse/test_mse_log10q": even.ChannelMSE[0],
		"mse/test_mse_log10s": even.ChannelMSE[1],
	}
	msg := fmt.Sprintf("Epoch %g, Test Loss %g, mse_log10q %g, mse_log10s %g",
		step, even.Loss, even.ChannelMSE[0], even.ChannelMSE[1])
	if len(data.TestRand) > 0 {
		random, err := trainer.Evaluate(data.TestRand, bs, trainer.Divisors)
		if err != nil {
			return fmt.Errorf("evaluate irregular: %w", err)
		}
		scalars["loss/test_loss_rand"] = random.Loss
		scalars["mse/test_mse_log10q_rand"] = random.ChannelMSE[0]
		scalars["mse/test_mse_log10s_rand"] = random.ChannelMSE[1]
		msg += fmt.Sprintf(", loss_rand %g, mse_log10q_rand %g, mse_log10s_rand %g",
			random.Loss, random.ChannelMSE[0], random.ChannelMSE[1])
	}
	exp.Logger.Println(msg)
	if err := exp.Scalars(step, scalars); err != nil {
		return err
	}
	return exp.Histograms(step)
}

// LoadEncoder rebuilds an encoder from a checkpoint.
//
// The channel and output counts come from the data the
// encoder is applied to, as they are not part of the
// configuration.
func LoadEncoder(ckpt *Checkpoint, channels, outputs int) (anyenc.Encoder,
	*CompatibilityWarning, error) {
	c, err := ckpt.Config.Creator()
	if err != nil {
		return nil, nil, err
	}
	enc, err := anyenc.New(c, ckpt.Config.EncoderConfig(channels, outputs))
	if err != nil {
		return nil, nil, err
	}
	warning, err := ApplyState(anynn.NamedParameters("", enc), ckpt.State)
	if err != nil {
		return nil, nil, err
	}
	return enc, warning, nil
}
