// Package anytrain runs encoder and generator training
// experiments: it owns checkpoints, log files and metric
// sinks, and drives anysgd over the model trainers.
package anytrain

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/JasonZHM/magic-microlensing/anysgd"
)

// experiment is the bookkeeping shared by every training
// run.
type experiment struct {
	ID     int
	Config Config
	Logger *log.Logger
	Sink   Sink
	Named  []anynn.NamedParam

	logFile *os.File
}

func newExperiment(cfg Config, sink Sink, named []anynn.NamedParam) (*experiment, error) {
	id := cfg.Load
	if id == NoLoad {
		id = rand.New(rand.NewSource(time.Now().UnixNano())).Intn(100000)
	}
	if sink == nil {
		sink = NopSink{}
	}
	if err := os.MkdirAll(cfg.SaveDir, 0o755); err != nil {
		return nil, err
	}
	res := &experiment{
		ID:     id,
		Config: cfg,
		Sink:   sink,
		Named:  named,
	}
	out := io.Writer(os.Stderr)
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogPath(id), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		res.logFile = f
		out = io.MultiWriter(os.Stderr, f)
	}
	res.Logger = log.New(out, "", log.LstdFlags)
	res.Logger.Printf("Experiment %d", id)
	return res, nil
}

// CheckpointPath returns the experiment's checkpoint file.
func (e *experiment) CheckpointPath() string {
	return e.Config.CheckpointPath(e.ID)
}

// Restore loads the experiment's checkpoint when the run
// resumes an earlier experiment.
func (e *experiment) Restore() error {
	if e.Config.Load == NoLoad {
		return nil
	}
	path := e.CheckpointPath()
	ckpt, err := LoadCheckpoint(path)
	if err != nil {
		return err
	}
	warning, err := ApplyState(e.Named, ckpt.State)
	if err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	if warning != nil {
		e.Logger.Printf("warning: %v", warning)
	}
	e.Logger.Printf("Loaded %s (epoch %d, step %d)", path, ckpt.Epoch, ckpt.Step)
	return nil
}

// Save writes the current parameters.
func (e *experiment) Save(epoch, step int) error {
	path := e.CheckpointPath()
	err := SaveCheckpoint(path, &Checkpoint{
		Config: e.Config,
		Epoch:  epoch,
		Step:   step,
		State:  Snapshot(e.Named),
	})
	if err != nil {
		return err
	}
	e.Logger.Printf("Model saved to %s", path)
	return nil
}

// Scalars records several scalars at one step.
func (e *experiment) Scalars(step float64, values map[string]float64) error {
	for name, value := range values {
		if err := e.Sink.Scalar(name, step, value); err != nil {
			return fmt.Errorf("record %s: %w", name, err)
		}
	}
	return nil
}

// Histograms records the distribution of every parameter.
func (e *experiment) Histograms(step float64) error {
	for _, n := range e.Named {
		if err := e.Sink.Histogram(n.Name, step, anynn.Floats(n.Param.Vector)); err != nil {
			return fmt.Errorf("record %s: %w", n.Name, err)
		}
	}
	return nil
}

// Close closes the log file.
// The sink belongs to the caller.
func (e *experiment) Close() error {
	if e.logFile == nil {
		return nil
	}
	return e.logFile.Close()
}

// schedule tracks the global step of a run.
//
// Epochs never share a batch, so an epoch is exactly
// batches steps long.
type schedule struct {
	Batches int
	Step    int
	End     int
}

func newSchedule(cfg Config, samples int) *schedule {
	batches := (samples + cfg.BatchSize - 1) / cfg.BatchSize
	return &schedule{
		Batches: batches,
		Step:    cfg.Resume * batches,
		End:     (cfg.Resume + cfg.Iterations) * batches,
	}
}

// Epoch returns the epoch of the current step.
func (s *schedule) Epoch() int {
	return s.Step / s.Batches
}

// Index returns the batch index within the epoch.
func (s *schedule) Index() int {
	return s.Step % s.Batches
}

// run drives s until the schedule ends or done is closed.
func (s *schedule) run(sgd *anysgd.SGD, done <-chan struct{}) error {
	if s.Step >= s.End {
		return nil
	}
	select {
	case <-done:
		return nil
	default:
	}
	stop := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(stop) }) }
	defer finish()
	go func() {
		select {
		case <-done:
			finish()
		case <-stop:
		}
	}()

	stepFunc := sgd.StepFunc
	sgd.StepFunc = func() error {
		if stepFunc != nil {
			if err := stepFunc(); err != nil {
				return err
			}
		}
		s.Step++
		if s.Step >= s.End {
			finish()
		}
		return nil
	}
	return sgd.Run(stop)
}
