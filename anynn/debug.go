package anynn

import (
	"log"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func init() {
	serializer.RegisterTypedDeserializer((&Debug{}).SerializerType(), DeserializeDebug)
}

// Debug passes its input through unchanged and logs a
// one-line summary of the activations flowing past it.
//
// It is inserted between featurizer stages when -debug is
// set, to spot exploding or dead activations.
type Debug struct {
	Name string

	// Logger defaults to the standard logger.
	Logger *log.Logger
}

// DeserializeDebug deserializes a Debug layer without a
// Logger.
func DeserializeDebug(d []byte) (*Debug, error) {
	return &Debug{Name: string(d)}, nil
}

// Apply logs the batch statistics and returns in.
func (d *Debug) Apply(in anydiff.Res, n int) anydiff.Res {
	values := Floats(in.Output())
	if len(values) == 0 {
		return in
	}
	mean, std := stat.MeanStdDev(values, nil)
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("%s: batch=%d size=%d mean=%.4g std=%.4g min=%.4g max=%.4g",
		d.Name, n, len(values)/n, mean, std, floats.Min(values), floats.Max(values))
	return in
}

// SerializerType returns the unique ID used to serialize
// a Debug layer with the serializer package.
func (d *Debug) SerializerType() string {
	return "github.com/JasonZHM/magic-microlensing/anynn.Debug"
}

// Serialize stores the layer's name.
func (d *Debug) Serialize() ([]byte, error) {
	return []byte(d.Name), nil
}
