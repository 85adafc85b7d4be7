package anytrain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JasonZHM/magic-microlensing/anynn"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c Checkpoint
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeCheckpoint)
}

// A StateEntry is one named parameter value.
type StateEntry struct {
	Name string

	// Shape is the logical layout of Values.
	// Nil means a flat vector of len(Values).
	Shape  []int
	Values []float64
}

// Dims returns Shape, or the flat length if Shape is nil.
func (s StateEntry) Dims() []int {
	if s.Shape != nil {
		return s.Shape
	}
	return []int{len(s.Values)}
}

// A StateDict is an ordered snapshot of named parameters.
type StateDict []StateEntry

// Snapshot copies the current parameter values.
func Snapshot(named []anynn.NamedParam) StateDict {
	res := make(StateDict, len(named))
	for i, n := range named {
		res[i] = StateEntry{
			Name:   n.Name,
			Shape:  append([]int{}, n.Dims()...),
			Values: anynn.Floats(n.Param.Vector),
		}
	}
	return res
}

type stateHeader struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

// A Checkpoint stores the configuration of a run along
// with its parameters.
type Checkpoint struct {
	Config Config
	Epoch  int
	Step   int
	State  StateDict
}

// DeserializeCheckpoint deserializes a Checkpoint.
func DeserializeCheckpoint(d []byte) (*Checkpoint, error) {
	var cfgData, headerData, vecData serializer.Bytes
	var epoch, step serializer.Int
	err := serializer.DeserializeAny(d, &cfgData, &epoch, &step, &headerData, &vecData)
	if err != nil {
		return nil, essentials.AddCtx("deserialize checkpoint", err)
	}
	res := &Checkpoint{Epoch: int(epoch), Step: int(step)}
	if err := json.Unmarshal(cfgData, &res.Config); err != nil {
		return nil, essentials.AddCtx("deserialize checkpoint", err)
	}
	var headers []stateHeader
	if err := json.Unmarshal(headerData, &headers); err != nil {
		return nil, essentials.AddCtx("deserialize checkpoint", err)
	}
	vecs, err := serializer.DeserializeSlice(vecData)
	if err != nil {
		return nil, essentials.AddCtx("deserialize checkpoint", err)
	}
	if len(vecs) != len(headers) {
		return nil, errors.New("deserialize checkpoint: header count mismatch")
	}
	for i, obj := range vecs {
		vec, ok := obj.(*anyvecsave.S)
		if !ok {
			return nil, fmt.Errorf("deserialize checkpoint: unexpected %T", obj)
		}
		entry := StateEntry{
			Name:   headers[i].Name,
			Shape:  headers[i].Shape,
			Values: anynn.Floats(vec.Vector),
		}
		if numel(entry.Dims()) != len(entry.Values) {
			return nil, fmt.Errorf("deserialize checkpoint: %s: shape %v holds %d values",
				entry.Name, entry.Shape, len(entry.Values))
		}
		res.State = append(res.State, entry)
	}
	return res, nil
}

// SerializerType returns the unique ID used to serialize
// a Checkpoint with the serializer package.
func (c *Checkpoint) SerializerType() string {
	return "github.com/JasonZHM/magic-microlensing/anytrain.Checkpoint"
}

// Serialize serializes the Checkpoint.
//
// Parameters are always stored in float64 so that a run
// may be resumed at another precision.
func (c *Checkpoint) Serialize() ([]byte, error) {
	cfgData, err := json.Marshal(c.Config)
	if err != nil {
		return nil, err
	}
	headers := make([]stateHeader, len(c.State))
	vecs := make([]serializer.Serializer, len(c.State))
	for i, entry := range c.State {
		headers[i] = stateHeader{Name: entry.Name, Shape: entry.Dims()}
		vec := anyvec64.MakeVectorData(append([]float64{}, entry.Values...))
		vecs[i] = &anyvecsave.S{Vector: vec}
	}
	headerData, err := json.Marshal(headers)
	if err != nil {
		return nil, err
	}
	vecData, err := serializer.SerializeSlice(vecs)
	if err != nil {
		return nil, err
	}
	return serializer.SerializeAny(
		serializer.Bytes(cfgData),
		serializer.Int(c.Epoch),
		serializer.Int(c.Step),
		serializer.Bytes(headerData),
		serializer.Bytes(vecData),
	)
}

// SaveCheckpoint writes a checkpoint file.
//
// The file is written next to path and renamed into
// place, so readers never observe a partial checkpoint.
func SaveCheckpoint(path string, c *Checkpoint) error {
	data, err := serializer.SerializeWithType(c)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint file.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	obj, err := serializer.DeserializeWithType(data)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	res, ok := obj.(*Checkpoint)
	if !ok {
		return nil, fmt.Errorf("load checkpoint %s: unexpected %T", path, obj)
	}
	return res, nil
}

// A CompatibilityWarning reports checkpoint keys which
// did not match the model.
// It is not fatal: unknown keys are ignored and missing
// parameters keep their current values.
type CompatibilityWarning struct {
	Missing []string
	Unknown []string
}

func (c *CompatibilityWarning) Error() string {
	var parts []string
	if len(c.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(c.Missing, ", "))
	}
	if len(c.Unknown) > 0 {
		parts = append(parts, "unknown "+strings.Join(c.Unknown, ", "))
	}
	return "checkpoint keys differ from model: " + strings.Join(parts, "; ")
}

// A ParamShapeError is returned when a checkpoint entry
// matches a parameter name but not its shape.
// Entries are never reshaped, even when the number of
// values agrees.
type ParamShapeError struct {
	Name     string
	Expected []int
	Actual   []int
}

func (p *ParamShapeError) Error() string {
	return fmt.Sprintf("parameter %s: checkpoint has shape %v, model has %v",
		p.Name, p.Actual, p.Expected)
}

// ApplyState copies checkpoint values into the named
// parameters.
//
// Every matching entry is checked before any parameter is
// modified, so a *ParamShapeError leaves the model
// untouched.
// If the key sets differ, a *CompatibilityWarning is
// returned along with a nil error.
func ApplyState(named []anynn.NamedParam, state StateDict) (*CompatibilityWarning, error) {
	entries := map[string]StateEntry{}
	for _, e := range state {
		entries[e.Name] = e
	}
	known := map[string]bool{}
	warning := &CompatibilityWarning{}
	for _, n := range named {
		known[n.Name] = true
		entry, ok := entries[n.Name]
		if !ok {
			warning.Missing = append(warning.Missing, n.Name)
			continue
		}
		if !sameShape(entry, n) {
			return nil, &ParamShapeError{
				Name:     n.Name,
				Expected: n.Dims(),
				Actual:   entry.Dims(),
			}
		}
	}
	for name := range entries {
		if !known[name] {
			warning.Unknown = append(warning.Unknown, name)
		}
	}
	sort.Strings(warning.Unknown)

	for _, n := range named {
		if entry, ok := entries[n.Name]; ok {
			c := n.Param.Vector.Creator()
			n.Param.Vector.SetData(c.MakeNumericList(entry.Values))
		}
	}
	if len(warning.Missing) == 0 && len(warning.Unknown) == 0 {
		return nil, nil
	}
	return warning, nil
}

// sameShape compares full layouts when the entry has one,
// and flat lengths otherwise.
func sameShape(entry StateEntry, param anynn.NamedParam) bool {
	if len(entry.Values) != param.Param.Vector.Len() {
		return false
	}
	if entry.Shape == nil {
		return true
	}
	expected := param.Dims()
	if len(entry.Shape) != len(expected) {
		return false
	}
	for i, d := range expected {
		if entry.Shape[i] != d {
			return false
		}
	}
	return true
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
