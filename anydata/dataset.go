package anydata

import (
	"context"
	"errors"
	"fmt"
)

// Array names used in dataset files.
const (
	NameY     = "Y"
	NameXEven = "X_even"
	NameXRand = "X_random"
)

// A Dataset holds the arrays of a light curve dataset.
//
// Y is (sample, label).
// XEven is (sample, time, channel) with evenly spaced
// observations; channel 0 is the observation time and
// channel 1 the magnitude.
// XRand has the same layout with irregular observations
// and may be nil.
type Dataset struct {
	Y     *Array
	XEven *Array
	XRand *Array
}

// Load reads a dataset file.
func Load(ctx context.Context, path string) (*Dataset, error) {
	store, err := OpenStore(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	defer store.Close()

	var res Dataset
	if res.Y, err = store.ReadArray(ctx, NameY); err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if res.XEven, err = store.ReadArray(ctx, NameXEven); err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	res.XRand, err = store.ReadArray(ctx, NameXRand)
	if err != nil && !errors.Is(err, ErrNoArray) {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return &res, nil
}

// Save writes the dataset to a file.
func (d *Dataset) Save(ctx context.Context, path string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	store, err := OpenStore(ctx, path)
	if err != nil {
		return err
	}
	arrays := map[string]*Array{NameY: d.Y, NameXEven: d.XEven}
	if d.XRand != nil {
		arrays[NameXRand] = d.XRand
	}
	for name, a := range arrays {
		if err := store.WriteArray(ctx, name, a); err != nil {
			store.Close()
			return err
		}
	}
	return store.Close()
}

// Validate checks that the arrays agree on the sample
// count and have the expected ranks.
func (d *Dataset) Validate() error {
	if d.Y == nil || d.XEven == nil {
		return errors.New("dataset requires Y and X_even")
	}
	if len(d.Y.Shape) != 2 {
		return fmt.Errorf("labels should have rank 2 but have shape %v", d.Y.Shape)
	}
	curves := []*Array{d.XEven}
	if d.XRand != nil {
		curves = append(curves, d.XRand)
	}
	for _, x := range curves {
		if len(x.Shape) != 3 || x.Shape[2] < 2 {
			return fmt.Errorf("light curves should be (sample, time, channel>=2) but got %v",
				x.Shape)
		}
		if x.Shape[0] != d.Y.Shape[0] {
			return fmt.Errorf("%d labels but %d light curves", d.Y.Shape[0], x.Shape[0])
		}
	}
	return nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return d.Y.Len()
}
