package anydata

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.db")

	store, err := OpenStore(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	a := &Array{Shape: []int{2, 3, 2}, Data: []float64{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12.5,
	}}
	if err := store.WriteArray(ctx, "a", a); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := store.ReadArray(ctx, "a")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(loaded, a) {
		t.Fatalf("expected %v but got %v", a, loaded)
	}

	a.Data[0] = -1
	if err := store.WriteArray(ctx, "a", a); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	loaded, err = store.ReadArray(ctx, "a")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if loaded.Data[0] != -1 {
		t.Fatalf("overwrite not applied: %v", loaded.Data)
	}

	if _, err := store.ReadArray(ctx, "missing"); !errors.Is(err, ErrNoArray) {
		t.Fatalf("expected ErrNoArray but got %v", err)
	}
	names, err := store.Names(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"a"}) {
		t.Fatalf("unexpected names %v", names)
	}

	bad := &Array{Shape: []int{2, 2}, Data: []float64{1, 2, 3}}
	if err := store.WriteArray(ctx, "bad", bad); err == nil {
		t.Fatal("expected error for inconsistent shape")
	}
}

func TestDatasetSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "synthetic.db")
	data := Synthetic(6, 20, 1)
	if err := data.Save(ctx, path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, data) {
		t.Fatal("datasets differ")
	}

	data.XRand = nil
	path = filepath.Join(t.TempDir(), "even.db")
	if err := data.Save(ctx, path); err != nil {
		t.Fatal(err)
	}
	loaded, err = Load(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.XRand != nil {
		t.Fatal("expected no irregular curves")
	}
}
