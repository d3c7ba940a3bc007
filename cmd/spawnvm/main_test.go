package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/reusee/spawnvm/storages"
)

func TestPrepareClosesStores(t *testing.T) {
	*dbFile = filepath.Join(t.TempDir(), "cells.db")
	defer func() {
		*dbFile = ""
	}()

	fixtures, reqs, closers, err := prepare(context.Background(), []string{
		"../../verifiers/testdata/pipe.toml",
		"testdata/missing.toml",
	})
	if err == nil {
		t.Fatal("should fail")
	}
	if fixtures != nil || reqs != nil {
		t.Fatalf("got %v %v", fixtures, reqs)
	}
	// the store opened for the first fixture is still handed back
	if len(closers) != 1 {
		t.Fatalf("got %d", len(closers))
	}
	if err := closers[0](); err != nil {
		t.Fatal(err)
	}
}

func TestPrepareStore(t *testing.T) {
	*dbFile = filepath.Join(t.TempDir(), "cells.db")
	defer func() {
		*dbFile = ""
	}()

	_, reqs, closers, err := prepare(context.Background(), []string{
		"../../verifiers/testdata/pipe.toml",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		for _, fn := range closers {
			fn()
		}
	}()
	if _, ok := reqs[0].Data.(*storages.Store); !ok {
		t.Fatalf("got %T", reqs[0].Data)
	}
	data, err := reqs[0].Data.Load(reqs[0].Root.Source, reqs[0].Root.Place, reqs[0].Root.Index)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("empty root image")
	}
}
