package loaders

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/reusee/spawnvm/syscalls"
)

func testTx() *TxData {
	return &TxData{
		Inputs:       [][]byte{[]byte("in0"), []byte("in1")},
		Outputs:      [][]byte{[]byte("out0")},
		CellDeps:     [][]byte{[]byte("0123456789")},
		Witnesses:    [][]byte{[]byte("w0"), []byte("w1")},
		GroupInputs:  []uint64{1},
		GroupOutputs: []uint64{0},
	}
}

func TestResolve(t *testing.T) {
	tx := testTx()
	for _, c := range []struct {
		loc   syscalls.Locator
		data  string
		errno syscalls.Errno
	}{
		{syscalls.Locator{Source: syscalls.SourceCellDep}, "0123456789", 0},
		{syscalls.Locator{Source: syscalls.SourceCellDep, Offset: 2, Length: 3}, "234", 0},
		{syscalls.Locator{Source: syscalls.SourceCellDep, Offset: 9}, "9", 0},
		{syscalls.Locator{Source: syscalls.SourceCellDep, Offset: 7, Length: 3}, "789", 0},
		{syscalls.Locator{Source: syscalls.SourceCellDep, Offset: 10}, "", syscalls.SliceOutOfBound},
		{syscalls.Locator{Source: syscalls.SourceCellDep, Offset: 8, Length: 3}, "", syscalls.SliceOutOfBound},
		{syscalls.Locator{Source: syscalls.SourceCellDep, Offset: 1, Length: ^uint64(0)}, "", syscalls.SliceOutOfBound},
		{syscalls.Locator{Source: syscalls.SourceCellDep, Index: 1}, "", syscalls.IndexOutOfBound},
		{syscalls.Locator{Source: syscalls.SourceInput, Index: 1}, "in1", 0},
		{syscalls.Locator{Source: syscalls.SourceOutput}, "out0", 0},
		{syscalls.Locator{Source: syscalls.SourceGroupInput}, "in1", 0},
		{syscalls.Locator{Source: syscalls.SourceGroupInput, Index: 1}, "", syscalls.IndexOutOfBound},
		{syscalls.Locator{Source: syscalls.SourceGroupOutput}, "out0", 0},
		{syscalls.Locator{Source: syscalls.SourceInput, Place: syscalls.PlaceWitness}, "w0", 0},
		{syscalls.Locator{Source: syscalls.SourceGroupInput, Place: syscalls.PlaceWitness}, "w1", 0},
		{syscalls.Locator{Source: 42}, "", syscalls.IndexOutOfBound},
	} {
		data, err := Resolve(tx, c.loc)
		if c.errno != 0 {
			if !errors.Is(err, c.errno) {
				t.Fatalf("%v: got %v", c.loc, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%v: %v", c.loc, err)
		}
		if string(data) != c.data {
			t.Fatalf("%v: got %q", c.loc, data)
		}
	}
}

func TestCells(t *testing.T) {
	tx := testTx()
	n := 0
	if err := tx.Cells(func(source syscalls.Source, place syscalls.Place, index uint64, data []byte) error {
		n++
		got, err := tx.Load(source, place, index)
		if err != nil {
			return err
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("got %q", got)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Fatalf("got %d", n)
	}
}

func TestLoadFixture(t *testing.T) {
	f, err := LoadFixture("testdata/fixture.toml")
	if err != nil {
		t.Fatal(err)
	}
	if f.MaxCycles != 10_000_000 {
		t.Fatalf("got %d", f.MaxCycles)
	}
	if f.Expect == nil || f.Expect.ExitCode != 2 {
		t.Fatal()
	}
	if argv := f.Argv(); len(argv) != 2 || string(argv[1]) != "b" {
		t.Fatalf("got %q", argv)
	}

	tx, err := f.TxData()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(tx.CellDeps[0]), "#!star") {
		t.Fatalf("got %q", tx.CellDeps[0])
	}
	if !bytes.Equal(tx.CellDeps[1], []byte{1, 2}) {
		t.Fatal()
	}

	loc, err := f.Locator()
	if err != nil {
		t.Fatal(err)
	}
	if loc.Source != syscalls.SourceCellDep || loc.Index != 0 {
		t.Fatalf("got %v", loc)
	}
	data, err := Resolve(tx, syscalls.Locator{Source: syscalls.SourceGroupInput})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "input1" {
		t.Fatalf("got %q", data)
	}
}

func TestFixtureBadSource(t *testing.T) {
	f := &Fixture{
		Root: RootSpec{
			Source: "foo",
		},
	}
	if _, err := f.Locator(); err == nil {
		t.Fatal("should fail")
	}
}
