package loaders

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/reusee/spawnvm/syscalls"
)

// Fixture is a transaction described in a TOML file, with the script to verify.
type Fixture struct {
	Root      RootSpec   `toml:"root"`
	Inputs    []CellSpec `toml:"inputs"`
	Outputs   []CellSpec `toml:"outputs"`
	CellDeps  []CellSpec `toml:"cell_deps"`
	Witnesses []CellSpec `toml:"witnesses"`
	Group     GroupSpec  `toml:"group"`
	MaxCycles uint64     `toml:"max_cycles"`
	Expect    *Expect    `toml:"expect"`

	// Dir is the directory containing the fixture file (set at load time).
	Dir string `toml:"-"`
}

type RootSpec struct {
	Source string   `toml:"source"`
	Place  string   `toml:"place"`
	Index  uint64   `toml:"index"`
	Offset uint64   `toml:"offset"`
	Length uint64   `toml:"length"`
	Argv   []string `toml:"argv"`
}

// CellSpec is one piece of data: a file relative to the fixture, a string, or hex.
type CellSpec struct {
	File string `toml:"file"`
	Data string `toml:"data"`
	Hex  string `toml:"hex"`
}

type GroupSpec struct {
	Inputs  []uint64 `toml:"inputs"`
	Outputs []uint64 `toml:"outputs"`
}

type Expect struct {
	ExitCode int8   `toml:"exit_code"`
	Error    string `toml:"error"`
}

func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var f Fixture
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	f.Dir = filepath.Dir(path)
	return &f, nil
}

var sourceNames = map[string]syscalls.Source{
	"":             syscalls.SourceCellDep,
	"input":        syscalls.SourceInput,
	"output":       syscalls.SourceOutput,
	"cell_dep":     syscalls.SourceCellDep,
	"group_input":  syscalls.SourceGroupInput,
	"group_output": syscalls.SourceGroupOutput,
}

var placeNames = map[string]syscalls.Place{
	"":          syscalls.PlaceCellData,
	"cell_data": syscalls.PlaceCellData,
	"witness":   syscalls.PlaceWitness,
}

func (f *Fixture) Locator() (loc syscalls.Locator, err error) {
	source, ok := sourceNames[f.Root.Source]
	if !ok {
		return loc, fmt.Errorf("unknown source: %s", f.Root.Source)
	}
	place, ok := placeNames[f.Root.Place]
	if !ok {
		return loc, fmt.Errorf("unknown place: %s", f.Root.Place)
	}
	return syscalls.Locator{
		Source: source,
		Place:  place,
		Index:  f.Root.Index,
		Offset: f.Root.Offset,
		Length: f.Root.Length,
	}, nil
}

func (f *Fixture) Argv() [][]byte {
	ret := make([][]byte, 0, len(f.Root.Argv))
	for _, arg := range f.Root.Argv {
		ret = append(ret, []byte(arg))
	}
	return ret
}

func (f *Fixture) TxData() (*TxData, error) {
	ret := &TxData{
		GroupInputs:  f.Group.Inputs,
		GroupOutputs: f.Group.Outputs,
	}
	for _, list := range []struct {
		specs  []CellSpec
		target *[][]byte
	}{
		{f.Inputs, &ret.Inputs},
		{f.Outputs, &ret.Outputs},
		{f.CellDeps, &ret.CellDeps},
		{f.Witnesses, &ret.Witnesses},
	} {
		for _, spec := range list.specs {
			data, err := spec.bytes(f.Dir)
			if err != nil {
				return nil, err
			}
			*list.target = append(*list.target, data)
		}
	}
	return ret, nil
}

func (c CellSpec) bytes(dir string) ([]byte, error) {
	switch {
	case c.File != "":
		path := c.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		return data, nil
	case c.Hex != "":
		data, err := hex.DecodeString(c.Hex)
		if err != nil {
			return nil, fmt.Errorf("decode hex: %w", err)
		}
		return data, nil
	}
	return []byte(c.Data), nil
}
