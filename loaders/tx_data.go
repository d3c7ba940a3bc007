package loaders

import (
	"github.com/reusee/spawnvm/syscalls"
)

// TxData is the in-memory view of one transaction and the script group being verified.
type TxData struct {
	Inputs       [][]byte
	Outputs      [][]byte
	CellDeps     [][]byte
	Witnesses    [][]byte
	GroupInputs  []uint64
	GroupOutputs []uint64
}

var _ DataSource = new(TxData)

func (t *TxData) Load(source syscalls.Source, place syscalls.Place, index uint64) ([]byte, error) {
	switch place {
	case syscalls.PlaceCellData:
	case syscalls.PlaceWitness:
		return t.loadWitness(source, index)
	default:
		return nil, syscalls.IndexOutOfBound
	}

	switch source {
	case syscalls.SourceInput:
		return at(t.Inputs, index)
	case syscalls.SourceOutput:
		return at(t.Outputs, index)
	case syscalls.SourceCellDep:
		return at(t.CellDeps, index)
	case syscalls.SourceGroupInput:
		i, err := at(t.GroupInputs, index)
		if err != nil {
			return nil, err
		}
		return at(t.Inputs, i)
	case syscalls.SourceGroupOutput:
		i, err := at(t.GroupOutputs, index)
		if err != nil {
			return nil, err
		}
		return at(t.Outputs, i)
	}
	return nil, ErrIndexOutOfBound
}

// witnesses are indexed by transaction position, group sources map through the group
func (t *TxData) loadWitness(source syscalls.Source, index uint64) ([]byte, error) {
	switch source {
	case syscalls.SourceInput, syscalls.SourceOutput, syscalls.SourceCellDep:
		return at(t.Witnesses, index)
	case syscalls.SourceGroupInput:
		i, err := at(t.GroupInputs, index)
		if err != nil {
			return nil, err
		}
		return at(t.Witnesses, i)
	case syscalls.SourceGroupOutput:
		i, err := at(t.GroupOutputs, index)
		if err != nil {
			return nil, err
		}
		return at(t.Witnesses, i)
	}
	return nil, ErrIndexOutOfBound
}

func at[T any](list []T, index uint64) (ret T, err error) {
	if index >= uint64(len(list)) {
		return ret, ErrIndexOutOfBound
	}
	return list[index], nil
}

// Cells calls fn for every stored piece of data, in a fixed order.
func (t *TxData) Cells(fn func(source syscalls.Source, place syscalls.Place, index uint64, data []byte) error) error {
	for _, list := range []struct {
		source syscalls.Source
		place  syscalls.Place
		data   [][]byte
	}{
		{syscalls.SourceInput, syscalls.PlaceCellData, t.Inputs},
		{syscalls.SourceOutput, syscalls.PlaceCellData, t.Outputs},
		{syscalls.SourceCellDep, syscalls.PlaceCellData, t.CellDeps},
		{syscalls.SourceInput, syscalls.PlaceWitness, t.Witnesses},
	} {
		for i, data := range list.data {
			if err := fn(list.source, list.place, uint64(i), data); err != nil {
				return err
			}
		}
	}
	return nil
}
