package loaders

import (
	"github.com/reusee/spawnvm/syscalls"
)

// ErrIndexOutOfBound is returned by data sources for indices past the end of a cell list.
var ErrIndexOutOfBound error = syscalls.IndexOutOfBound

// DataSource provides the raw bytes a locator points into.
type DataSource interface {
	Load(source syscalls.Source, place syscalls.Place, index uint64) ([]byte, error)
}

// Resolve returns the image bytes addressed by loc.
func Resolve(ds DataSource, loc syscalls.Locator) ([]byte, error) {
	data, err := ds.Load(loc.Source, loc.Place, loc.Index)
	if err != nil {
		return nil, err
	}
	size := uint64(len(data))
	if loc.Offset >= size {
		return nil, syscalls.SliceOutOfBound
	}
	if loc.Length == 0 {
		return data[loc.Offset:], nil
	}
	end := loc.Offset + loc.Length
	if end < loc.Offset || end > size {
		return nil, syscalls.SliceOutOfBound
	}
	return data[loc.Offset:end], nil
}
