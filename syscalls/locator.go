package syscalls

import "fmt"

// Source selects which cell list a locator indexes.
type Source uint64

const (
	SourceInput       Source = 1
	SourceOutput      Source = 2
	SourceCellDep     Source = 3
	SourceGroupInput  Source = 0x0100000000000001
	SourceGroupOutput Source = 0x0100000000000002
)

func (s Source) String() string {
	switch s {
	case SourceInput:
		return "input"
	case SourceOutput:
		return "output"
	case SourceCellDep:
		return "cell_dep"
	case SourceGroupInput:
		return "group_input"
	case SourceGroupOutput:
		return "group_output"
	}
	return fmt.Sprintf("source(%#x)", uint64(s))
}

// Place selects cell data or the witness at the same index.
type Place uint64

const (
	PlaceCellData Place = 0
	PlaceWitness  Place = 1
)

// Locator addresses an executable image inside transaction data.
// Length 0 means up to the end of the data.
type Locator struct {
	Source Source
	Place  Place
	Index  uint64
	Offset uint64
	Length uint64
}

func (l Locator) String() string {
	place := "data"
	if l.Place == PlaceWitness {
		place = "witness"
	}
	return fmt.Sprintf("%s[%d].%s[%d:+%d]", l.Source, l.Index, place, l.Offset, l.Length)
}
