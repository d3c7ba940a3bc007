package syscalls

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrnoValues(t *testing.T) {
	// the numbers are part of the script ABI
	for errno, want := range map[Errno]uint8{
		Success:          0,
		IndexOutOfBound:  1,
		SliceOutOfBound:  3,
		WrongFormat:      4,
		InvalidPid:       5,
		InvalidFd:        6,
		OtherEndClosed:   7,
		TooManyInstances: 8,
		TooManyFds:       9,
		TooManyPipes:     10,
		DoubleWait:       13,
		LengthNotEnough:  17,
	} {
		if uint8(errno) != want {
			t.Fatalf("%v: got %d, want %d", errno, errno, want)
		}
	}
}

func TestErrnoClass(t *testing.T) {
	if TooManyInstances.Class() != Exhaustion {
		t.Fatal()
	}
	if TooManyPipes.Class() != Exhaustion {
		t.Fatal()
	}
	if OtherEndClosed.Class() != Peer {
		t.Fatal()
	}
	if InvalidFd.Class() != Misuse {
		t.Fatal()
	}
	if DoubleWait.Class() != Misuse {
		t.Fatal()
	}
}

func TestErrnoOf(t *testing.T) {
	errno, ok := ErrnoOf(nil)
	if !ok || errno != Success {
		t.Fatal()
	}
	errno, ok = ErrnoOf(fmt.Errorf("spawn: %w", TooManyInstances))
	if !ok || errno != TooManyInstances {
		t.Fatalf("got %v", errno)
	}
	_, ok = ErrnoOf(errors.New("foo"))
	if ok {
		t.Fatal()
	}
	if !errors.Is(fmt.Errorf("x: %w", InvalidFd), InvalidFd) {
		t.Fatal()
	}
}

func TestCallNumbers(t *testing.T) {
	calls := []Call{
		Spawn{}, Pipe{}, Read{}, Write{}, Close{}, Wait{},
		InheritedFds{}, CurrentCycles{}, ProcessID{}, Yield{},
		SetContent{}, MemoryLimit{},
	}
	seen := make(map[uint64]bool)
	for _, call := range calls {
		if seen[call.Number()] {
			t.Fatalf("duplicated number %d", call.Number())
		}
		seen[call.Number()] = true
	}
	if (Spawn{}).Number() != 2601 {
		t.Fatal()
	}
}

func TestLocatorString(t *testing.T) {
	loc := Locator{
		Source: SourceCellDep,
		Index:  1,
		Offset: 2,
		Length: 3,
	}
	if s := loc.String(); s != "cell_dep[1].data[2:+3]" {
		t.Fatalf("got %s", s)
	}
}
