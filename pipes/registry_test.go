package pipes

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/reusee/spawnvm/limits"
	"github.com/reusee/spawnvm/syscalls"
)

func TestCreate(t *testing.T) {
	r := NewRegistry(limits.Default())
	table := NewFdTable(0)
	readFd, writeFd, err := r.Create(table)
	if err != nil {
		t.Fatal(err)
	}
	if readFd != 2 || writeFd != 3 {
		t.Fatalf("got %d %d", readFd, writeFd)
	}
	if Peer(readFd) != writeFd || Peer(writeFd) != readFd {
		t.Fatal()
	}
	if !IsReadEnd(readFd) || IsReadEnd(writeFd) {
		t.Fatal()
	}
	readFd, writeFd, err = r.Create(table)
	if err != nil {
		t.Fatal(err)
	}
	if readFd != 4 || writeFd != 5 {
		t.Fatalf("got %d %d", readFd, writeFd)
	}
	if stats := r.Stats(); stats.LivePipes != 2 || stats.OwnedFds != 4 || stats.FdsCreated != 4 {
		t.Fatalf("got %+v", stats)
	}
}

func TestTooManyPipes(t *testing.T) {
	r := NewRegistry(limits.Default())
	table := NewFdTable(0)
	for range limits.MaxPipes {
		if _, _, err := r.Create(table); err != nil {
			t.Fatal(err)
		}
	}
	_, _, err := r.Create(table)
	if !errors.Is(err, syscalls.TooManyPipes) {
		t.Fatalf("got %v", err)
	}
	if r.Stats().LivePipes != limits.MaxPipes {
		t.Fatal()
	}

	// closing both ends frees a slot, ids are not reused
	if err := r.Close(table, 2); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(table, 3); err != nil {
		t.Fatal(err)
	}
	readFd, _, err := r.Create(table)
	if err != nil {
		t.Fatal(err)
	}
	if readFd != 2+2*limits.MaxPipes {
		t.Fatalf("got %d", readFd)
	}
}

func TestTooManyFds(t *testing.T) {
	l := limits.Default()
	l.MaxFdsCreated = 4
	r := NewRegistry(l)
	table := NewFdTable(0)
	for range 2 {
		readFd, writeFd, err := r.Create(table)
		if err != nil {
			t.Fatal(err)
		}
		r.Close(table, readFd)
		r.Close(table, writeFd)
	}
	_, _, err := r.Create(table)
	if !errors.Is(err, syscalls.TooManyFds) {
		t.Fatalf("got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	r := NewRegistry(limits.Default())
	table := NewFdTable(0)
	readFd, writeFd, err := r.Create(table)
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Read(table, readFd, 10)
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("got %v", err)
	}

	n, err := r.Write(table, writeFd, []byte("helloworld"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Fatalf("got %d", n)
	}

	var got []byte
	for len(got) < 10 {
		data, err := r.Read(table, readFd, 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) > 3 {
			t.Fatalf("got %d bytes", len(data))
		}
		got = append(got, data...)
	}
	if !bytes.Equal(got, []byte("helloworld")) {
		t.Fatalf("got %q", got)
	}
}

func TestZeroLengthRead(t *testing.T) {
	r := NewRegistry(limits.Default())
	table := NewFdTable(0)
	readFd, _, err := r.Create(table)
	if err != nil {
		t.Fatal(err)
	}
	data, err := r.Read(table, readFd, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatal()
	}
}

func TestEOF(t *testing.T) {
	r := NewRegistry(limits.Default())
	table := NewFdTable(0)
	readFd, writeFd, err := r.Create(table)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Write(table, writeFd, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(table, writeFd); err != nil {
		t.Fatal(err)
	}

	// buffered data first
	data, err := r.Read(table, readFd, 10)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "x" {
		t.Fatalf("got %q", data)
	}

	data, err = r.Read(table, readFd, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatal()
	}

	_, err = r.Read(table, readFd, 10)
	if !errors.Is(err, syscalls.OtherEndClosed) {
		t.Fatalf("got %v", err)
	}
	_, err = r.Read(table, readFd, 10)
	if !errors.Is(err, syscalls.OtherEndClosed) {
		t.Fatalf("got %v", err)
	}
}

func TestWriteToClosedReader(t *testing.T) {
	r := NewRegistry(limits.Default())
	table := NewFdTable(0)
	readFd, writeFd, err := r.Create(table)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(table, readFd); err != nil {
		t.Fatal(err)
	}
	_, err = r.Write(table, writeFd, []byte("x"))
	if !errors.Is(err, syscalls.OtherEndClosed) {
		t.Fatalf("got %v", err)
	}
	if err := r.Close(table, writeFd); err != nil {
		t.Fatal(err)
	}
	if r.Stats().LivePipes != 0 {
		t.Fatal()
	}
}

func TestFullPipe(t *testing.T) {
	r := NewRegistry(limits.Default())
	table := NewFdTable(0)
	readFd, writeFd, err := r.Create(table)
	if err != nil {
		t.Fatal(err)
	}
	data := make([]byte, limits.PipeCapacity+100)
	n, err := r.Write(table, writeFd, data)
	if err != nil {
		t.Fatal(err)
	}
	if n != limits.PipeCapacity {
		t.Fatalf("got %d", n)
	}
	_, err = r.Write(table, writeFd, data)
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("got %v", err)
	}
	if _, err := r.Read(table, readFd, 50); err != nil {
		t.Fatal(err)
	}
	n, err = r.Write(table, writeFd, data)
	if err != nil {
		t.Fatal(err)
	}
	if n != 50 {
		t.Fatalf("got %d", n)
	}
}

func TestWrongEnd(t *testing.T) {
	r := NewRegistry(limits.Default())
	table := NewFdTable(0)
	readFd, writeFd, err := r.Create(table)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Read(table, writeFd, 1); !errors.Is(err, syscalls.NotReadable) {
		t.Fatalf("got %v", err)
	}
	if _, err := r.Write(table, readFd, []byte("x")); !errors.Is(err, syscalls.NotWritable) {
		t.Fatalf("got %v", err)
	}
	if _, err := r.Read(table, 42, 1); !errors.Is(err, syscalls.InvalidFd) {
		t.Fatalf("got %v", err)
	}
	if err := r.Close(table, 42); !errors.Is(err, syscalls.InvalidFd) {
		t.Fatalf("got %v", err)
	}
	if err := r.Close(table, readFd); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(table, readFd); !errors.Is(err, syscalls.InvalidFd) {
		t.Fatalf("got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	r := NewRegistry(limits.Default())
	parent := NewFdTable(0)
	child := NewFdTable(1)
	r1, w1, _ := r.Create(parent)
	r2, w2, _ := r.Create(parent)

	// not owned: nothing moves
	err := r.Transfer(parent, child, []syscalls.Fd{w2, 99})
	if !errors.Is(err, syscalls.InvalidPipe) {
		t.Fatalf("got %v", err)
	}
	if !parent.Owns(w2) || child.Len() != 0 {
		t.Fatal()
	}

	// duplicated
	err = r.Transfer(parent, child, []syscalls.Fd{w2, w2})
	if !errors.Is(err, syscalls.InvalidPipe) {
		t.Fatalf("got %v", err)
	}

	if err := r.Transfer(parent, child, []syscalls.Fd{w2, r1}); err != nil {
		t.Fatal(err)
	}
	if parent.Owns(w2) || parent.Owns(r1) {
		t.Fatal()
	}
	if owner, _ := r.Owner(w2); owner != 1 {
		t.Fatal()
	}
	if got := r.Inherited(child); !slices.Equal(got, []syscalls.Fd{w2, r1}) {
		t.Fatalf("got %v", got)
	}
	if got := parent.Fds(); !slices.Equal(got, []syscalls.Fd{w1, r2}) {
		t.Fatalf("got %v", got)
	}

	// closed fds drop out of the inherited list
	if err := r.Close(child, w2); err != nil {
		t.Fatal(err)
	}
	if got := r.Inherited(child); !slices.Equal(got, []syscalls.Fd{r1}) {
		t.Fatalf("got %v", got)
	}
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry(limits.Default())
	parent := NewFdTable(0)
	child := NewFdTable(1)
	readFd, writeFd, _ := r.Create(parent)
	if err := r.Transfer(parent, child, []syscalls.Fd{writeFd}); err != nil {
		t.Fatal(err)
	}
	r.CloseAll(child)
	if child.Len() != 0 {
		t.Fatal()
	}
	// reader sees EOF
	data, err := r.Read(parent, readFd, 1)
	if err != nil || len(data) != 0 {
		t.Fatalf("got %v %v", data, err)
	}
	r.CloseAll(parent)
	if stats := r.Stats(); stats.LivePipes != 0 || stats.OwnedFds != 0 {
		t.Fatalf("got %+v", stats)
	}
}
