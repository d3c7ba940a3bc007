package syscalls

import (
	"errors"
	"fmt"
)

// Errno is the code a script observes as the return value of a syscall.
type Errno uint8

const (
	Success Errno = iota
	IndexOutOfBound
	_ // item missing, unused by process syscalls
	SliceOutOfBound
	WrongFormat
	InvalidPid
	InvalidFd
	OtherEndClosed
	TooManyInstances
	TooManyFds
	TooManyPipes
	NotReadable
	NotWritable
	DoubleWait
	InvalidPipe
	MemoryLimitInvalid
	PeakMemoryExceeded
	LengthNotEnough
)

var errnoNames = map[Errno]string{
	Success:            "success",
	IndexOutOfBound:    "index out of bound",
	SliceOutOfBound:    "slice out of bound",
	WrongFormat:        "wrong format",
	InvalidPid:         "invalid pid",
	InvalidFd:          "invalid fd",
	OtherEndClosed:     "other end closed",
	TooManyInstances:   "too many instances",
	TooManyFds:         "too many fds",
	TooManyPipes:       "too many pipes",
	NotReadable:        "fd not readable",
	NotWritable:        "fd not writable",
	DoubleWait:         "double wait",
	InvalidPipe:        "invalid pipe",
	MemoryLimitInvalid: "invalid memory limit",
	PeakMemoryExceeded: "peak memory exceeded",
	LengthNotEnough:    "length not enough",
}

func (e Errno) Error() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return fmt.Sprintf("errno %d", uint8(e))
}

type Class uint8

const (
	// Misuse errors are the calling script's fault.
	Misuse Class = iota + 1
	// Exhaustion errors are deterministic resource limits.
	Exhaustion
	// Peer errors are how streams terminate.
	Peer
)

func (e Errno) Class() Class {
	switch e {
	case Success:
		return 0
	case TooManyInstances, TooManyFds, TooManyPipes, PeakMemoryExceeded:
		return Exhaustion
	case OtherEndClosed:
		return Peer
	}
	return Misuse
}

// ErrnoOf maps an error returned by a core operation to the code handed to scripts.
// Errors that are not errnos are not script-observable and map to false.
func ErrnoOf(err error) (Errno, bool) {
	if err == nil {
		return Success, true
	}
	var e Errno
	if errors.As(err, &e) {
		return e, true
	}
	return 0, false
}
