package traces

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/reusee/spawnvm/schedulers"
	"github.com/reusee/spawnvm/syscalls"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("traces: cbor enc mode: %w", err))
	}
	encMode = em
}

type Kind uint8

const (
	KindSyscall Kind = iota + 1
	KindExit
)

// Event is one completed syscall or one exit.
type Event struct {
	Kind   Kind         `cbor:"1,keyasint"`
	Pid    syscalls.Pid `cbor:"2,keyasint"`
	Number uint64       `cbor:"3,keyasint,omitempty"`
	Errno  uint8        `cbor:"4,keyasint,omitempty"`
	Code   int8         `cbor:"5,keyasint,omitempty"`
	// cycles of the instance after the event
	Cycles uint64 `cbor:"6,keyasint"`
}

type Recorder struct {
	Events []Event
}

var _ schedulers.Tracer = new(Recorder)

func (r *Recorder) Syscall(pid syscalls.Pid, number uint64, errno syscalls.Errno, cycles uint64) {
	r.Events = append(r.Events, Event{
		Kind:   KindSyscall,
		Pid:    pid,
		Number: number,
		Errno:  uint8(errno),
		Cycles: cycles,
	})
}

func (r *Recorder) Exit(pid syscalls.Pid, code int8, cycles uint64) {
	r.Events = append(r.Events, Event{
		Kind:   KindExit,
		Pid:    pid,
		Code:   code,
		Cycles: cycles,
	})
}

// Encode returns the canonical CBOR encoding of all events.
func (r *Recorder) Encode() ([]byte, error) {
	events := r.Events
	if events == nil {
		events = []Event{}
	}
	return encMode.Marshal(events)
}

func (r *Recorder) Digest() ([sha256.Size]byte, error) {
	bs, err := r.Encode()
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(bs), nil
}

func Decode(data []byte) ([]Event, error) {
	var events []Event
	if err := cbor.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("traces: unmarshal events: %w", err)
	}
	return events, nil
}
