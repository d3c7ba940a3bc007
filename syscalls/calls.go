package syscalls

type Pid uint64

type Fd uint64

const RootPid Pid = 0

// syscall numbers, fixed by protocol version
const (
	NumberCurrentCycles = 2042
	NumberMemoryLimit   = 2102
	NumberSetContent    = 2103
	NumberSpawn         = 2601
	NumberWait          = 2602
	NumberProcessID     = 2603
	NumberPipe          = 2604
	NumberWrite         = 2605
	NumberRead          = 2606
	NumberInheritedFds  = 2607
	NumberClose         = 2608
	NumberYield         = 2609
)

// Call is one syscall issued by a script. The set of calls is closed.
type Call interface {
	Number() uint64
	isCall()
}

type Spawn struct {
	Locator      Locator
	Argv         [][]byte
	MemoryLimit  uint64
	Fds          []Fd
	ContentLimit uint64
}

type Pipe struct{}

type Read struct {
	Fd  Fd
	Max uint64
}

type Write struct {
	Fd   Fd
	Data []byte
}

type Close struct {
	Fd Fd
}

type Wait struct {
	Pid Pid
}

type InheritedFds struct {
	Capacity uint64
}

type CurrentCycles struct{}

type ProcessID struct{}

type Yield struct{}

type SetContent struct {
	Data []byte
}

type MemoryLimit struct{}

func (Spawn) Number() uint64         { return NumberSpawn }
func (Pipe) Number() uint64          { return NumberPipe }
func (Read) Number() uint64          { return NumberRead }
func (Write) Number() uint64         { return NumberWrite }
func (Close) Number() uint64         { return NumberClose }
func (Wait) Number() uint64          { return NumberWait }
func (InheritedFds) Number() uint64  { return NumberInheritedFds }
func (CurrentCycles) Number() uint64 { return NumberCurrentCycles }
func (ProcessID) Number() uint64     { return NumberProcessID }
func (Yield) Number() uint64         { return NumberYield }
func (SetContent) Number() uint64    { return NumberSetContent }
func (MemoryLimit) Number() uint64   { return NumberMemoryLimit }

func (Spawn) isCall()         {}
func (Pipe) isCall()          {}
func (Read) isCall()          {}
func (Write) isCall()         {}
func (Close) isCall()         {}
func (Wait) isCall()          {}
func (InheritedFds) isCall()  {}
func (CurrentCycles) isCall() {}
func (ProcessID) isCall()     {}
func (Yield) isCall()         {}
func (SetContent) isCall()    {}
func (MemoryLimit) isCall()   {}

// Reply is the result of a completed call. Only the fields meaningful
// to the call kind are set.
type Reply struct {
	Errno   Errno
	Pid     Pid
	Fds     []Fd
	Data    []byte
	N       uint64
	Code    int8
	Content []byte
}
