package limits

// consensus values; changing any of them changes verification results
const (
	MaxVMs        = 16
	MaxPipes      = 32
	MaxFdsCreated = 1024

	// fds 0 and 1 are left for the stdin / stdout convention
	FirstFd = 2

	MinMemoryLimit = 1
	MaxMemoryLimit = 8
	MemoryPageSize = 512 * 1024
	MaxPeakMemory  = 64

	PipeCapacity     = 4096
	MaxContentLength = 256 * 1024
)

type Limits struct {
	MaxVMs           int
	MaxPipes         int
	MaxFdsCreated    uint64
	MinMemoryLimit   uint64
	MaxMemoryLimit   uint64
	MaxPeakMemory    uint64
	PipeCapacity     int
	MaxContentLength int
	Costs            Costs
}

func Default() Limits {
	return Limits{
		MaxVMs:           MaxVMs,
		MaxPipes:         MaxPipes,
		MaxFdsCreated:    MaxFdsCreated,
		MinMemoryLimit:   MinMemoryLimit,
		MaxMemoryLimit:   MaxMemoryLimit,
		MaxPeakMemory:    MaxPeakMemory,
		PipeCapacity:     PipeCapacity,
		MaxContentLength: MaxContentLength,
		Costs:            DefaultCosts(),
	}
}

// MemoryBytes converts a page count to bytes.
func MemoryBytes(pages uint64) uint64 {
	return pages * MemoryPageSize
}
