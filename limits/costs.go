package limits

const (
	SyscallCycles      = 500
	SpawnCyclesBase    = 100_000
	SpawnCyclesPerPage = 8_192
	SwitchCycles       = 800
	BytesPerCycle      = 4
)

// Costs is the per-syscall cycle table.
type Costs struct {
	Syscall      uint64
	SpawnBase    uint64
	SpawnPerPage uint64
	Switch       uint64
}

func DefaultCosts() Costs {
	return Costs{
		Syscall:      SyscallCycles,
		SpawnBase:    SpawnCyclesBase,
		SpawnPerPage: SpawnCyclesPerPage,
		Switch:       SwitchCycles,
	}
}

// Spawn returns the instantiation surcharge for a child of the given memory limit.
func (c Costs) Spawn(memoryLimit uint64) uint64 {
	return c.SpawnBase + memoryLimit*c.SpawnPerPage
}

// TransferredByteCycles charges a quarter cycle per byte, rounded up.
func TransferredByteCycles(n uint64) uint64 {
	return (n + BytesPerCycle - 1) / BytesPerCycle
}
