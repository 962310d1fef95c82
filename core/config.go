package core

// KernelConfig carries the configuration the core needs at runtime: the
// rollup's own address, the ticketer treated as the native-token source,
// the L1 contract withdrawals are routed through, and the gas ceilings
// from SPEC_FULL's Open Question resolution on per-level gas caps.
type KernelConfig struct {
	RollupAddress       [20]byte
	NativeTicketer      Address
	WithdrawalContract  Address
	DefaultGasLimit     uint64
	MaxGasLimit         uint64
	OutboxBound         int
}

// ClampGasLimit applies the configured default/maximum gas ceiling to an
// operation-supplied limit (0 means "use the default").
func (c *KernelConfig) ClampGasLimit(requested uint64) uint64 {
	if requested == 0 {
		requested = c.DefaultGasLimit
	}
	if requested > c.MaxGasLimit {
		return c.MaxGasLimit
	}
	return requested
}
