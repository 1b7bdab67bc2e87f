package cdc

// Bounds every configuration and buffer argument must respect.
const (
	AverageMin = 256
	AverageMax = 1 << 28
	MinimumMin = 64
	MinimumMax = 1 << 26
	MaximumMin = 1024
	MaximumMax = 1 << 30

	// IntegerMax is the exclusive upper bound for offsets and lengths.
	IntegerMax = 1<<31 - 1

	BitsMin = 8
	BitsMax = 28
)

// Limits is the fixed set of validation bounds, exposed for reporting.
type Limits struct {
	AverageMin int
	AverageMax int
	MinimumMin int
	MinimumMax int
	MaximumMin int
	MaximumMax int
	IntegerMax int
	BitsMin    int
	BitsMax    int
}

func DefaultLimits() Limits {
	return Limits{
		AverageMin: AverageMin,
		AverageMax: AverageMax,
		MinimumMin: MinimumMin,
		MinimumMax: MinimumMax,
		MaximumMin: MaximumMin,
		MaximumMax: MaximumMax,
		IntegerMax: IntegerMax,
		BitsMin:    BitsMin,
		BitsMax:    BitsMax,
	}
}
