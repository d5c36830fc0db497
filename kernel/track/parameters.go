package track

const (
	DefaultMaxKeySize         = 16_000      // ~16KB
	DefaultMaxValueSize       = 64_000_000  // ~64MB
	DefaultMaxInteractionSize = 256_000_000 // ~256MB
)

// Parameters bound what a single transaction may read from and write to the
// store.
type Parameters struct {
	MaxKeySizeAllowed         uint64
	MaxValueSizeAllowed       uint64
	MaxInteractionSizeAllowed uint64
}

func DefaultParameters() Parameters {
	return Parameters{
		MaxKeySizeAllowed:         DefaultMaxKeySize,
		MaxValueSizeAllowed:       DefaultMaxValueSize,
		MaxInteractionSizeAllowed: DefaultMaxInteractionSize,
	}
}

// WithMaxKeySizeAllowed sets limit on max key size
func (params Parameters) WithMaxKeySizeAllowed(limit uint64) Parameters {
	newParams := params
	newParams.MaxKeySizeAllowed = limit
	return newParams
}

// WithMaxValueSizeAllowed sets limit on max value size
func (params Parameters) WithMaxValueSizeAllowed(limit uint64) Parameters {
	newParams := params
	newParams.MaxValueSizeAllowed = limit
	return newParams
}

// WithMaxInteractionSizeAllowed sets limit on total byte interaction with
// the store
func (params Parameters) WithMaxInteractionSizeAllowed(limit uint64) Parameters {
	newParams := params
	newParams.MaxInteractionSizeAllowed = limit
	return newParams
}
