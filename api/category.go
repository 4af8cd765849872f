package api

// Category classify memory pools by criticality. Every pool is
// registered under exactly one category and usage is accounted
// per category.
type Category byte

const (
	// Critical pools hold flight-critical or otherwise
	// safety-relevant data.
	Critical Category = iota
	// Standard pools hold regular application data.
	Standard
	// Debug pools hold instrumentation data, excluded from
	// certification budgets.
	Debug
)

// Ncategories number of pool categories.
const Ncategories = 3

// IsValid check whether category is within the enumerated domain.
func (category Category) IsValid() bool {
	return category <= Debug
}

func (category Category) String() string {
	switch category {
	case Critical:
		return "critical"
	case Standard:
		return "standard"
	case Debug:
		return "debug"
	}
	return "invalid"
}
