package listing

// SortDirection is the direction of one sort entry.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Valid reports whether the direction is one of asc/desc.
func (d SortDirection) Valid() bool {
	return d == SortAsc || d == SortDesc
}

// Params are the untrusted runtime request parameters of a listing. Sorts and
// Filters are restricted to the schema's opt-in sets before any SQL is built;
// Search applies an OR-chain of LIKE matches across the filterable set.
type Params struct {
	Page    int                      `json:"page"`
	Size    int                      `json:"size"`
	Sorts   map[string]SortDirection `json:"sorts,omitempty"`
	Filters map[string]any           `json:"filters,omitempty"`
	Search  string                   `json:"search,omitempty"`
}

// Limits bounds page sizes for the engine.
type Limits struct {
	DefaultSize int
	MaxSize     int
}

// DefaultLimits returns the engine's stock page-size bounds.
func DefaultLimits() Limits {
	return Limits{DefaultSize: 20, MaxSize: 100}
}

// bounded returns page and size clamped into the configured bounds.
func (p Params) bounded(limits Limits) (page, size int) {
	page = p.Page
	if page < 1 {
		page = 1
	}
	size = p.Size
	if size <= 0 {
		size = limits.DefaultSize
	}
	if limits.MaxSize > 0 && size > limits.MaxSize {
		size = limits.MaxSize
	}
	return page, size
}
