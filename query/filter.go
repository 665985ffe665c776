package query

// Kind identifies a filter's predicate.
type Kind int

const (
	Equal Kind = iota
	NotEqual
	LessThan
	LessEqual
	GreaterThan
	GreaterEqual
	Between
	In
	Like   // prefix search via an associated NDX index
	Exact  // exact-match search via an associated NDX index
	BitSet
	BitClear
	BitMaskAll
	BitMaskAny
)

// indexBacked reports whether kind is resolved through an NDX index
// rather than a heap-map scan.
func (k Kind) indexBacked() bool {
	return k == Like || k == Exact
}

// Filter is a single predicate bound to one field.
type Filter struct {
	Kind  Kind
	Field string

	// Value and Value2 bound Equal/NotEqual/LessThan/LessEqual/
	// GreaterThan/GreaterEqual (Value only) and Between (Value, Value2).
	Value  float64
	Value2 float64

	// Values holds the candidate set for In.
	Values []float64

	// Prefix is the search string for Like; ExactValue is the search
	// string for Exact.
	Prefix     string
	ExactValue string

	// Bit is the bit position (0..7) tested by BitSet/BitClear. Mask is
	// the bitmask tested by BitMaskAll/BitMaskAny.
	Bit  uint8
	Mask uint32
}

// GroupMode combines a group's filters.
type GroupMode int

const (
	ModeAll GroupMode = iota // AND
	ModeAny                  // OR
)

// Group is up to 8 filters combined by Mode.
type Group struct {
	Mode    GroupMode
	Filters []Filter
}

// Query is up to 4 groups, ANDed together.
type Query struct {
	Groups []Group
}
