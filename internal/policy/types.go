package policy

// Policy is the configured power-on behaviour of one output channel.
type Policy int

const (
	// Unset means no default has been configured; the last observed state applies.
	Unset Policy = iota
	// ForceOn drives the output on whenever it attaches.
	ForceOn
	// ForceOff drives the output off whenever it attaches.
	ForceOff
	// UseLastObserved restores whatever state the output last had.
	UseLastObserved
)

// Pattern symbols accepted by ParsePattern.
const (
	SymbolOn   = '1'
	SymbolOff  = '0'
	SymbolLast = '*'
)

// String returns the persisted form of the policy.
func (p Policy) String() string {
	switch p {
	case ForceOn:
		return "on"
	case ForceOff:
		return "off"
	case UseLastObserved:
		return "last"
	default:
		return "unset"
	}
}

// Determinate reports whether the policy names a concrete state, and which.
func (p Policy) Determinate() (state, ok bool) {
	switch p {
	case ForceOn:
		return true, true
	case ForceOff:
		return false, true
	default:
		return false, false
	}
}

// parsePolicyName is the inverse of String for stored rows.
func parsePolicyName(s string) Policy {
	switch s {
	case "on":
		return ForceOn
	case "off":
		return ForceOff
	case "last":
		return UseLastObserved
	default:
		return Unset
	}
}

// ParseSymbol maps one pattern symbol to a policy. Anything other than
// '1', '0' or '*' is Unset.
func ParseSymbol(r rune) Policy {
	switch r {
	case SymbolOn:
		return ForceOn
	case SymbolOff:
		return ForceOff
	case SymbolLast:
		return UseLastObserved
	default:
		return Unset
	}
}

// ParsePattern converts a defaults pattern such as "1*0" into one policy per
// channel index. Malformed symbols become Unset rather than failing the batch.
func ParsePattern(pattern string) []Policy {
	policies := make([]Policy, 0, len(pattern))
	for _, r := range pattern {
		policies = append(policies, ParseSymbol(r))
	}
	return policies
}

// Tables is the complete persisted state: last observed output values and
// configured defaults, both keyed by device id then channel index.
type Tables struct {
	States   map[string]map[int]bool
	Defaults map[string]map[int]Policy
}

// NewTables returns empty, ready to use tables.
func NewTables() Tables {
	return Tables{
		States:   make(map[string]map[int]bool),
		Defaults: make(map[string]map[int]Policy),
	}
}

// Clone returns a deep copy.
func (t Tables) Clone() Tables {
	out := NewTables()
	for dev, chans := range t.States {
		m := make(map[int]bool, len(chans))
		for idx, v := range chans {
			m[idx] = v
		}
		out.States[dev] = m
	}
	for dev, chans := range t.Defaults {
		m := make(map[int]Policy, len(chans))
		for idx, v := range chans {
			m[idx] = v
		}
		out.Defaults[dev] = m
	}
	return out
}
