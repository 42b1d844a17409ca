package constants

// Format is a topology export format.
type Format string

const (
	// FormatDOT renders the network as a Graphviz digraph.
	FormatDOT Format = "dot"

	// FormatJSON renders the network as a JSON document of units and edges.
	FormatJSON Format = "json"
)

// Valid returns true if the format is a recognized value.
func (f Format) Valid() bool {
	switch f {
	case FormatDOT, FormatJSON:
		return true
	}
	return false
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}
