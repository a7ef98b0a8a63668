package pbsmk

// AssignOp identifies which of the three variable-binding forms a line used.
type AssignOp int

const (
	// OpSet is "NAME = VALUE".
	OpSet AssignOp = iota
	// OpAppend is "NAME += VALUE".
	OpAppend
	// OpCondSet is "NAME ?= VALUE".
	OpCondSet
)

// recognisedAttrs is the logical attribute vocabulary of §6. Parsing an
// attribute line outside this set is a fatal UnknownAttributeError.
var recognisedAttrs = map[string]string{
	"N":      "job name",
	"v":      "variable list",
	"depend": "inter-job dependency clause",
	"S":      "interpreter shell path",
	"l":      "resource list",
	"queue":  "destination queue",
}

// AttrHelp returns the recognised attribute table for --attrs output, with
// stable ordering.
func AttrHelp() []struct{ Name, Meaning string } {
	order := []string{"N", "v", "depend", "S", "l", "queue"}
	out := make([]struct{ Name, Meaning string }, 0, len(order))
	for _, name := range order {
		out = append(out, struct{ Name, Meaning string }{name, recognisedAttrs[name]})
	}
	return out
}
