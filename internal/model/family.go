package model

import "fmt"

// Family identifies how a model encodes routes in its solution variables.
type Family int

const (
	FamilyUnknown Family = iota
	// FamilySuccessor: sequence[c][i] is the node visited after node i by courier c.
	FamilySuccessor
	// FamilyOwnerPath: path[i][j] holds the courier travelling from node i to node j+1.
	FamilyOwnerPath
	// FamilyPadded: sequence[c] lists courier c's nodes in order, padded with zeros.
	FamilyPadded
)

func (f Family) String() string {
	switch f {
	case FamilySuccessor:
		return "A"
	case FamilyOwnerPath:
		return "B"
	case FamilyPadded:
		return "C"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}
