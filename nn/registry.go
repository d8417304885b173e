package nn

import (
	"log"
	"os"
)

// FunctionChoice describes one registered function for choice lists
type FunctionChoice struct {
	Name        string
	Description string
}

// table is an ordered name -> function map for one role
type table[F Function] struct {
	names []string
	byKey map[string]F
}

func newTable[F Function](role Role, fns ...F) table[F] {
	t := table[F]{byKey: make(map[string]F, len(fns))}
	for _, fn := range fns {
		if !fn.Roles().Has(role) {
			continue
		}
		t.names = append(t.names, fn.Name())
		t.byKey[fn.Name()] = fn
	}
	return t
}

// lookup falls back to the first entry, never fails
func (t table[F]) lookup(role Role, name string) (F, bool) {
	if fn, ok := t.byKey[name]; ok {
		return fn, true
	}
	fallback := t.byKey[t.names[0]]
	logger.Printf("Warning: %s function %q not defined, resetting to %s", role, name, fallback.Name())
	return fallback, false
}

func (t table[F]) choices() []FunctionChoice {
	out := make([]FunctionChoice, len(t.names))
	for i, n := range t.names {
		out[i] = FunctionChoice{Name: n, Description: t.byKey[n].Description()}
	}
	return out
}

// allActivations lists every activation in registration order
var allActivations = []Activation{
	sigmoid{},
	relu{},
	leakyReLU{},
	tanh{},
	linear{},
	binaryStop{},
}

// allLosses lists every loss in registration order
var allLosses = []LossFunc{
	lceLoss{},
	hingeLoss{},
	squaredHingeLoss{},
	hingeLoss01{},
	squaredHingeLoss01{},
}

var (
	hiddenTable = newTable(RoleHidden, allActivations...)
	outputTable = newTable(RoleOutput, allActivations...)
	lossTable   = newTable(RoleLoss, allLosses...)
)

var logger = log.New(os.Stderr, "", log.LstdFlags)

// SetLogger replaces the logger used for registry warnings
func SetLogger(l *log.Logger) {
	if l != nil {
		logger = l
	}
}

// HiddenActivation looks up a hidden-layer activation by name. Unknown names
// return the first hidden activation and false, and log a warning.
func HiddenActivation(name string) (Activation, bool) {
	return hiddenTable.lookup(RoleHidden, name)
}

// OutputActivation looks up an output-layer activation by name
func OutputActivation(name string) (Activation, bool) {
	return outputTable.lookup(RoleOutput, name)
}

// Loss looks up a loss function by name
func Loss(name string) (LossFunc, bool) {
	return lossTable.lookup(RoleLoss, name)
}

// HiddenNames returns the hidden activation names in registration order
func HiddenNames() []string { return append([]string(nil), hiddenTable.names...) }

// OutputNames returns the output activation names in registration order
func OutputNames() []string { return append([]string(nil), outputTable.names...) }

// LossNames returns the loss names in registration order
func LossNames() []string { return append([]string(nil), lossTable.names...) }

// Choices returns name and description of every function eligible for role
func Choices(role Role) []FunctionChoice {
	switch role {
	case RoleHidden:
		return hiddenTable.choices()
	case RoleOutput:
		return outputTable.choices()
	case RoleLoss:
		return lossTable.choices()
	default:
		return nil
	}
}

// IsRegistered reports whether name is eligible for role
func IsRegistered(role Role, name string) bool {
	switch role {
	case RoleHidden:
		_, ok := hiddenTable.byKey[name]
		return ok
	case RoleOutput:
		_, ok := outputTable.byKey[name]
		return ok
	case RoleLoss:
		_, ok := lossTable.byKey[name]
		return ok
	default:
		return false
	}
}
