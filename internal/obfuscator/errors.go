package obfuscator

import (
	"fmt"

	"github.com/whit3rabbit/pymixer/internal/resolver"
)

// Severity grades a diagnostic. Warnings never stop a file; fatal
// diagnostics abort the file they occurred in.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityFatal
)

func (s Severity) String() string {
	if s == SeverityFatal {
		return "error"
	}
	return "warning"
}

// Diagnostic is one reportable event from processing a file.
type Diagnostic struct {
	File     string
	Severity Severity
	Err      error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %v", d.Severity, d.File, d.Err)
}

// UnresolvedReferenceError wraps a resolver finding as a diagnostic error.
type UnresolvedReferenceError struct {
	Ref resolver.Unresolved
}

func (e *UnresolvedReferenceError) Error() string {
	return e.Ref.String() + "; name left unchanged"
}

// Report summarizes what one file's transformation did.
type Report struct {
	File            string
	SymbolsRenamed  int
	StringsEncoded  int
	NumbersRewrit   int
	FuncsFlattened  int
	PredicatesAdded int
	DeadBranches    int
	Warnings        []Diagnostic
}

// Merge folds another file's report into a run-level aggregate.
func (r *Report) Merge(other *Report) {
	r.SymbolsRenamed += other.SymbolsRenamed
	r.StringsEncoded += other.StringsEncoded
	r.NumbersRewrit += other.NumbersRewrit
	r.FuncsFlattened += other.FuncsFlattened
	r.PredicatesAdded += other.PredicatesAdded
	r.DeadBranches += other.DeadBranches
	r.Warnings = append(r.Warnings, other.Warnings...)
}
