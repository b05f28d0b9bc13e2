// Package stage defines the release stage vocabulary and the transition graph.
package stage

import "fmt"

// Stage is a named phase in a release's lifecycle. The set is closed:
// templates and advance requests are validated against it at load time, so
// an unrecognized stage name never reaches the orchestrator.
type Stage string

const (
	Draft          Stage = "Draft"
	Scheduled      Stage = "Scheduled"
	Signal         Stage = "Signal"
	Process        Stage = "Process"
	Hold           Stage = "Hold"
	Drop           Stage = "Drop"
	Echo           Stage = "Echo"
	Fragments      Stage = "Fragments"
	Interval       Stage = "Interval"
	PrivateViewing Stage = "PrivateViewing"
	Archive        Stage = "Archive"
	Archived       Stage = "Archived"
)

// Canonical is the full ritual sequence in order. Tenant templates may use a
// subsequence, but every template ends at Archived.
var Canonical = []Stage{
	Draft, Scheduled, Signal, Process, Hold, Drop, Echo,
	Fragments, Interval, PrivateViewing, Archive, Archived,
}

var known = func() map[Stage]bool {
	m := make(map[Stage]bool, len(Canonical))
	for _, s := range Canonical {
		m[s] = true
	}
	return m
}()

// Parse validates a stage name and returns its Stage value.
func Parse(name string) (Stage, error) {
	s := Stage(name)
	if !known[s] {
		return "", fmt.Errorf("stage: unknown stage %q", name)
	}
	return s, nil
}

// Valid reports whether name is a recognized stage.
func Valid(name string) bool {
	return known[Stage(name)]
}

// String implements fmt.Stringer.
func (s Stage) String() string { return string(s) }
