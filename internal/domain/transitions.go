package domain

import (
	"fmt"
	"strings"
)

// Transition is a workflow action the remote currently offers for an
// issue. The set is fetched fresh per resolution attempt and never
// cached: a transition id is only meaningful against the issue state it
// was fetched from.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResolveTransition matches a free-text target state name against the
// offered transitions, case-insensitively. It fails with
// KindNoTransitionsAvailable when nothing is offered at all,
// KindTransitionNotAvailable when nothing matches, and
// KindAmbiguousTransition when differently-cased duplicates collapse to
// the same lowercase form. Every failure carries the full candidate list
// so the caller can retry without another round trip.
func ResolveTransition(available []Transition, targetName string) (Transition, *OpError) {
	if len(available) == 0 {
		return Transition{}, &OpError{
			Kind:    KindNoTransitionsAvailable,
			Message: "issue has no available transitions",
		}
	}

	names := make([]string, len(available))
	for i, t := range available {
		names[i] = t.Name
	}

	target := strings.ToLower(targetName)
	var matches []Transition
	for _, t := range available {
		if strings.ToLower(t.Name) == target {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return Transition{}, &OpError{
			Kind:        KindTransitionNotAvailable,
			Message:     fmt.Sprintf("transition %q not available", targetName),
			Transitions: names,
		}
	case 1:
		return matches[0], nil
	default:
		colliding := make([]string, len(matches))
		for i, t := range matches {
			colliding[i] = t.Name
		}
		return Transition{}, &OpError{
			Kind:        KindAmbiguousTransition,
			Message:     fmt.Sprintf("transition %q matches %d transitions", targetName, len(matches)),
			Transitions: colliding,
		}
	}
}
