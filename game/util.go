package game

import (
	"errors"
	"fmt"
)

var errUnknown = errors.New("game: unknown entity")

func errUnknownGraspable(name string) error {
	return fmt.Errorf("%w: graspable %q", errUnknown, name)
}

// countIf counts values of m matching pred.
func countIf[K comparable, V any](m map[K]V, pred func(K, V) bool) int {
	n := 0
	for k, v := range m {
		if pred(k, v) {
			n++
		}
	}
	return n
}

func errUnknownActor(name string) error {
	return fmt.Errorf("%w: actor %q", errUnknown, name)
}
