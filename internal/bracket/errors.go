// Package bracket - errors.go
// Comparable error values returned by the engine.
package bracket

type berr string

func (e berr) Error() string { return string(e) }

var (
	ErrNotEnoughTeams   = berr("a bracket needs at least two teams")
	ErrBadTeamSize      = berr("players do not split evenly into teams")
	ErrMatchNotFound    = berr("match not found")
	ErrMatchCompleted   = berr("match already completed")
	ErrWinnerNotInMatch = berr("winner is not one of the match teams")
)
