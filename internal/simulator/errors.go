// Package simulator - errors.go
// Comparable error values for every rejected operation. Each carries the
// kind the interaction layer uses to pick its reply.
package simulator

import (
	"errors"

	"github.com/jose-valero/simulator-bot/internal/bracket"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

// Error is comparable so errors.Is works on the values below, wrapped or not.
type Error struct {
	Kind Kind
	Msg  string
}

func (e Error) Error() string { return e.Msg }

var (
	ErrInvalidInput    = Error{KindValidation, "invalid input"}
	ErrInvalidMode     = Error{KindValidation, "unknown mode, use 1v1, 2v2, 3v3 or 4v4"}
	ErrInvalidQuantity = Error{KindValidation, "player count is not valid for this mode"}
	ErrInvalidOption   = Error{KindValidation, "unknown team selection or start mode"}
	ErrNotOpen         = Error{KindValidation, "tournament is not open for changes"}
	ErrNotRunning      = Error{KindValidation, "tournament is not running"}
	ErrAlreadyStarted  = Error{KindValidation, "tournament already started"}
	ErrAlreadyClosed   = Error{KindValidation, "tournament already finished or cancelled"}
	ErrNotFull         = Error{KindValidation, "tournament is not full yet"}
	ErrIncompleteTeams = Error{KindValidation, "every team needs its full line-up before starting"}
	ErrNotManual       = Error{KindValidation, "teams are drawn at random in this tournament"}
	ErrUnknownTeam     = Error{KindValidation, "no such team"}
	ErrInvalidSide     = Error{KindValidation, "pick team 1 or team 2"}

	ErrNotCreator = Error{KindAuthorization, "only the creator or an admin can do that"}
	ErrBanned     = Error{KindAuthorization, "player is banned from tournaments"}

	ErrTournamentNotFound = Error{KindNotFound, "tournament not found"}
	ErrMatchNotFound      = Error{KindNotFound, "match not found"}
	ErrNotInRoster        = Error{KindNotFound, "player is not in this tournament"}

	ErrAlreadyJoined   = Error{KindConflict, "player already joined"}
	ErrTournamentFull  = Error{KindConflict, "tournament is full"}
	ErrTeamFull        = Error{KindConflict, "team is full"}
	ErrNoOpChange      = Error{KindConflict, "player is already in that team"}
	ErrMatchCompleted  = Error{KindConflict, "match already has a result"}
	ErrLastTeamMember  = Error{KindConflict, "that would leave a team empty, substitute the player or declare a W.O."}
	ErrVersionConflict = Error{KindConflict, "tournament changed concurrently, try again"}
)

// KindOf classifies err, including the bracket engine's errors.
func KindOf(err error) Kind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, bracket.ErrMatchNotFound):
		return KindNotFound
	case errors.Is(err, bracket.ErrMatchCompleted):
		return KindConflict
	case errors.Is(err, bracket.ErrWinnerNotInMatch),
		errors.Is(err, bracket.ErrBadTeamSize),
		errors.Is(err, bracket.ErrNotEnoughTeams):
		return KindValidation
	}
	return KindUnknown
}
