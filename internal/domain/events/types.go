// Package events - types.go
package events

// RosterChanged is emitted after any successful roster mutation.
type RosterChanged struct {
	TournamentID string
	GuildID      string
}

// TournamentStarted is emitted once the bracket exists and state is running.
type TournamentStarted struct {
	TournamentID string
	GuildID      string
}

// MatchChannelOpened is emitted for every match channel created, and again for
// live ones when tournaments are restored.
type MatchChannelOpened struct {
	TournamentID string
	GuildID      string
	MatchID      string
	ChannelID    string
}

// MatchResolved is emitted when a match result is committed, whichever path
// decided it (creator button, assistant confirmation, walkover timeout).
type MatchResolved struct {
	TournamentID string
	GuildID      string
	MatchID      string
	ChannelID    string
	Walkover     bool
}

// TournamentClosed is emitted on finish or cancel. ChannelIDs lists every
// match channel the tournament ever opened.
type TournamentClosed struct {
	TournamentID string
	GuildID      string
	State        string
	ChannelIDs   []string
}
