package simulator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jose-valero/simulator-bot/internal/bracket"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrInvalidQuantity, KindValidation},
		{fmt.Errorf("%w: 1v1 accepts 2, 4", ErrInvalidQuantity), KindValidation},
		{ErrNotCreator, KindAuthorization},
		{ErrTournamentNotFound, KindNotFound},
		{fmt.Errorf("join: %w", ErrTeamFull), KindConflict},
		{bracket.ErrMatchNotFound, KindNotFound},
		{bracket.ErrMatchCompleted, KindConflict},
		{bracket.ErrNotEnoughTeams, KindValidation},
		{errors.New("boom"), KindUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, KindOf(c.err), "%v", c.err)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" 3V3 ")
	assert.NoError(t, err)
	assert.Equal(t, Mode3v3, m)
	assert.Equal(t, 3, m.PlayersPerTeam())
	assert.Equal(t, []int{6, 12, 24}, m.Quantities())

	_, err = ParseMode("5v5")
	assert.ErrorIs(t, err, ErrInvalidMode)
}
