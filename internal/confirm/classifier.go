// Package confirm turns match-channel chat into result claims and commits
// them once the other side agrees, the walkover window lapses or the creator
// decides.
package confirm

import (
	"context"
	"regexp"
	"strings"

	"github.com/jose-valero/simulator-bot/internal/bracket"
)

type Intent string

const (
	IntentNone       Intent = "none"
	IntentVictory    Intent = "victory"
	IntentWalkover   Intent = "walkover"
	IntentConfirm    Intent = "confirm"
	IntentDeny       Intent = "deny"
	IntentInProgress Intent = "in_progress"
)

// RosterContext tells a classifier who wrote the message.
type RosterContext struct {
	AuthorID   string
	AuthorSide bracket.Side
	Team1      []string
	Team2      []string
	// Pending is set while a claim waits for the other side.
	Pending bool
}

// Classification is a classifier's reading of one message. Winner is the
// side the message says won, for victory and walkover intents.
type Classification struct {
	Intent     Intent
	Winner     bracket.Side
	Confidence float64
}

var none = Classification{Intent: IntentNone}

type Classifier interface {
	Classify(ctx context.Context, text string, rc RosterContext) (Classification, error)
}

// words builds a case-insensitive matcher for whole words or phrases,
// accent-safe where \b is not.
func words(alts ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(alts, "|") + `)(?:$|[^\p{L}\p{N}])`)
}

var (
	reInProgress = words(`still playing`, `in progress`, `not (?:yet )?(?:done|finished)`, `mid game`,
		`seguimos jugando`, `a[uú]n (?:estamos )?jugando`, `todav[ií]a (?:estamos )?jugando`, `estamos jugando`, `no hemos terminado`,
		`ainda (?:estamos )?jogando`, `estamos jogando`, `n[aã]o terminamos`)
	reWalkover = words(`w\.?\s?o\.?`, `walkover`, `no[- ]show`, `didn'?t show(?: up)?`, `never showed`,
		`no (?:se )?present[oó]`, `no vinieron`, `no apareci[oó]`, `no llegaron`,
		`n[aã]o apareceu`, `n[aã]o veio`, `n[aã]o vieram`)
	reDeny = words(`nope`, `false`, `wrong`, `not true`, `lie`, `liar`,
		`mentira`, `falso`, `incorrecto`, `errado`)
	// A leading "no" denies unless the rest of the message agrees.
	reLeadingNo = regexp.MustCompile(`(?i)^\s*(?:no|n[aã]o)(?:$|[^\p{L}\p{N}])`)
	reDefeat = words(`i lost`, `we lost`, `they won`, `he won`, `she won`, `you won`,
		`perd[ií]`, `perdimos`, `ganaron`, `gan[oó] [eé]l`, `ganaste`,
		`perdemos`, `eles ganharam`, `ele ganhou`, `voc[eê] ganhou`)
	reVictory = words(`i won`, `we won`, `won`, `win`, `victory`, `ez`,
		`gan[eé]`, `ganamos`, `victoria`,
		`ganhei`, `ganhamos`, `vit[oó]ria`)
	reConfirm = words(`yes`, `yeah`, `yep`, `confirm(?:ed)?`, `correct`, `true`, `gg`, `right`, `no (?:problem|worries)`,
		`s[ií]`, `sin problema`, `confirmo`, `confirmado`, `correcto`, `verdad`, `es cierto`,
		`sim`, `sem problema`, `certo`, `isso`, `verdade`)
)

// KeywordClassifier matches EN/ES/PT phrases. Order matters: "still playing"
// beats everything, and a result statement beats a bare "no" or "yes".
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(_ context.Context, text string, rc RosterContext) (Classification, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return none, nil
	}
	own := rc.AuthorSide
	switch {
	case reInProgress.MatchString(s):
		return Classification{Intent: IntentInProgress, Confidence: 1}, nil
	case reWalkover.MatchString(s):
		return Classification{Intent: IntentWalkover, Winner: own, Confidence: 1}, nil
	case reDefeat.MatchString(s):
		return Classification{Intent: IntentVictory, Winner: own.Opponent(), Confidence: 1}, nil
	case reVictory.MatchString(s):
		return Classification{Intent: IntentVictory, Winner: own, Confidence: 1}, nil
	case reDeny.MatchString(s), reLeadingNo.MatchString(s) && !reConfirm.MatchString(s):
		return Classification{Intent: IntentDeny, Confidence: 1}, nil
	case reConfirm.MatchString(s):
		return Classification{Intent: IntentConfirm, Confidence: 1}, nil
	}
	return none, nil
}
