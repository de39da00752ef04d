package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jose-valero/simulator-bot/internal/bracket"
	"github.com/jose-valero/simulator-bot/internal/session/sessiontest"
)

type memStore struct {
	mu        sync.Mutex
	ts        map[string]*Tournament
	jobs      map[string]CleanupJob
	ranks     map[string]RankDelta
	bans      map[string]bool
	conflicts int // next N commits fail with ErrVersionConflict
	commits   int
}

func newMemStore() *memStore {
	return &memStore{
		ts:    map[string]*Tournament{},
		jobs:  map[string]CleanupJob{},
		ranks: map[string]RankDelta{},
		bans:  map[string]bool{},
	}
}

func (s *memStore) CreateTournament(_ context.Context, t *Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ts[t.ID] = t.Clone()
	return nil
}

func (s *memStore) GetTournament(_ context.Context, id string) (*Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.ts[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return t.Clone(), nil
}

func (s *memStore) Commit(_ context.Context, c Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.ts[c.Tournament.ID]
	if !ok {
		return ErrTournamentNotFound
	}
	if s.conflicts > 0 {
		s.conflicts--
		cur.Version++
		return ErrVersionConflict
	}
	if cur.Version != c.Tournament.Version {
		return ErrVersionConflict
	}
	c.Tournament.Version++
	s.ts[c.Tournament.ID] = c.Tournament.Clone()
	for _, j := range c.Cleanup {
		s.jobs[j.ID] = j
	}
	for _, d := range c.Ranks {
		k := d.GuildID + "|" + d.UserID
		r := s.ranks[k]
		r.GuildID, r.UserID = d.GuildID, d.UserID
		r.Wins += d.Wins
		r.Losses += d.Losses
		r.Points += d.Points
		s.ranks[k] = r
	}
	s.commits++
	return nil
}

func (s *memStore) DeleteTournament(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ts[id]; !ok {
		return ErrTournamentNotFound
	}
	delete(s.ts, id)
	return nil
}

func (s *memStore) ListTournaments(context.Context) ([]*Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Tournament, 0, len(s.ts))
	for _, t := range s.ts {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (s *memStore) IsBanned(_ context.Context, guildID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bans["|"+userID] || s.bans[guildID+"|"+userID], nil
}

func (s *memStore) DueCleanup(_ context.Context, now time.Time, limit int) ([]CleanupJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CleanupJob
	for _, j := range s.jobs {
		if !j.RunAt.After(now) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CompleteCleanup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *memStore) RetryCleanup(_ context.Context, id string, next time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil
	}
	j.Attempts++
	j.RunAt = next
	j.LastError = lastErr
	s.jobs[id] = j
	return nil
}

func (s *memStore) jobsOf(kind CleanupKind) []CleanupJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CleanupJob
	for _, j := range s.jobs {
		if j.Kind == kind {
			out = append(out, j)
		}
	}
	return out
}

func (s *memStore) rank(guildID, userID string) RankDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ranks[guildID+"|"+userID]
}

type fakeNotifier struct {
	mu            sync.Mutex
	seq           int
	panels        int
	edits         int
	groups        []string
	channels      map[string][]string // channel -> participants
	deleted       []string
	deletedGroups []string
	grants        []string
	revokes       []string
	posts         []string
	failChannels  bool
	failDeletes   int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{channels: map[string][]string{}}
}

func (n *fakeNotifier) next(prefix string) string {
	n.seq++
	return fmt.Sprintf("%s-%d", prefix, n.seq)
}

func (n *fakeNotifier) SendPanel(context.Context, *Tournament) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.panels++
	return n.next("msg"), nil
}

func (n *fakeNotifier) EditPanel(context.Context, *Tournament) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.edits++
	return nil
}

func (n *fakeNotifier) CreateGroup(context.Context, *Tournament) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	g := n.next("group")
	n.groups = append(n.groups, g)
	return g, nil
}

func (n *fakeNotifier) CreateMatchChannel(_ context.Context, _ *Tournament, _ string, m *bracket.Match) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failChannels {
		return "", fmt.Errorf("missing permissions")
	}
	ch := n.next("chan")
	n.channels[ch] = m.Participants()
	return ch, nil
}

func (n *fakeNotifier) DeleteChannel(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failDeletes > 0 {
		n.failDeletes--
		return fmt.Errorf("rate limited")
	}
	n.deleted = append(n.deleted, id)
	return nil
}

func (n *fakeNotifier) DeleteGroup(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deletedGroups = append(n.deletedGroups, id)
	return nil
}

func (n *fakeNotifier) GrantAccess(_ context.Context, ch, user string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.grants = append(n.grants, ch+":"+user)
	return nil
}

func (n *fakeNotifier) RevokeAccess(_ context.Context, ch, user string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.revokes = append(n.revokes, ch+":"+user)
	return nil
}

func (n *fakeNotifier) PostMessage(_ context.Context, ch, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.posts = append(n.posts, ch+":"+text)
	return nil
}

func (n *fakeNotifier) channelCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.channels)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	m     *Manager
	store *memStore
	notif *fakeNotifier
	sched *sessiontest.Scheduler
	clock *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: newMemStore(),
		notif: newFakeNotifier(),
		sched: sessiontest.New(),
		clock: &clock{now: time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)},
	}
	h.m = NewManager(h.store, h.notif, Options{
		InactivityTimeout: 10 * time.Minute,
		CleanupDelay:      10 * time.Second,
		MinRankedPlayers:  3,
		Sessions:          h.sched.Registry(),
		Rand:              rand.New(rand.NewSource(42)),
		Now:               h.clock.Now,
	})
	return h
}

func (h *harness) create(t *testing.T, mode Mode, n int, sel TeamSelection, start StartMode) *Tournament {
	t.Helper()
	tr, err := h.m.Create(context.Background(), CreateParams{
		GuildID:       "g1",
		ChannelID:     "control",
		CreatorID:     "creator",
		Mode:          mode,
		MaxPlayers:    n,
		TeamSelection: sel,
		StartMode:     start,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return tr
}

func (h *harness) fill(t *testing.T, id string, n int) *Tournament {
	t.Helper()
	var tr *Tournament
	for i := 1; i <= n; i++ {
		var err error
		tr, err = h.m.Join(context.Background(), id, fmt.Sprintf("u%02d", i))
		if err != nil {
			t.Fatalf("join u%02d: %v", i, err)
		}
	}
	return tr
}

var creator = Actor{UserID: "creator"}
