// internal/database/memory.go
package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
)

// Memory is an ephemeral session.Store kept entirely in process memory.
// It backs tests and local development without Postgres, mirroring the row
// semantics of the Postgres implementation (uniqueness constraints, upsert,
// exactly-once executed transition).
type Memory struct {
	mu sync.Mutex

	lobbies      map[uuid.UUID]*models.Lobby
	players      map[uuid.UUID][]models.LobbyPlayer // lobby id -> memberships in join order
	users        map[uuid.UUID]*models.User
	votingByID   map[uuid.UUID]*models.VotingSession
	votes        map[uuid.UUID][]models.Vote // voting id -> votes in insertion order
	skipSessions map[uuid.UUID]*models.SkipSession
	skipVotes    map[uuid.UUID]map[uuid.UUID]models.SkipVote // session id -> voter id -> vote
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		lobbies:      make(map[uuid.UUID]*models.Lobby),
		players:      make(map[uuid.UUID][]models.LobbyPlayer),
		users:        make(map[uuid.UUID]*models.User),
		votingByID:   make(map[uuid.UUID]*models.VotingSession),
		votes:        make(map[uuid.UUID][]models.Vote),
		skipSessions: make(map[uuid.UUID]*models.SkipSession),
		skipVotes:    make(map[uuid.UUID]map[uuid.UUID]models.SkipVote),
	}
}

// PutUser seeds a display profile; used by tests and local setup.
func (m *Memory) PutUser(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
}

func (m *Memory) UpsertUser(_ context.Context, u *models.User) error {
	m.PutUser(u)
	return nil
}

func (m *Memory) InsertLobby(_ context.Context, l *models.Lobby) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.lobbies[l.ID] = &cp
	m.players[l.ID] = append(m.players[l.ID], models.LobbyPlayer{
		LobbyID: l.ID, UserID: l.HostID, JoinedAt: l.CreatedAt,
	})
	return nil
}

func (m *Memory) GetLobby(_ context.Context, id uuid.UUID) (*models.Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *Memory) GetLobbyByCode(_ context.Context, code string) (*models.Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = strings.ToUpper(code)
	for _, l := range m.lobbies {
		if l.Code == code {
			cp := *l
			return &cp, nil
		}
	}
	return nil, session.ErrNotFound
}

func (m *Memory) LobbyCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = strings.ToUpper(code)
	for _, l := range m.lobbies {
		if l.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) UpdateLobbySettings(_ context.Context, id uuid.UUID, patch models.SettingsPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[id]
	if !ok {
		return session.ErrNotFound
	}
	if patch.Name != nil {
		l.Name = *patch.Name
	}
	if patch.MaxPlayers != nil {
		l.MaxPlayers = *patch.MaxPlayers
	}
	if patch.TotalRounds != nil {
		l.TotalRounds = *patch.TotalRounds
	}
	if patch.VotingPointsPerPlayer != nil {
		l.VotingPointsPerPlayer = *patch.VotingPointsPerPlayer
	}
	if patch.SkipRule != nil {
		l.SkipRule = *patch.SkipRule
	}
	if patch.SkipTimeLimitHours != nil {
		l.SkipTimeLimitHours = *patch.SkipTimeLimitHours
	}
	return nil
}

func (m *Memory) SetLobbyHost(_ context.Context, id, hostID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[id]
	if !ok {
		return session.ErrNotFound
	}
	l.HostID = hostID
	return nil
}

func (m *Memory) SetLobbyStatus(_ context.Context, id uuid.UUID, status string, startedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lobbies[id]
	if !ok {
		return session.ErrNotFound
	}
	l.Status = status
	if startedAt != nil {
		t := *startedAt
		l.StartedAt = &t
	}
	return nil
}

func (m *Memory) ListLobbies(_ context.Context, status string, limit int) ([]models.LobbySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LobbySummary
	for _, l := range m.lobbies {
		if l.IsPrivate || l.Status != status {
			continue
		}
		hostName := ""
		if u, ok := m.users[l.HostID]; ok {
			hostName = u.DisplayName
		}
		out = append(out, models.LobbySummary{
			ID: l.ID, Code: l.Code, Name: l.Name, HostName: hostName,
			MaxPlayers: l.MaxPlayers, PlayerCount: len(m.players[l.ID]),
			Status: l.Status, SkipRule: l.SkipRule,
			SkipTimeLimitHours: l.SkipTimeLimitHours, CreatedAt: l.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) AddLobbyPlayer(_ context.Context, lobbyID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players[lobbyID] {
		if p.UserID == userID {
			return nil // idempotent
		}
	}
	m.players[lobbyID] = append(m.players[lobbyID], models.LobbyPlayer{
		LobbyID: lobbyID, UserID: userID, JoinedAt: time.Now(),
	})
	return nil
}

func (m *Memory) RemoveLobbyPlayer(_ context.Context, lobbyID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps := m.players[lobbyID]
	for i, p := range ps {
		if p.UserID == userID {
			m.players[lobbyID] = append(ps[:i:i], ps[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Memory) IsLobbyPlayer(_ context.Context, lobbyID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players[lobbyID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CountLobbyPlayers(_ context.Context, lobbyID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players[lobbyID]), nil
}

func (m *Memory) ListLobbyPlayers(_ context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(m.players[lobbyID]))
	for _, p := range m.players[lobbyID] {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) InsertVotingSession(_ context.Context, vs *models.VotingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *vs
	m.votingByID[vs.ID] = &cp
	return nil
}

func (m *Memory) GetVotingSession(_ context.Context, id uuid.UUID) (*models.VotingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs, ok := m.votingByID[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *vs
	return &cp, nil
}

func (m *Memory) ActiveVotingSession(_ context.Context, lobbyID uuid.UUID) (*models.VotingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vs := range m.votingByID {
		if vs.LobbyID == lobbyID && vs.Status == models.VotingStatusActive {
			cp := *vs
			return &cp, nil
		}
	}
	return nil, session.ErrNotFound
}

func (m *Memory) CompleteVotingSession(_ context.Context, id uuid.UUID, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs, ok := m.votingByID[id]
	if !ok {
		return session.ErrNotFound
	}
	vs.Status = models.VotingStatusCompleted
	t := endedAt
	vs.EndedAt = &t
	return nil
}

func (m *Memory) UpsertVote(_ context.Context, v *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs := m.votes[v.VotingID]
	for i, existing := range vs {
		if existing.UserID == v.UserID && existing.GameID == v.GameID {
			vs[i].Points = v.Points
			return nil
		}
	}
	m.votes[v.VotingID] = append(vs, *v)
	return nil
}

func (m *Memory) DeleteVote(_ context.Context, votingID, voterID uuid.UUID, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs := m.votes[votingID]
	for i, v := range vs {
		if v.UserID == voterID && v.GameID == gameID {
			m.votes[votingID] = append(vs[:i:i], vs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Memory) GameVoteTotal(_ context.Context, votingID uuid.UUID, gameID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, v := range m.votes[votingID] {
		if v.GameID == gameID {
			total += v.Points
		}
	}
	return total, nil
}

func (m *Memory) VoterPointsExcluding(_ context.Context, votingID, voterID uuid.UUID, excludeGameID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, v := range m.votes[votingID] {
		if v.UserID == voterID && v.GameID != excludeGameID {
			total += v.Points
		}
	}
	return total, nil
}

func (m *Memory) VotingResults(_ context.Context, votingID uuid.UUID) ([]models.GameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := make(map[string]int)
	order := []string{}
	for _, v := range m.votes[votingID] {
		if _, seen := totals[v.GameID]; !seen {
			order = append(order, v.GameID)
		}
		totals[v.GameID] += v.Points
	}
	out := make([]models.GameResult, 0, len(order))
	for _, g := range order {
		out = append(out, models.GameResult{GameID: g, TotalVotes: totals[g]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalVotes != out[j].TotalVotes {
			return out[i].TotalVotes > out[j].TotalVotes
		}
		return out[i].GameID < out[j].GameID
	})
	return out, nil
}

func (m *Memory) InsertSkipSession(_ context.Context, s *models.SkipSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.skipSessions[s.ID] = &cp
	m.skipVotes[s.ID] = make(map[uuid.UUID]models.SkipVote)
	if s.VotesCount > 0 {
		m.skipVotes[s.ID][s.InitiatedBy] = models.SkipVote{
			SessionID: s.ID, VoterID: s.InitiatedBy, CreatedAt: s.CreatedAt,
		}
	}
	return nil
}

func (m *Memory) GetSkipSession(_ context.Context, id uuid.UUID) (*models.SkipSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.skipSessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) OpenSkipSession(_ context.Context, lobbyID uuid.UUID, battleNumber int, targetID uuid.UUID) (*models.SkipSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.skipSessions {
		if s.LobbyID == lobbyID && s.BattleNumber == battleNumber && s.TargetID == targetID && s.Open() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, session.ErrNotFound
}

func (m *Memory) AddSkipVote(_ context.Context, sessionID, voterID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.skipSessions[sessionID]
	if !ok {
		return 0, session.ErrNotFound
	}
	votes := m.skipVotes[sessionID]
	if _, voted := votes[voterID]; voted {
		return 0, session.ErrDuplicateVote
	}
	votes[voterID] = models.SkipVote{SessionID: sessionID, VoterID: voterID, CreatedAt: time.Now()}
	s.VotesCount++
	return s.VotesCount, nil
}

func (m *Memory) RemoveSkipVote(_ context.Context, sessionID, voterID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.skipSessions[sessionID]
	if !ok {
		return 0, session.ErrNotFound
	}
	votes := m.skipVotes[sessionID]
	if _, voted := votes[voterID]; !voted {
		return 0, session.ErrNoVoteToCancel
	}
	delete(votes, voterID)
	s.VotesCount--
	return s.VotesCount, nil
}

func (m *Memory) MarkSkipExecuted(_ context.Context, sessionID uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.skipSessions[sessionID]
	if !ok {
		return false, session.ErrNotFound
	}
	if s.Phase != models.SkipPhaseActive {
		return false, nil
	}
	s.Phase = models.SkipPhaseExecuted
	t := at
	s.ExecutedAt = &t
	return true, nil
}

func (m *Memory) ExpiredTimeBasedSessions(_ context.Context, now time.Time) ([]models.SkipSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SkipSession
	for _, s := range m.skipSessions {
		if s.SkipRule != models.SkipRuleTimeBased || s.Phase != models.SkipPhaseActive {
			continue
		}
		if s.CreatedAt.Add(time.Duration(s.TimeLimitHours) * time.Hour).After(now) {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}
