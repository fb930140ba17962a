package sync

import (
	"context"
	"sync"

	"github.com/gamechanger/internal/domain"
)

// memStore is an in-memory Store used to exercise the engine without a
// database. IDs are sequential; deletes cascade like the real schema.
type memStore struct {
	mu         sync.Mutex
	nextID     int64
	boardgames map[int]*domain.Boardgame
	locations  map[string]*domain.Location
	players    map[string]*domain.Player
	games      map[int64]*domain.Game
	positions  map[int64]*domain.PlayerPosition
}

func newMemStore() *memStore {
	return &memStore{
		boardgames: make(map[int]*domain.Boardgame),
		locations:  make(map[string]*domain.Location),
		players:    make(map[string]*domain.Player),
		games:      make(map[int64]*domain.Game),
		positions:  make(map[int64]*domain.PlayerPosition),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) GetBoardgame(_ context.Context, bggID int) (*domain.Boardgame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bg, ok := m.boardgames[bggID]
	if !ok {
		return nil, domain.ErrBoardgameNotFound
	}
	copied := *bg
	return &copied, nil
}

func (m *memStore) CreateBoardgame(_ context.Context, bg *domain.Boardgame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *bg
	m.boardgames[bg.BGGID] = &copied
	return nil
}

func (m *memStore) UpdateBoardgame(_ context.Context, bg *domain.Boardgame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.boardgames[bg.BGGID]; !ok {
		return domain.ErrBoardgameNotFound
	}
	copied := *bg
	m.boardgames[bg.BGGID] = &copied
	return nil
}

func (m *memStore) GetLocationByName(_ context.Context, name string) (*domain.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locations[name]
	if !ok {
		return nil, domain.ErrLocationNotFound
	}
	copied := *loc
	return &copied, nil
}

func (m *memStore) CreateLocation(_ context.Context, loc *domain.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc.ID = m.id()
	copied := *loc
	m.locations[loc.Name] = &copied
	return nil
}

func (m *memStore) GetPlayerByName(_ context.Context, name string) (*domain.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[name]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memStore) CreatePlayer(_ context.Context, p *domain.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	copied := *p
	m.players[p.Name] = &copied
	return nil
}

func (m *memStore) GetGameByPlayID(_ context.Context, playID int) (*domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.games {
		if g.PlayID == playID {
			copied := *g
			return &copied, nil
		}
	}
	return nil, domain.ErrGameNotFound
}

func (m *memStore) ListGames(_ context.Context) ([]domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	games := make([]domain.Game, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, *g)
	}
	return games, nil
}

func (m *memStore) CreateGame(_ context.Context, g *domain.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.ID = m.id()
	copied := *g
	m.games[g.ID] = &copied
	return nil
}

func (m *memStore) UpdateGame(_ context.Context, g *domain.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; !ok {
		return domain.ErrGameNotFound
	}
	copied := *g
	m.games[g.ID] = &copied
	return nil
}

func (m *memStore) DeleteGame(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[id]; !ok {
		return domain.ErrGameNotFound
	}
	delete(m.games, id)
	for posID, pos := range m.positions {
		if pos.GameID == id {
			delete(m.positions, posID)
		}
	}
	return nil
}

func (m *memStore) ListPositions(_ context.Context, gameID int64) ([]domain.PlayerPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var positions []domain.PlayerPosition
	for _, pos := range m.positions {
		if pos.GameID == gameID {
			positions = append(positions, *pos)
		}
	}
	return positions, nil
}

func (m *memStore) CreatePosition(_ context.Context, pos *domain.PlayerPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos.ID = m.id()
	copied := *pos
	m.positions[pos.ID] = &copied
	return nil
}

func (m *memStore) UpdatePosition(_ context.Context, pos *domain.PlayerPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[pos.ID]; !ok {
		return domain.ErrPositionNotFound
	}
	copied := *pos
	m.positions[pos.ID] = &copied
	return nil
}

func (m *memStore) DeletePosition(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[id]; !ok {
		return domain.ErrPositionNotFound
	}
	delete(m.positions, id)
	return nil
}
