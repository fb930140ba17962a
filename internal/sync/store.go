package sync

import (
	"context"

	"github.com/gamechanger/internal/domain"
)

// Store is the persistence surface the sync engine reconciles against. Lookup
// methods return the domain not-found sentinels when no row matches; create
// methods fill in generated IDs. Implementations back this with a Postgres
// transaction in production and an in-memory map store in tests, so one Run
// commits or rolls back as a unit.
type Store interface {
	GetBoardgame(ctx context.Context, bggID int) (*domain.Boardgame, error)
	CreateBoardgame(ctx context.Context, bg *domain.Boardgame) error
	UpdateBoardgame(ctx context.Context, bg *domain.Boardgame) error

	GetLocationByName(ctx context.Context, name string) (*domain.Location, error)
	CreateLocation(ctx context.Context, loc *domain.Location) error

	GetPlayerByName(ctx context.Context, name string) (*domain.Player, error)
	CreatePlayer(ctx context.Context, p *domain.Player) error

	GetGameByPlayID(ctx context.Context, playID int) (*domain.Game, error)
	ListGames(ctx context.Context) ([]domain.Game, error)
	CreateGame(ctx context.Context, g *domain.Game) error
	UpdateGame(ctx context.Context, g *domain.Game) error
	// DeleteGame removes a game and all its player positions.
	DeleteGame(ctx context.Context, id int64) error

	ListPositions(ctx context.Context, gameID int64) ([]domain.PlayerPosition, error)
	CreatePosition(ctx context.Context, pos *domain.PlayerPosition) error
	UpdatePosition(ctx context.Context, pos *domain.PlayerPosition) error
	DeletePosition(ctx context.Context, id int64) error
}
