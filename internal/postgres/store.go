package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gamechanger/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same store
// code serves plain reads and transaction-scoped sync runs.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// store implements the sync engine's persistence surface.
type store struct {
	q querier
}

func (s *store) GetBoardgame(ctx context.Context, bggID int) (*domain.Boardgame, error) {
	query := `
		SELECT bgg_id, name, name_primary, img, img_small, yearpublished,
		       minplayers, maxplayers, playtime, cooperative, rating, weight
		FROM boardgames
		WHERE bgg_id = $1
	`
	var bg domain.Boardgame
	err := s.q.QueryRow(ctx, query, bggID).Scan(
		&bg.BGGID,
		&bg.Name,
		&bg.NamePrimary,
		&bg.Img,
		&bg.ImgSmall,
		&bg.YearPublished,
		&bg.MinPlayers,
		&bg.MaxPlayers,
		&bg.Playtime,
		&bg.Cooperative,
		&bg.Rating,
		&bg.Weight,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBoardgameNotFound
		}
		return nil, fmt.Errorf("getting boardgame: %w", err)
	}
	return &bg, nil
}

func (s *store) CreateBoardgame(ctx context.Context, bg *domain.Boardgame) error {
	query := `
		INSERT INTO boardgames (bgg_id, name, name_primary, img, img_small, yearpublished,
		                        minplayers, maxplayers, playtime, cooperative, rating, weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.q.Exec(ctx, query,
		bg.BGGID, bg.Name, bg.NamePrimary, bg.Img, bg.ImgSmall, bg.YearPublished,
		bg.MinPlayers, bg.MaxPlayers, bg.Playtime, bg.Cooperative, bg.Rating, bg.Weight,
	)
	if err != nil {
		return fmt.Errorf("creating boardgame: %w", err)
	}
	return nil
}

func (s *store) UpdateBoardgame(ctx context.Context, bg *domain.Boardgame) error {
	query := `
		UPDATE boardgames
		SET name = $2, name_primary = $3, img = $4, img_small = $5, yearpublished = $6,
		    minplayers = $7, maxplayers = $8, playtime = $9, cooperative = $10,
		    rating = $11, weight = $12
		WHERE bgg_id = $1
	`
	result, err := s.q.Exec(ctx, query,
		bg.BGGID, bg.Name, bg.NamePrimary, bg.Img, bg.ImgSmall, bg.YearPublished,
		bg.MinPlayers, bg.MaxPlayers, bg.Playtime, bg.Cooperative, bg.Rating, bg.Weight,
	)
	if err != nil {
		return fmt.Errorf("updating boardgame: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrBoardgameNotFound
	}
	return nil
}

func (s *store) GetLocationByName(ctx context.Context, name string) (*domain.Location, error) {
	var loc domain.Location
	err := s.q.QueryRow(ctx, `SELECT id, name FROM locations WHERE name = $1`, name).
		Scan(&loc.ID, &loc.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLocationNotFound
		}
		return nil, fmt.Errorf("getting location: %w", err)
	}
	return &loc, nil
}

func (s *store) CreateLocation(ctx context.Context, loc *domain.Location) error {
	err := s.q.QueryRow(ctx, `INSERT INTO locations (name) VALUES ($1) RETURNING id`, loc.Name).
		Scan(&loc.ID)
	if err != nil {
		return fmt.Errorf("creating location: %w", err)
	}
	return nil
}

func (s *store) GetPlayerByName(ctx context.Context, name string) (*domain.Player, error) {
	var p domain.Player
	err := s.q.QueryRow(ctx, `SELECT id, name, bgg_username FROM players WHERE name = $1`, name).
		Scan(&p.ID, &p.Name, &p.BGGUsername)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &p, nil
}

func (s *store) CreatePlayer(ctx context.Context, p *domain.Player) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO players (name, bgg_username) VALUES ($1, $2) RETURNING id`,
		p.Name, p.BGGUsername,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	return nil
}

func (s *store) GetGameByPlayID(ctx context.Context, playID int) (*domain.Game, error) {
	query := `
		SELECT id, play_id, date, playtime, boardgame_id, location_id
		FROM games
		WHERE play_id = $1
	`
	var g domain.Game
	err := s.q.QueryRow(ctx, query, playID).Scan(
		&g.ID, &g.PlayID, &g.Date, &g.Playtime, &g.BoardgameID, &g.LocationID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("getting game: %w", err)
	}
	return &g, nil
}

func (s *store) ListGames(ctx context.Context) ([]domain.Game, error) {
	query := `SELECT id, play_id, date, playtime, boardgame_id, location_id FROM games`
	rows, err := s.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		var g domain.Game
		err := rows.Scan(&g.ID, &g.PlayID, &g.Date, &g.Playtime, &g.BoardgameID, &g.LocationID)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *store) CreateGame(ctx context.Context, g *domain.Game) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO games (play_id, date, playtime, boardgame_id, location_id)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		g.PlayID, g.Date, g.Playtime, g.BoardgameID, g.LocationID,
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("creating game: %w", err)
	}
	return nil
}

func (s *store) UpdateGame(ctx context.Context, g *domain.Game) error {
	result, err := s.q.Exec(ctx,
		`UPDATE games SET date = $2, playtime = $3, boardgame_id = $4, location_id = $5
		 WHERE id = $1`,
		g.ID, g.Date, g.Playtime, g.BoardgameID, g.LocationID,
	)
	if err != nil {
		return fmt.Errorf("updating game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrGameNotFound
	}
	return nil
}

func (s *store) DeleteGame(ctx context.Context, id int64) error {
	// Positions cascade via the foreign key.
	result, err := s.q.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting game: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrGameNotFound
	}
	return nil
}

func (s *store) ListPositions(ctx context.Context, gameID int64) ([]domain.PlayerPosition, error) {
	query := `SELECT id, game_id, player_id, points, win FROM player_positions WHERE game_id = $1`
	rows, err := s.q.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.PlayerPosition
	for rows.Next() {
		var pos domain.PlayerPosition
		err := rows.Scan(&pos.ID, &pos.GameID, &pos.PlayerID, &pos.Points, &pos.Win)
		if err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func (s *store) CreatePosition(ctx context.Context, pos *domain.PlayerPosition) error {
	err := s.q.QueryRow(ctx,
		`INSERT INTO player_positions (game_id, player_id, points, win)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		pos.GameID, pos.PlayerID, pos.Points, pos.Win,
	).Scan(&pos.ID)
	if err != nil {
		return fmt.Errorf("creating position: %w", err)
	}
	return nil
}

func (s *store) UpdatePosition(ctx context.Context, pos *domain.PlayerPosition) error {
	result, err := s.q.Exec(ctx,
		`UPDATE player_positions SET points = $2, win = $3 WHERE id = $1`,
		pos.ID, pos.Points, pos.Win,
	)
	if err != nil {
		return fmt.Errorf("updating position: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrPositionNotFound
	}
	return nil
}

func (s *store) DeletePosition(ctx context.Context, id int64) error {
	result, err := s.q.Exec(ctx, `DELETE FROM player_positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting position: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrPositionNotFound
	}
	return nil
}
