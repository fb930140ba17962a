package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gamechanger/internal/config"
	"github.com/gamechanger/internal/domain"
	"github.com/gamechanger/internal/ranking"
	gsync "github.com/gamechanger/internal/sync"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS boardgames (
			bgg_id INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			name_primary VARCHAR(255) NOT NULL,
			img TEXT DEFAULT '',
			img_small TEXT DEFAULT '',
			yearpublished INT DEFAULT 0,
			minplayers INT DEFAULT 0,
			maxplayers INT DEFAULT 0,
			playtime INT DEFAULT 0,
			cooperative BOOLEAN DEFAULT FALSE,
			rating DOUBLE PRECISION DEFAULT 0,
			weight DOUBLE PRECISION DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS locations (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			bgg_username VARCHAR(255) DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id BIGSERIAL PRIMARY KEY,
			play_id INT NOT NULL UNIQUE,
			date DATE NOT NULL,
			playtime INT DEFAULT 0,
			boardgame_id INT NOT NULL REFERENCES boardgames(bgg_id),
			location_id BIGINT NOT NULL REFERENCES locations(id)
		)`,
		`CREATE TABLE IF NOT EXISTS player_positions (
			id BIGSERIAL PRIMARY KEY,
			game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
			player_id BIGINT NOT NULL REFERENCES players(id),
			points DOUBLE PRECISION,
			win BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE(game_id, player_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_games_date ON games(date DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_games_location ON games(location_id)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_game ON player_positions(game_id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// InTx runs fn against a transaction-scoped store. The transaction commits
// when fn returns nil and rolls back otherwise, so one sync run lands
// atomically or not at all.
func (r *Repository) InTx(ctx context.Context, fn func(store gsync.Store) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&store{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.logger.Error("rolling back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Store returns a non-transactional store over the pool.
func (r *Repository) Store() gsync.Store {
	return &store{q: r.pool}
}

// ListRankedGames loads every stored game joined with its boardgame, location
// and player results, newest first. Positions are assigned from wins and
// scores; ranking points are left for the caller to compute per mode.
func (r *Repository) ListRankedGames(ctx context.Context) ([]ranking.Game, error) {
	query := `
		SELECT g.id, g.play_id, g.date, g.playtime,
		       b.bgg_id, b.name, b.img_small, b.weight,
		       l.name
		FROM games g
		JOIN boardgames b ON b.bgg_id = g.boardgame_id
		JOIN locations l ON l.id = g.location_id
		ORDER BY g.date DESC, g.play_id DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var games []ranking.Game
	index := make(map[int64]int)
	for rows.Next() {
		var g ranking.Game
		err := rows.Scan(
			&g.ID,
			&g.PlayID,
			&g.Date,
			&g.Playtime,
			&g.BGGID,
			&g.Boardgame,
			&g.ImgSmall,
			&g.Weight,
			&g.Location,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		index[g.ID] = len(games)
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}

	posQuery := `
		SELECT pp.game_id, p.name, p.bgg_username, pp.points, pp.win
		FROM player_positions pp
		JOIN players p ON p.id = pp.player_id
	`
	posRows, err := r.pool.Query(ctx, posQuery)
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	defer posRows.Close()

	for posRows.Next() {
		var gameID int64
		var result ranking.PlayerResult
		err := posRows.Scan(&gameID, &result.Name, &result.BGGUsername, &result.Points, &result.Win)
		if err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		if gi, ok := index[gameID]; ok {
			games[gi].Players = append(games[gi].Players, result)
		}
	}
	if err := posRows.Err(); err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}

	for i := range games {
		games[i].Players = ranking.AssignPositions(games[i].Players)
	}
	return games, nil
}

// ListBoardgames retrieves all stored boardgames ordered by rating.
func (r *Repository) ListBoardgames(ctx context.Context) ([]domain.Boardgame, error) {
	query := `
		SELECT bgg_id, name, name_primary, img, img_small, yearpublished,
		       minplayers, maxplayers, playtime, cooperative, rating, weight
		FROM boardgames
		ORDER BY rating DESC, name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing boardgames: %w", err)
	}
	defer rows.Close()

	var boardgames []domain.Boardgame
	for rows.Next() {
		var bg domain.Boardgame
		err := rows.Scan(
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
			return nil, fmt.Errorf("scanning boardgame: %w", err)
		}
		boardgames = append(boardgames, bg)
	}
	return boardgames, rows.Err()
}

// GetBoardgame retrieves one boardgame by its BGG id.
func (r *Repository) GetBoardgame(ctx context.Context, bggID int) (*domain.Boardgame, error) {
	return (&store{q: r.pool}).GetBoardgame(ctx, bggID)
}
