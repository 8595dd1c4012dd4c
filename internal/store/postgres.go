package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/impactpool/milestone-cli/internal/db"
	"github.com/impactpool/milestone-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"insert_achievement": `INSERT INTO achievements (id, category, subject, recipient, state, record, created_at)
	                       VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
	"get_achievement":    `SELECT record FROM achievements WHERE id = $1`,
	"update_achievement": `UPDATE achievements SET state = $1, record = $2 WHERE id = $3`,
	"get_milestone":      `SELECT subject, category, high_water_mark, last_updated FROM milestone_states WHERE subject = $1 AND category = $2`,
	"put_milestone": `INSERT INTO milestone_states (subject, category, high_water_mark, last_updated)
	                  VALUES ($1, $2, $3, $4)
	                  ON CONFLICT (subject, category) DO UPDATE SET high_water_mark = $3, last_updated = $4`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS achievements (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	subject    TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	state      TEXT NOT NULL,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS milestone_states (
	subject         TEXT NOT NULL,
	category        TEXT NOT NULL,
	high_water_mark DOUBLE PRECISION NOT NULL,
	last_updated    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (subject, category)
);

CREATE TABLE IF NOT EXISTS pools (
	id         TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS positions (
	pool_id     TEXT NOT NULL,
	contributor TEXT NOT NULL,
	record      JSONB NOT NULL,
	PRIMARY KEY (pool_id, contributor)
);

CREATE INDEX IF NOT EXISTS idx_achievements_recipient ON achievements(recipient);
CREATE INDEX IF NOT EXISTS idx_achievements_state ON achievements(state);
CREATE INDEX IF NOT EXISTS idx_achievements_subject ON achievements(subject, category);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertAchievementIfAbsent(ctx context.Context, a model.ClaimableAchievement) (bool, *model.ClaimableAchievement, error) {
	record, err := json.Marshal(a)
	if err != nil {
		return false, nil, eris.Wrap(err, "postgres: marshal achievement")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO achievements (id, category, subject, recipient, state, record, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
		a.ID, string(a.Category), a.Subject, a.Recipient, string(a.State), record, a.CreatedAt.UTC(),
	)
	if err != nil {
		return false, nil, eris.Wrapf(err, "postgres: insert achievement %s", a.ID)
	}
	if tag.RowsAffected() > 0 {
		out := a
		return true, &out, nil
	}

	existing, err := s.GetAchievement(ctx, a.ID)
	if err != nil {
		return false, nil, err
	}
	if existing == nil {
		return false, nil, eris.Errorf("postgres: achievement %s vanished after conflicting insert", a.ID)
	}
	return false, existing, nil
}

func (s *PostgresStore) GetAchievement(ctx context.Context, id string) (*model.ClaimableAchievement, error) {
	var record []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM achievements WHERE id = $1`, id,
	).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get achievement %s", id)
	}

	var a model.ClaimableAchievement
	if err := json.Unmarshal(record, &a); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal achievement %s", id)
	}
	return &a, nil
}

func (s *PostgresStore) UpdateAchievement(ctx context.Context, a model.ClaimableAchievement) error {
	record, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal achievement")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE achievements SET state = $1, record = $2 WHERE id = $3`,
		string(a.State), record, a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update achievement %s", a.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("achievement not found: %s", a.ID)
	}
	return nil
}

func (s *PostgresStore) ListAchievements(ctx context.Context, filter AchievementFilter) ([]model.ClaimableAchievement, error) {
	query := `SELECT record FROM achievements WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Recipient != "" {
		query += fmt.Sprintf(` AND recipient = $%d`, argIdx)
		args = append(args, filter.Recipient)
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, string(filter.State))
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, string(filter.Category))
		argIdx++
	}
	query += ` ORDER BY created_at, id`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list achievements")
	}
	defer rows.Close()

	var out []model.ClaimableAchievement
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "postgres: scan achievement")
		}
		var a model.ClaimableAchievement
		if err := json.Unmarshal(record, &a); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal achievement")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list achievements iterate")
}

func (s *PostgresStore) CountAchievementsByState(ctx context.Context) (map[model.AchievementState]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT state, COUNT(*) FROM achievements GROUP BY state`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count achievements")
	}
	defer rows.Close()

	counts := make(map[model.AchievementState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan counts")
		}
		counts[model.AchievementState(state)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count achievements iterate")
}

func (s *PostgresStore) GetMilestoneState(ctx context.Context, subject string, category model.Category) (*model.MilestoneState, error) {
	var st model.MilestoneState
	err := s.pool.QueryRow(ctx,
		`SELECT subject, category, high_water_mark, last_updated FROM milestone_states
		 WHERE subject = $1 AND category = $2`,
		subject, string(category),
	).Scan(&st.Subject, &st.Category, &st.HighWaterMark, &st.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get milestone state %s/%s", subject, category)
	}
	return &st, nil
}

func (s *PostgresStore) PutMilestoneState(ctx context.Context, st model.MilestoneState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO milestone_states (subject, category, high_water_mark, last_updated)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (subject, category) DO UPDATE SET high_water_mark = $3, last_updated = $4`,
		st.Subject, string(st.Category), st.HighWaterMark, st.LastUpdated.UTC(),
	)
	return eris.Wrapf(err, "postgres: put milestone state %s/%s", st.Subject, st.Category)
}

func (s *PostgresStore) InsertPool(ctx context.Context, p model.Pool) error {
	record, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pool")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pools (id, record, updated_at) VALUES ($1, $2, $3)`,
		p.ID, record, p.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert pool %s", p.ID)
}

func (s *PostgresStore) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	var record []byte
	err := s.pool.QueryRow(ctx, `SELECT record FROM pools WHERE id = $1`, id).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get pool %s", id)
	}

	var p model.Pool
	if err := json.Unmarshal(record, &p); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal pool %s", id)
	}
	return &p, nil
}

func (s *PostgresStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM pools ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pools")
	}
	defer rows.Close()

	var out []model.Pool
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pool")
		}
		var p model.Pool
		if err := json.Unmarshal(record, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal pool")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list pools iterate")
}

func (s *PostgresStore) UpdatePool(ctx context.Context, p model.Pool) error {
	record, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal pool")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE pools SET record = $1, updated_at = $2 WHERE id = $3`,
		record, p.UpdatedAt.UTC(), p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update pool %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("pool not found: %s", p.ID)
	}
	return nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, poolID, contributor string) (*model.Position, error) {
	var record []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM positions WHERE pool_id = $1 AND contributor = $2`,
		poolID, contributor,
	).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get position %s/%s", poolID, contributor)
	}

	var pos model.Position
	if err := json.Unmarshal(record, &pos); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal position")
	}
	return &pos, nil
}

func (s *PostgresStore) PutPosition(ctx context.Context, pos model.Position) error {
	record, err := json.Marshal(pos)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal position")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO positions (pool_id, contributor, record) VALUES ($1, $2, $3)
		 ON CONFLICT (pool_id, contributor) DO UPDATE SET record = $3`,
		pos.PoolID, pos.Contributor, record,
	)
	return eris.Wrapf(err, "postgres: put position %s/%s", pos.PoolID, pos.Contributor)
}

func (s *PostgresStore) ListPositions(ctx context.Context, poolID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM positions WHERE pool_id = $1 ORDER BY contributor`, poolID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list positions")
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "postgres: scan position")
		}
		var pos model.Position
		if err := json.Unmarshal(record, &pos); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal position")
		}
		out = append(out, pos)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list positions iterate")
}
