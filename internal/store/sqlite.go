package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/impactpool/milestone-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Full records are
// kept as JSON with the columns needed for lookups and filtering broken out,
// the same shape the other stores use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS achievements (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	subject    TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	state      TEXT NOT NULL,
	record     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS milestone_states (
	subject         TEXT NOT NULL,
	category        TEXT NOT NULL,
	high_water_mark REAL NOT NULL,
	last_updated    DATETIME NOT NULL,
	PRIMARY KEY (subject, category)
);

CREATE TABLE IF NOT EXISTS pools (
	id         TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	pool_id     TEXT NOT NULL,
	contributor TEXT NOT NULL,
	record      TEXT NOT NULL,
	PRIMARY KEY (pool_id, contributor)
);

CREATE INDEX IF NOT EXISTS idx_achievements_recipient ON achievements(recipient);
CREATE INDEX IF NOT EXISTS idx_achievements_state ON achievements(state);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertAchievementIfAbsent(ctx context.Context, a model.ClaimableAchievement) (bool, *model.ClaimableAchievement, error) {
	record, err := json.Marshal(a)
	if err != nil {
		return false, nil, eris.Wrap(err, "sqlite: marshal achievement")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO achievements (id, category, subject, recipient, state, record, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Category), a.Subject, a.Recipient, string(a.State), string(record), a.CreatedAt.UTC(),
	)
	if err != nil {
		return false, nil, eris.Wrapf(err, "sqlite: insert achievement %s", a.ID)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		out := a
		return true, &out, nil
	}

	existing, err := s.GetAchievement(ctx, a.ID)
	if err != nil {
		return false, nil, err
	}
	if existing == nil {
		return false, nil, eris.Errorf("sqlite: achievement %s vanished after conflicting insert", a.ID)
	}
	return false, existing, nil
}

func (s *SQLiteStore) GetAchievement(ctx context.Context, id string) (*model.ClaimableAchievement, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM achievements WHERE id = ?`, id,
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get achievement %s", id)
	}

	var a model.ClaimableAchievement
	if err := json.Unmarshal([]byte(record), &a); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal achievement %s", id)
	}
	return &a, nil
}

func (s *SQLiteStore) UpdateAchievement(ctx context.Context, a model.ClaimableAchievement) error {
	record, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal achievement")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE achievements SET state = ?, record = ? WHERE id = ?`,
		string(a.State), string(record), a.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update achievement %s", a.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: achievement %s not found", a.ID)
	}
	return nil
}

func (s *SQLiteStore) ListAchievements(ctx context.Context, f AchievementFilter) ([]model.ClaimableAchievement, error) {
	query := `SELECT record FROM achievements WHERE 1=1`
	var args []any
	if f.Recipient != "" {
		query += ` AND recipient = ?`
		args = append(args, f.Recipient)
	}
	if f.State != "" {
		query += ` AND state = ?`
		args = append(args, string(f.State))
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(f.Category))
	}
	query += ` ORDER BY created_at, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list achievements")
	}
	defer rows.Close()

	var out []model.ClaimableAchievement
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan achievement")
		}
		var a model.ClaimableAchievement
		if err := json.Unmarshal([]byte(record), &a); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal achievement")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate achievements")
}

func (s *SQLiteStore) CountAchievementsByState(ctx context.Context) (map[model.AchievementState]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM achievements GROUP BY state`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count achievements")
	}
	defer rows.Close()

	counts := make(map[model.AchievementState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan counts")
		}
		counts[model.AchievementState(state)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate counts")
}

func (s *SQLiteStore) GetMilestoneState(ctx context.Context, subject string, category model.Category) (*model.MilestoneState, error) {
	var st model.MilestoneState
	var lastUpdated time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT subject, category, high_water_mark, last_updated FROM milestone_states
		 WHERE subject = ? AND category = ?`,
		subject, string(category),
	).Scan(&st.Subject, &st.Category, &st.HighWaterMark, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get milestone state %s/%s", subject, category)
	}
	st.LastUpdated = lastUpdated
	return &st, nil
}

func (s *SQLiteStore) PutMilestoneState(ctx context.Context, st model.MilestoneState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO milestone_states (subject, category, high_water_mark, last_updated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (subject, category) DO UPDATE SET
		   high_water_mark = excluded.high_water_mark,
		   last_updated = excluded.last_updated`,
		st.Subject, string(st.Category), st.HighWaterMark, st.LastUpdated.UTC(),
	)
	return eris.Wrapf(err, "sqlite: put milestone state %s/%s", st.Subject, st.Category)
}

func (s *SQLiteStore) InsertPool(ctx context.Context, p model.Pool) error {
	record, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pool")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pools (id, record, updated_at) VALUES (?, ?, ?)`,
		p.ID, string(record), p.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert pool %s", p.ID)
}

func (s *SQLiteStore) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM pools WHERE id = ?`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get pool %s", id)
	}

	var p model.Pool
	if err := json.Unmarshal([]byte(record), &p); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal pool %s", id)
	}
	return &p, nil
}

func (s *SQLiteStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM pools ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pools")
	}
	defer rows.Close()

	var out []model.Pool
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pool")
		}
		var p model.Pool
		if err := json.Unmarshal([]byte(record), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal pool")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate pools")
}

func (s *SQLiteStore) UpdatePool(ctx context.Context, p model.Pool) error {
	record, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pool")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pools SET record = ?, updated_at = ? WHERE id = ?`,
		string(record), p.UpdatedAt.UTC(), p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update pool %s", p.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: pool %s not found", p.ID)
	}
	return nil
}

func (s *SQLiteStore) GetPosition(ctx context.Context, poolID, contributor string) (*model.Position, error) {
	var record string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM positions WHERE pool_id = ? AND contributor = ?`,
		poolID, contributor,
	).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get position %s/%s", poolID, contributor)
	}

	var pos model.Position
	if err := json.Unmarshal([]byte(record), &pos); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal position")
	}
	return &pos, nil
}

func (s *SQLiteStore) PutPosition(ctx context.Context, pos model.Position) error {
	record, err := json.Marshal(pos)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal position")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO positions (pool_id, contributor, record) VALUES (?, ?, ?)
		 ON CONFLICT (pool_id, contributor) DO UPDATE SET record = excluded.record`,
		pos.PoolID, pos.Contributor, string(record),
	)
	return eris.Wrapf(err, "sqlite: put position %s/%s", pos.PoolID, pos.Contributor)
}

func (s *SQLiteStore) ListPositions(ctx context.Context, poolID string) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM positions WHERE pool_id = ? ORDER BY contributor`, poolID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list positions")
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan position")
		}
		var pos model.Position
		if err := json.Unmarshal([]byte(record), &pos); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal position")
		}
		out = append(out, pos)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate positions")
}
