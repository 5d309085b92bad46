package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"link-insights/internal/domain/click"
	"link-insights/internal/domain/insight"
	"link-insights/internal/domain/link"
	"link-insights/internal/domain/monitor"
	"link-insights/internal/storage"
)

type Storage struct {
	db *sql.DB
}

// New initializes a new SQLite storage with the given file path.
// The schema must already be applied, see MigrateUp.
func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite3", storagePath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// One writer at a time keeps the insert-if-absent transaction serialized in process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) InsertLink(ctx context.Context, rec link.Record) error {
	const op = "storage.sqlite.InsertLink"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	taken, err := claimed(ctx, tx, rec.Code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if taken {
		return fmt.Errorf("%s: %w", op, storage.ErrCodeExists)
	}

	if rec.Alias != "" {
		taken, err = claimed(ctx, tx, rec.Alias)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if taken {
			return fmt.Errorf("%s: %w", op, storage.ErrAliasExists)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO links (code, destination_url, alias, visibility, title, click_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Code, rec.DestinationURL, nullString(rec.Alias), string(rec.Visibility), rec.Title,
		rec.ClickCount, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) {
			switch sqliteErr.ExtendedCode {
			case sqlite3.ErrConstraintPrimaryKey:
				return fmt.Errorf("%s: %w", op, storage.ErrCodeExists)
			case sqlite3.ErrConstraintUnique:
				return fmt.Errorf("%s: %w", op, storage.ErrAliasExists)
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// claimed reports whether value is used as a code or as an alias.
func claimed(ctx context.Context, tx *sql.Tx, value string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM links WHERE code = ? OR alias = ?`, value, value,
	).Scan(&n)
	return n > 0, err
}

const linkColumns = `code, destination_url, alias, visibility, title, click_count, created_at, cached_insight, insight_generated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (link.Record, error) {
	var (
		rec        link.Record
		alias      sql.NullString
		visibility string
		createdAt  int64
		insightTxt sql.NullString
		insightAt  sql.NullInt64
	)

	err := row.Scan(&rec.Code, &rec.DestinationURL, &alias, &visibility, &rec.Title,
		&rec.ClickCount, &createdAt, &insightTxt, &insightAt)
	if err != nil {
		return link.Record{}, err
	}

	rec.Alias = alias.String
	rec.Visibility = link.Visibility(visibility)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.CachedInsight = insightTxt.String
	if insightAt.Valid {
		rec.InsightGeneratedAt = time.UnixMilli(insightAt.Int64).UTC()
	}

	return rec, nil
}

func (s *Storage) LinkByCode(ctx context.Context, code string) (link.Record, error) {
	const op = "storage.sqlite.LinkByCode"

	row := s.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE code = ?`, code)

	rec, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return link.Record{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return link.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

func (s *Storage) LinkByAlias(ctx context.Context, alias string) (link.Record, error) {
	const op = "storage.sqlite.LinkByAlias"

	row := s.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE alias = ?`, alias)

	rec, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return link.Record{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return link.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	return rec, nil
}

func (s *Storage) IncrementClicks(ctx context.Context, code string, delta int64) error {
	const op = "storage.sqlite.IncrementClicks"

	res, err := s.db.ExecContext(ctx, `UPDATE links SET click_count = click_count + ? WHERE code = ?`, delta, code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return requireAffected(op, res)
}

func (s *Storage) SaveInsight(ctx context.Context, code, text string, generatedAt time.Time) error {
	const op = "storage.sqlite.SaveInsight"

	res, err := s.db.ExecContext(ctx,
		`UPDATE links SET cached_insight = ?, insight_generated_at = ? WHERE code = ?`,
		text, generatedAt.UnixMilli(), code,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return requireAffected(op, res)
}

func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

func (s *Storage) PublicLinks(ctx context.Context, limit, offset int) ([]link.Record, error) {
	const op = "storage.sqlite.PublicLinks"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+linkColumns+` FROM links
		WHERE visibility = ?
		ORDER BY created_at DESC, code DESC
		LIMIT ? OFFSET ?`,
		string(link.VisibilityPublic), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	recs := []link.Record{}
	for rows.Next() {
		rec, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return recs, nil
}

func (s *Storage) AppendClick(ctx context.Context, e click.Event) error {
	const op = "storage.sqlite.AppendClick"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clicks (id, code, ts, ip_hash, user_agent, referrer, country, device)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Code, e.Timestamp.UnixMilli(), e.IPHash, e.UserAgent, e.Referrer, e.Country, string(e.Device),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) ClicksSince(ctx context.Context, code string, since time.Time) ([]click.Event, error) {
	const op = "storage.sqlite.ClicksSince"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, ts, ip_hash, user_agent, referrer, country, device
		FROM clicks
		WHERE code = ? AND ts >= ?
		ORDER BY ts ASC`,
		code, since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var events []click.Event
	for rows.Next() {
		var (
			e      click.Event
			ts     int64
			device string
		)
		if err := rows.Scan(&e.ID, &e.Code, &ts, &e.IPHash, &e.UserAgent, &e.Referrer, &e.Country, &device); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		e.Device = click.Device(device)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return events, nil
}

func (s *Storage) IncrementCategory(ctx context.Context, code string, category click.Category, value string, delta int64, at time.Time) error {
	const op = "storage.sqlite.IncrementCategory"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO category_counters (code, category, value, count, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (code, category, value)
		DO UPDATE SET count = count + excluded.count, last_updated = excluded.last_updated`,
		code, string(category), value, delta, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Categories(ctx context.Context, code string) ([]click.Counter, error) {
	const op = "storage.sqlite.Categories"

	rows, err := s.db.QueryContext(ctx,
		`SELECT code, category, value, count, last_updated FROM category_counters WHERE code = ?`, code,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var counters []click.Counter
	for rows.Next() {
		var (
			c        click.Counter
			category string
			updated  int64
		)
		if err := rows.Scan(&c.Code, &category, &c.Value, &c.Count, &updated); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.Category = click.Category(category)
		c.LastUpdated = time.UnixMilli(updated).UTC()
		counters = append(counters, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return counters, nil
}

func (s *Storage) AppendInsightHistory(ctx context.Context, e insight.HistoryEntry) error {
	const op = "storage.sqlite.AppendInsightHistory"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insight_history (code, generated_at, insight, analysis_type, model)
		VALUES (?, ?, ?, ?, ?)`,
		e.Code, e.GeneratedAt.UnixMilli(), e.Text, e.AnalysisType, e.Model,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) AppendMetric(ctx context.Context, m monitor.Metric) error {
	const op = "storage.sqlite.AppendMetric"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitor_metrics (id, kind, ts, code, url, operation, duration_ns, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.Kind), m.Timestamp.UnixMilli(), m.Code, m.URL, m.Operation, int64(m.Duration), m.Detail,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) MetricsSince(ctx context.Context, kind monitor.Kind, since time.Time) ([]monitor.Metric, error) {
	const op = "storage.sqlite.MetricsSince"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, ts, code, url, operation, duration_ns, detail
		FROM monitor_metrics
		WHERE kind = ? AND ts >= ?
		ORDER BY ts ASC`,
		string(kind), since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var metrics []monitor.Metric
	for rows.Next() {
		var (
			m        monitor.Metric
			k        string
			ts       int64
			duration int64
		)
		if err := rows.Scan(&m.ID, &k, &ts, &m.Code, &m.URL, &m.Operation, &duration, &m.Detail); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		m.Kind = monitor.Kind(k)
		m.Timestamp = time.UnixMilli(ts).UTC()
		m.Duration = time.Duration(duration)
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return metrics, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
