package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"GapSight/internal/domain/models"
	domrepo "GapSight/internal/domain/repository"
	"GapSight/internal/services/timeseries"
)

const DefaultSnapshotTable = "follower_snapshots"

// SnapshotSchema returns the DDL for the snapshot table. ReplacingMergeTree keeps the
// most recent observation per (account, date).
func SnapshotSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    account     LowCardinality(String),
    date        Date,
    followers   Int64,
    observed_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(observed_at)
ORDER BY (account, date)`, table),
	}
}

// ClickHouseSnapshotStorage writes and reads follower snapshots.
type ClickHouseSnapshotStorage struct {
	db    *sql.DB
	table string
}

var (
	_ domrepo.SnapshotStorage = (*ClickHouseSnapshotStorage)(nil)
	_ domrepo.HistoryStore    = (*ClickHouseSnapshotStorage)(nil)
)

func NewClickHouseSnapshotStorage(db *sql.DB, table string) *ClickHouseSnapshotStorage {
	if table == "" {
		table = DefaultSnapshotTable
	}
	return &ClickHouseSnapshotStorage{db: db, table: table}
}

func (s *ClickHouseSnapshotStorage) Init(ctx context.Context) error {
	for _, stmt := range SnapshotSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseSnapshotStorage) Store(ctx context.Context, snap *models.FollowerSnapshot) error {
	return s.StoreBatch(ctx, []*models.FollowerSnapshot{snap})
}

const insertChunk = 1000

func (s *ClickHouseSnapshotStorage) StoreBatch(ctx context.Context, snaps []*models.FollowerSnapshot) error {
	for start := 0; start < len(snaps); start += insertChunk {
		end := min(start+insertChunk, len(snaps))
		values, args, err := snapshotValues(snaps[start:end])
		if err != nil {
			return err
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (account, date, followers, observed_at) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert snapshots: %w", err)
		}
	}
	return nil
}

// snapshotValues skips nil entries and rejects malformed dates.
func snapshotValues(snaps []*models.FollowerSnapshot) ([]string, []interface{}, error) {
	values := make([]string, 0, len(snaps))
	args := make([]interface{}, 0, len(snaps)*4)
	for _, snap := range snaps {
		if snap == nil || snap.Account == "" {
			continue
		}
		d, err := timeseries.ParseDate(snap.Date)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot %s: %w", snap.Account, err)
		}
		observed := snap.ObservedAt
		if observed.IsZero() {
			observed = time.Now()
		}
		values = append(values, "(?, ?, ?, ?)")
		args = append(args, snap.Account, d.Time(), snap.Followers, observed.UTC())
	}
	return values, args, nil
}

// History returns one series per account with the latest observation per day.
func (s *ClickHouseSnapshotStorage) History(ctx context.Context, accounts []string, from, to time.Time) ([]timeseries.Series, error) {
	q, args := historyQuery(s.table, accounts, from, to)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var recs []historyRow
	for rows.Next() {
		var r historyRow
		var day time.Time
		if err := rows.Scan(&r.account, &day, &r.followers); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.date = day.UTC().Format(timeseries.DateLayout)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return groupSeries(recs, accounts), nil
}

func (s *ClickHouseSnapshotStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseSnapshotStorage) Close() error { return nil }

type historyRow struct {
	account   string
	date      string
	followers int64
}

func historyQuery(table string, accounts []string, from, to time.Time) (string, []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT account, date, argMax(followers, observed_at) FROM %s WHERE date >= ? AND date <= ?", table)
	args := []interface{}{from.UTC(), to.UTC()}
	if len(accounts) > 0 {
		b.WriteString(" AND account IN (")
		for i, a := range accounts {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, a)
		}
		b.WriteString(")")
	}
	b.WriteString(" GROUP BY account, date ORDER BY account, date")
	return b.String(), args
}

// groupSeries folds rows (ordered by account, date) into series. Requested
// accounts without rows still get an empty series, in request order.
func groupSeries(recs []historyRow, accounts []string) []timeseries.Series {
	idx := make(map[string]int, len(accounts))
	out := make([]timeseries.Series, 0, len(accounts))
	for _, a := range accounts {
		if _, ok := idx[a]; ok {
			continue
		}
		idx[a] = len(out)
		out = append(out, timeseries.Series{Name: a, Data: []timeseries.Sample{}})
	}
	for _, r := range recs {
		i, ok := idx[r.account]
		if !ok {
			i = len(out)
			idx[r.account] = i
			out = append(out, timeseries.Series{Name: r.account, Data: []timeseries.Sample{}})
		}
		out[i].Data = append(out[i].Data, timeseries.Sample{Date: r.date, Followers: r.followers})
	}
	return out
}
