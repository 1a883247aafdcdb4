package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"review_sync/internal/domain"
)

// inChunk bounds the IN (...) list of one existence query.
const inChunk = 500

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

var (
	_ domain.ReviewStore      = (*Repo)(nil)
	_ domain.SyncStatusStore  = (*Repo)(nil)
	_ domain.LocationRegistry = (*Repo)(nil)
)

func (r *Repo) ExistingFingerprints(ctx context.Context, tenantID string, p domain.Provider, fps []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(fps))
	for start := 0; start < len(fps); start += inChunk {
		end := min(start+inChunk, len(fps))
		chunk := fps[start:end]

		args := make([]any, 0, len(chunk)+2)
		args = append(args, tenantID, string(p))
		for _, fp := range chunk {
			args = append(args, fp)
		}
		q := existingFingerprintsPrefix + strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",") + ")"

		rows, err := r.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var fp string
			if err := rows.Scan(&fp); err != nil {
				rows.Close()
				return nil, err
			}
			out[fp] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpsertReviews writes one batch atomically.
func (r *Repo) UpsertReviews(ctx context.Context, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*10) // 10 params per row
	for _, rv := range rs {
		values = append(values, "(?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			rv.TenantID,
			rv.LocationID,
			string(rv.Provider),
			rv.Fingerprint,
			rv.Rating,
			valStr(rv.Author),
			valStr(rv.Body),
			valTime(rv.ReviewedAt),
			valStr(rv.Lang),
			valJSON(rv.RawJSON),
		)
	}
	sqlStr := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *Repo) ListReviews(ctx context.Context, tenantID string, locationID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	limit := pg.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, tenantID, locationID, limit)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var (
			rv           domain.Review
			provider     string
			author, body sql.NullString
			lang         sql.NullString
			reviewedAt   sql.NullTime
			rawB         []byte
		)
		if err := rows.Scan(
			&rv.ID,
			&rv.TenantID,
			&rv.LocationID,
			&provider,
			&rv.Fingerprint,
			&rv.Rating,
			&author,
			&body,
			&reviewedAt,
			&lang,
			&rawB,
		); err != nil {
			return domain.ReviewsPage{}, err
		}
		rv.Provider = domain.Provider(provider)
		rv.Author = nullStr(author)
		rv.Body = nullStr(body)
		rv.Lang = nullStr(lang)
		if reviewedAt.Valid {
			t := reviewedAt.Time.UTC()
			rv.ReviewedAt = &t
		}
		if len(rawB) > 0 {
			rv.RawJSON = append([]byte(nil), rawB...)
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, err
	}
	return domain.ReviewsPage{Items: out}, nil
}

func (r *Repo) UpsertSyncStatus(ctx context.Context, s domain.SyncStatus) error {
	_, err := r.db.ExecContext(ctx, upsertSyncStatusSQL,
		s.TenantID,
		s.LocationID,
		string(s.Provider),
		s.LastRunAt.UTC(),
		string(s.Outcome),
		valStr(s.ErrorCode),
		valStr(s.LastError),
		s.Fetched,
		s.Inserted,
		s.Updated,
	)
	return err
}

func (r *Repo) ListSyncStatus(ctx context.Context, tenantID string) ([]domain.SyncStatus, error) {
	rows, err := r.db.QueryContext(ctx, listSyncStatusSQL, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SyncStatus
	for rows.Next() {
		var (
			s                   domain.SyncStatus
			provider, outcome   string
			errCode, lastErrMsg sql.NullString
		)
		if err := rows.Scan(&s.TenantID, &s.LocationID, &provider, &s.LastRunAt, &outcome,
			&errCode, &lastErrMsg, &s.Fetched, &s.Inserted, &s.Updated); err != nil {
			return nil, err
		}
		s.Provider = domain.Provider(provider)
		s.Outcome = domain.SyncOutcome(outcome)
		s.ErrorCode = nullStr(errCode)
		s.LastError = nullStr(lastErrMsg)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---- LocationRegistry ----

type rowScanner interface{ Scan(dest ...any) error }

func scanLocation(sc rowScanner) (domain.Location, error) {
	var (
		l      domain.Location
		name   sql.NullString
		rating sql.NullFloat64
		count  sql.NullInt64
	)
	if err := sc.Scan(&l.ID, &l.TenantID, &l.ProviderLocationID, &name, &rating, &count); err != nil {
		return domain.Location{}, err
	}
	l.DisplayName = nullStr(name)
	if rating.Valid {
		f := rating.Float64
		l.Rating = &f
	}
	if count.Valid {
		n := count.Int64
		l.RatingCount = &n
	}
	return l, nil
}

func (r *Repo) Resolve(ctx context.Context, tenantID, providerLocationID string) (domain.Location, error) {
	var row *sql.Row
	if providerLocationID == "" {
		row = r.db.QueryRowContext(ctx, latestLocationSQL, tenantID)
	} else {
		row = r.db.QueryRowContext(ctx, resolveLocationSQL, tenantID, providerLocationID)
	}
	l, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		if providerLocationID == "" {
			return domain.Location{}, domain.ErrNoLocation
		}
		return domain.Location{}, fmt.Errorf("%w: %s", domain.ErrNoLocation, providerLocationID)
	}
	return l, err
}

func (r *Repo) List(ctx context.Context, tenantID string) ([]domain.Location, error) {
	rows, err := r.db.QueryContext(ctx, listLocationsSQL, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateSummary(ctx context.Context, tenantID string, locationID int64, s domain.LocationSummary) error {
	_, err := r.db.ExecContext(ctx, updateSummarySQL,
		valStr(s.DisplayName),
		valF64(s.Rating),
		valInt64(s.RatingCount),
		tenantID,
		locationID,
	)
	return err
}
