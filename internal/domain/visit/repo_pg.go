package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labdesk/labdesk/internal/platform/db"
)

type visitRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &visitRepoPG{pool: pool}
}

const visitCols = `id, patient_name, age, gender, phone, referred_by,
	base_total, discount, total, paid, due, created_by, created_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.PatientName, &v.Age, &v.Gender, &v.Phone, &v.ReferredBy,
		&v.BaseTotal, &v.Discount, &v.Total, &v.Paid, &v.Due, &v.CreatedBy, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &v, err
}

// Create writes the visit and its lines in one transaction.
func (r *visitRepoPG) Create(ctx context.Context, v *Visit) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		conn := db.Conn(ctx, r.pool)
		err := conn.QueryRow(ctx, `
			INSERT INTO visit (id, patient_name, age, gender, phone, referred_by,
				base_total, discount, total, paid, due, created_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			RETURNING created_at`,
			v.ID, v.PatientName, v.Age, v.Gender, v.Phone, v.ReferredBy,
			v.BaseTotal, v.Discount, v.Total, v.Paid, v.Due, v.CreatedBy,
		).Scan(&v.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert visit: %w", err)
		}
		for i := range v.Lines {
			l := &v.Lines[i]
			l.Position = i
			if _, err := conn.Exec(ctx, `
				INSERT INTO visit_line (visit_id, position, label, cost, group_id, test_ids)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				v.ID, l.Position, l.Label, l.Cost, l.GroupID, l.TestIDs); err != nil {
				return fmt.Errorf("insert visit line %d: %w", i, err)
			}
		}
		return nil
	})
}

func (r *visitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	conn := db.Conn(ctx, r.pool)
	v, err := scanVisit(conn.QueryRow(ctx, `SELECT `+visitCols+` FROM visit WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT position, label, cost, group_id, test_ids
		FROM visit_line WHERE visit_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.Position, &l.Label, &l.Cost, &l.GroupID, &l.TestIDs); err != nil {
			return nil, err
		}
		v.Lines = append(v.Lines, l)
	}
	return v, rows.Err()
}

func (r *visitRepoPG) list(ctx context.Context, where string, limit, offset int) ([]*Visit, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM visit`+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+visitCols+` FROM visit`+where+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]*Visit, 0, limit)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

func (r *visitRepoPG) List(ctx context.Context, limit, offset int) ([]*Visit, int, error) {
	return r.list(ctx, "", limit, offset)
}

func (r *visitRepoPG) ListDues(ctx context.Context, limit, offset int) ([]*Visit, int, error) {
	return r.list(ctx, " WHERE due <> 0", limit, offset)
}

func (r *visitRepoPG) AccountRows(ctx context.Context, from, to *time.Time) ([]AccountRow, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT COALESCE(referred_by, ''), COUNT(*),
			COALESCE(SUM(base_total), 0), COALESCE(SUM(discount), 0), COALESCE(SUM(total), 0),
			COALESCE(SUM(paid), 0), COALESCE(SUM(due), 0)
		FROM visit
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		GROUP BY COALESCE(referred_by, '')
		ORDER BY 1`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountRow
	for rows.Next() {
		var a AccountRow
		if err := rows.Scan(&a.ReferredBy, &a.Visits, &a.BaseTotal, &a.Discount, &a.Total, &a.Paid, &a.Due); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
