package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/labdesk/labdesk/internal/platform/db"
)

// =========== Test Repository ===========

type testRepoPG struct{ pool *pgxpool.Pool }

func NewTestRepoPG(pool *pgxpool.Pool) TestRepository {
	return &testRepoPG{pool: pool}
}

const testCols = `id, test_name, shortcut, price, is_active, created_at, updated_at`

func scanTest(row pgx.Row) (*Test, error) {
	var t Test
	err := row.Scan(&t.ID, &t.TestName, &t.Shortcut, &t.Price, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &t, err
}

func (r *testRepoPG) Create(ctx context.Context, t *Test) error {
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO lab_test (test_name, shortcut, price, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		t.TestName, t.Shortcut, t.Price, t.IsActive,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *testRepoPG) GetByID(ctx context.Context, id int64) (*Test, error) {
	return scanTest(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+testCols+` FROM lab_test WHERE id = $1`, id))
}

func (r *testRepoPG) Update(ctx context.Context, t *Test) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE lab_test SET test_name=$2, shortcut=$3, price=$4, is_active=$5, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.TestName, t.Shortcut, t.Price, t.IsActive,
	).Scan(&t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *testRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM lab_test WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *testRepoPG) List(ctx context.Context, activeOnly bool) ([]*Test, error) {
	query := `SELECT ` + testCols + ` FROM lab_test`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY id`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *testRepoPG) ExistingIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT id FROM lab_test WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

// =========== Group Repository ===========

type groupRepoPG struct{ pool *pgxpool.Pool }

func NewGroupRepoPG(pool *pgxpool.Pool) GroupRepository {
	return &groupRepoPG{pool: pool}
}

const groupCols = `id, group_name, shortcut, price, created_at, updated_at`

func scanGroup(row pgx.Row) (*Group, error) {
	var g Group
	var price decimal.NullDecimal
	err := row.Scan(&g.ID, &g.GroupName, &g.Shortcut, &price, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if price.Valid {
		p := price.Decimal
		g.Price = &p
	}
	return &g, nil
}

func nullPrice(p *decimal.Decimal) decimal.NullDecimal {
	if p == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *p, Valid: true}
}

// Create inserts the group row and its members in one transaction.
func (r *groupRepoPG) Create(ctx context.Context, g *Group) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		err := db.Conn(ctx, r.pool).QueryRow(ctx, `
			INSERT INTO test_group (group_name, shortcut, price)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at`,
			g.GroupName, g.Shortcut, nullPrice(g.Price),
		).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		return r.writeMembers(ctx, g)
	})
}

func (r *groupRepoPG) writeMembers(ctx context.Context, g *Group) error {
	conn := db.Conn(ctx, r.pool)
	if _, err := conn.Exec(ctx, `DELETE FROM test_group_member WHERE group_id = $1`, g.ID); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}
	for pos, testID := range g.TestIDs {
		if _, err := conn.Exec(ctx, `
			INSERT INTO test_group_member (group_id, test_id, position) VALUES ($1, $2, $3)`,
			g.ID, testID, pos); err != nil {
			return fmt.Errorf("insert group member %d: %w", testID, err)
		}
	}
	return nil
}

func (r *groupRepoPG) members(ctx context.Context, groupIDs []int64) (map[int64][]int64, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT group_id, test_id FROM test_group_member
		WHERE group_id = ANY($1)
		ORDER BY group_id, position`, groupIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]int64, len(groupIDs))
	for rows.Next() {
		var gid, tid int64
		if err := rows.Scan(&gid, &tid); err != nil {
			return nil, err
		}
		out[gid] = append(out[gid], tid)
	}
	return out, rows.Err()
}

func (r *groupRepoPG) GetByID(ctx context.Context, id int64) (*Group, error) {
	g, err := scanGroup(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+groupCols+` FROM test_group WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	members, err := r.members(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	g.TestIDs = members[id]
	return g, nil
}

func (r *groupRepoPG) Update(ctx context.Context, g *Group) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		err := db.Conn(ctx, r.pool).QueryRow(ctx, `
			UPDATE test_group SET group_name=$2, shortcut=$3, price=$4, updated_at=NOW()
			WHERE id = $1
			RETURNING updated_at`,
			g.ID, g.GroupName, g.Shortcut, nullPrice(g.Price),
		).Scan(&g.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update group: %w", err)
		}
		return r.writeMembers(ctx, g)
	})
}

func (r *groupRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM test_group WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *groupRepoPG) List(ctx context.Context) ([]*Group, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+groupCols+` FROM test_group ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var items []*Group
	var ids []int64
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, g)
		ids = append(ids, g.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	members, err := r.members(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, g := range items {
		g.TestIDs = members[g.ID]
	}
	return items, nil
}
