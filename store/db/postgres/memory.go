package postgres

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/mnemograph/mnemograph/store"
)

func (d *DB) CreateMemory(ctx context.Context, m *store.Memory) (*store.Memory, error) {
	m.ID = d.gen.Next()
	keywords, err := json.Marshal(m.Keywords)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: marshal keywords")
	}
	m.CreatedTs = m.Timestamp.Unix()

	stmt := `INSERT INTO memory (id, user_id, content, type, summary, keywords, "timestamp", created_ts)
		VALUES (` + placeholders(8) + `)`
	_, err = d.db.ExecContext(ctx, stmt,
		m.ID, m.UserID, m.Content, m.Type, m.Summary, keywords, m.Timestamp, m.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: create memory")
	}
	return m, nil
}

func (d *DB) ListMemories(ctx context.Context, find *store.FindMemory) ([]*store.Memory, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UserID != nil {
		where, args = append(where, "user_id = "+placeholder(len(args)+1)), append(args, *find.UserID)
	}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}

	query := `SELECT id, user_id, content, type, summary, keywords, "timestamp", created_ts
		FROM memory WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id DESC`
	if find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: list memories")
	}
	defer rows.Close()

	var out []*store.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *DB) ListMemoriesWithoutEmbedding(ctx context.Context, userID int64, limit int) ([]*store.Memory, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT m.id, m.user_id, m.content, m.type, m.summary, m.keywords, m."timestamp", m.created_ts
		FROM memory m
		LEFT JOIN memory_embedding e ON m.id = e.memory_id
		WHERE m.user_id = `+placeholder(1)+` AND e.memory_id IS NULL
		ORDER BY m.id ASC
		LIMIT `+placeholder(2), userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: list memories without embedding")
	}
	defer rows.Close()

	var out []*store.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *DB) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM memory ORDER BY user_id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: list user ids")
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "postgres: scan user id")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(rows rowScanner) (*store.Memory, error) {
	var m store.Memory
	var keywords []byte
	if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.Type, &m.Summary, &keywords, &m.Timestamp, &m.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "postgres: scan memory")
	}
	if err := json.Unmarshal(keywords, &m.Keywords); err != nil {
		return nil, errors.Wrap(err, "postgres: unmarshal keywords")
	}
	return &m, nil
}
