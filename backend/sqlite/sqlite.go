package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
	"tasktree/backend"
	"tasktree/internal/history"
)

// ownerTree marks rows that belong to the live task tree. Rows owned by a
// remove entry use "history:<seq>".
const ownerTree = "tree"

// Backend implements backend.Gateway using SQLite
type Backend struct {
	db *sql.DB
}

// New creates a new SQLite backend and initializes the database schema
func New(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	b := &Backend{db: db}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return b, nil
}

// initSchema creates the database tables if they don't exist
func (b *Backend) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			owner TEXT NOT NULL,
			id TEXT NOT NULL,
			parent_id TEXT DEFAULT '',
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'Medium',
			due_date TEXT,
			recurrence TEXT NOT NULL DEFAULT 'none',
			completed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (owner, id)
		);

		CREATE TABLE IF NOT EXISTS comments (
			owner TEXT NOT NULL,
			task_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			body TEXT NOT NULL,
			PRIMARY KEY (owner, task_id, position)
		);

		CREATE TABLE IF NOT EXISTS tags (
			owner TEXT NOT NULL,
			task_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (owner, task_id, position)
		);

		CREATE TABLE IF NOT EXISTS history (
			seq INTEGER PRIMARY KEY,
			action TEXT NOT NULL,
			task_id TEXT NOT NULL,
			idx INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_owner_parent ON tasks(owner, parent_id);
	`

	_, err := b.db.Exec(schema)
	return err
}

// Close closes the database
func (b *Backend) Close() error {
	return b.db.Close()
}

// Load reads the task tree and history from the database
func (b *Backend) Load(ctx context.Context) (*backend.Snapshot, error) {
	roots, err := b.loadTree(ctx, ownerTree)
	if err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx, "SELECT seq, action, task_id, idx FROM history ORDER BY seq")
	if err != nil {
		return nil, err
	}
	type histRow struct {
		seq    int64
		action string
		taskID string
		idx    sql.NullInt64
	}
	var histRows []histRow
	for rows.Next() {
		var h histRow
		if err := rows.Scan(&h.seq, &h.action, &h.taskID, &h.idx); err != nil {
			_ = rows.Close()
			return nil, err
		}
		histRows = append(histRows, h)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	hist := make([]backend.HistoryRecord, 0, len(histRows))
	for _, h := range histRows {
		rec := backend.HistoryRecord{Action: h.action, Task: &backend.TaskRecord{ID: h.taskID}}
		if h.action == history.ActionRemove {
			owned, err := b.loadTree(ctx, historyOwner(h.seq))
			if err != nil {
				return nil, err
			}
			if len(owned) != 1 {
				return nil, fmt.Errorf("history entry %d: expected 1 removed task, found %d", h.seq, len(owned))
			}
			rec.Task = owned[0]
			idx := int(h.idx.Int64)
			rec.Index = &idx
		}
		hist = append(hist, rec)
	}

	return backend.DecodeSnapshot(roots, hist)
}

// loadTree rebuilds the task records stored under owner and returns the roots
func (b *Backend) loadTree(ctx context.Context, owner string) ([]*backend.TaskRecord, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, parent_id, title, priority, due_date, recurrence, completed
		 FROM tasks WHERE owner = ? ORDER BY position`,
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*backend.TaskRecord)
	var order []*backend.TaskRecord
	parents := make(map[string]string)

	for rows.Next() {
		var rec backend.TaskRecord
		var parentID string
		var due sql.NullString
		var completed int
		if err := rows.Scan(&rec.ID, &parentID, &rec.Title, &rec.Priority, &due, &rec.Recurrence, &completed); err != nil {
			return nil, err
		}
		if due.Valid {
			s := due.String
			rec.Due = &s
		}
		rec.Completed = completed != 0
		r := &rec
		byID[rec.ID] = r
		parents[rec.ID] = parentID
		order = append(order, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := b.loadValues(ctx, "SELECT task_id, body FROM comments WHERE owner = ? ORDER BY task_id, position", owner, byID,
		func(rec *backend.TaskRecord, v string) { rec.Comments = append(rec.Comments, v) }); err != nil {
		return nil, err
	}
	if err := b.loadValues(ctx, "SELECT task_id, value FROM tags WHERE owner = ? ORDER BY task_id, position", owner, byID,
		func(rec *backend.TaskRecord, v string) { rec.Tags = append(rec.Tags, v) }); err != nil {
		return nil, err
	}

	var roots []*backend.TaskRecord
	for _, r := range order {
		parent, ok := byID[parents[r.ID]]
		if parents[r.ID] == "" || !ok {
			roots = append(roots, r)
			continue
		}
		parent.Subtasks = append(parent.Subtasks, r)
	}
	return roots, nil
}

// loadValues runs a (task_id, value) query and hands each row to attach
func (b *Backend) loadValues(ctx context.Context, query, owner string, byID map[string]*backend.TaskRecord,
	attach func(*backend.TaskRecord, string)) error {
	rows, err := b.db.QueryContext(ctx, query, owner)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var taskID, value string
		if err := rows.Scan(&taskID, &value); err != nil {
			return err
		}
		if rec, ok := byID[taskID]; ok {
			attach(rec, value)
		}
	}
	return rows.Err()
}

// Save replaces the stored snapshot inside a single transaction
func (b *Backend) Save(ctx context.Context, snap *backend.Snapshot) error {
	roots, hist, err := backend.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{"DELETE FROM comments", "DELETE FROM tags", "DELETE FROM tasks", "DELETE FROM history"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	w := &treeWriter{ctx: ctx, tx: tx}
	for i, r := range roots {
		if err := w.write(ownerTree, "", i, r); err != nil {
			return err
		}
	}

	for i, h := range hist {
		seq := int64(i + 1)
		var idx sql.NullInt64
		if h.Index != nil {
			idx = sql.NullInt64{Int64: int64(*h.Index), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO history (seq, action, task_id, idx) VALUES (?, ?, ?, ?)",
			seq, h.Action, h.Task.ID, idx,
		); err != nil {
			return err
		}
		if h.Action == history.ActionRemove {
			if err := w.write(historyOwner(seq), "", 0, h.Task); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// treeWriter inserts task records recursively
type treeWriter struct {
	ctx context.Context
	tx  *sql.Tx
}

func (w *treeWriter) write(owner, parentID string, position int, r *backend.TaskRecord) error {
	var due sql.NullString
	if r.Due != nil {
		due = sql.NullString{String: *r.Due, Valid: true}
	}
	completed := 0
	if r.Completed {
		completed = 1
	}

	_, err := w.tx.ExecContext(w.ctx,
		`INSERT INTO tasks (owner, id, parent_id, position, title, priority, due_date, recurrence, completed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		owner, r.ID, parentID, position, r.Title, r.Priority, due, r.Recurrence, completed,
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", r.ID, err)
	}

	for i, tag := range r.Tags {
		if _, err := w.tx.ExecContext(w.ctx,
			"INSERT INTO tags (owner, task_id, position, value) VALUES (?, ?, ?, ?)",
			owner, r.ID, i, tag,
		); err != nil {
			return err
		}
	}

	for i, c := range r.Comments {
		if _, err := w.tx.ExecContext(w.ctx,
			"INSERT INTO comments (owner, task_id, position, body) VALUES (?, ?, ?, ?)",
			owner, r.ID, i, c,
		); err != nil {
			return err
		}
	}

	for i, sub := range r.Subtasks {
		if err := w.write(owner, r.ID, i, sub); err != nil {
			return err
		}
	}
	return nil
}

func historyOwner(seq int64) string {
	return "history:" + strconv.FormatInt(seq, 10)
}

// Verify interface compliance at compile time
var _ backend.Gateway = (*Backend)(nil)
