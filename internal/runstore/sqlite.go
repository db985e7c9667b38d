package runstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"reelgate/internal/services"
	"reelgate/internal/sqlitedb"
	"reelgate/internal/workflow"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// SQLiteRepository is a workflow.Repository backed by SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens or creates the workflow database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sqlitedb.Open(ctx, path, sqlitedb.Schema{Name: "workflows", SQL: schemaSQL, Version: schemaVersion})
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "workflow-store", "open sqlite", path, err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, wf workflow.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return services.Wrap(services.ErrStorage, "workflow-store", "encode", wf.ID, err)
	}
	err = sqlitedb.Exec(ctx, r.db,
		`INSERT INTO workflows (id, topic, created_at, updated_at, data) VALUES (?, ?, ?, ?, ?)`,
		wf.ID, wf.Topic, sqlitedb.FormatTime(wf.CreatedAt), sqlitedb.FormatTime(wf.UpdatedAt), string(data),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return services.Wrap(services.ErrValidation, "workflow-store", "create", fmt.Sprintf("workflow %s already exists", wf.ID), nil)
		}
		return services.Wrap(services.ErrStorage, "workflow-store", "create", wf.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (workflow.Workflow, error) {
	var data string
	err := sqlitedb.RetryOnBusy(ctx, func() error {
		return r.db.QueryRowContext(ctx, `SELECT data FROM workflows WHERE id = ?`, id).Scan(&data)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.Workflow{}, workflow.NotFound(id)
	}
	if err != nil {
		return workflow.Workflow{}, services.Wrap(services.ErrStorage, "workflow-store", "get", id, err)
	}
	return decode(id, []byte(data))
}

func (r *SQLiteRepository) Save(ctx context.Context, wf workflow.Workflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return services.Wrap(services.ErrStorage, "workflow-store", "encode", wf.ID, err)
	}
	var affected int64
	err = sqlitedb.RetryOnBusy(ctx, func() error {
		res, execErr := r.db.ExecContext(ctx,
			`UPDATE workflows SET topic = ?, updated_at = ?, data = ? WHERE id = ?`,
			wf.Topic, sqlitedb.FormatTime(wf.UpdatedAt), string(data), wf.ID,
		)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return services.Wrap(services.ErrStorage, "workflow-store", "save", wf.ID, err)
	}
	if affected == 0 {
		return workflow.NotFound(wf.ID)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]workflow.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, data FROM workflows ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "workflow-store", "list", "", err)
	}
	defer rows.Close()

	var out []workflow.Workflow
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, services.Wrap(services.ErrStorage, "workflow-store", "list", "", err)
		}
		wf, err := decode(id, []byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "workflow-store", "list", "", err)
	}
	// Text timestamps with varying fractional digits do not sort exactly.
	workflow.SortNewestFirst(out)
	return out, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func decode(id string, data []byte) (workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return workflow.Workflow{}, services.Wrap(services.ErrStorage, "workflow-store", "decode", id, err)
	}
	return wf, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: workflows.id")
}
