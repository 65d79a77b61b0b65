package database

import (
	"context"
	"time"
)

// ChatActivity is one recorded chat exchange.
type ChatActivity struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Variant   string    `json:"variant"`
	Model     string    `json:"model,omitempty"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskActivity is one recorded computer-use task.
type TaskActivity struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	TaskID    string    `json:"task_id"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordChat inserts a chat activity row.
func (d *Database) RecordChat(ctx context.Context, userID string, variant, model string, success bool) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO chat_activity (user_id, variant, model, success) VALUES ($1, $2, $3, $4)`,
		userID, variant, model, success)
	return err
}

// RecordTask inserts a task activity row.
func (d *Database) RecordTask(ctx context.Context, userID, sessionID, taskID string, success bool) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO task_activity (user_id, session_id, task_id, success) VALUES ($1, $2, $3, $4)`,
		userID, sessionID, taskID, success)
	return err
}

// RecentChats returns the latest chat activity for a user, newest first.
func (d *Database) RecentChats(ctx context.Context, userID string, limit int) ([]ChatActivity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, variant, COALESCE(model, ''), success, created_at
		 FROM chat_activity WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatActivity
	for rows.Next() {
		var a ChatActivity
		if err := rows.Scan(&a.ID, &a.UserID, &a.Variant, &a.Model, &a.Success, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SessionTasks returns the recorded tasks for a session, oldest first.
func (d *Database) SessionTasks(ctx context.Context, sessionID string) ([]TaskActivity, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, session_id, task_id, success, created_at
		 FROM task_activity WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskActivity
	for rows.Next() {
		var a TaskActivity
		if err := rows.Scan(&a.ID, &a.UserID, &a.SessionID, &a.TaskID, &a.Success, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
