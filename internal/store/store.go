// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store provides a Postgres-backed store for resolved actions.
// Rows are keyed by (email_id, ordinal, user_email) so re-running extraction
// for the same email updates rows in place.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcem/mail2do/internal/models"
)

// Record is a persisted action plus its completion state.
type Record struct {
	models.ResolvedAction
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	UserEmail  string
	Types      []models.ActionType
	Priorities []models.Priority
	Done       *bool
	Limit      int
}

// Store provides CRUD operations for action records in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an action store backed by the given Postgres pool.
// It ensures the actions table exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure action schema: %w", err)
	}
	slog.Info("action store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS actions (
			id                  TEXT PRIMARY KEY,
			email_id            TEXT NOT NULL,
			ordinal             INTEGER NOT NULL,
			user_email          TEXT NOT NULL,
			subject             TEXT DEFAULT '',
			received_at         TEXT DEFAULT '',
			policy_decision     TEXT NOT NULL,
			type                TEXT NOT NULL,
			title               TEXT NOT NULL,
			assignee            TEXT NOT NULL,
			assignee_candidates TEXT[] NOT NULL DEFAULT '{}',
			due_raw             TEXT,
			due_kst             TEXT,
			due_utc             TEXT,
			priority            TEXT NOT NULL,
			tags                TEXT[] NOT NULL DEFAULT '{}',
			rationale           TEXT DEFAULT '',
			confidence          DOUBLE PRECISION NOT NULL,
			notes               TEXT DEFAULT '',
			done                BOOLEAN NOT NULL DEFAULT FALSE,
			created_at          TIMESTAMPTZ DEFAULT NOW(),
			updated_at          TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(email_id, ordinal, user_email)
		);
		CREATE INDEX IF NOT EXISTS idx_actions_user ON actions(user_email, done);
		CREATE INDEX IF NOT EXISTS idx_actions_due ON actions(due_utc);
	`)
	return err
}

const upsertSQL = `
	INSERT INTO actions
		(id, email_id, ordinal, user_email, subject, received_at, policy_decision,
		 type, title, assignee, assignee_candidates, due_raw, due_kst, due_utc,
		 priority, tags, rationale, confidence, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (email_id, ordinal, user_email) DO UPDATE SET
		subject             = EXCLUDED.subject,
		received_at         = EXCLUDED.received_at,
		policy_decision     = EXCLUDED.policy_decision,
		type                = EXCLUDED.type,
		title               = EXCLUDED.title,
		assignee            = EXCLUDED.assignee,
		assignee_candidates = EXCLUDED.assignee_candidates,
		due_raw             = EXCLUDED.due_raw,
		due_kst             = EXCLUDED.due_kst,
		due_utc             = EXCLUDED.due_utc,
		priority            = EXCLUDED.priority,
		tags                = EXCLUDED.tags,
		rationale           = EXCLUDED.rationale,
		confidence          = EXCLUDED.confidence,
		notes               = EXCLUDED.notes,
		updated_at          = NOW()`

func upsertArgs(a models.ResolvedAction) []any {
	return []any{
		a.ID, a.EmailID, a.Ordinal, a.UserEmail, a.Subject, a.ReceivedAt, string(a.PolicyDecision),
		string(a.Type), a.Title, a.Assignee, nonNil(a.AssigneeCandidates), a.DueRaw, a.DueKST, a.DueUTC,
		string(a.Priority), nonNil(a.Tags), a.Rationale, a.Confidence, a.Notes,
	}
}

// Upsert inserts or updates one action. The done flag is never reset.
func (s *Store) Upsert(ctx context.Context, a models.ResolvedAction) error {
	if _, err := s.pool.Exec(ctx, upsertSQL, upsertArgs(a)...); err != nil {
		return fmt.Errorf("upsert action %s: %w", a.ID, err)
	}
	return nil
}

// Save upserts all actions of one email in a single batch. It lets the
// store act as a pipeline sink.
func (s *Store) Save(ctx context.Context, _ models.NormalizedEmail, actions []models.ResolvedAction) error {
	if len(actions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range actions {
		batch.Queue(upsertSQL, upsertArgs(a)...)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, a := range actions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert action %s: %w", a.ID, err)
		}
	}
	return nil
}

const selectColumns = `
	id, email_id, ordinal, user_email, subject, received_at, policy_decision,
	type, title, assignee, assignee_candidates, due_raw, due_kst, due_utc,
	priority, tags, rationale, confidence, notes, done, created_at, updated_at`

// Get retrieves one action by id. A missing row returns (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM actions WHERE id = $1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get action %s: %w", id, err)
	}
	return r, nil
}

// List returns actions matching f, soonest deadline first; actions
// without a deadline sort last.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	query, args := buildListQuery(f)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// SetDone updates the completion flag. It reports whether the row existed.
func (s *Store) SetDone(ctx context.Context, id string, done bool) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE actions SET done = $1, updated_at = NOW() WHERE id = $2
	`, done, id)
	if err != nil {
		return false, fmt.Errorf("set done on %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func buildListQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.UserEmail != "" {
		add("user_email = $%d", strings.ToLower(f.UserEmail))
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		add("type = ANY($%d)", types)
	}
	if len(f.Priorities) > 0 {
		prios := make([]string, len(f.Priorities))
		for i, p := range f.Priorities {
			prios[i] = string(p)
		}
		add("priority = ANY($%d)", prios)
	}
	if f.Done != nil {
		add("done = $%d", *f.Done)
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + selectColumns + ` FROM actions`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY due_utc ASC NULLS LAST, email_id, ordinal")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

// scanRecord scans a single row into a Record.
func scanRecord(row pgx.Row) (*Record, error) {
	var (
		r                     Record
		policy, typ, priority string
	)
	err := row.Scan(
		&r.ID, &r.EmailID, &r.Ordinal, &r.UserEmail, &r.Subject, &r.ReceivedAt, &policy,
		&typ, &r.Title, &r.Assignee, &r.AssigneeCandidates, &r.DueRaw, &r.DueKST, &r.DueUTC,
		&priority, &r.Tags, &r.Rationale, &r.Confidence, &r.Notes, &r.Done, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.IsAction = true
	r.PolicyDecision = models.PolicyCode(policy)
	r.Type = models.ActionType(typ)
	r.Priority = models.Priority(priority)
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
