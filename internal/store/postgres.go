package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexwynter/wavelength/internal/live"
)

// PostgresStore persists sessions and signal mailboxes in postgres.
// Set mutations are single guarded UPDATEs so that a kick racing a join
// resolves in the kick's favor without whole-row transactions.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS live_sessions (
			id TEXT PRIMARY KEY,
			host_id TEXT NOT NULL,
			type TEXT NOT NULL,
			participants TEXT[] NOT NULL,
			viewers TEXT[] NOT NULL DEFAULT '{}',
			kicked_viewers TEXT[] NOT NULL DEFAULT '{}',
			status TEXT NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT TRUE,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NULL,
			last_active_at TIMESTAMPTZ NOT NULL,
			ended_reason TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_live_sessions_status_type ON live_sessions (status, type);`,
		`CREATE INDEX IF NOT EXISTS idx_live_sessions_participants ON live_sessions USING GIN (participants);`,
		`CREATE TABLE IF NOT EXISTS live_signals (
			session_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			type TEXT NOT NULL,
			sender TEXT NOT NULL,
			recipient TEXT NOT NULL,
			sdp TEXT NOT NULL DEFAULT '',
			candidate TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_live_signals_recipient ON live_signals (session_id, recipient, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init live schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %s", op, live.ErrStoreUnavailable, err)
}

const sessionColumns = `id, host_id, type, participants, viewers, kicked_viewers,
	status, is_public, started_at, ended_at, last_active_at, ended_reason`

func scanSession(row pgx.Row) (*live.Session, error) {
	var s live.Session
	err := row.Scan(
		&s.ID, &s.HostID, &s.Type, &s.Participants, &s.Viewers, &s.KickedViewers,
		&s.Status, &s.IsPublic, &s.StartedAt, &s.EndedAt, &s.LastActiveAt, &s.EndedReason,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *live.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO live_sessions (
			id, host_id, type, participants, viewers, kicked_viewers,
			status, is_public, started_at, last_active_at, ended_reason
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'')`,
		sess.ID, sess.HostID, string(sess.Type), sess.Participants, sess.Viewers,
		sess.KickedViewers, string(sess.Status), sess.IsPublic, sess.StartedAt, sess.LastActiveAt,
	)
	if err != nil {
		return storeErr("create session", err)
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*live.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM live_sessions WHERE id=$1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, live.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get session", err)
	}
	return sess, nil
}

func (s *PostgresStore) AddViewer(ctx context.Context, id, userID string) error {
	// The kicked guard is part of the UPDATE predicate: a concurrent
	// kick that commits first makes this a zero-row update.
	tag, err := s.pool.Exec(ctx,
		`UPDATE live_sessions
		 SET viewers = array_append(viewers, $2)
		 WHERE id=$1 AND status='active'
		   AND NOT ($2 = ANY(kicked_viewers))
		   AND NOT ($2 = ANY(viewers))`,
		id, userID)
	if err != nil {
		return storeErr("add viewer", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return s.classifyViewerNoop(ctx, id, userID)
}

// classifyViewerNoop decides why a guarded viewer append matched no rows.
func (s *PostgresStore) classifyViewerNoop(ctx context.Context, id, userID string) error {
	var status string
	var kicked, present bool
	err := s.pool.QueryRow(ctx,
		`SELECT status, $2 = ANY(kicked_viewers), $2 = ANY(viewers)
		 FROM live_sessions WHERE id=$1`,
		id, userID).Scan(&status, &kicked, &present)
	if errors.Is(err, pgx.ErrNoRows) {
		return live.ErrNotFound
	}
	if err != nil {
		return storeErr("add viewer", err)
	}
	switch {
	case kicked:
		return live.ErrAlreadyKicked
	case status != string(live.StatusActive):
		return live.ErrNotFound
	case present:
		return nil
	}
	return live.ErrNotFound
}

func (s *PostgresStore) KickViewer(ctx context.Context, id, viewerID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE live_sessions
		 SET viewers = array_remove(viewers, $2),
		     kicked_viewers = CASE
		       WHEN $2 = ANY(kicked_viewers) THEN kicked_viewers
		       ELSE array_append(kicked_viewers, $2)
		     END
		 WHERE id=$1 AND status='active'`,
		id, viewerID)
	if err != nil {
		return storeErr("kick viewer", err)
	}
	if tag.RowsAffected() == 0 {
		return live.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetPrivacy(ctx context.Context, id string, isPublic bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE live_sessions SET is_public=$2 WHERE id=$1 AND status='active'`,
		id, isPublic)
	if err != nil {
		return storeErr("set privacy", err)
	}
	if tag.RowsAffected() == 0 {
		return live.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TouchSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE live_sessions SET last_active_at=$2 WHERE id=$1 AND status='active'`,
		id, time.Now().UTC())
	if err != nil {
		return storeErr("touch session", err)
	}
	if tag.RowsAffected() == 0 {
		return live.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) EndSession(ctx context.Context, id, reason string) (bool, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE live_sessions
		 SET status='ended', ended_at=$2, ended_reason=$3
		 WHERE id=$1 AND status='active'`,
		id, now, reason)
	if err != nil {
		return false, storeErr("end session", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM live_sessions WHERE id=$1)`, id).Scan(&exists); err != nil {
		return false, storeErr("end session", err)
	}
	if !exists {
		return false, live.ErrNotFound
	}
	return false, nil
}

func (s *PostgresStore) ListActiveBroadcasts(ctx context.Context) ([]*live.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM live_sessions
		 WHERE status='active' AND type=$1
		 ORDER BY started_at DESC`,
		string(live.TypeBroadcast))
	if err != nil {
		return nil, storeErr("list broadcasts", err)
	}
	defer rows.Close()
	var out []*live.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storeErr("list broadcasts", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list broadcasts", err)
	}
	return out, nil
}

func (s *PostgresStore) ActiveSessionFor(ctx context.Context, userID string) (*live.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM live_sessions
		 WHERE status='active' AND $1 = ANY(participants)
		 ORDER BY started_at DESC LIMIT 1`,
		userID)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, live.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("active session for user", err)
	}
	return sess, nil
}

func (s *PostgresStore) IncomingCallFor(ctx context.Context, userID string) (*live.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM live_sessions
		 WHERE status='active' AND type IN ($2,$3)
		   AND $1 = ANY(participants) AND host_id <> $1
		 ORDER BY started_at DESC LIMIT 1`,
		userID, string(live.TypeCallVideo), string(live.TypeCallAudio))
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, live.ErrNotFound
	}
	if err != nil {
		return nil, storeErr("incoming call for user", err)
	}
	return sess, nil
}

func (s *PostgresStore) AppendSignal(ctx context.Context, msg *live.SignalMessage) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr("append signal", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	var seq int64
	err = tx.QueryRow(ctx,
		`INSERT INTO live_signals (session_id, seq, type, sender, recipient, sdp, candidate, created_at)
		 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5, $6, $7
		 FROM live_signals WHERE session_id = $1
		 RETURNING seq`,
		msg.SessionID, string(msg.Type), msg.From, msg.To, msg.SDP, msg.Candidate, now,
	).Scan(&seq)
	if err != nil {
		return storeErr("append signal", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr("append signal", err)
	}
	msg.Seq = seq
	msg.Timestamp = now
	return nil
}

func (s *PostgresStore) SignalsFor(ctx context.Context, sessionID, recipientID string, afterSeq int64) ([]live.SignalMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, seq, type, sender, recipient, sdp, candidate, created_at
		 FROM live_signals
		 WHERE session_id=$1 AND recipient=$2 AND seq > $3
		 ORDER BY seq`,
		sessionID, recipientID, afterSeq)
	if err != nil {
		return nil, storeErr("signals for recipient", err)
	}
	defer rows.Close()
	var out []live.SignalMessage
	for rows.Next() {
		var m live.SignalMessage
		if err := rows.Scan(&m.SessionID, &m.Seq, &m.Type, &m.From, &m.To, &m.SDP, &m.Candidate, &m.Timestamp); err != nil {
			return nil, storeErr("signals for recipient", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("signals for recipient", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
