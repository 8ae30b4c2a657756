package dedupstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/shanchoynoor/choynews-digest-bot/internal/item"
	"github.com/shanchoynoor/choynews-digest-bot/internal/logger"
)

// Store is the Dedup Store: it owns Delivery Record and Subscriber state
// in Postgres, matching the teacher's internal/storage.PostgresCache
// connection-and-schema-init pattern.
type Store struct {
	db            *sql.DB
	retentionDays int
}

// Open connects to Postgres and ensures the schema exists.
func Open(connectionString string, retentionDays int) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, retentionDays: retentionDays}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logger.Info("dedup store connected")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// HasSeen reports whether fingerprint has already been delivered to
// chatID, within the retention window.
func (s *Store) HasSeen(chatID, fingerprint string) (bool, error) {
	cutoff := time.Now().Add(-time.Duration(s.retentionDays) * 24 * time.Hour)

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM delivery_log WHERE chat_id = $1 AND fingerprint = $2 AND sent_at > $3`,
		chatID, fingerprint, cutoff,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("has_seen: %w", err)
	}
	return count > 0, nil
}

// MarkSent records a delivery, idempotent on (chat_id, fingerprint) per
// spec.md §4.2. Must only be called after the transport acknowledges
// delivery — the Scheduler, not the Selection Engine, calls this.
func (s *Store) MarkSent(chatID, fingerprint string, cat item.Category, when time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO delivery_log (chat_id, fingerprint, category, sent_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (chat_id, fingerprint) DO NOTHING`,
		chatID, fingerprint, string(cat), when,
	)
	if err != nil {
		return fmt.Errorf("mark_sent: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes delivery_log rows older than the retention
// window. Intended to run once daily.
func (s *Store) PurgeOlderThan(retentionDays int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	result, err := s.db.Exec(`DELETE FROM delivery_log WHERE sent_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// LogInteraction appends an entry to user_logs. Left unread by the core
// pipeline but present because spec.md §6 names the schema and the
// original implementation writes to it on every command.
func (s *Store) LogInteraction(userID, username, firstName, messageType, location string) error {
	_, err := s.db.Exec(
		`INSERT INTO user_logs (user_id, username, first_name, message_type, location)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, username, firstName, messageType, location,
	)
	if err != nil {
		return fmt.Errorf("log_interaction: %w", err)
	}
	return nil
}
