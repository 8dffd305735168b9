package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/reimii/meetup-server/internal/store"
)

// Schema is applied at startup. Kept as a single script; the tables are
// additive so re-running on an existing database is safe.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS meetings (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_user_id     INTEGER NOT NULL,
	title             TEXT NOT NULL,
	starts_at         DATETIME NOT NULL,
	ends_at           DATETIME NOT NULL,
	host_name         TEXT NOT NULL,
	guest_email       TEXT NOT NULL,
	notes             TEXT NOT NULL DEFAULT '',
	create_video_link BOOLEAN NOT NULL DEFAULT 1,
	room_id           TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (owner_user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS meeting_participants (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	meeting_id INTEGER NOT NULL,
	user_id    INTEGER,
	email      TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT 'guest',
	FOREIGN KEY (meeting_id) REFERENCES meetings(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_meetings_owner_starts ON meetings(owner_user_id, starts_at);
CREATE INDEX IF NOT EXISTS idx_participants_meeting ON meeting_participants(meeting_id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== MeetingStore implementation ====

// CreateMeeting persists a meeting and returns it with generated fields.
func (s *SQLiteStore) CreateMeeting(ctx context.Context, m *store.Meeting) (*store.Meeting, error) {
	query := `
		INSERT INTO meetings (owner_user_id, title, starts_at, ends_at, host_name, guest_email, notes, create_video_link, room_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		m.OwnerUserID,
		m.Title,
		m.StartsAt.UTC(),
		m.EndsAt.UTC(),
		m.HostName,
		m.GuestEmail,
		m.Notes,
		m.CreateVideoLink,
		m.RoomID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert meeting: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetMeetingByID(ctx, id)
}

// GetMeetingByID retrieves a meeting by ID.
func (s *SQLiteStore) GetMeetingByID(ctx context.Context, id int64) (*store.Meeting, error) {
	query := `
		SELECT id, owner_user_id, title, starts_at, ends_at, host_name, guest_email, notes, create_video_link, room_id, created_at, updated_at
		FROM meetings
		WHERE id = ?
	`
	var m store.Meeting
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.OwnerUserID,
		&m.Title,
		&m.StartsAt,
		&m.EndsAt,
		&m.HostName,
		&m.GuestEmail,
		&m.Notes,
		&m.CreateVideoLink,
		&m.RoomID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("meeting not found: %w", err)
		}
		return nil, fmt.Errorf("query meeting: %w", err)
	}

	return &m, nil
}

// ListMeetingsBetween lists an owner's meetings with startsAt in [from, to).
func (s *SQLiteStore) ListMeetingsBetween(ctx context.Context, ownerUserID int64, from, to time.Time) ([]*store.Meeting, error) {
	query := `
		SELECT id, owner_user_id, title, starts_at, ends_at, host_name, guest_email, notes, create_video_link, room_id, created_at, updated_at
		FROM meetings
		WHERE owner_user_id = ? AND starts_at >= ? AND starts_at < ?
		ORDER BY starts_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, ownerUserID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	defer rows.Close()

	meetings := make([]*store.Meeting, 0)
	for rows.Next() {
		var m store.Meeting
		if err := rows.Scan(
			&m.ID,
			&m.OwnerUserID,
			&m.Title,
			&m.StartsAt,
			&m.EndsAt,
			&m.HostName,
			&m.GuestEmail,
			&m.Notes,
			&m.CreateVideoLink,
			&m.RoomID,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meetings: %w", err)
	}

	return meetings, nil
}

// NextMeeting returns the owner's earliest meeting starting after the given instant.
func (s *SQLiteStore) NextMeeting(ctx context.Context, ownerUserID int64, after time.Time) (*store.Meeting, error) {
	query := `
		SELECT id
		FROM meetings
		WHERE owner_user_id = ? AND starts_at > ?
		ORDER BY starts_at ASC
		LIMIT 1
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query, ownerUserID, after.UTC()).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query next meeting: %w", err)
	}

	return s.GetMeetingByID(ctx, id)
}

// AddParticipant attaches a participant to a meeting.
func (s *SQLiteStore) AddParticipant(ctx context.Context, p *store.MeetingParticipant) error {
	query := `
		INSERT INTO meeting_participants (meeting_id, user_id, email, name, role)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, p.MeetingID, p.UserID, p.Email, p.Name, p.Role)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	p.ID = id

	return nil
}

// ListParticipants lists all participants of a meeting.
func (s *SQLiteStore) ListParticipants(ctx context.Context, meetingID int64) ([]*store.MeetingParticipant, error) {
	query := `
		SELECT id, meeting_id, user_id, email, name, role
		FROM meeting_participants
		WHERE meeting_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, meetingID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*store.MeetingParticipant, 0)
	for rows.Next() {
		var p store.MeetingParticipant
		if err := rows.Scan(&p.ID, &p.MeetingID, &p.UserID, &p.Email, &p.Name, &p.Role); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return participants, nil
}
