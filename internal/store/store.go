package store

import (
	"context"
	"time"
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Meeting represents a scheduled meeting owned by a user.
type Meeting struct {
	ID              int64
	OwnerUserID     int64
	Title           string
	StartsAt        time.Time
	EndsAt          time.Time
	HostName        string
	GuestEmail      string
	Notes           string
	CreateVideoLink bool
	// RoomID is the signaling room minted for the meeting when a video link
	// was requested; empty otherwise.
	RoomID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParticipantRole defines a participant's role in a meeting.
type ParticipantRole string

const (
	RoleHost  ParticipantRole = "host"
	RoleGuest ParticipantRole = "guest"
)

// MeetingParticipant represents one attendee of a meeting.
// UserID is nil for external guests not registered in the system.
type MeetingParticipant struct {
	ID        int64
	MeetingID int64
	UserID    *int64
	Email     string
	Name      string
	Role      ParticipantRole
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// MeetingStore handles meeting persistence.
type MeetingStore interface {
	// CreateMeeting persists a meeting and returns it with generated fields.
	CreateMeeting(ctx context.Context, m *Meeting) (*Meeting, error)

	// GetMeetingByID retrieves a meeting by ID.
	GetMeetingByID(ctx context.Context, id int64) (*Meeting, error)

	// ListMeetingsBetween lists an owner's meetings with startsAt in [from, to),
	// ordered by startsAt ascending.
	ListMeetingsBetween(ctx context.Context, ownerUserID int64, from, to time.Time) ([]*Meeting, error)

	// NextMeeting returns the owner's earliest meeting starting after the given
	// instant, or nil if none is scheduled.
	NextMeeting(ctx context.Context, ownerUserID int64, after time.Time) (*Meeting, error)

	// AddParticipant attaches a participant to a meeting.
	AddParticipant(ctx context.Context, p *MeetingParticipant) error

	// ListParticipants lists all participants of a meeting.
	ListParticipants(ctx context.Context, meetingID int64) ([]*MeetingParticipant, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MeetingStore

	// Close closes the underlying database connection.
	Close() error
}
