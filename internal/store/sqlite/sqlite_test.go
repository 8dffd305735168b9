package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/reimii/meetup-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func createTestUser(t *testing.T, s *SQLiteStore, username string) *store.User {
	t.Helper()

	user, err := s.CreateUser(context.Background(), username, username+"@example.com", "hash")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := createTestUser(t, s, "alice")
	if created.ID == 0 || created.Username != "alice" || created.Email != "alice@example.com" {
		t.Fatalf("unexpected created user: %+v", created)
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != created.ID {
		t.Fatalf("expected id %d, got %d", created.ID, byName.ID)
	}

	if _, err := s.GetUserByUsername(ctx, "nobody"); err == nil {
		t.Fatalf("expected error for unknown user")
	}

	// Duplicate usernames must be rejected by the unique constraint.
	if _, err := s.CreateUser(ctx, "alice", "other@example.com", "hash"); err == nil {
		t.Fatalf("expected unique constraint violation")
	}
}

func TestMeetingLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "alice")

	starts := time.Date(2026, 2, 6, 14, 30, 0, 0, time.UTC)
	created, err := s.CreateMeeting(ctx, &store.Meeting{
		OwnerUserID:     owner.ID,
		Title:           "design sync",
		StartsAt:        starts,
		EndsAt:          starts.Add(time.Hour),
		HostName:        owner.Username,
		GuestEmail:      "guest@example.com",
		Notes:           "agenda tbd",
		CreateVideoLink: true,
		RoomID:          "room-1",
	})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if created.ID == 0 || created.Title != "design sync" || created.RoomID != "room-1" {
		t.Fatalf("unexpected meeting: %+v", created)
	}
	if !created.StartsAt.Equal(starts) {
		t.Fatalf("expected startsAt %v, got %v", starts, created.StartsAt)
	}

	got, err := s.GetMeetingByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get meeting: %v", err)
	}
	if got.GuestEmail != "guest@example.com" || !got.CreateVideoLink {
		t.Fatalf("unexpected meeting fields: %+v", got)
	}
}

func TestListMeetingsBetweenOrdersAndFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(owner int64, title string, at time.Time) {
		t.Helper()
		_, err := s.CreateMeeting(ctx, &store.Meeting{
			OwnerUserID: owner,
			Title:       title,
			StartsAt:    at,
			EndsAt:      at.Add(30 * time.Minute),
			HostName:    "host",
			GuestEmail:  "guest@example.com",
		})
		if err != nil {
			t.Fatalf("create meeting %s: %v", title, err)
		}
	}

	mk(alice.ID, "late", day.Add(16*time.Hour))
	mk(alice.ID, "early", day.Add(9*time.Hour))
	mk(alice.ID, "tomorrow", day.Add(25*time.Hour))
	mk(bob.ID, "other-owner", day.Add(10*time.Hour))

	meetings, err := s.ListMeetingsBetween(ctx, alice.ID, day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list meetings: %v", err)
	}
	if len(meetings) != 2 {
		t.Fatalf("expected 2 meetings, got %d", len(meetings))
	}
	if meetings[0].Title != "early" || meetings[1].Title != "late" {
		t.Fatalf("expected ascending order, got %s then %s", meetings[0].Title, meetings[1].Title)
	}
}

func TestNextMeeting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "alice")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := s.NextMeeting(ctx, owner.ID, now)
	if err != nil {
		t.Fatalf("next meeting: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil when nothing scheduled, got %+v", next)
	}

	for _, offset := range []time.Duration{-time.Hour, 2 * time.Hour, 4 * time.Hour} {
		at := now.Add(offset)
		if _, err := s.CreateMeeting(ctx, &store.Meeting{
			OwnerUserID: owner.ID,
			Title:       "m",
			StartsAt:    at,
			EndsAt:      at.Add(time.Hour),
			HostName:    "host",
			GuestEmail:  "guest@example.com",
		}); err != nil {
			t.Fatalf("create meeting: %v", err)
		}
	}

	next, err = s.NextMeeting(ctx, owner.ID, now)
	if err != nil {
		t.Fatalf("next meeting: %v", err)
	}
	if next == nil || !next.StartsAt.Equal(now.Add(2*time.Hour)) {
		t.Fatalf("expected the meeting two hours out, got %+v", next)
	}
}

func TestParticipants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "alice")

	starts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	meeting, err := s.CreateMeeting(ctx, &store.Meeting{
		OwnerUserID: owner.ID,
		Title:       "standup",
		StartsAt:    starts,
		EndsAt:      starts.Add(time.Hour),
		HostName:    owner.Username,
		GuestEmail:  "guest@example.com",
	})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}

	host := &store.MeetingParticipant{MeetingID: meeting.ID, UserID: &owner.ID, Email: owner.Email, Name: owner.Username, Role: store.RoleHost}
	guest := &store.MeetingParticipant{MeetingID: meeting.ID, Email: "guest@example.com", Role: store.RoleGuest}
	for _, p := range []*store.MeetingParticipant{host, guest} {
		if err := s.AddParticipant(ctx, p); err != nil {
			t.Fatalf("add participant: %v", err)
		}
		if p.ID == 0 {
			t.Fatalf("expected participant id to be set")
		}
	}

	participants, err := s.ListParticipants(ctx, meeting.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(participants))
	}
	if participants[0].Role != store.RoleHost || participants[0].UserID == nil {
		t.Fatalf("unexpected host participant: %+v", participants[0])
	}
	if participants[1].Role != store.RoleGuest || participants[1].UserID != nil {
		t.Fatalf("unexpected guest participant: %+v", participants[1])
	}
}
