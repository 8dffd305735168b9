package http

import (
	stdhttp "net/http"
	"testing"
	"time"
)

func TestCreateMeeting(t *testing.T) {
	env := startTestServer(t, &stubUpstream{})
	token := registerUser(t, env, "alice")

	starts := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	resp := doRequest(t, env, stdhttp.MethodPost, "/api/meetings", token, CreateMeetingRequest{
		Title:           "design sync",
		StartsAt:        starts.Format(time.RFC3339),
		EndsAt:          starts.Add(time.Hour).Format(time.RFC3339),
		GuestEmail:      "guest@example.com",
		Notes:           "bring the sketches",
		CreateVideoLink: true,
	})
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("create meeting status: %d", resp.StatusCode)
	}

	var meeting MeetingResponse
	decodeBody(t, resp, &meeting)
	if meeting.Title != "design sync" || meeting.HostName != "alice" {
		t.Fatalf("unexpected meeting: %+v", meeting)
	}
	if meeting.StartsAt != starts.Format(time.RFC3339) {
		t.Fatalf("expected startsAt %s, got %s", starts.Format(time.RFC3339), meeting.StartsAt)
	}
	if meeting.RoomID == "" {
		t.Fatalf("expected a room id when createVideoLink is set")
	}
	if len(meeting.Participants) != 2 {
		t.Fatalf("expected host and guest participants, got %+v", meeting.Participants)
	}
	if meeting.Participants[0].Role != "host" || meeting.Participants[0].Name != "alice" {
		t.Fatalf("unexpected host participant: %+v", meeting.Participants[0])
	}
	if meeting.Participants[1].Role != "guest" || meeting.Participants[1].Email != "guest@example.com" {
		t.Fatalf("unexpected guest participant: %+v", meeting.Participants[1])
	}

	// Without a video link no room is minted.
	resp = doRequest(t, env, stdhttp.MethodPost, "/api/meetings", token, CreateMeetingRequest{
		Title:      "no call",
		StartsAt:   starts.Format(time.RFC3339),
		EndsAt:     starts.Add(time.Hour).Format(time.RFC3339),
		GuestEmail: "guest@example.com",
	})
	decodeBody(t, resp, &meeting)
	if meeting.RoomID != "" {
		t.Fatalf("expected no room id, got %s", meeting.RoomID)
	}

	// endsAt before startsAt is rejected.
	resp = doRequest(t, env, stdhttp.MethodPost, "/api/meetings", token, CreateMeetingRequest{
		Title:      "backwards",
		StartsAt:   starts.Format(time.RFC3339),
		EndsAt:     starts.Add(-time.Hour).Format(time.RFC3339),
		GuestEmail: "guest@example.com",
	})
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("backwards meeting status: %d", resp.StatusCode)
	}

	// No token, no meeting.
	resp = doRequest(t, env, stdhttp.MethodPost, "/api/meetings", "", CreateMeetingRequest{
		Title:      "sneaky",
		StartsAt:   starts.Format(time.RFC3339),
		EndsAt:     starts.Add(time.Hour).Format(time.RFC3339),
		GuestEmail: "guest@example.com",
	})
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("unauthenticated create status: %d", resp.StatusCode)
	}
}

func TestTodayMeetings(t *testing.T) {
	env := startTestServer(t, &stubUpstream{})
	token := registerUser(t, env, "alice")
	otherToken := registerUser(t, env, "bob")

	now := time.Now().UTC().Truncate(time.Second)
	create := func(token, title string, at time.Time) {
		t.Helper()
		resp := doRequest(t, env, stdhttp.MethodPost, "/api/meetings", token, CreateMeetingRequest{
			Title:      title,
			StartsAt:   at.Format(time.RFC3339),
			EndsAt:     at.Add(30 * time.Minute).Format(time.RFC3339),
			GuestEmail: "guest@example.com",
		})
		resp.Body.Close()
		if resp.StatusCode != stdhttp.StatusCreated {
			t.Fatalf("create %s status: %d", title, resp.StatusCode)
		}
	}

	create(token, "today", now)
	create(token, "far-future", now.Add(48*time.Hour))
	create(otherToken, "not-mine", now)

	resp := doRequest(t, env, stdhttp.MethodGet, "/api/meetings/today", token, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("today status: %d", resp.StatusCode)
	}
	var meetings []MeetingResponse
	decodeBody(t, resp, &meetings)
	if len(meetings) != 1 || meetings[0].Title != "today" {
		t.Fatalf("expected only today's own meeting, got %+v", meetings)
	}
}

func TestNextMeeting(t *testing.T) {
	env := startTestServer(t, &stubUpstream{})
	token := registerUser(t, env, "alice")

	// Nothing scheduled yet.
	resp := doRequest(t, env, stdhttp.MethodGet, "/api/meetings/next", token, nil)
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusNoContent {
		t.Fatalf("empty next status: %d", resp.StatusCode)
	}

	now := time.Now().UTC().Truncate(time.Second)
	for _, m := range []struct {
		title string
		at    time.Time
	}{
		{"later", now.Add(4 * time.Hour)},
		{"sooner", now.Add(2 * time.Hour)},
	} {
		resp := doRequest(t, env, stdhttp.MethodPost, "/api/meetings", token, CreateMeetingRequest{
			Title:      m.title,
			StartsAt:   m.at.Format(time.RFC3339),
			EndsAt:     m.at.Add(time.Hour).Format(time.RFC3339),
			GuestEmail: "guest@example.com",
		})
		resp.Body.Close()
		if resp.StatusCode != stdhttp.StatusCreated {
			t.Fatalf("create %s status: %d", m.title, resp.StatusCode)
		}
	}

	resp = doRequest(t, env, stdhttp.MethodGet, "/api/meetings/next", token, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("next status: %d", resp.StatusCode)
	}
	var meeting MeetingResponse
	decodeBody(t, resp, &meeting)
	if meeting.Title != "sooner" {
		t.Fatalf("expected the earliest upcoming meeting, got %+v", meeting)
	}
}
