package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reimii/meetup-server/internal/store"
)

// MeetingHandlers provides HTTP handlers for meeting scheduling endpoints.
type MeetingHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewMeetingHandlers creates a new meeting handlers instance.
func NewMeetingHandlers(st store.Store, logger *zerolog.Logger) *MeetingHandlers {
	return &MeetingHandlers{
		store: st,
		log:   logger,
	}
}

// CreateMeetingRequest represents the create meeting request body.
// StartsAt/EndsAt are RFC 3339 strings, e.g. "2026-02-06T14:30:00Z".
type CreateMeetingRequest struct {
	Title           string `json:"title" binding:"required,min=1,max=128"`
	StartsAt        string `json:"startsAt" binding:"required"`
	EndsAt          string `json:"endsAt" binding:"required"`
	GuestEmail      string `json:"guestEmail" binding:"required,email"`
	Notes           string `json:"notes"`
	CreateVideoLink bool   `json:"createVideoLink"`
}

// ParticipantResponse represents a meeting participant in API responses.
type ParticipantResponse struct {
	UserID *int64 `json:"userId,omitempty"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role"`
}

// MeetingResponse represents a meeting in API responses.
type MeetingResponse struct {
	ID              int64                 `json:"id"`
	OwnerUserID     int64                 `json:"ownerUserId"`
	Title           string                `json:"title"`
	StartsAt        string                `json:"startsAt"`
	EndsAt          string                `json:"endsAt"`
	HostName        string                `json:"hostName"`
	GuestEmail      string                `json:"guestEmail"`
	Notes           string                `json:"notes,omitempty"`
	CreateVideoLink bool                  `json:"createVideoLink"`
	RoomID          string                `json:"roomId,omitempty"`
	Participants    []ParticipantResponse `json:"participants"`
	CreatedAt       string                `json:"createdAt"`
	UpdatedAt       string                `json:"updatedAt"`
}

// CreateMeeting handles meeting creation.
// POST /api/meetings
func (h *MeetingHandlers) CreateMeeting(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create meeting request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "startsAt must be RFC 3339"})
		return
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "endsAt must be RFC 3339"})
		return
	}
	if !endsAt.After(startsAt) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "endsAt must be after startsAt"})
		return
	}

	owner, err := h.store.GetUserByID(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to load owner")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	meeting := &store.Meeting{
		OwnerUserID:     uid,
		Title:           req.Title,
		StartsAt:        startsAt,
		EndsAt:          endsAt,
		HostName:        owner.Username,
		GuestEmail:      req.GuestEmail,
		Notes:           req.Notes,
		CreateVideoLink: req.CreateVideoLink,
	}
	if req.CreateVideoLink {
		meeting.RoomID = uuid.NewString()
	}

	created, err := h.store.CreateMeeting(c.Request.Context(), meeting)
	if err != nil {
		h.log.Error().Err(err).Str("title", req.Title).Msg("failed to create meeting")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	participants := []*store.MeetingParticipant{
		{MeetingID: created.ID, UserID: &owner.ID, Email: owner.Email, Name: owner.Username, Role: store.RoleHost},
		{MeetingID: created.ID, Email: req.GuestEmail, Role: store.RoleGuest},
	}
	for _, p := range participants {
		if err := h.store.AddParticipant(c.Request.Context(), p); err != nil {
			h.log.Error().Err(err).Int64("meeting_id", created.ID).Msg("failed to add participant")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
	}

	h.log.Info().Int64("meeting_id", created.ID).Int64("owner_id", uid).Str("room_id", created.RoomID).Msg("meeting created")
	c.JSON(http.StatusCreated, h.toResponse(c, created))
}

// TodayMeetings lists the caller's meetings starting today.
// GET /api/meetings/today
func (h *MeetingHandlers) TodayMeetings(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	now := time.Now().Local()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, 1)

	meetings, err := h.store.ListMeetingsBetween(c.Request.Context(), uid, from, to)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list today's meetings")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MeetingResponse, 0, len(meetings))
	for _, m := range meetings {
		response = append(response, h.toResponse(c, m))
	}
	c.JSON(http.StatusOK, response)
}

// NextMeeting returns the caller's next upcoming meeting, or 204 when none.
// GET /api/meetings/next
func (h *MeetingHandlers) NextMeeting(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	meeting, err := h.store.NextMeeting(c.Request.Context(), uid, time.Now())
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to query next meeting")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if meeting == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(c, meeting))
}

func (h *MeetingHandlers) toResponse(c *gin.Context, m *store.Meeting) MeetingResponse {
	resp := MeetingResponse{
		ID:              m.ID,
		OwnerUserID:     m.OwnerUserID,
		Title:           m.Title,
		StartsAt:        m.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:          m.EndsAt.UTC().Format(time.RFC3339),
		HostName:        m.HostName,
		GuestEmail:      m.GuestEmail,
		Notes:           m.Notes,
		CreateVideoLink: m.CreateVideoLink,
		RoomID:          m.RoomID,
		Participants:    make([]ParticipantResponse, 0),
		CreatedAt:       m.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       m.UpdatedAt.UTC().Format(time.RFC3339),
	}

	participants, err := h.store.ListParticipants(c.Request.Context(), m.ID)
	if err != nil {
		h.log.Warn().Err(err).Int64("meeting_id", m.ID).Msg("failed to list participants")
		return resp
	}
	for _, p := range participants {
		resp.Participants = append(resp.Participants, ParticipantResponse{
			UserID: p.UserID,
			Email:  p.Email,
			Name:   p.Name,
			Role:   string(p.Role),
		})
	}
	return resp
}
