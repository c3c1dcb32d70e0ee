package http

import (
	"context"
	"net/http"
	"time"

	"casa/internal/core"
)

type memberView struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     core.Role `json:"role"`
	Joined   bool      `json:"joined"`
	JoinedAt time.Time `json:"joinedAt,omitempty"`
}

type householdView struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	OwnerID   string       `json:"ownerId"`
	CreatedAt time.Time    `json:"createdAt"`
	Members   []memberView `json:"members"`
}

type invitationView struct {
	ID            string                `json:"id"`
	HouseholdID   string                `json:"householdId"`
	HouseholdName string                `json:"householdName,omitempty"`
	Email         string                `json:"email"`
	InvitedBy     string                `json:"invitedBy"`
	Status        core.InvitationStatus `json:"status"`
	InvitedAt     time.Time             `json:"invitedAt"`
}

func toHouseholdView(h core.Household) householdView {
	v := householdView{
		ID:        h.ID,
		Name:      h.Name,
		OwnerID:   h.OwnerID,
		CreatedAt: h.CreatedAt,
		Members:   make([]memberView, 0, len(h.Members)),
	}
	for _, m := range h.Members {
		v.Members = append(v.Members, memberView{
			UserID:   m.UserID,
			Name:     m.FullName(),
			Email:    m.Email,
			Role:     m.Role,
			Joined:   m.Joined,
			JoinedAt: m.JoinedAt,
		})
	}
	return v
}

func toInvitationView(inv core.Invitation) invitationView {
	return invitationView{
		ID:            inv.ID,
		HouseholdID:   inv.HouseholdID,
		HouseholdName: inv.HouseholdName,
		Email:         inv.Email,
		InvitedBy:     inv.InvitedBy,
		Status:        inv.Status,
		InvitedAt:     inv.InvitedAt,
	}
}

func (s *Server) handleCreateHousehold(w http.ResponseWriter, r *http.Request, user core.User) {
	name, err := parseField(NewRequestBodyParser(w, r), "name")
	if err != nil {
		s.fail(w, r, err, "Household request rejected")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	h, err := s.households.CreateHousehold(ctx, user, name)
	if err != nil {
		s.fail(w, r, err, "Create household failed")
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerHouseholdChanged(h.ID).
		JSON(toHouseholdView(h)).
		Write(w)
}

func (s *Server) handleGetHousehold(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	h, err := s.households.GetUserHousehold(ctx, user)
	if err != nil {
		s.fail(w, r, err, "Household lookup failed")
		return
	}
	NewResponse().JSON(toHouseholdView(h)).Write(w)
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request, user core.User) {
	email, err := parseField(NewRequestBodyParser(w, r), "email")
	if err != nil {
		s.fail(w, r, err, "Invitation request rejected")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	h, err := s.households.GetUserHousehold(ctx, user)
	if err != nil {
		s.fail(w, r, err, "Household lookup failed")
		return
	}
	inv, err := s.households.Invite(ctx, user, h.ID, email)
	if err != nil {
		s.fail(w, r, err, "Invite failed")
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerHouseholdChanged(h.ID).
		JSON(toInvitationView(inv)).
		Write(w)
}

func (s *Server) handleListInvitations(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	invs, err := s.households.PendingInvitations(ctx, user.Email)
	if err != nil {
		s.fail(w, r, err, "List invitations failed")
		return
	}
	out := make([]invitationView, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvitationView(inv))
	}
	NewResponse().JSON(map[string]any{"invitations": out}).Write(w)
}

func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	h, err := s.households.AcceptInvitation(ctx, user, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "Accept invitation failed")
		return
	}
	NewResponse().
		TriggerHouseholdChanged(h.ID).
		JSON(toHouseholdView(h)).
		Write(w)
}
