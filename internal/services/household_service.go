package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"casa/internal/core"
	"casa/internal/store"
)

// HouseholdService manages households and the invite/accept flow that is the
// only way to join one.
type HouseholdService struct {
	store store.Store
	now   func() time.Time
}

func NewHouseholdService(s store.Store) *HouseholdService {
	return &HouseholdService{store: s, now: time.Now}
}

// CreateHousehold creates a household owned by user. A user belongs to at
// most one household.
func (s *HouseholdService) CreateHousehold(ctx context.Context, user core.User, name string) (core.Household, error) {
	now := s.now().UTC()
	h := core.Household{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		OwnerID:   user.ID,
		CreatedAt: now,
	}
	if err := h.Validate(); err != nil {
		return core.Household{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	first, last := core.SplitName(user.FullName)
	owner := core.Member{
		UserID:    user.ID,
		FirstName: first,
		LastName:  last,
		Email:     strings.ToLower(strings.TrimSpace(user.Email)),
		Role:      core.RoleOwner,
		Joined:    true,
		JoinedAt:  now,
	}
	if err := s.store.CreateHousehold(ctx, h, owner); err != nil {
		return core.Household{}, fmt.Errorf("create household: %w", err)
	}
	h.Members = []core.Member{owner}

	slog.InfoContext(ctx, "Household created", "household_id", h.ID, "user_id", user.ID)
	return h, nil
}

// GetUserHousehold returns the household the user has joined, with members.
func (s *HouseholdService) GetUserHousehold(ctx context.Context, user core.User) (core.Household, error) {
	return s.store.GetUserHousehold(ctx, user.ID)
}

// Invite creates a pending invitation for email. Any joined member may invite.
func (s *HouseholdService) Invite(ctx context.Context, inviter core.User, householdID, email string) (core.Invitation, error) {
	addr, err := core.NormalizeEmail(email)
	if err != nil {
		return core.Invitation{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	h, err := s.store.GetHousehold(ctx, householdID)
	if err != nil {
		return core.Invitation{}, err
	}
	if !h.IsJoinedMember(inviter.ID) {
		return core.Invitation{}, fmt.Errorf("%w: not a member of household %s", ErrForbidden, householdID)
	}
	for _, m := range h.Members {
		if strings.EqualFold(m.Email, addr) {
			return core.Invitation{}, fmt.Errorf("invite %s: %w", addr, store.ErrAlreadyMember)
		}
	}

	inv := core.Invitation{
		ID:            uuid.NewString(),
		HouseholdID:   h.ID,
		HouseholdName: h.Name,
		Email:         addr,
		InvitedBy:     inviter.ID,
		Status:        core.InvitationPending,
		InvitedAt:     s.now().UTC(),
	}
	if err := inv.Validate(); err != nil {
		return core.Invitation{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return core.Invitation{}, fmt.Errorf("create invitation: %w", err)
	}

	slog.InfoContext(ctx, "Invitation sent",
		"household_id", h.ID,
		"invitation_id", inv.ID,
		"user_id", inviter.ID)
	return inv, nil
}

// PendingInvitations lists open invitations addressed to email.
func (s *HouseholdService) PendingInvitations(ctx context.Context, email string) ([]core.Invitation, error) {
	addr, err := core.NormalizeEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return s.store.PendingInvitationsByEmail(ctx, addr)
}

// AcceptInvitation joins user to the inviting household. The invitation must
// be pending and addressed to the user's email.
func (s *HouseholdService) AcceptInvitation(ctx context.Context, user core.User, invitationID string) (core.Household, error) {
	inv, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return core.Household{}, err
	}
	if inv.Status != core.InvitationPending {
		return core.Household{}, store.ErrInvitationClosed
	}
	addr, err := core.NormalizeEmail(user.Email)
	if err != nil || addr != inv.Email {
		return core.Household{}, fmt.Errorf("%w: invitation addressed to another email", ErrForbidden)
	}

	first, last := core.SplitName(user.FullName)
	member := core.Member{
		UserID:    user.ID,
		FirstName: first,
		LastName:  last,
		Email:     addr,
		Role:      core.RoleMember,
		Joined:    true,
		JoinedAt:  s.now().UTC(),
	}
	if err := s.store.AddMember(ctx, inv.HouseholdID, member); err != nil {
		return core.Household{}, fmt.Errorf("join household: %w", err)
	}
	if err := s.store.MarkInvitationAccepted(ctx, inv.ID); err != nil && !errors.Is(err, store.ErrInvitationClosed) {
		return core.Household{}, fmt.Errorf("accept invitation: %w", err)
	}

	slog.InfoContext(ctx, "Invitation accepted",
		"household_id", inv.HouseholdID,
		"invitation_id", inv.ID,
		"user_id", user.ID)
	return s.store.GetHousehold(ctx, inv.HouseholdID)
}
