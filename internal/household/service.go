// Package household keeps the shared household documents in step with the
// signed-in user: it creates profiles and solo households on first use,
// resolves member lists for live views, and changes membership.
//
// Writes that span two documents (a household and a profile) happen in two
// steps. The member set is always written first and inside a transaction;
// the profile's household reference follows outside it and is never rolled
// back into the member set if it fails.
package household

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/docstore"
	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/google/uuid"
)

var (
	ErrUnauthenticated = errors.New("not signed in")
	ErrNotFound        = errors.New("household not found")
	ErrInvalidName     = errors.New("household name is required")
)

const fallbackName = "My household"

// Member is the read-only view of one household member.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Household struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

// MoveFunc is told when a user's household reference changes.
type MoveFunc func(uid, householdID string) error

type Service struct {
	docs   docstore.Store
	logger *slog.Logger
	newID  func() string
	onMove MoveFunc
}

func NewService(docs docstore.Store, logger *slog.Logger) *Service {
	return &Service{
		docs:   docs,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// OnMove registers fn to run after a user is pointed at a different
// household. Errors from fn are logged.
func (s *Service) OnMove(fn MoveFunc) {
	s.onMove = fn
}

// DefaultName is the name given to a user's first household.
func DefaultName(displayName string) string {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return fallbackName
	}
	return displayName + "'s household"
}

// EnsureUserProfile creates the caller's profile document if it does not
// exist yet and returns the caller's uid. An existing profile is left as is.
func (s *Service) EnsureUserProfile(ctx context.Context) (string, error) {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok || id.UID == "" {
		return "", ErrUnauthenticated
	}

	existing, err := s.docs.GetUser(ctx, id.UID)
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	if existing != nil {
		return id.UID, nil
	}

	created, err := s.docs.CreateUser(ctx, docstore.UserDoc{
		UID:         id.UID,
		Email:       strings.ToLower(strings.TrimSpace(id.Email)),
		DisplayName: id.DisplayName,
	})
	if err != nil {
		return "", fmt.Errorf("create profile: %w", err)
	}
	if created {
		s.logger.Info("user profile created", "uid", id.UID)
	}
	return id.UID, nil
}

// GetOrCreateHouseholdID returns the caller's household id, creating a solo
// household named after the caller when the profile has none.
func (s *Service) GetOrCreateHouseholdID(ctx context.Context) (string, error) {
	uid, err := s.EnsureUserProfile(ctx)
	if err != nil {
		return "", err
	}

	user, err := s.docs.GetUser(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("get profile: %w", docstore.ErrNotFound)
	}
	if hid := householdRef(user); hid != "" {
		return hid, nil
	}

	return s.createSolo(ctx, user)
}

func (s *Service) createSolo(ctx context.Context, user *docstore.UserDoc) (string, error) {
	hid := s.newID()
	err := s.docs.CreateHousehold(ctx, docstore.HouseholdDoc{
		ID:      hid,
		Name:    DefaultName(user.DisplayName),
		Members: []string{user.UID},
	})
	if err != nil {
		return "", fmt.Errorf("create household: %w", err)
	}

	// The household exists from here on even if the profile write fails.
	if err := s.docs.SetUserHousehold(ctx, user.UID, &hid); err != nil {
		return "", fmt.Errorf("set household reference: %w", err)
	}
	s.logger.Info("household created", "household_id", hid, "uid", user.UID)
	s.moved(user.UID, hid)
	return hid, nil
}

// ObserveMembers streams member snapshots for a household: one when the
// watch starts and one after every change to the household document. A
// snapshot that cannot be read is logged and sent as an empty list. The
// channel closes once ctx is cancelled and the backend watch is released.
func (s *Service) ObserveMembers(ctx context.Context, householdID string) <-chan []Member {
	out := make(chan []Member)

	go func() {
		defer close(out)

		changes, err := s.docs.WatchHousehold(ctx, householdID)
		if err != nil {
			s.logger.Error("watch household", "household_id", householdID, "error", err)
			select {
			case out <- []Member{}:
			case <-ctx.Done():
			}
			return
		}

		for range changes {
			members, err := s.members(ctx, householdID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("load household members", "household_id", householdID, "error", err)
				members = []Member{}
			}
			select {
			case out <- members:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (s *Service) members(ctx context.Context, householdID string) ([]Member, error) {
	h, err := s.docs.GetHousehold(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	if h == nil || len(h.Members) == 0 {
		return []Member{}, nil
	}
	return s.resolve(ctx, h.Members)
}

func (s *Service) resolve(ctx context.Context, uids []string) ([]Member, error) {
	users, err := s.docs.GetUsers(ctx, uids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	members := make([]Member, 0, len(users))
	for _, u := range users {
		members = append(members, Member{ID: u.UID, Name: u.DisplayName, Email: u.Email})
	}
	return members, nil
}

// AddMemberByEmail adds the user registered under email to the household.
// It returns false without error when no such user exists. Adding a user
// who is already a member changes nothing.
func (s *Service) AddMemberByEmail(ctx context.Context, householdID, email string) (added bool, err error) {
	defer func() {
		if added || err != nil {
			metrics.RecordMembership("add", err)
		}
	}()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, nil
	}

	user, err := s.docs.FindUserByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return false, nil
	}

	if err := s.docs.UpdateMembers(ctx, householdID, addMember(user.UID)); err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}

	if householdRef(user) == "" {
		if err := s.docs.SetUserHousehold(ctx, user.UID, &householdID); err != nil {
			s.logger.Error("set added member household", "uid", user.UID, "household_id", householdID, "error", err)
		} else {
			s.moved(user.UID, householdID)
		}
	}

	s.logger.Info("member added", "household_id", householdID, "uid", user.UID)
	return true, nil
}

// JoinByCode moves the caller into the household whose id is code. The
// caller is added to the new member set first; leaving the previous
// household is best effort.
func (s *Service) JoinByCode(ctx context.Context, code string) (hid string, err error) {
	defer func() { metrics.RecordMembership("join", err) }()

	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrNotFound
	}
	uid, err := s.EnsureUserProfile(ctx)
	if err != nil {
		return "", err
	}
	user, err := s.docs.GetUser(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("get profile: %w", docstore.ErrNotFound)
	}

	err = s.docs.UpdateMembers(ctx, code, addMember(uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("join household: %w", err)
	}

	previous := householdRef(user)
	if previous == code {
		return code, nil
	}
	if previous != "" {
		if err := s.docs.UpdateMembers(ctx, previous, removeMember(uid)); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			s.logger.Error("leave previous household", "uid", uid, "household_id", previous, "error", err)
		}
	}

	if err := s.docs.SetUserHousehold(ctx, uid, &code); err != nil {
		return "", fmt.Errorf("set household reference: %w", err)
	}
	s.logger.Info("household joined", "household_id", code, "uid", uid)
	s.moved(uid, code)
	return code, nil
}

// Leave removes the caller from their household and gives them a fresh
// solo household, whose id is returned. The old household is kept even
// when it has no members left.
func (s *Service) Leave(ctx context.Context) (hid string, err error) {
	defer func() { metrics.RecordMembership("leave", err) }()

	uid, err := s.EnsureUserProfile(ctx)
	if err != nil {
		return "", err
	}
	user, err := s.docs.GetUser(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("get profile: %w", docstore.ErrNotFound)
	}

	if current := householdRef(user); current != "" {
		err := s.docs.UpdateMembers(ctx, current, removeMember(uid))
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return "", fmt.Errorf("leave household: %w", err)
		}
		s.logger.Info("household left", "household_id", current, "uid", uid)
	}

	return s.createSolo(ctx, user)
}

// Rename sets the name of the caller's household.
func (s *Service) Rename(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	hid, err := s.GetOrCreateHouseholdID(ctx)
	if err != nil {
		return err
	}
	if err := s.docs.RenameHousehold(ctx, hid, name); err != nil {
		return fmt.Errorf("rename household: %w", err)
	}
	return nil
}

// Household reads the caller's household with its resolved members.
func (s *Service) Household(ctx context.Context) (*Household, error) {
	hid, err := s.GetOrCreateHouseholdID(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.docs.GetHousehold(ctx, hid)
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}

	members := []Member{}
	if len(doc.Members) > 0 {
		members, err = s.resolve(ctx, doc.Members)
		if err != nil {
			return nil, err
		}
	}
	return &Household{ID: doc.ID, Name: doc.Name, Members: members}, nil
}

func (s *Service) moved(uid, householdID string) {
	if s.onMove == nil {
		return
	}
	if err := s.onMove(uid, householdID); err != nil {
		s.logger.Error("household move hook", "uid", uid, "household_id", householdID, "error", err)
	}
}

func householdRef(u *docstore.UserDoc) string {
	if u.HouseholdID == nil {
		return ""
	}
	return *u.HouseholdID
}

func addMember(uid string) docstore.MembersFunc {
	return func(members []string) ([]string, bool) {
		if slices.Contains(members, uid) {
			return members, false
		}
		return append(members, uid), true
	}
}

func removeMember(uid string) docstore.MembersFunc {
	return func(members []string) ([]string, bool) {
		i := slices.Index(members, uid)
		if i < 0 {
			return members, false
		}
		return slices.Delete(members, i, i+1), true
	}
}
