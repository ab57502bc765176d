package auth

import (
	"context"
	"fmt"
	"strings"

	"fpolysms.io/internal/ids"
)

// Admin user operations. These live beside the session manager because
// they mutate the same records, but they are reachable only through
// ACL-protected routes.

// ListUsers returns every user, sanitized.
func (s *Service) ListUsers(ctx context.Context) ([]UserInfo, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]UserInfo, 0, len(users))
	for _, u := range users {
		result = append(result, u.Info())
	}
	return result, nil
}

// GetUser returns one user by id, sanitized.
func (s *Service) GetUser(ctx context.Context, userID string) (UserInfo, error) {
	if !ids.IsValid(userID) {
		return UserInfo{}, E(StatusBadRequest, "malformed user id")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return UserInfo{}, err
	}
	return user.Info(), nil
}

// UpdateUser applies a partial profile update. A password change is
// re-hashed before storage.
func (s *Service) UpdateUser(ctx context.Context, userID string, upd UserUpdate) error {
	if !ids.IsValid(userID) {
		return E(StatusBadRequest, "malformed user id")
	}
	if upd.Email == nil && upd.FullName == nil && upd.GroupID == nil && upd.Password == nil {
		return E(StatusBadRequest, "nothing to update")
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return E(StatusBadRequest, "valid email is required")
		}
		upd.Email = &email
	}
	if upd.GroupID != nil && *upd.GroupID != "" && !ids.IsValid(*upd.GroupID) {
		return E(StatusBadRequest, "malformed group id")
	}
	if upd.Password != nil {
		if strings.TrimSpace(*upd.Password) == "" {
			return E(StatusBadRequest, "password must not be empty")
		}
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		upd.Password = &hash
	}
	return s.users.Update(ctx, userID, upd)
}

// DeleteUser removes a user record. Account deletion is an admin
// operation; the session manager itself never hard-deletes.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if !ids.IsValid(userID) {
		return E(StatusBadRequest, "malformed user id")
	}
	return s.users.Delete(ctx, userID)
}

// GroupIDOf resolves the permission group a user belongs to. An empty
// group id means the user has no group and fails every ACL check.
func (s *Service) GroupIDOf(ctx context.Context, userID string) (string, error) {
	if !ids.IsValid(userID) {
		return "", E(StatusBadRequest, "malformed user id")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.GroupID, nil
}
