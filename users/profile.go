package users

import (
	"context"
	"log/slog"

	"github.com/giantswarm/identity-store/storage"
)

// ProfileService projects user claims for token and userinfo issuance
type ProfileService struct {
	users  storage.UserStore
	logger *slog.Logger
}

// NewProfileService creates a profile service over users
func NewProfileService(users storage.UserStore, opts ...Option) *ProfileService {
	o := applyOptions(opts)
	return &ProfileService{users: users, logger: o.logger}
}

// GetClaims returns the user's claims whose type is in claimTypes, in the
// user's claim order. Unknown subjects yield an empty slice, not an error, so
// callers must check IsActive separately.
func (p *ProfileService) GetClaims(ctx context.Context, subjectID string, claimTypes []string) ([]storage.Claim, error) {
	claims := make([]storage.Claim, 0)

	user, err := p.users.FindBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if user == nil || len(claimTypes) == 0 {
		return claims, nil
	}

	requested := make(map[string]struct{}, len(claimTypes))
	for _, t := range claimTypes {
		requested[t] = struct{}{}
	}

	for _, c := range user.Claims {
		if _, ok := requested[c.Type]; ok {
			claims = append(claims, c)
		}
	}

	p.logger.Debug("Issued claims",
		"requested", len(claimTypes),
		"issued", len(claims))
	return claims, nil
}

// IsActive reports whether the subject exists and is enabled
func (p *ProfileService) IsActive(ctx context.Context, subjectID string) (bool, error) {
	user, err := p.users.FindBySubject(ctx, subjectID)
	if err != nil {
		return false, err
	}
	return user != nil && user.Enabled, nil
}
