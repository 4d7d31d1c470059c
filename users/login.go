package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/giantswarm/identity-store/security"
	"github.com/giantswarm/identity-store/storage"
)

// UserRepository reads and adds users
type UserRepository interface {
	storage.UserStore
	storage.UserWriter
}

// protocolClaims are issued by the external provider for its own token and
// must not be copied onto a provisioned user
var protocolClaims = map[string]struct{}{
	"sub":       {},
	"iss":       {},
	"aud":       {},
	"exp":       {},
	"iat":       {},
	"nbf":       {},
	"nonce":     {},
	"at_hash":   {},
	"c_hash":    {},
	"auth_time": {},
	"idp":       {},
	"amr":       {},
}

// LoginService backs interactive login: local credential checks and external
// provider account linking.
type LoginService struct {
	users     UserRepository
	validator *PasswordValidator
	auditor   *security.Auditor
	logger    *slog.Logger
}

// NewLoginService creates a login service. Credential checks go through validator.
func NewLoginService(users UserRepository, validator *PasswordValidator, opts ...Option) *LoginService {
	o := applyOptions(opts)
	return &LoginService{
		users:     users,
		validator: validator,
		auditor:   o.auditor,
		logger:    o.logger,
	}
}

// ValidateCredentials reports whether username and password identify an active local user
func (l *LoginService) ValidateCredentials(ctx context.Context, username, password string) (bool, error) {
	result, err := l.validator.Validate(ctx, username, password)
	if err != nil {
		return false, err
	}
	return !result.IsError(), nil
}

// FindByUsername returns the user with the given username, or nil
func (l *LoginService) FindByUsername(ctx context.Context, username string) (*storage.User, error) {
	return l.users.FindByUsername(ctx, username)
}

// FindByExternalProvider returns the user linked to the external login, or nil
func (l *LoginService) FindByExternalProvider(ctx context.Context, providerName, providerSubjectID string) (*storage.User, error) {
	return l.users.FindByExternalProvider(ctx, providerName, providerSubjectID)
}

// AutoProvisionUser creates a local user for an external login.
//
// The new user gets a random subject ID. Its username is the "name" claim,
// or the subject ID when that claim is missing or the name is taken. A name
// taken between the lookup and the insert also falls back to the subject ID.
// Protocol claims of the provider's token are dropped. If the external login
// is already linked, the existing user is returned.
func (l *LoginService) AutoProvisionUser(ctx context.Context, providerName, providerSubjectID string, claims []storage.Claim) (*storage.User, error) {
	if providerName == "" || providerSubjectID == "" {
		return nil, fmt.Errorf("%w: provider name and subject are required", storage.ErrInvalidUser)
	}

	existing, err := l.users.FindByExternalProvider(ctx, providerName, providerSubjectID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	subjectID := uuid.NewString()

	filtered := make([]storage.Claim, 0, len(claims)+1)
	name := ""
	for _, c := range claims {
		if _, skip := protocolClaims[c.Type]; skip {
			continue
		}
		if c.Type == "name" && name == "" {
			name = c.Value
		}
		filtered = append(filtered, c)
	}

	username := subjectID
	if name != "" {
		taken, err := l.users.FindByUsername(ctx, name)
		if err != nil {
			return nil, err
		}
		if taken == nil {
			username = name
		}
	} else {
		filtered = append(filtered, storage.Claim{Type: "name", Value: subjectID})
	}

	user := &storage.User{
		SubjectID:         subjectID,
		Username:          username,
		Enabled:           true,
		ProviderName:      providerName,
		ProviderSubjectID: providerSubjectID,
		Claims:            filtered,
	}

	err = l.users.AddUser(ctx, user)
	if errors.Is(err, storage.ErrDuplicateUser) {
		// Another login may have claimed the name, or linked this same
		// external login, after the lookups above.
		linked, findErr := l.users.FindByExternalProvider(ctx, providerName, providerSubjectID)
		if findErr != nil {
			return nil, findErr
		}
		if linked != nil {
			return linked, nil
		}
		if user.Username != subjectID {
			user.Username = subjectID
			err = l.users.AddUser(ctx, user)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	l.auditor.LogUserProvisioned(subjectID, providerName)
	l.logger.Info("Provisioned user from external login", "provider", providerName)

	return user.Clone(), nil
}
