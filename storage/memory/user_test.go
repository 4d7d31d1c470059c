package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/giantswarm/identity-store/internal/testutil"
	"github.com/giantswarm/identity-store/storage"
)

func TestUserStore_Find(t *testing.T) {
	ctx := context.Background()

	external := storage.User{SubjectID: "ext-1", Username: "gh-user", Enabled: true, ProviderName: "github", ProviderSubjectID: "42"}
	store, err := NewUserStore([]storage.User{
		testutil.GenerateTestUser(t, "1", "alice", "password"),
		external,
	})
	if err != nil {
		t.Fatalf("NewUserStore() error = %v", err)
	}

	tests := []struct {
		name        string
		find        func() (*storage.User, error)
		wantSubject string
	}{
		{"by subject", func() (*storage.User, error) { return store.FindBySubject(ctx, "1") }, "1"},
		{"by username", func() (*storage.User, error) { return store.FindByUsername(ctx, "alice") }, "1"},
		{"by username is case sensitive", func() (*storage.User, error) { return store.FindByUsername(ctx, "Alice") }, ""},
		{"by external provider", func() (*storage.User, error) { return store.FindByExternalProvider(ctx, "github", "42") }, "ext-1"},
		{"unknown external subject", func() (*storage.User, error) { return store.FindByExternalProvider(ctx, "github", "43") }, ""},
		{"unknown subject", func() (*storage.User, error) { return store.FindBySubject(ctx, "2") }, ""},
		{"empty username", func() (*storage.User, error) { return store.FindByUsername(ctx, "") }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.find()
			if err != nil {
				t.Fatalf("find error = %v", err)
			}
			if tt.wantSubject == "" {
				if got != nil {
					t.Errorf("got %+v, want nil", got)
				}
				return
			}
			if got == nil || got.SubjectID != tt.wantSubject {
				t.Errorf("got %+v, want subject %s", got, tt.wantSubject)
			}
		})
	}
}

func TestUserStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store, _ := NewUserStore([]storage.User{testutil.GenerateTestUser(t, "1", "alice", "password")})

	u, _ := store.FindBySubject(ctx, "1")
	u.Claims[0].Value = "mutated"
	u.Enabled = false

	again, _ := store.FindBySubject(ctx, "1")
	if again.Claims[0].Value == "mutated" || !again.Enabled {
		t.Error("mutating a returned user changed the store")
	}
}

func TestUserStore_AddUser(t *testing.T) {
	ctx := context.Background()
	store, _ := NewUserStore([]storage.User{testutil.GenerateTestUser(t, "1", "alice", "password")})

	tests := []struct {
		name    string
		user    *storage.User
		wantErr error
	}{
		{"new user", &storage.User{SubjectID: "2", Username: "bob", ProviderName: "github", ProviderSubjectID: "7"}, nil},
		{"nil user", nil, storage.ErrInvalidUser},
		{"missing subject", &storage.User{Username: "carol"}, storage.ErrInvalidUser},
		{"duplicate subject", &storage.User{SubjectID: "1", Username: "other"}, storage.ErrDuplicateUser},
		{"duplicate username", &storage.User{SubjectID: "3", Username: "alice"}, storage.ErrDuplicateUser},
		{"duplicate external login", &storage.User{SubjectID: "4", ProviderName: "github", ProviderSubjectID: "7"}, storage.ErrDuplicateUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.AddUser(ctx, tt.user)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddUser() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
	if u, _ := store.FindByExternalProvider(ctx, "github", "7"); u == nil || u.SubjectID != "2" {
		t.Errorf("added user not indexed by external login: %+v", u)
	}
}

func TestNewUserStore_Duplicate(t *testing.T) {
	_, err := NewUserStore([]storage.User{
		{SubjectID: "1", Username: "alice"},
		{SubjectID: "2", Username: "alice"},
	})
	if !errors.Is(err, storage.ErrDuplicateUser) {
		t.Errorf("NewUserStore() error = %v, want ErrDuplicateUser", err)
	}
}
