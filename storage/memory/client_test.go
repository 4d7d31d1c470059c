package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giantswarm/identity-store/internal/testutil"
	"github.com/giantswarm/identity-store/storage"
)

func TestClientStore_FindClientByID(t *testing.T) {
	ctx := context.Background()

	store, err := NewClientStore([]storage.Client{{
		ClientID:      "app1",
		AllowedScopes: []string{"openid", "api1"},
		Enabled:       true,
	}})
	if err != nil {
		t.Fatalf("NewClientStore() error = %v", err)
	}

	got, err := store.FindClientByID(ctx, "app1")
	if err != nil {
		t.Fatalf("FindClientByID() error = %v", err)
	}
	if got == nil || got.ClientID != "app1" {
		t.Fatalf("FindClientByID(app1) = %+v, want app1", got)
	}
	if len(got.AllowedScopes) != 2 || got.AllowedScopes[0] != "openid" || got.AllowedScopes[1] != "api1" {
		t.Errorf("AllowedScopes = %v", got.AllowedScopes)
	}

	missing, err := store.FindClientByID(ctx, "app2")
	if err != nil {
		t.Fatalf("FindClientByID(app2) error = %v", err)
	}
	if missing != nil {
		t.Errorf("FindClientByID(app2) = %+v, want nil", missing)
	}
}

func TestClientStore_SeedIsCopied(t *testing.T) {
	ctx := context.Background()
	seed := []storage.Client{testutil.GenerateTestClient("app1", "https://app1.example.com")}

	store, err := NewClientStore(seed)
	if err != nil {
		t.Fatalf("NewClientStore() error = %v", err)
	}

	seed[0].AllowedCORSOrigins[0] = "https://evil.example.com"

	got, _ := store.FindClientByID(ctx, "app1")
	if got.AllowedCORSOrigins[0] != "https://app1.example.com" {
		t.Error("mutating the seed changed the stored client")
	}

	got.AllowedScopes[0] = "mutated"
	again, _ := store.FindClientByID(ctx, "app1")
	if again.AllowedScopes[0] == "mutated" {
		t.Error("mutating a returned client changed the stored client")
	}
}

func TestNewClientStore_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		clients []storage.Client
		wantErr error
	}{
		{
			name:    "empty id",
			clients: []storage.Client{{ClientName: "nameless"}},
			wantErr: storage.ErrInvalidClient,
		},
		{
			name:    "duplicate id",
			clients: []storage.Client{{ClientID: "app1"}, {ClientID: "app1"}},
			wantErr: storage.ErrDuplicateClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClientStore(tt.clients)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewClientStore() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientStore_ListClients(t *testing.T) {
	store, _ := NewClientStore([]storage.Client{
		testutil.GenerateTestClient("b"),
		testutil.GenerateTestClient("a"),
	})

	clients, err := store.ListClients(context.Background())
	if err != nil {
		t.Fatalf("ListClients() error = %v", err)
	}
	if len(clients) != 2 || clients[0].ClientID != "b" || clients[1].ClientID != "a" {
		t.Errorf("ListClients() should keep seed order, got %v", clients)
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
}

func TestClientStore_Reload(t *testing.T) {
	ctx := context.Background()
	store, _ := NewClientStore([]storage.Client{testutil.GenerateTestClient("app1")})

	var notified atomic.Int32
	store.OnChange(func() { notified.Add(1) })
	store.OnChange(nil)

	if err := store.Reload([]storage.Client{testutil.GenerateTestClient("app2")}); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if got, _ := store.FindClientByID(ctx, "app1"); got != nil {
		t.Error("app1 should be gone after reload")
	}
	if got, _ := store.FindClientByID(ctx, "app2"); got == nil {
		t.Error("app2 should be present after reload")
	}
	if notified.Load() != 1 {
		t.Errorf("subscribers notified %d times, want 1", notified.Load())
	}

	// A rejected reload keeps the current set and does not notify
	if err := store.Reload([]storage.Client{{ClientID: "x"}, {ClientID: "x"}}); !errors.Is(err, storage.ErrDuplicateClient) {
		t.Errorf("Reload() error = %v, want ErrDuplicateClient", err)
	}
	if got, _ := store.FindClientByID(ctx, "app2"); got == nil {
		t.Error("failed reload should keep the previous set")
	}
	if notified.Load() != 1 {
		t.Errorf("failed reload notified subscribers")
	}
}

func TestClientStore_ValidateClientSecret(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewMockTime(testEpoch)

	confidential := testutil.GenerateTestClient("confidential")
	confidential.ClientSecrets = []storage.Secret{
		{Value: testutil.HashSecret(t, "old"), Expiration: testEpoch.Add(-time.Hour)},
		{Value: testutil.HashSecret(t, "current")},
	}
	disabled := testutil.GenerateTestClient("disabled")
	disabled.Enabled = false
	disabled.ClientSecrets = []storage.Secret{{Value: testutil.HashSecret(t, "current")}}
	public := testutil.GenerateTestClient("public")

	store, err := NewClientStore([]storage.Client{confidential, disabled, public}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewClientStore() error = %v", err)
	}

	tests := []struct {
		name     string
		clientID string
		secret   string
		want     bool
	}{
		{"valid secret", "confidential", "current", true},
		{"wrong secret", "confidential", "wrong", false},
		{"expired secret", "confidential", "old", false},
		{"disabled client", "disabled", "current", false},
		{"client without secrets", "public", "anything", false},
		{"unknown client", "unknown", "current", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ValidateClientSecret(ctx, tt.clientID, tt.secret)
			if err != nil {
				t.Fatalf("ValidateClientSecret() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateClientSecret() = %v, want %v", got, tt.want)
			}
		})
	}
}
