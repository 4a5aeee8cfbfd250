package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/Liyulingyue/DrawSomethingAIPlatform-sub000/internal/gameapi"
)

type fakeLoginClient struct {
	requested []string
	grant     func(preferred string) gameapi.LoginResult
	err       error
}

func (f *fakeLoginClient) AutoLogin(_ context.Context, preferred string) (gameapi.LoginResult, error) {
	f.requested = append(f.requested, preferred)
	if f.err != nil {
		return gameapi.LoginResult{}, f.err
	}
	if f.grant != nil {
		return f.grant(preferred), nil
	}
	return gameapi.LoginResult{Username: preferred, Token: "tok-" + preferred}, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&PlayerIdentity{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func TestNewResolverRequiresClient(t *testing.T) {
	if _, err := NewResolver(ResolverConfig{}); err == nil {
		t.Fatalf("expected error without login client")
	}
}

func TestResolvePrefersConfiguredName(t *testing.T) {
	client := &fakeLoginClient{}
	tokens := NewTokenHolder()
	resolver, err := NewResolver(ResolverConfig{
		Client:    client,
		ServerURL: "http://localhost:8080",
		Preferred: "alice",
		Tokens:    tokens,
	})
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}

	identity, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if identity != "alice" {
		t.Fatalf("unexpected identity %q", identity)
	}
	if len(client.requested) != 1 || client.requested[0] != "alice" {
		t.Fatalf("unexpected requests %#v", client.requested)
	}
	if tokens.Token() != "tok-alice" {
		t.Fatalf("session token should land in the holder, got %q", tokens.Token())
	}
}

func TestResolveGeneratesGuestNameWithoutPreference(t *testing.T) {
	client := &fakeLoginClient{}
	resolver, err := NewResolver(ResolverConfig{Client: client, ServerURL: "http://localhost:8080"})
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}

	identity, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !strings.HasPrefix(identity, guestPrefix) {
		t.Fatalf("expected a guest handle, got %q", identity)
	}
}

func TestResolvePersistsAndReusesGrantedIdentity(t *testing.T) {
	db := openTestDB(t)
	serverURL := "http://localhost:8080"

	// the server renames whatever was requested
	client := &fakeLoginClient{grant: func(string) gameapi.LoginResult {
		return gameapi.LoginResult{Username: "Player_granted", Token: "tok"}
	}}
	resolver, err := NewResolver(ResolverConfig{Client: client, ServerURL: serverURL, Database: db})
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}
	identity, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	if identity != "Player_granted" {
		t.Fatalf("server grant should win, got %q", identity)
	}

	// a fresh resolver against the same database asks for the persisted name
	secondClient := &fakeLoginClient{}
	second, err := NewResolver(ResolverConfig{Client: secondClient, ServerURL: serverURL, Database: db})
	if err != nil {
		t.Fatalf("failed to build second resolver: %v", err)
	}
	identity, err = second.Resolve(context.Background())
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if identity != "Player_granted" {
		t.Fatalf("persisted identity should be reused, got %q", identity)
	}
	if len(secondClient.requested) != 1 || secondClient.requested[0] != "Player_granted" {
		t.Fatalf("persisted name should be requested, got %#v", secondClient.requested)
	}
}

func TestResolvePropagatesLoginFailure(t *testing.T) {
	client := &fakeLoginClient{err: errors.New("backend down")}
	resolver, err := NewResolver(ResolverConfig{Client: client, ServerURL: "http://localhost:8080"})
	if err != nil {
		t.Fatalf("failed to build resolver: %v", err)
	}
	if _, err := resolver.Resolve(context.Background()); err == nil {
		t.Fatalf("login failure should propagate")
	}
}

func TestTokenHolderRotation(t *testing.T) {
	holder := NewTokenHolder()
	provider := holder.Provider()
	if provider() != "" {
		t.Fatalf("fresh holder should be empty")
	}
	holder.Set("tok-1")
	if provider() != "tok-1" {
		t.Fatalf("provider should observe the stored token")
	}
	holder.Set("tok-2")
	if provider() != "tok-2" {
		t.Fatalf("provider should observe rotation, got %q", provider())
	}
}
