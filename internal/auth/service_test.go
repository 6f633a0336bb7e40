package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rowanhale/pulsefit/internal/model"
)

type fakeOAuth struct {
	session *ProviderSession
	err     error
	panics  bool
}

func (f *fakeOAuth) Session(ctx context.Context, carriers Carriers) (*ProviderSession, error) {
	if f.panics {
		panic("oauth store corrupted")
	}
	return f.session, f.err
}

type fakeSessions struct {
	byToken map[string]*model.Session
	err     error
}

func (f *fakeSessions) GetByToken(token string) (*model.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byToken[token], nil
}

type fakeUsers struct {
	byID map[int64]*model.User
	err  error
}

func (f *fakeUsers) GetByID(id int64) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(oauth OAuthSessions, sessions SessionLookup, users UserLookup) *Service {
	return NewService(NewCodec("test-secret", time.Hour), oauth, sessions, users, testLogger())
}

func TestResolveNoCredentials(t *testing.T) {
	svc := newTestService(&fakeOAuth{}, &fakeSessions{}, &fakeUsers{})

	res := svc.Resolve(context.Background(), Carriers{})
	if res.Authenticated {
		t.Error("expected unauthenticated")
	}
	if res.System != SystemNone {
		t.Errorf("system = %q, want %q", res.System, SystemNone)
	}
	if res.ClearCookies {
		t.Error("no credentials present, nothing to clear")
	}
}

func TestResolveSignedToken(t *testing.T) {
	users := &fakeUsers{byID: map[int64]*model.User{
		7: {ID: 7, Email: "kim@example.com", Name: "Kim", Role: model.RoleManager, Avatar: "/avatars/kim.png"},
	}}
	svc := newTestService(&fakeOAuth{}, &fakeSessions{}, users)

	token, err := svc.codec.Issue(7, "kim@example.com", model.RoleManager, "Kim")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	res := svc.Resolve(context.Background(), Carriers{
		Cookies: map[string]string{CookieSession: token},
	})
	if !res.Authenticated {
		t.Fatal("expected authenticated")
	}
	if res.System != SystemToken {
		t.Errorf("system = %q, want %q", res.System, SystemToken)
	}
	if res.User.ID != 7 || res.User.Role != model.RoleManager {
		t.Errorf("user = %+v", res.User)
	}
	if res.User.Avatar != "/avatars/kim.png" {
		t.Errorf("avatar = %q, want from user record", res.User.Avatar)
	}
	if res.DashboardURL != "/dashboard/manager" {
		t.Errorf("dashboard = %q, want /dashboard/manager", res.DashboardURL)
	}
}

func TestResolveSignedTokenForDeletedUser(t *testing.T) {
	svc := newTestService(&fakeOAuth{}, &fakeSessions{}, &fakeUsers{byID: map[int64]*model.User{}})

	token, _ := svc.codec.Issue(99, "gone@example.com", model.RoleMember, "Gone")
	res := svc.Resolve(context.Background(), Carriers{
		Cookies: map[string]string{CookieSession: token},
	})
	if res.Authenticated {
		t.Error("deleted user must not authenticate")
	}
	if !res.ClearCookies {
		t.Error("stale credential must trigger cookie cleanup")
	}
}

func TestResolveOpaqueSession(t *testing.T) {
	sessions := &fakeSessions{byToken: map[string]*model.Session{
		"opaque-1": {ID: 1, Token: "opaque-1", UserID: 3, Role: model.RoleMember},
	}}
	users := &fakeUsers{byID: map[int64]*model.User{
		3: {ID: 3, Email: "ana@example.com", Name: "Ana", Role: model.RoleMember},
	}}
	svc := newTestService(&fakeOAuth{}, sessions, users)

	res := svc.Resolve(context.Background(), Carriers{
		Cookies: map[string]string{CookieAuthToken: "opaque-1"},
	})
	if !res.Authenticated {
		t.Fatal("expected authenticated")
	}
	if res.System != SystemToken {
		t.Errorf("system = %q, want %q", res.System, SystemToken)
	}
	if res.User.Email != "ana@example.com" {
		t.Errorf("email = %q", res.User.Email)
	}
	if res.DashboardURL != "/dashboard/member" {
		t.Errorf("dashboard = %q", res.DashboardURL)
	}
}

func TestResolveUnknownCredentialClearsCookies(t *testing.T) {
	svc := newTestService(&fakeOAuth{}, &fakeSessions{byToken: map[string]*model.Session{}}, &fakeUsers{})

	res := svc.Resolve(context.Background(), Carriers{
		Cookies: map[string]string{CookieSession: "nobody-knows-this"},
	})
	if res.Authenticated {
		t.Error("expected unauthenticated")
	}
	if res.System != SystemNone {
		t.Errorf("system = %q, want %q", res.System, SystemNone)
	}
	if !res.ClearCookies {
		t.Error("credential present but honored by nothing: cookies must be cleared")
	}
}

// An invalid primary cookie must not fall back to a valid secondary one:
// exactly one carrier is considered per resolution pass.
func TestResolveSingleCarrierPerPass(t *testing.T) {
	sessions := &fakeSessions{byToken: map[string]*model.Session{
		"valid-secondary": {ID: 1, Token: "valid-secondary", UserID: 3, Role: model.RoleMember},
	}}
	users := &fakeUsers{byID: map[int64]*model.User{
		3: {ID: 3, Email: "ana@example.com", Name: "Ana", Role: model.RoleMember},
	}}
	svc := newTestService(&fakeOAuth{}, sessions, users)

	res := svc.Resolve(context.Background(), Carriers{
		Cookies: map[string]string{
			CookieSession:   "expired-garbage",
			CookieAuthToken: "valid-secondary",
		},
	})
	if res.Authenticated {
		t.Error("invalid primary must fail the pass, not fall back to the secondary")
	}
	if !res.ClearCookies {
		t.Error("failed pass with a credential present must clear cookies")
	}
}

func TestResolveOAuthWins(t *testing.T) {
	oauth := &fakeOAuth{session: &ProviderSession{
		UserID:  5,
		Email:   "lee@example.com",
		Name:    "Lee",
		Role:    model.RoleAdmin,
		Picture: "https://cdn/pic.png",
	}}
	users := &fakeUsers{byID: map[int64]*model.User{
		3: {ID: 3, Email: "ana@example.com", Name: "Ana", Role: model.RoleMember},
	}}
	sessions := &fakeSessions{byToken: map[string]*model.Session{
		"cookie-session": {ID: 1, Token: "cookie-session", UserID: 3, Role: model.RoleMember},
	}}
	svc := newTestService(oauth, sessions, users)

	// Even with a valid custom session cookie, the provider session wins.
	res := svc.Resolve(context.Background(), Carriers{
		Cookies: map[string]string{CookieSession: "cookie-session"},
	})
	if !res.Authenticated {
		t.Fatal("expected authenticated")
	}
	if res.System != SystemOAuth {
		t.Errorf("system = %q, want %q", res.System, SystemOAuth)
	}
	if res.User.ID != 5 {
		t.Errorf("user id = %d, want the provider session's user", res.User.ID)
	}
	if res.User.Avatar != "https://cdn/pic.png" {
		t.Errorf("avatar = %q, want normalized from picture", res.User.Avatar)
	}
	if res.DashboardURL != "/dashboard/admin" {
		t.Errorf("dashboard = %q", res.DashboardURL)
	}
}

func TestResolveOAuthInvalidRoleFallsThrough(t *testing.T) {
	oauth := &fakeOAuth{session: &ProviderSession{UserID: 5, Role: model.Role("owner")}}
	sessions := &fakeSessions{byToken: map[string]*model.Session{
		"opaque-1": {ID: 1, Token: "opaque-1", UserID: 3, Role: model.RoleMember},
	}}
	users := &fakeUsers{byID: map[int64]*model.User{
		3: {ID: 3, Email: "ana@example.com", Name: "Ana", Role: model.RoleMember},
	}}
	svc := newTestService(oauth, sessions, users)

	res := svc.Resolve(context.Background(), Carriers{
		Cookies: map[string]string{CookieSession: "opaque-1"},
	})
	if !res.Authenticated {
		t.Fatal("bad provider role should fall through to carrier resolution")
	}
	if res.System != SystemToken {
		t.Errorf("system = %q, want %q", res.System, SystemToken)
	}
	if res.User.ID != 3 {
		t.Errorf("user id = %d, want 3", res.User.ID)
	}
}

func TestResolveStoreErrors(t *testing.T) {
	t.Run("oauth store failure", func(t *testing.T) {
		svc := newTestService(&fakeOAuth{err: errors.New("db locked")}, &fakeSessions{}, &fakeUsers{})
		res := svc.Resolve(context.Background(), Carriers{})
		if res.Authenticated {
			t.Error("expected unauthenticated")
		}
		if res.System != SystemError {
			t.Errorf("system = %q, want %q", res.System, SystemError)
		}
	})

	t.Run("session store failure", func(t *testing.T) {
		svc := newTestService(&fakeOAuth{}, &fakeSessions{err: errors.New("db locked")}, &fakeUsers{})
		res := svc.Resolve(context.Background(), Carriers{
			Cookies: map[string]string{CookieAuthToken: "anything"},
		})
		if res.System != SystemError {
			t.Errorf("system = %q, want %q", res.System, SystemError)
		}
		if res.ClearCookies {
			t.Error("transient store errors must not clear cookies")
		}
	})
}

func TestResolveSurvivesPanic(t *testing.T) {
	svc := newTestService(&fakeOAuth{panics: true}, &fakeSessions{}, &fakeUsers{})

	res := svc.Resolve(context.Background(), Carriers{})
	if res.Authenticated {
		t.Error("expected unauthenticated")
	}
	if res.System != SystemError {
		t.Errorf("system = %q, want %q", res.System, SystemError)
	}
}
