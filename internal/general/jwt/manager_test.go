package jwt

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ridebook/internal/domain/user"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	signed, issued, err := m.IssueUserToken("user-1", user.RolePassenger)
	if err != nil {
		t.Fatalf("IssueUserToken: %v", err)
	}
	if issued.Subject != "user-1" || issued.Role != user.RolePassenger {
		t.Errorf("issued claims = %+v", issued)
	}

	_, parsed, err := m.ParseAndValidate(signed)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if parsed.Subject != "user-1" || parsed.Role != user.RolePassenger {
		t.Errorf("parsed claims = %+v", parsed)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m := NewManager("secret-a", time.Hour)
	other := NewManager("secret-b", time.Hour)

	signed, _, err := m.IssueUserToken("user-1", user.RoleDriver)
	if err != nil {
		t.Fatalf("IssueUserToken: %v", err)
	}
	if _, _, err := other.ParseAndValidate(signed); err == nil {
		t.Fatal("token signed with a different secret must fail")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)

	signed, _, err := m.IssueUserToken("user-1", user.RolePassenger)
	if err != nil {
		t.Fatalf("IssueUserToken: %v", err)
	}
	if _, _, err := m.ParseAndValidate(signed); err == nil {
		t.Fatal("expired token must fail validation")
	}
}

func TestIssueUserTokenRejectsBadRole(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	if _, _, err := m.IssueUserToken("user-1", user.Role("WIZARD")); err == nil {
		t.Fatal("invalid role must be rejected")
	}
}

func TestFromAuthorization(t *testing.T) {
	newReq := func(header string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		return r
	}

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"ok", "Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"missing header", "", "", ErrNoAuthHeader},
		{"wrong scheme", "Basic dXNlcg==", "", ErrBadAuthScheme},
		{"empty token", "Bearer   ", "", ErrEmptyToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAuthorization(newReq(tt.header))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("want %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got (%q, %v), want %q", got, err, tt.want)
			}
		})
	}
}

func TestRoleAllowed(t *testing.T) {
	cl := &Claims{Role: user.RoleDriver}

	if err := RoleAllowed(cl, user.RoleDriver, user.RoleAdmin); err != nil {
		t.Errorf("driver in allowed set: %v", err)
	}
	if err := RoleAllowed(cl, user.RolePassenger); !errors.Is(err, ErrRoleForbidden) {
		t.Errorf("want ErrRoleForbidden, got %v", err)
	}
}
