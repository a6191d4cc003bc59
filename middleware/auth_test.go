package middleware

import (
	"net/http/httptest"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("user-123")
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not.a.token"); err == nil {
		t.Error("ValidateToken() = nil error for garbage input")
	}
}

func TestUserIDContext(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := GetUserID(req); got != "" {
		t.Errorf("GetUserID() = %q on a bare request, want empty", got)
	}

	req = req.WithContext(SetUserID(req.Context(), "u1"))
	if got := GetUserID(req); got != "u1" {
		t.Errorf("GetUserID() = %q, want u1", got)
	}
}
