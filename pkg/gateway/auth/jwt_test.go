package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/freightdesk-ai/platform/pkg/common/models"
	"github.com/google/uuid"
)

func testUser() models.User {
	return models.User{
		ID:    uuid.New(),
		OrgID: uuid.New(),
		Email: "dispatch@ridgeline.example",
		Role:  models.RoleAdmin,
	}
}

func TestIssueAndValidateToken(t *testing.T) {
	manager, err := NewJWTManager("0123456789abcdef", "freightdesk", "freightdesk-api", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	user := testUser()
	token, expiresAt, err := manager.IssueToken(user)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("expiry %v not about an hour out", remaining)
	}

	claims, err := manager.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("user id = %s, want %s", claims.UserID, user.ID)
	}
	if claims.OrgID != user.OrgID {
		t.Errorf("org id = %s, want %s", claims.OrgID, user.OrgID)
	}
	if claims.Role != models.RoleAdmin {
		t.Errorf("role = %q, want admin", claims.Role)
	}
	if claims.Email != user.Email {
		t.Errorf("email = %q, want %q", claims.Email, user.Email)
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	manager, _ := NewJWTManager("0123456789abcdef", "freightdesk", "freightdesk-api", time.Hour)

	token, _, err := manager.IssueToken(testUser())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	parts := strings.Split(token, ".")
	forged, err := encodeSegment(Claims{
		Issuer:    "freightdesk",
		Audience:  "freightdesk-api",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
		Role:      models.RoleOwner,
	})
	if err != nil {
		t.Fatalf("encodeSegment: %v", err)
	}
	tampered := strings.Join([]string{parts[0], forged, parts[2]}, ".")

	if _, err := manager.ValidateToken(context.Background(), tampered); err == nil {
		t.Fatal("tampered token validated")
	}
}

func TestValidateTokenExpiry(t *testing.T) {
	manager, _ := NewJWTManager("0123456789abcdef", "freightdesk", "freightdesk-api", time.Hour)

	issued := time.Now()
	manager.nowFunc = func() time.Time { return issued }
	token, _, err := manager.IssueToken(testUser())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	manager.nowFunc = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, err := manager.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("expired token validated")
	}

	manager.nowFunc = func() time.Time { return issued.Add(30 * time.Minute) }
	if _, err := manager.ValidateToken(context.Background(), token); err != nil {
		t.Fatalf("token rejected before expiry: %v", err)
	}
}

func TestValidateTokenWrongAudience(t *testing.T) {
	signer, _ := NewJWTManager("0123456789abcdef", "freightdesk", "freightdesk-api", time.Hour)
	verifier, _ := NewJWTManager("0123456789abcdef", "freightdesk", "another-api", time.Hour)

	token, _, err := signer.IssueToken(testUser())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := verifier.ValidateToken(context.Background(), token); err == nil {
		t.Fatal("token for another audience validated")
	}
}

func TestNewJWTManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTManager("short", "freightdesk", "freightdesk-api", time.Hour); err == nil {
		t.Fatal("short secret accepted")
	}
}
