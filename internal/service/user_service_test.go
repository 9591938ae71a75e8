package service

import (
	"context"
	"errors"
	"testing"
)

func TestUserService_Authenticate(t *testing.T) {
	gdb := setupServiceTestDB(t)
	admin := createTestUser(t, gdb, "admin", true)
	svc := NewUserService(gdb)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, " admin ", "password")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != admin.ID {
		t.Fatalf("expected user %d, got %d", admin.ID, user.ID)
	}

	for _, tc := range []struct{ username, password string }{
		{"admin", "wrong"},
		{"nobody", "password"},
		{"", ""},
	} {
		if _, err := svc.Authenticate(ctx, tc.username, tc.password); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for %q, got %v", tc.username, err)
		}
	}

	if _, err := svc.Get(ctx, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
