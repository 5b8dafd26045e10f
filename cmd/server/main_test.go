package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"cafepos/internal/config"
	"cafepos/internal/domain"
	"cafepos/internal/store/memory"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", ManagerPIN: "739154"})
	if err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
	err = validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "123456"})
	if err == nil {
		t.Fatalf("expected sequential pin to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "739154"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidatePINStrength(t *testing.T) {
	for _, pin := range []string{"111111", "987654", "121212"} {
		assert.Error(t, validatePINStrength(pin), pin)
	}
	assert.NoError(t, validatePINStrength("482915"))
}

func TestSeedAccountsOnlyFillsEmptyUserTable(t *testing.T) {
	repo := memory.New()
	cfg := config.Config{SeedAdminPassword: "admin-pass", SeedCashierPassword: "cashier-pass"}
	ctx := context.Background()

	require.NoError(t, seedAccounts(ctx, repo, cfg))
	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte("admin-pass")))

	require.NoError(t, seedAccounts(ctx, repo, config.Config{}))
	users, err = repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestSeedAccountsRequiresPasswords(t *testing.T) {
	err := seedAccounts(context.Background(), memory.New(), config.Config{SeedAdminPassword: "admin-pass"})
	assert.ErrorContains(t, err, "SEED_CASHIER_PASSWORD")
}
