package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/vdesk/internal/model"
)

const testPassword = "correct horse battery staple"

var testPasswordHash = HashPassword(testPassword, []byte("0123456789abcdef"))

func userScanFunc(u model.User) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = u.ID
		*(dest[1].(*string)) = u.Email
		*(dest[2].(*string)) = u.PasswordHash
		*(dest[3].(**string)) = u.DisplayName
		*(dest[4].(*bool)) = u.Approved
		*(dest[5].(*time.Time)) = u.CreatedAt
		return nil
	}
}

func newTestAuth(db DB) (*AuthService, *testclock.Clock) {
	clk := testclock.NewClock(orchNow)
	return NewAuthService(db, "test-secret", "vdesk", clk), clk
}

func TestHashPassword_RoundTrip(t *testing.T) {
	assert.True(t, verifyArgon2(testPassword, testPasswordHash))
	assert.False(t, verifyArgon2("wrong", testPasswordHash))
	assert.Contains(t, testPasswordHash, "$argon2id$v=19$m=65536,t=3,p=4$")
}

func TestVerifyArgon2_Malformed(t *testing.T) {
	for _, hash := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3$c2FsdA$aGFzaA",
		"$argon2id$v=19$x=65536,t=3,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$",
	} {
		assert.False(t, verifyArgon2(testPassword, hash), hash)
	}
}

func TestAuthService_Login(t *testing.T) {
	db := &mockDB{}
	svc, _ := newTestAuth(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"Ada@Example.com"}).Return(&mockRow{
		scanFunc: userScanFunc(model.User{ID: "user-1", Email: "ada@example.com", PasswordHash: testPasswordHash, Approved: true, CreatedAt: orchNow}),
	})

	token, err := svc.Login(ctx, "Ada@Example.com", testPassword)
	require.NoError(t, err)

	id, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, &model.Identity{UserID: "user-1", Email: "ada@example.com"}, id)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	db := &mockDB{}
	svc, _ := newTestAuth(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"ada@example.com"}).Return(&mockRow{
		scanFunc: userScanFunc(model.User{ID: "user-1", Email: "ada@example.com", PasswordHash: testPasswordHash, Approved: true}),
	})

	_, err := svc.Login(ctx, "ada@example.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	db := &mockDB{}
	svc, _ := newTestAuth(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"ghost@example.com"}).Return(&mockRow{
		scanFunc: func(dest ...any) error { return pgx.ErrNoRows },
	})

	_, err := svc.Login(ctx, "ghost@example.com", testPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestAuthService_Login_AwaitingApproval(t *testing.T) {
	db := &mockDB{}
	svc, _ := newTestAuth(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"new@example.com"}).Return(&mockRow{
		scanFunc: userScanFunc(model.User{ID: "user-9", Email: "new@example.com", PasswordHash: testPasswordHash}),
	})

	_, err := svc.Login(ctx, "new@example.com", testPassword)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthService_Login_StoreUnavailable(t *testing.T) {
	db := &mockDB{}
	svc, _ := newTestAuth(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"ada@example.com"}).Return(&mockRow{
		scanFunc: func(dest ...any) error { return errors.New("dial tcp: connection refused") },
	})

	_, err := svc.Login(ctx, "ada@example.com", testPassword)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestAuthService_ValidateToken_Expired(t *testing.T) {
	svc, clk := newTestAuth(&mockDB{})

	token, err := svc.IssueToken(&model.User{ID: "user-1", Email: "ada@example.com"})
	require.NoError(t, err)

	clk.Advance(23 * time.Hour)
	_, err = svc.ValidateToken(token)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAuthService_ValidateToken_Rejects(t *testing.T) {
	svc, clk := newTestAuth(&mockDB{})
	user := &model.User{ID: "user-1", Email: "ada@example.com"}

	otherSecret := NewAuthService(&mockDB{}, "other-secret", "vdesk", clk)
	forged, err := otherSecret.IssueToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(forged)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	otherIssuer := NewAuthService(&mockDB{}, "test-secret", "someone-else", clk)
	foreign, err := otherIssuer.IssueToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "vdesk", ExpiresAt: jwt.NewNumericDate(orchNow.Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestAuthService_ValidateToken_MissingSubject(t *testing.T) {
	svc, _ := newTestAuth(&mockDB{})

	token, err := svc.IssueToken(&model.User{Email: "ada@example.com"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
