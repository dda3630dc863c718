package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(db DB) *AuthService {
	return NewAuthService(NewUserService(db), "test-secret", "borgdesk-test")
}

func TestHashPassword_VerifiesRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	assert.True(t, verifyArgon2("hunter2", hash))
	assert.False(t, verifyArgon2("wrong-password", hash))
}

func TestVerifyArgon2_MalformedHash(t *testing.T) {
	assert.False(t, verifyArgon2("hunter2", "not-a-hash"))
	assert.False(t, verifyArgon2("hunter2", "$bcrypt$something$else"))
	assert.False(t, verifyArgon2("hunter2", ""))
}

func TestAuthService_IssueAndValidateToken(t *testing.T) {
	svc := newTestAuthService(&mockDB{})

	user := testUser("user-1", "edvin")
	token, err := svc.IssueToken(user)
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Sub)
	assert.Equal(t, "edvin", claims.Username)
	assert.Equal(t, "borgdesk-test", claims.Iss)
	assert.Greater(t, claims.Exp, time.Now().Unix())
}

func TestAuthService_ValidateToken_WrongSecret(t *testing.T) {
	svc := newTestAuthService(&mockDB{})
	other := NewAuthService(NewUserService(&mockDB{}), "other-secret", "borgdesk-test")

	token, err := svc.IssueToken(testUser("user-1", "edvin"))
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature")
}

func TestAuthService_ValidateToken_Garbage(t *testing.T) {
	svc := newTestAuthService(&mockDB{})

	_, err := svc.ValidateToken("not.a.token.at.all")
	require.Error(t, err)

	_, err = svc.ValidateToken("onlyonepart")
	require.Error(t, err)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	db := &mockDB{}
	svc := newTestAuthService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		return assert.AnError
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, _, err := svc.Login(ctx, "nobody", "password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
	db.AssertExpectations(t)
}

func TestAuthService_Login_Success(t *testing.T) {
	db := &mockDB{}
	svc := newTestAuthService(db)
	ctx := context.Background()

	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)

	now := time.Now().Truncate(time.Microsecond)
	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "user-1"
		*(dest[1].(*string)) = "edvin"
		*(dest[2].(*string)) = "edvin@example.com"
		*(dest[3].(*string)) = hash
		*(dest[4].(*time.Time)) = now
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	token, user, err := svc.Login(ctx, "edvin", "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "edvin", user.Username)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Sub)
	db.AssertExpectations(t)
}
