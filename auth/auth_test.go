package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "unit_test_secret_key_please_rotate"

func TestTokenIssuer_RoundTrip(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer(testSecret, time.Hour)

	token, err := issuer.Generate("user-42", "alice")
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal("alice", claims.Name)
}

func TestTokenIssuer_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer(testSecret, -time.Minute)

	token, err := issuer.Generate("user-42", "alice")
	req.NoError(err)

	_, err = issuer.Validate(token)
	req.Error(err)
}

func TestTokenIssuer_Rejects_Wrong_Secret(t *testing.T) {
	req := require.New(t)

	token, err := NewTokenIssuer(testSecret, time.Hour).Generate("user-42", "alice")
	req.NoError(err)

	_, err = NewTokenIssuer("another_secret_entirely", time.Hour).Validate(token)
	req.Error(err)
}

func TestHashPassword_And_Compare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("Sup3r$ecretPassword")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	match, err := ComparePassword("Sup3r$ecretPassword", hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword1!", hash)
	req.NoError(err)
	req.False(match)
}

func TestValidateRegister(t *testing.T) {
	req := require.New(t)

	valid := RegisterRequest{Name: "alice", Email: "alice@example.com", Password: "Compl3xPassword!"}
	req.NoError(ValidateRegister(valid))

	tooSimple := valid
	tooSimple.Password = "aaaaaaaaaaaaaaaa"
	req.Error(ValidateRegister(tooSimple))

	badEmail := valid
	badEmail.Email = "not-an-email"
	req.Error(ValidateRegister(badEmail))

	badName := valid
	badName.Name = "a"
	req.Error(ValidateRegister(badName))
}

func TestMiddleware(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer(testSecret, time.Hour)

	var gotID, gotName string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = UserIDFromContext(r.Context())
		gotName, _ = UserNameFromContext(r.Context())
	})
	handler := Middleware(issuer, next)

	// Missing header
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	req.Equal(http.StatusUnauthorized, rec.Code)

	// Valid token
	token, err := issuer.Generate("user-42", "alice")
	req.NoError(err)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	req.Equal(http.StatusOK, rec.Code)
	req.Equal("user-42", gotID)
	req.Equal("alice", gotName)
}
