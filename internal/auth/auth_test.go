package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens(t *testing.T) {
	a := New("supersecretkey")

	token, err := a.BuildJWTString("alice")
	require.NoError(t, err)

	id, err := a.RequesterID(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	// An empty requester gets a generated ID.
	token, err = a.BuildJWTString("")
	require.NoError(t, err)
	id, err = a.RequesterID(token)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	// Tokens signed with another secret are rejected.
	_, err = New("othersecret").RequesterID(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Expired tokens are rejected.
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		RequesterID: "alice",
	})
	expiredString, err := expired.SignedString([]byte("supersecretkey"))
	require.NoError(t, err)
	_, err = a.RequesterID(expiredString)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// No secret, no tokens.
	_, err = New("").BuildJWTString("alice")
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = New("").RequesterID(token)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    error
	}{
		{header: "Bearer abc.def", token: "abc.def"},
		{header: "bearer abc.def", token: "abc.def"},
		{header: "Basic dXNlcg==", err: ErrNoToken},
		{header: "Bearer ", err: ErrNoToken},
		{header: "", err: ErrNoToken},
	}

	for _, tc := range tests {
		token, err := BearerToken(tc.header)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, tc.header)
			continue
		}
		require.NoError(t, err, tc.header)
		assert.Equal(t, tc.token, token)
	}
}

func TestMiddleware(t *testing.T) {
	a := New("supersecretkey")
	token, err := a.BuildJWTString("bob")
	require.NoError(t, err)

	var seen string
	h := a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequesterFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{name: "valid token", header: "Bearer " + token, code: http.StatusNoContent},
		{name: "no token", header: "", code: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer garbage", code: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, "/api/issue", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rw := httptest.NewRecorder()

			h.ServeHTTP(rw, req)

			assert.Equal(t, tc.code, rw.Code)
			if tc.code == http.StatusNoContent {
				assert.Equal(t, "bob", seen)
			}
		})
	}
}
