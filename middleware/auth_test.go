package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dosada05/cue-tournaments/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signedToken(t *testing.T, claims jwt.MapClaims, secret []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestAuthenticate(t *testing.T) {
	user := &models.User{ID: 7, Username: "ref", Role: models.RoleOfficial}
	now := time.Now()

	var gotID int
	var gotRole models.UserRole
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotID, err = GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		gotRole, err = GetUserRoleFromContext(r.Context())
		require.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Authenticate(testSecret)(next)

	testCases := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + signedToken(t, NewClaims(user, now, time.Hour), testSecret), http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signedToken(t, NewClaims(user, now, time.Hour), []byte("other")), http.StatusUnauthorized},
		{"expired", "Bearer " + signedToken(t, NewClaims(user, now.Add(-2*time.Hour), time.Hour), testSecret), http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}

	assert.Equal(t, 7, gotID)
	assert.Equal(t, models.RoleOfficial, gotRole)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RequireRole(models.RoleOfficial, models.RoleAdmin)(ok)

	testCases := []struct {
		name       string
		ctx        context.Context
		wantStatus int
	}{
		{"official", WithClaims(context.Background(), jwt.MapClaims{"user_id": float64(1), "role": "tournament_official"}), http.StatusOK},
		{"admin", WithClaims(context.Background(), jwt.MapClaims{"user_id": float64(1), "role": "admin"}), http.StatusOK},
		{"player", WithClaims(context.Background(), jwt.MapClaims{"user_id": float64(1), "role": "player"}), http.StatusForbidden},
		{"no claims", context.Background(), http.StatusUnauthorized},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(tc.ctx)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	testCases := []struct {
		name    string
		claim   interface{}
		want    int
		wantErr bool
	}{
		{"json number", float64(42), 42, false},
		{"string", "42", 42, false},
		{"fraction", 4.5, 0, true},
		{"zero", float64(0), 0, true},
		{"garbage", "abc", 0, true},
		{"bool", true, 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := WithClaims(context.Background(), jwt.MapClaims{"user_id": tc.claim})
			got, err := GetUserIDFromContext(ctx)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := GetUserIDFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoClaims)
}
