package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SigNoz/storefront-go-app/internal/metrics"
)

var secret = []byte("test-secret")

func plainError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	http.Error(w, code+": "+message, status)
}

func sign(t *testing.T, claims jwt.Claims, method jwt.SigningMethod, key any) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestParseToken(t *testing.T) {
	valid, err := NewToken(secret, 42, RoleAdmin)
	require.NoError(t, err)

	stringID := sign(t, jwt.MapClaims{"user_id": "17"}, jwt.SigningMethodHS256, secret)
	expired := sign(t, jwt.MapClaims{"user_id": 1, "exp": time.Now().Add(-time.Hour).Unix()}, jwt.SigningMethodHS256, secret)
	otherKey := sign(t, jwt.MapClaims{"user_id": 1}, jwt.SigningMethodHS256, []byte("other"))
	noUser := sign(t, jwt.MapClaims{"role": "admin"}, jwt.SigningMethodHS256, secret)
	hs512 := sign(t, jwt.MapClaims{"user_id": 1}, jwt.SigningMethodHS512, secret)

	tests := []struct {
		name   string
		header string
		want   Identity
		ok     bool
	}{
		{"numeric user id", "Bearer " + valid, Identity{UserID: 42, Role: RoleAdmin}, true},
		{"string user id", "Bearer " + stringID, Identity{UserID: 17}, true},
		{"missing header", "", Identity{}, false},
		{"wrong scheme", "Basic " + valid, Identity{}, false},
		{"expired", "Bearer " + expired, Identity{}, false},
		{"wrong key", "Bearer " + otherKey, Identity{}, false},
		{"no user id", "Bearer " + noUser, Identity{}, false},
		{"unexpected algorithm", "Bearer " + hs512, Identity{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseToken(secret, tt.header)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthAndRole(t *testing.T) {
	r := mux.NewRouter()
	r.Use(AuthMiddleware(secret, plainError))
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(RequireRole(RoleAdmin, plainError))
	admin.HandleFunc("/reconcile", func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		require.True(t, ok)
		assert.Equal(t, int64(1), identity.UserID)
		w.WriteHeader(http.StatusNoContent)
	})

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/admin/reconcile", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	adminToken, err := NewToken(secret, 1, RoleAdmin)
	require.NoError(t, err)
	userToken, err := NewToken(secret, 1, "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusForbidden, do(userToken))
	assert.Equal(t, http.StatusNoContent, do(adminToken))
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "abc", seen)
}

func TestRecoverAndMetricsMiddleware(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware(metrics.NewNoop()))
	r.Use(RecoverMiddleware)
	r.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"internal","message":"Internal Server Error"}}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight reached handler")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/cart", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
