package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-translator/internal/config"
)

var fastParams = Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func TestHashPassword_VerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret", fastParams)
	require.NoError(t, err)
	assert.True(t, VerifyPassword("s3cret", hash))
	assert.False(t, VerifyPassword("wrong", hash))

	for _, bad := range []string{"", "bcrypt$1$2$3$4$5", "argon2id$x$1$1$AA$AA", "argon2id$1$8192$0$AA$AA", "argon2id$1$8192$1$!!$AA"} {
		assert.False(t, VerifyPassword("s3cret", bad), bad)
	}
}

func TestAdminGuard(t *testing.T) {
	hash, err := HashPassword("pw", fastParams)
	require.NoError(t, err)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	open := AdminGuard(config.Config{})(ok)
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	guarded := AdminGuard(config.Config{AdminUsername: "admin", AdminPasswordHash: hash})(ok)
	tests := []struct {
		name       string
		user, pass string
		basic      bool
		want       int
	}{
		{name: "no credentials", want: http.StatusUnauthorized},
		{name: "wrong user", user: "root", pass: "pw", basic: true, want: http.StatusUnauthorized},
		{name: "wrong password", user: "admin", pass: "nope", basic: true, want: http.StatusUnauthorized},
		{name: "valid", user: "admin", pass: "pw", basic: true, want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/", nil)
			if tt.basic {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
			}
		})
	}
}
