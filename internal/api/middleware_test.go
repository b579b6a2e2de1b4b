package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codecollab-io/codecollab/internal/config"
	"github.com/codecollab-io/codecollab/internal/database"
	"github.com/codecollab-io/codecollab/internal/stats"
	"github.com/codecollab-io/codecollab/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func Test_bearerToken(t *testing.T) {
	tcases := []struct {
		name     string
		header   string
		query    string
		expected string
	}{
		{
			name:     "token from authorization header",
			header:   "Bearer abc123",
			expected: "abc123",
		},
		{
			name:     "token from query parameter",
			query:    "?token=xyz789",
			expected: "xyz789",
		},
		{
			name:     "header takes precedence over query parameter",
			header:   "Bearer abc123",
			query:    "?token=xyz789",
			expected: "abc123",
		},
		{
			name:     "malformed header falls back to query parameter",
			header:   "Basic abc123",
			query:    "?token=xyz789",
			expected: "xyz789",
		},
		{
			name:     "no token",
			expected: "",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			assert.Equal(t, tc.expected, bearerToken(req))
		})
	}
}

func Test_authMiddleware(t *testing.T) {
	tcases := []struct {
		name          string
		token         func(app *CollabApp) string
		viaQuery      bool
		expectedCode  int
		expectedIdent string
	}{
		{
			name: "accepts a valid bearer token",
			token: func(app *CollabApp) string {
				token, err := app.createToken("testuser", "testuser@example.com", time.Hour)
				assert.NoError(t, err)
				return token
			},
			expectedCode:  http.StatusOK,
			expectedIdent: "testuser",
		},
		{
			name: "accepts a valid token from query parameter",
			token: func(app *CollabApp) string {
				token, err := app.createToken("testuser", "testuser@example.com", time.Hour)
				assert.NoError(t, err)
				return token
			},
			viaQuery:      true,
			expectedCode:  http.StatusOK,
			expectedIdent: "testuser",
		},
		{
			name:         "rejects a request without a token",
			token:        func(*CollabApp) string { return "" },
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "rejects a garbage token",
			token:        func(*CollabApp) string { return "not-a-token" },
			expectedCode: http.StatusUnauthorized,
		},
		{
			name: "rejects an expired token",
			token: func(app *CollabApp) string {
				token, err := app.createToken("testuser", "testuser@example.com", -time.Minute)
				assert.NoError(t, err)
				return token
			},
			expectedCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			su := &stats.MockStatsUpdater{}
			defer su.AssertExpectations(t)
			su.On("RegisterMetric", mock.Anything).Return()
			if tc.expectedCode == http.StatusUnauthorized {
				su.On("Incr", stats.AuthRejected).Return().Once()
			}

			app := NewCollabApp(http.NewServeMux(), testutil.TestLogger(t), nil, &database.MockAccountRepository{}, nil, su, &config.Config{
				SigningKey: []byte("test-signing-key"),
			})

			var gotIdentity string
			handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
				gotIdentity, _ = Identity(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			target := "/api/auth/session"
			token := tc.token(app)
			if tc.viaQuery && token != "" {
				target += "?token=" + token
			}

			req := httptest.NewRequest(http.MethodGet, target, nil)
			if !tc.viaQuery && token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}

			rr := httptest.NewRecorder()
			handler(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.Equal(t, tc.expectedIdent, gotIdentity)

			if tc.expectedCode == http.StatusUnauthorized {
				var apiErr ApiError
				err := json.NewDecoder(rr.Body).Decode(&apiErr)
				assert.NoError(t, err, "failed to decode error response")
				assert.Equal(t, *NewUnauthorizedError(), apiErr)
			}
		})
	}
}

func Test_errorHandler(t *testing.T) {
	app := newTestApp(t, &database.MockAccountRepository{}, nil)

	handler := app.errorHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var apiErr ApiError
	err := json.NewDecoder(rr.Body).Decode(&apiErr)
	assert.NoError(t, err, "failed to decode error response")
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}
