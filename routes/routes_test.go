package routes

import (
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cryptohelms/backend/app"
	"github.com/cryptohelms/backend/config"
	"github.com/cryptohelms/backend/repositories/postgres"
)

var (
	userColumns = []string{
		"id", "username", "email", "email_verified", "password", "salt",
		"is_active", "is_superuser", "created_at", "updated_at",
	}
	selectByEmail    = regexp.QuoteMeta("FROM users WHERE email = $1")
	selectByUsername = regexp.QuoteMeta("FROM users WHERE username = $1")
	insertUser       = regexp.QuoteMeta("INSERT INTO users (")
)

// capture records the value bound to a query argument
type capture struct {
	value driver.Value
}

func (c *capture) Match(v driver.Value) bool {
	c.value = v
	return true
}

func testConfig() *config.Config {
	return &config.Config{
		ProjectName: "CryptoHelms",
		Version:     "1.0.0",
		APIPrefix:   "/api",
		Environment: "test",
		Server: config.ServerConfig{
			RequestTimeout:     5 * time.Second,
			CORSAllowedOrigins: []string{"*"},
		},
		Auth: config.AuthConfig{
			SecretKey:           "routes-test-secret-key-at-least-32b",
			Audience:            "cryptohelms:auth",
			Issuer:              "cryptohelms.io",
			Algorithm:           config.AlgorithmHS256,
			TokenPrefix:         "Bearer",
			AccessTokenLifetime: time.Hour,
			HashTime:            1,
			HashMemoryKiB:       1024,
			HashThreads:         1,
			MaxConcurrentHashes: 2,
		},
		Observability: config.ObservabilityConfig{MetricsEnabled: true},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	factory := postgres.NewRepositoryFactoryFromDB(postgres.WrapDB(db, logger), logger)
	deps, err := app.NewDependenciesFromFactory(testConfig(), factory, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(SetupRoutes(deps))
	t.Cleanup(ts.Close)
	return ts, mock
}

func register(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/users/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func login(t *testing.T, ts *httptest.Server, email, password string) *http.Response {
	t.Helper()
	resp, err := http.PostForm(ts.URL+"/api/users/login/token/", url.Values{
		"username": {email},
		"password": {password},
	})
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func me(t *testing.T, ts *httptest.Server, authorization string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/users/me/", nil)
	require.NoError(t, err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

const aliceSignup = `{"new_user": {"email": "a@b.com", "password": "somepassword", "username": "alice"}}`

func TestRegisterLoginAndMe(t *testing.T) {
	ts, mock := newTestServer(t)

	id, hash, salt, created, updated := &capture{}, &capture{}, &capture{}, &capture{}, &capture{}
	mock.ExpectQuery(selectByEmail).WithArgs("a@b.com").WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectQuery(selectByUsername).WithArgs("alice").WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectBegin()
	mock.ExpectExec(insertUser).
		WithArgs(id, "alice", "a@b.com", false, hash, salt, true, false, created, updated).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	resp := register(t, ts, aliceSignup)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "alice", body["username"])
	assert.NotContains(t, body, "password")
	assert.Equal(t, "bearer", body["access_token"].(map[string]interface{})["token_type"])
	assert.NotEqual(t, "somepassword", hash.value)

	stored := func() *sqlmock.Rows {
		return sqlmock.NewRows(userColumns).AddRow(
			id.value, "alice", "a@b.com", false, hash.value, salt.value,
			true, false, created.value, updated.value)
	}

	mock.ExpectQuery(selectByEmail).WithArgs("a@b.com").WillReturnRows(stored())
	resp = login(t, ts, "a@b.com", "somepassword")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decode(t, resp)
	assert.Equal(t, "bearer", tok["token_type"])
	accessToken := tok["access_token"].(string)
	require.NotEmpty(t, accessToken)

	mock.ExpectQuery(selectByUsername).WithArgs("alice").WillReturnRows(stored())
	resp = me(t, ts, "Bearer "+accessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decode(t, resp)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "a@b.com", user["email"])
	assert.NotContains(t, user, "access_token")

	mock.ExpectQuery(selectByEmail).WithArgs("a@b.com").WillReturnRows(stored())
	resp = login(t, ts, "a@b.com", "wrongpassword")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotContains(t, decode(t, resp), "access_token")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterRejections(t *testing.T) {
	t.Run("taken email", func(t *testing.T) {
		ts, mock := newTestServer(t)
		now := time.Now().UTC()
		mock.ExpectQuery(selectByEmail).WithArgs("a@b.com").WillReturnRows(
			sqlmock.NewRows(userColumns).AddRow(
				"6f1c5d9e-8a57-4a8e-9a0b-1b7f3c2d4e5f", "someone", "a@b.com", false, "hash", "salt", true, false, now, now))

		resp := register(t, ts, aliceSignup)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Email already exists in database. Login with that email or register with different one.", decode(t, resp)["detail"])
	})

	t.Run("taken username", func(t *testing.T) {
		ts, mock := newTestServer(t)
		now := time.Now().UTC()
		mock.ExpectQuery(selectByEmail).WithArgs("a@b.com").WillReturnRows(sqlmock.NewRows(userColumns))
		mock.ExpectQuery(selectByUsername).WithArgs("alice").WillReturnRows(
			sqlmock.NewRows(userColumns).AddRow(
				"6f1c5d9e-8a57-4a8e-9a0b-1b7f3c2d4e5f", "alice", "other@b.com", false, "hash", "salt", true, false, now, now))

		resp := register(t, ts, aliceSignup)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Username is already taken. Please try a different one.", decode(t, resp)["detail"])
	})

	t.Run("invalid shape", func(t *testing.T) {
		ts, _ := newTestServer(t)
		resp := register(t, ts, `{"new_user": {"email": "notanemail", "password": "somepassword", "username": "alice"}}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestCurrentUserRequiresToken(t *testing.T) {
	ts, _ := newTestServer(t)

	for name, header := range map[string]string{
		"no header":     "",
		"garbage token": "Bearer not.a.jwt",
		"wrong scheme":  "Basic abc",
	} {
		t.Run(name, func(t *testing.T) {
			resp := me(t, ts, header)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
			assert.Equal(t, "Could not validate token credentials.", decode(t, resp)["detail"])
		})
	}
}

func TestPublicEndpoints(t *testing.T) {
	ts, mock := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"health", "/healthz", http.StatusOK, ""},
		{"forecast", "/api/forecast/", http.StatusOK, `{"Endpoint:":"/forecast"}`},
		{"viz", "/api/viz/viz", http.StatusOK, `{"Endpoint:":"/viz"}`},
		{"dummy", "/api/dummy/", http.StatusOK, `[{"id":1,"name":"John","employee_id":12345},{"id":2,"name":"June","employee_id":67890}]`},
		{"status", "/api/status", http.StatusOK, `{"name":"CryptoHelms","version":"1.0.0","environment":"test"}`},
		{"unknown route", "/api/nonexistent", http.StatusNotFound, `{"error":"not_found","detail":"Not Found"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				b, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.JSONEq(t, tt.body, string(b))
			}
		})
	}

	t.Run("readiness pings the database", func(t *testing.T) {
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ready", decode(t, resp)["status"])
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/forecast/", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(b), `cryptohelms_http_requests_total{method="GET",route="/api/forecast/",status="200"}`)
	})
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/users/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
