// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/outing-pick/auth"
	"github.com/danielhkuo/outing-pick/cliparse"
	"github.com/danielhkuo/outing-pick/db"
	"github.com/danielhkuo/outing-pick/engine"
	"github.com/danielhkuo/outing-pick/models"
	"github.com/danielhkuo/outing-pick/store"
)

// SetupTestDB creates a fresh SQLite database with the full schema.
// Each test gets its own file, removed with the test's temp dir.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	url := "file:" + filepath.Join(t.TempDir(), "test.db")

	conn, err := db.Open(ctx, db.TypeSQLite, url)
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.CreateSchema(ctx, conn), "create schema")
	return conn
}

// SetupTestStore is SetupTestDB wrapped in a Store.
func SetupTestStore(t *testing.T) (*store.Store, *sql.DB) {
	t.Helper()
	conn := SetupTestDB(t)
	return store.New(conn), conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseType: db.TypeSQLite,
		DatabaseURL:  "file::memory:",
		AdminKeySalt: "test-admin-salt",
		VoterSalt:    "test-voter-salt",
		SweepWorkers: 2,
	}
}

// PlanSpec describes a fixture plan. Zero values get usable defaults.
type PlanSpec struct {
	Mode      string
	Headcount int
	Threshold int
	Deadline  time.Time
	Labels    []string
}

// CreateTestPlan inserts an open plan and returns it with its options in
// display order.
func CreateTestPlan(t *testing.T, st *store.Store, spec PlanSpec) (models.Plan, []models.Option) {
	t.Helper()

	if spec.Mode == "" {
		spec.Mode = models.ModePlurality
	}
	if spec.Headcount == 0 {
		spec.Headcount = 3
	}
	if spec.Threshold == 0 {
		spec.Threshold = 2
	}
	if spec.Deadline.IsZero() {
		spec.Deadline = time.Now().Add(time.Hour)
	}
	if spec.Labels == nil {
		spec.Labels = []string{"Tacos", "Bowling", "Karaoke"}
	}

	plan, options, err := st.CreatePlan(context.Background(), models.Plan{
		Title:            "Friday night",
		Mode:             spec.Mode,
		Headcount:        spec.Headcount,
		Threshold:        spec.Threshold,
		DecisionDeadline: spec.Deadline.UTC().Truncate(time.Microsecond),
	}, spec.Labels)
	require.NoError(t, err, "create test plan")

	return plan, options
}

// Seed returns a distinct identity seed for participant n.
func Seed(n int) models.IdentitySeed {
	return models.IdentitySeed{
		Origin: "198.51.100." + strconv.Itoa(n%256),
		Client: "test-client/" + strconv.Itoa(n),
	}
}

// Identity is the fingerprinter the test config implies.
func Identity() auth.VoterIdentity {
	return auth.VoterIdentity{Salt: GetTestConfig().VoterSalt}
}

// NewResolvers wires both resolvers over st.
func NewResolvers(st *store.Store, opts ...engine.ResolverOption) (*engine.PluralityResolver, *engine.RankedResolver) {
	identity := Identity()
	return engine.NewPluralityResolver(st, identity, opts...),
		engine.NewRankedResolver(st, st, identity, opts...)
}

// Clock is a settable time source for resolvers.
type Clock struct {
	T time.Time
}

func (c *Clock) Now() time.Time {
	return c.T
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	require.Equal(t, expected, w.Code, "Body: %s", w.Body.String())
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v), "decode JSON response")
}
