package clubs

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubroom/clubroom/internal/config"
	"github.com/clubroom/clubroom/internal/middleware"
	"github.com/clubroom/clubroom/internal/notify"
	"github.com/clubroom/clubroom/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	clubID       = "11111111-1111-4111-8111-111111111111"
	callerID     = "22222222-2222-4222-8222-222222222222"
	otherID      = "33333333-3333-4333-8333-333333333333"
	invitationID = "44444444-4444-4444-8444-444444444444"
	membershipID = "55555555-5555-4555-8555-555555555555"
)

// ---------------------------------------------------------------------------
// Column definitions (positional order must match Scan calls)
// ---------------------------------------------------------------------------

var clubCols = []string{
	"id", "name", "description", "location", "thumbnail_url", "thumbnail_updated_at",
	"created_by", "created_at", "updated_at",
}

var memberCols = []string{
	"id", "club_id", "profile_id", "role", "officer_title", "status", "graduate", "ord",
	"invited_at", "joined_at", "created_at", "updated_at",
}

var memberWithProfileCols = append(append([]string{}, memberCols...), "name", "email", "phone")

var profileCols = []string{"id", "name", "email", "phone"}

// ---------------------------------------------------------------------------
// Mock storage
// ---------------------------------------------------------------------------

type mockStore struct {
	mu        sync.Mutex
	uploadErr error
	uploaded  map[string]string
	deleted   []string
}

func (m *mockStore) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) (*storage.UploadResult, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	data, _ := io.ReadAll(r)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploaded == nil {
		m.uploaded = map[string]string{}
	}
	m.uploaded[key] = contentType
	return &storage.UploadResult{Key: key, Size: int64(len(data))}, nil
}
func (m *mockStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return nil
}
func (m *mockStore) Exists(_ context.Context, _ string) (bool, error) { return false, nil }
func (m *mockStore) PublicURL(key string) string                      { return "https://cdn.test/" + key }
func (m *mockStore) Backend() string                                  { return "mock" }

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
	store  *mockStore
	cfg    *config.Config
}

func newHarness(t *testing.T, opts ...func(*config.Config, **notify.Notifier)) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	cfg := &config.Config{}
	var notifier *notify.Notifier
	for _, opt := range opts {
		opt(cfg, &notifier)
	}
	store := &mockStore{}
	h := NewClubHandlers(cfg, db, store, notifier)

	r := gin.New()
	group := r.Group("/api/club")
	// Stands in for AuthMiddleware: the test names the verified caller directly.
	group.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-Profile"); id != "" {
			c.Set(middleware.ProfileIDKey, id)
		}
		c.Next()
	})
	h.RegisterRoutes(group, middleware.ThumbnailUploadMiddleware(1<<20))

	return &harness{router: r, mock: mock, store: store, cfg: cfg}
}

func withIdentityFallback(cfg *config.Config, _ **notify.Notifier) {
	cfg.Auth.AllowIdentityFallback = true
}

func (h *harness) do(method, path string, body io.Reader, contentType, profileID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if profileID != "" {
		req.Header.Set("X-Test-Profile", profileID)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) doJSON(method, path string, payload any, profileID string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(payload)
	return h.do(method, path, bytes.NewReader(b), "application/json", profileID)
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	msg, _ := body["error"].(string)
	return msg
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func q(s string) string { return regexp.QuoteMeta(s) }

func memberRow(id, profileID, role string, title any, status string, graduate bool, ord int) []driver.Value {
	now := time.Now()
	return []driver.Value{id, clubID, profileID, role, title, status, graduate, ord, now, now, now, now}
}

// ---------------------------------------------------------------------------
// GET /api/club
// ---------------------------------------------------------------------------

func TestListClubs(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery("FROM club_members m.*JOIN clubs c.*ORDER BY m.ord ASC").
		WithArgs(callerID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "location", "thumbnail_url", "members", "ord"}).
			AddRow(clubID, "Chess", nil, "Hall A", nil, 3, 1).
			AddRow(otherID, "Photo", "Pictures", nil, "https://cdn.test/p.png", 0, 2))

	w := h.do(http.MethodGet, "/api/club/", nil, "", callerID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	clubs := decode[[]map[string]any](t, w)
	require.Len(t, clubs, 2)
	assert.Equal(t, "Chess", clubs[0]["name"])
	assert.Nil(t, clubs[0]["thumbnail_url"])
	assert.EqualValues(t, 3, clubs[0]["members"])
	assert.EqualValues(t, 1, clubs[0]["ord"])
	assert.EqualValues(t, 0, clubs[1]["members"])
	assert.Equal(t, "https://cdn.test/p.png", clubs[1]["thumbnail_url"])
}

func TestListClubs_RequiresIdentity(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/club/?profile_id="+callerID, nil, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "profile_id가 필요합니다.", errorMessage(t, w))
}

func TestListClubs_IdentityFallbackWhenEnabled(t *testing.T) {
	h := newHarness(t, withIdentityFallback)
	h.mock.ExpectQuery("FROM club_members m").
		WithArgs(otherID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "location", "thumbnail_url", "members", "ord"}))

	w := h.do(http.MethodGet, "/api/club?profile_id="+otherID, nil, "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListClubs_VerifiedIdentityBeatsQuery(t *testing.T) {
	h := newHarness(t, withIdentityFallback)
	h.mock.ExpectQuery("FROM club_members m").
		WithArgs(callerID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "location", "thumbnail_url", "members", "ord"}))

	w := h.do(http.MethodGet, "/api/club/?profile_id="+otherID, nil, "", callerID)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListClubs_BackendError(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery("FROM club_members m").
		WithArgs(callerID).
		WillReturnError(errors.New("connection reset"))

	w := h.do(http.MethodGet, "/api/club/", nil, "", callerID)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "failed to list clubs: connection reset", errorMessage(t, w))
}

// ---------------------------------------------------------------------------
// POST /api/club
// ---------------------------------------------------------------------------

func expectClubInsert(mock sqlmock.Sqlmock, name string) {
	mock.ExpectQuery(q("INSERT INTO clubs")).
		WithArgs(name, sqlmock.AnyArg(), sqlmock.AnyArg(), callerID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(clubID, time.Now(), time.Now()))
}

func TestCreateClub_JSONWithoutThumbnail(t *testing.T) {
	h := newHarness(t)
	expectClubInsert(h.mock, "Chess")
	h.mock.ExpectQuery(q("INSERT INTO club_members")).
		WithArgs(clubID, callerID, "president", nil, "active", false, 1, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(membershipID, time.Now(), time.Now()))

	w := h.doJSON(http.MethodPost, "/api/club/", map[string]any{"name": "Chess", "description": "Weekly"}, callerID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode[map[string]map[string]any](t, w)
	assert.Equal(t, clubID, body["club"]["id"])
	assert.Equal(t, "Weekly", body["club"]["description"])
	assert.Nil(t, body["club"]["thumbnail_url"])
	assert.Equal(t, "president", body["membership"]["role"])
	assert.Equal(t, "active", body["membership"]["status"])
	assert.EqualValues(t, 1, body["membership"]["ord"])
	assert.NotNil(t, body["membership"]["joined_at"])
}

func TestCreateClub_MissingFields(t *testing.T) {
	h := newHarness(t)

	w := h.doJSON(http.MethodPost, "/api/club/", map[string]any{"name": "  "}, callerID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name과 profile_id가 필요합니다.", errorMessage(t, w))

	w = h.doJSON(http.MethodPost, "/api/club/", map[string]any{"name": "Chess", "profile_id": callerID}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name과 profile_id가 필요합니다.", errorMessage(t, w))
}

func thumbnailForm(t *testing.T, name string, data []byte, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("name", name))
	require.NoError(t, mw.WriteField("location", "Hall B"))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="thumbnail"; filename="thumb"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestCreateClub_MultipartWithThumbnail(t *testing.T) {
	h := newHarness(t)
	expectClubInsert(h.mock, "Photo")
	now := time.Now()
	url := "https://cdn.test/clubs/" + clubID + "/thumbnail.webp"
	h.mock.ExpectQuery(q("UPDATE clubs")).
		WithArgs(clubID, url, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(clubCols).
			AddRow(clubID, "Photo", nil, "Hall B", url, now, callerID, now, now))
	h.mock.ExpectQuery(q("INSERT INTO club_members")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(membershipID, now, now))

	body, ct := thumbnailForm(t, "Photo", []byte("RIFF....WEBP"), "image/webp")
	w := h.do(http.MethodPost, "/api/club/", body, ct, callerID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[map[string]map[string]any](t, w)
	assert.Equal(t, url, resp["club"]["thumbnail_url"])
	assert.Equal(t, "Hall B", resp["club"]["location"])
	assert.Equal(t, "image/webp", h.store.uploaded["clubs/"+clubID+"/thumbnail.webp"])
}

func TestCreateClub_UploadFailureDeletesClub(t *testing.T) {
	h := newHarness(t)
	h.store.uploadErr = errors.New("bucket offline")
	expectClubInsert(h.mock, "Photo")
	h.mock.ExpectExec(q("DELETE FROM clubs WHERE id = $1")).
		WithArgs(clubID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body, ct := thumbnailForm(t, "Photo", []byte("\x89PNG\r\n\x1a\n"), "image/png")
	w := h.do(http.MethodPost, "/api/club/", body, ct, callerID)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "썸네일 업로드 실패: bucket offline", errorMessage(t, w))
}

func TestCreateClub_MembershipFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	expectClubInsert(h.mock, "Chess")
	h.mock.ExpectQuery(q("INSERT INTO club_members")).
		WillReturnError(errors.New("deadlock detected"))
	h.mock.ExpectExec(q("DELETE FROM club_members WHERE club_id = $1")).
		WithArgs(clubID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	h.mock.ExpectExec(q("DELETE FROM clubs WHERE id = $1")).
		WithArgs(clubID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := h.doJSON(http.MethodPost, "/api/club/", map[string]any{"name": "Chess"}, callerID)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "failed to create membership: deadlock detected", errorMessage(t, w))
}

// ---------------------------------------------------------------------------
// GET /api/club/info
// ---------------------------------------------------------------------------

func TestGetClubInfo(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.mock.ExpectQuery(q("FROM clubs WHERE id = $1")).
		WithArgs(clubID).
		WillReturnRows(sqlmock.NewRows(clubCols).
			AddRow(clubID, "Chess", nil, nil, "https://cdn.test/c.png", now, callerID, now, now))

	w := h.do(http.MethodGet, "/api/club/info?clubId="+clubID, nil, "", callerID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"Chess","thumbnail_url":"https://cdn.test/c.png"}`, w.Body.String())
}

func TestGetClubInfo_Errors(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(q("FROM clubs WHERE id = $1")).
		WithArgs(clubID).
		WillReturnRows(sqlmock.NewRows(clubCols))

	w := h.do(http.MethodGet, "/api/club/info", nil, "", callerID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "clubId가 필요합니다.", errorMessage(t, w))

	w = h.do(http.MethodGet, "/api/club/info?clubId="+clubID, nil, "", callerID)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "동아리를 찾을 수 없습니다.", errorMessage(t, w))

	w = h.do(http.MethodGet, "/api/club/info?clubId=not-a-uuid", nil, "", callerID)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
