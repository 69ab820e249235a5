package clubs

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubroom/clubroom/internal/config"
	"github.com/clubroom/clubroom/internal/notify"
)

func expectExistingMembership(mock sqlmock.Sqlmock, status string) {
	rows := sqlmock.NewRows(memberCols)
	if status != "" {
		rows.AddRow(memberRow(invitationID, otherID, "member", nil, status, false, 3)...)
	}
	mock.ExpectQuery(q("FROM club_members WHERE club_id = $1 AND profile_id = $2")).
		WithArgs(clubID, otherID).
		WillReturnRows(rows)
}

func expectNextOrd(mock sqlmock.Sqlmock, next int) {
	mock.ExpectQuery(q("SELECT COALESCE(MAX(ord), 0) + 1 FROM club_members WHERE club_id = $1")).
		WithArgs(clubID).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(next))
}

// ---------------------------------------------------------------------------
// POST /api/club/invite
// ---------------------------------------------------------------------------

func TestInvite_AssignsNextOrd(t *testing.T) {
	h := newHarness(t)
	expectExistingMembership(h.mock, "")
	expectNextOrd(h.mock, 6)
	h.mock.ExpectQuery(q("INSERT INTO club_members")).
		WithArgs(clubID, otherID, "member", nil, "pending", false, 6, sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(invitationID, time.Now(), time.Now()))

	w := h.doJSON(http.MethodPost, "/api/club/invite", map[string]any{"clubId": clubID, "profileId": otherID}, callerID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	inv := decode[map[string]map[string]any](t, w)["invitation"]
	assert.Equal(t, invitationID, inv["id"])
	assert.Equal(t, clubID, inv["club_id"])
	assert.Equal(t, otherID, inv["profile_id"])
	assert.Equal(t, "member", inv["role"])
	assert.Equal(t, "pending", inv["status"])
	assert.Equal(t, false, inv["graduate"])
	assert.EqualValues(t, 6, inv["ord"])
	assert.NotNil(t, inv["invited_at"])
	assert.Nil(t, inv["joined_at"])
}

func TestInvite_Conflicts(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"pending", "이미 초대된 사용자입니다."},
		{"active", "이미 가입된 회원입니다."},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			h := newHarness(t)
			expectExistingMembership(h.mock, tt.status)

			w := h.doJSON(http.MethodPost, "/api/club/invite", map[string]any{"clubId": clubID, "profileId": otherID}, callerID)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, errorMessage(t, w))
		})
	}
}

func TestInvite_ConcurrentDuplicateIsConflict(t *testing.T) {
	h := newHarness(t)
	expectExistingMembership(h.mock, "")
	expectNextOrd(h.mock, 2)
	h.mock.ExpectQuery(q("INSERT INTO club_members")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	w := h.doJSON(http.MethodPost, "/api/club/invite", map[string]any{"clubId": clubID, "profileId": otherID}, callerID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "이미 초대된 사용자입니다.", errorMessage(t, w))
}

func TestInvite_MissingFields(t *testing.T) {
	h := newHarness(t)
	for _, payload := range []map[string]any{
		{"clubId": clubID},
		{"profileId": otherID},
		{"clubId": clubID, "profileId": "not-a-uuid"},
	} {
		w := h.doJSON(http.MethodPost, "/api/club/invite", payload, callerID)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "clubId와 profileId가 필요합니다.", errorMessage(t, w))
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []notify.Invitation
}

func (r *recordingSender) SendInvitation(_ context.Context, inv notify.Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, inv)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestInvite_SendsInvitationEmail(t *testing.T) {
	sender := &recordingSender{}
	h := newHarness(t, func(_ *config.Config, n **notify.Notifier) {
		*n = notify.New(sender)
	})
	expectExistingMembership(h.mock, "")
	expectNextOrd(h.mock, 1)
	h.mock.ExpectQuery(q("INSERT INTO club_members")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(invitationID, time.Now(), time.Now()))
	h.mock.ExpectQuery(q("FROM profiles WHERE id = $1")).
		WithArgs(otherID).
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow(otherID, "Lee", "lee@example.com", nil))
	now := time.Now()
	h.mock.ExpectQuery(q("FROM clubs WHERE id = $1")).
		WithArgs(clubID).
		WillReturnRows(sqlmock.NewRows(clubCols).AddRow(clubID, "Chess", nil, nil, nil, nil, callerID, now, now))

	w := h.doJSON(http.MethodPost, "/api/club/invite", map[string]any{"clubId": clubID, "profileId": otherID}, callerID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, notify.Invitation{To: "lee@example.com", InviteeName: "Lee", ClubName: "Chess"}, sender.sent[0])
}

// ---------------------------------------------------------------------------
// GET /api/club/invitations
// ---------------------------------------------------------------------------

func TestListInvitations(t *testing.T) {
	h := newHarness(t)
	newer := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	older := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	h.mock.ExpectQuery("FROM club_members m.*status = 'pending'.*ORDER BY m.invited_at DESC").
		WithArgs(callerID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "club_id", "name", "thumbnail_url", "invited_at"}).
			AddRow("i2", otherID, "Photo", "https://cdn.test/p.png", newer).
			AddRow("i1", clubID, "Chess", nil, older))

	w := h.do(http.MethodGet, "/api/club/invitations", nil, "", callerID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	invs := decode[[]map[string]any](t, w)
	require.Len(t, invs, 2)
	assert.Equal(t, "i2", invs[0]["id"])
	assert.Equal(t, "Photo", invs[0]["club_name"])
	assert.Equal(t, "2026-05-02T00:00:00Z", invs[0]["invited_at"])
	assert.Nil(t, invs[1]["thumbnail_url"])
}

func TestListInvitations_RequiresIdentity(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/club/invitations", nil, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "profile_id가 필요합니다.", errorMessage(t, w))
}

// ---------------------------------------------------------------------------
// PATCH /api/club/invitations/:invitationId
// ---------------------------------------------------------------------------

func invitationPath() string { return "/api/club/invitations/" + invitationID }

func TestRespondInvitation_Accept(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery("UPDATE club_members.*SET status = 'active', joined_at = NOW\\(\\).*status = 'pending'").
		WithArgs(invitationID, callerID).
		WillReturnRows(sqlmock.NewRows(memberCols).
			AddRow(memberRow(invitationID, callerID, "member", nil, "active", false, 4)...))

	w := h.doJSON(http.MethodPatch, invitationPath(), map[string]any{"action": "accept"}, callerID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode[map[string]any](t, w)
	assert.Equal(t, "초대를 수락했습니다.", body["message"])
	membership := body["membership"].(map[string]any)
	assert.Equal(t, "active", membership["status"])
	assert.NotNil(t, membership["joined_at"])
}

func TestRespondInvitation_Reject(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery("DELETE FROM club_members.*status = 'pending'.*RETURNING").
		WithArgs(invitationID, callerID).
		WillReturnRows(sqlmock.NewRows(memberCols).
			AddRow(memberRow(invitationID, callerID, "member", nil, "pending", false, 4)...))

	w := h.doJSON(http.MethodPatch, invitationPath(), map[string]any{"action": "reject"}, callerID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode[map[string]any](t, w)
	assert.Equal(t, "초대를 거절했습니다.", body["message"])
	assert.Equal(t, invitationID, body["invitation"].(map[string]any)["id"])
}

func TestRespondInvitation_NotOwnedOrNotPending(t *testing.T) {
	for _, action := range []string{"accept", "reject"} {
		t.Run(action, func(t *testing.T) {
			h := newHarness(t)
			h.mock.ExpectQuery("club_members").
				WithArgs(invitationID, callerID).
				WillReturnRows(sqlmock.NewRows(memberCols))

			w := h.doJSON(http.MethodPatch, invitationPath(), map[string]any{"action": action}, callerID)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, "초대를 찾을 수 없습니다.", errorMessage(t, w))
		})
	}
}

func TestRespondInvitation_Validation(t *testing.T) {
	h := newHarness(t)

	w := h.doJSON(http.MethodPatch, invitationPath(), map[string]any{}, callerID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invitationId, action, profile_id가 필요합니다.", errorMessage(t, w))

	w = h.doJSON(http.MethodPatch, invitationPath(), map[string]any{"action": "accept"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invitationId, action, profile_id가 필요합니다.", errorMessage(t, w))

	w = h.doJSON(http.MethodPatch, invitationPath(), map[string]any{"action": "maybe"}, callerID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "action은 accept 또는 reject 이어야 합니다.", errorMessage(t, w))

	w = h.do(http.MethodPatch, invitationPath(), nil, "application/json", callerID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invitationId, action, profile_id가 필요합니다.", errorMessage(t, w))
}

func TestRespondInvitation_MalformedBody(t *testing.T) {
	h := newHarness(t)
	for _, body := range []string{"{", `{"action": 5}`} {
		w := h.do(http.MethodPatch, invitationPath(), strings.NewReader(body), "application/json", callerID)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "요청 본문이 올바른 JSON이 아닙니다.", errorMessage(t, w), body)
	}
}

func TestRespondInvitation_BackendError(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery("UPDATE club_members").
		WithArgs(invitationID, callerID).
		WillReturnError(errors.New("timeout"))

	w := h.doJSON(http.MethodPatch, invitationPath(), map[string]any{"action": "accept"}, callerID)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "failed to accept invitation: timeout", errorMessage(t, w))
}

func TestRespondInvitation_BodyIdentityFallback(t *testing.T) {
	h := newHarness(t, withIdentityFallback)
	h.mock.ExpectQuery("UPDATE club_members").
		WithArgs(invitationID, otherID).
		WillReturnRows(sqlmock.NewRows(memberCols).
			AddRow(memberRow(invitationID, otherID, "member", nil, "active", false, 4)...))

	w := h.doJSON(http.MethodPatch, invitationPath(), map[string]any{"action": "accept", "profile_id": otherID}, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
