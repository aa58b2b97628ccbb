package bot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/attendbot/internal/access"
	"github.com/yourorg/attendbot/internal/export"
	"github.com/yourorg/attendbot/internal/identity"
	"github.com/yourorg/attendbot/internal/leave"
	"github.com/yourorg/attendbot/internal/ledger"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	resolver := identity.StaticResolver{"U1": "Kim", "U2": "Lee"}
	accessDir, leaveDir := t.TempDir(), t.TempDir()
	accessStore := ledger.NewFileStore(accessDir, access.Header)
	leaveStore := ledger.NewFileStore(leaveDir, leave.Header)
	accessSvc := access.NewService(accessStore, resolver, nil)
	leaveSvc := leave.NewService(leaveStore, time.Hour, nil)
	exportSvc := export.NewService([]export.SourceDir{
		{Name: "access", Path: accessDir},
		{Name: "paidleave", Path: leaveDir},
	}, t.TempDir(), time.Hour, 0, nil, nil)
	h := NewHandler(accessSvc, leaveSvc, exportSvc, resolver, NewSessions(time.Minute), nil)
	h.now = func() time.Time { return time.Date(2023, 5, 2, 10, 0, 0, 0, time.Local) }
	return h
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sendMessage(t *testing.T, router http.Handler, text, handle string) messageResponse {
	t.Helper()
	rec := postJSON(t, router, "/messages", inboundMessage{Text: text, SenderHandle: handle, SentAtUnixSeconds: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /messages status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestMessageRecordsStructuredEvent(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	resp := sendMessage(t, router, "Kim(팀) 2023.05.01 09:00:00 : 출근", "U1")
	if !resp.Recorded {
		t.Error("structured event was not recorded")
	}
}

func TestMessageCheckInCheckOutScenario(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	sendMessage(t, router, "Kim(팀) 2023.05.01 09:00:00 : 출근", "U1")
	sendMessage(t, router, "Kim(팀) 2023.05.01 17:00:00 : 퇴근", "U1")

	resp := sendMessage(t, router, "//조회 일별 2023.05.01", "U1")
	if len(resp.Responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(resp.Responses))
	}
	text := resp.Responses[0].Text
	if !strings.Contains(text, "총 근무: 7시간") {
		t.Errorf("summary missing 7시간 total:\n%s", text)
	}
	if !strings.Contains(text, "출근") || !strings.Contains(text, "퇴근") {
		t.Errorf("summary missing raw event lines:\n%s", text)
	}
}

func TestQueryWithoutHistory(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	resp := sendMessage(t, router, "//조회 일별 2023.05.01", "U2")
	if got := resp.Responses[0].Text; got != msgNoAccessHistory {
		t.Errorf("reply = %q, want %q", got, msgNoAccessHistory)
	}
}

func TestCommandValidationReply(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	resp := sendMessage(t, router, "//연차 Kim 2023.02.30", "U1")
	if got := resp.Responses[0].Text; !strings.Contains(got, "존재하지 않는 날짜") {
		t.Errorf("reply = %q, want date-does-not-exist error", got)
	}
}

func TestLeaveApplyAndDuplicate(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	resp := sendMessage(t, router, "//연차 Kim 2023.06.15", "U1")
	if got := resp.Responses[0].Text; !strings.Contains(got, "연차 사용 신청") {
		t.Errorf("reply = %q, want confirmation", got)
	}

	resp = sendMessage(t, router, "//연차 Kim 2023.06.15", "U1")
	if got := resp.Responses[0].Text; !strings.Contains(got, "이미 해당 날짜에") {
		t.Errorf("reply = %q, want duplicate error", got)
	}
}

func TestLeaveBalanceCommand(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	sendMessage(t, router, "//연차 Kim 2023.06.15", "U1")
	sendMessage(t, router, "//반차 Kim 2023.06.16 오전", "U1")

	resp := sendMessage(t, router, "//조회", "U1")
	text := resp.Responses[0].Text
	if !strings.Contains(text, "총 사용 횟수 : 1.5") {
		t.Errorf("balance reply = %q, want total 1.5", text)
	}
}

func TestUnattributableEventDropped(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	resp := sendMessage(t, router, "먼저 퇴근합니다", "ghost")
	if resp.Recorded {
		t.Error("event with unresolvable sender must not be recorded")
	}
}

func TestInteractionFlow(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	sendMessage(t, router, "Kim 2023.05.01 09:00:00 : 출근", "U1")
	sendMessage(t, router, "Kim 2023.05.01 17:00:00 : 퇴근", "U1")

	rec := postJSON(t, router, "/interactions", interactionRequest{SenderHandle: "U1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d", rec.Code)
	}
	var started interactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(started.Options) != 3 {
		t.Fatalf("options = %v, want three scopes", started.Options)
	}

	path := fmt.Sprintf("/interactions/%s", started.SessionID)
	rec = postJSON(t, router, path, interactionRequest{Value: "일별"})
	if rec.Code != http.StatusOK {
		t.Fatalf("scope step status = %d", rec.Code)
	}

	rec = postJSON(t, router, path, interactionRequest{Value: "2023.05.01"})
	var done interactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !done.Done {
		t.Fatal("interaction not completed")
	}
	if !strings.Contains(done.Text, "총 근무: 7시간") {
		t.Errorf("summary = %q, want 7시간 total", done.Text)
	}

	// A finished session is gone.
	rec = postJSON(t, router, path, interactionRequest{Value: "2023.05.01"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("finished session status = %d, want 404", rec.Code)
	}
}

func TestLeaveBalanceEndpoint(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	sendMessage(t, router, "//연차 Kim 2023.06.15", "U1")

	req := httptest.NewRequest(http.MethodGet, "/leave/Kim/balance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp balanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Entries) != 1 {
		t.Errorf("balance = %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/leave/Nobody/balance", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing actor status = %d, want 404", rec.Code)
	}
}

func TestExportEndpoints(t *testing.T) {
	h := newTestHandler(t)
	router := h.Router()

	sendMessage(t, router, "Kim 2023.05.01 09:00:00 : 출근", "U1")

	rec := postJSON(t, router, "/exports", exportRequest{Actor: "admin"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start export status = %d, body %s", rec.Code, rec.Body.String())
	}
	var job export.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}

	statusPath := "/exports/" + job.ID.String()
	deadline := time.Now().Add(5 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, statusPath, nil)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status endpoint = %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if job.Status == export.Succeeded || job.Status == export.Failed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("export stuck in %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Status != export.Succeeded {
		t.Fatalf("export status = %s, error %q", job.Status, job.ErrMessage)
	}

	req := httptest.NewRequest(http.MethodGet, statusPath+"/archive", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("archive download status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/exports/unknown", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", rec.Code)
	}
}
