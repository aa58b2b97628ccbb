package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/yourorg/attendbot/internal/access"
	"github.com/yourorg/attendbot/internal/command"
	"github.com/yourorg/attendbot/internal/export"
	"github.com/yourorg/attendbot/internal/identity"
	"github.com/yourorg/attendbot/internal/leave"
	"github.com/yourorg/attendbot/internal/ledger"
)

// Reply texts that do not come from the command parser.
const (
	msgNoAccessHistory = "해당 ID에 대한 기록 존재하지 않음"
	msgNoLeaveHistory  = "연차 사용 내역 없음"
	msgLookupFailed    = "오류: 사용자 정보를 확인할 수 없습니다."
	msgInternal        = "오류: 처리 중 문제가 발생했습니다. 다시 시도해주세요."
	msgSortDone        = "연차 장부 정렬 완료"
	promptScope        = "조회 범위 선택"
)

// Handler is the HTTP boundary: it consumes inbound chat messages and the
// interactive menu flow, and renders summaries into reply text. Everything
// past this boundary is plain data.
type Handler struct {
	access   *access.Service
	leave    *leave.Service
	exports  *export.Service
	resolver identity.Resolver
	sessions *Sessions
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandler(accessSvc *access.Service, leaveSvc *leave.Service, exportSvc *export.Service, resolver identity.Resolver, sessions *Sessions, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		access:   accessSvc,
		leave:    leaveSvc,
		exports:  exportSvc,
		resolver: resolver,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/messages", h.handleMessage)
	r.Post("/interactions", h.startInteraction)
	r.Post("/interactions/{id}", h.advanceInteraction)
	r.Get("/leave/{actor}/balance", h.leaveBalance)
	r.Post("/exports", h.startExport)
	r.Get("/exports/{id}", h.exportStatus)
	r.Get("/exports/{id}/archive", h.exportArchive)
	r.Post("/exports/{id}/cancel", h.cancelExport)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

type inboundMessage struct {
	Text              string `json:"text"`
	SenderHandle      string `json:"senderHandle"`
	SentAtUnixSeconds int64  `json:"sentAtUnixSeconds"`
}

type reply struct {
	Text string `json:"text"`
}

type messageResponse struct {
	Recorded  bool    `json:"recorded"`
	Responses []reply `json:"responses"`
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(r)
	logger := h.logger.With("corrId", corrID)

	msg, err := decodeMessage(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, corrID, map[string]string{"code": "BAD_JSON", "message": err.Error()})
		return
	}

	if command.IsCommand(msg.Text) {
		texts := h.runCommand(r.Context(), logger, msg)
		writeJSON(w, http.StatusOK, corrID, messageResponse{Responses: replies(texts)})
		return
	}

	recorded, err := h.access.HandleMessage(r.Context(), access.Message{
		Text:         msg.Text,
		SenderHandle: msg.SenderHandle,
		SentAt:       msg.SentAtUnixSeconds,
	})
	if err != nil {
		// An unattributable event is dropped, not failed: the transport
		// retrying the delivery would not help.
		logger.Warn("event not recorded", "error", err)
		writeJSON(w, http.StatusOK, corrID, messageResponse{})
		return
	}
	writeJSON(w, http.StatusOK, corrID, messageResponse{Recorded: recorded})
}

// runCommand dispatches one parsed command and returns the reply texts for
// the sender. Validation failures become usage replies, never errors.
func (h *Handler) runCommand(ctx context.Context, logger *slog.Logger, msg inboundMessage) []string {
	cmd, ok, err := command.Parse(msg.Text)
	if err != nil {
		var verr command.ValidationError
		if errors.As(err, &verr) {
			return []string{verr.Message}
		}
		logger.Error("command parse failed", "error", err)
		return []string{msgInternal}
	}
	if !ok {
		return []string{command.UsageScope}
	}

	switch {
	case cmd.Query != nil:
		return []string{h.runQuery(ctx, logger, msg.SenderHandle, *cmd.Query)}
	case cmd.LeaveBalance:
		return []string{h.runLeaveBalance(ctx, logger, msg.SenderHandle)}
	case cmd.Leave != nil:
		return []string{h.runLeaveApply(logger, *cmd.Leave)}
	case cmd.Sort:
		if err := h.leave.ResortAll(); err != nil {
			logger.Error("resort all failed", "error", err)
			return []string{msgInternal}
		}
		return []string{msgSortDone}
	case cmd.Help:
		return []string{command.HelpText}
	}
	return []string{command.UsageScope}
}

func (h *Handler) runQuery(ctx context.Context, logger *slog.Logger, senderHandle string, q command.QuerySpec) string {
	sum, err := h.access.Query(ctx, senderHandle, q, h.now())
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			return msgNoAccessHistory
		case isLookupError(err):
			return msgLookupFailed
		default:
			logger.Error("query failed", "error", err)
			return msgInternal
		}
	}
	return RenderSummary(sum)
}

func (h *Handler) runLeaveBalance(ctx context.Context, logger *slog.Logger, senderHandle string) string {
	name, err := h.resolver.Resolve(ctx, senderHandle)
	if err != nil {
		return msgLookupFailed
	}
	bal, err := h.leave.Balance(name)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return msgNoLeaveHistory
		}
		logger.Error("balance query failed", "error", err)
		return msgInternal
	}
	return renderBalance(bal)
}

func (h *Handler) runLeaveApply(logger *slog.Logger, spec command.LeaveSpec) string {
	entry, err := h.leave.Apply(spec)
	if err != nil {
		var dup leave.DuplicateEntryError
		if errors.As(err, &dup) {
			return dup.Error()
		}
		logger.Error("leave apply failed", "error", err)
		return msgInternal
	}
	return fmt.Sprintf("[%s] %d년 %d월 %d일에 %s 사용 신청", entry.Name, entry.Year, entry.Month, entry.Day, entry.Type)
}

// RenderSummary turns an aggregation result into the reply text the UI
// forwards verbatim.
func RenderSummary(sum access.Summary) string {
	var b strings.Builder
	b.WriteString(sum.Scope.Label() + " 조회\n\n")
	if sum.Scope == command.Daily {
		parts := []string{"총 근무: " + sum.TotalDurationLabel}
		if sum.CheckInLabel != "" {
			parts = append(parts, "출근: "+sum.CheckInLabel)
		}
		if sum.CheckOutLabel != "" {
			parts = append(parts, "퇴근: "+sum.CheckOutLabel)
		} else if sum.RemainingLabel != "" {
			parts = append(parts, sum.RemainingLabel)
		}
		b.WriteString(strings.Join(parts, ", "))
	} else {
		b.WriteString("총 근무: " + sum.TotalDurationLabel)
		if sum.StepOutLabel != "" {
			b.WriteString(", 외출: " + sum.StepOutLabel)
		}
	}
	b.WriteString("\n\n")
	for _, line := range sum.Lines {
		b.WriteString(line + "\n")
	}
	return b.String()
}

func renderBalance(bal leave.BalanceSummary) string {
	var b strings.Builder
	b.WriteString("연차 사용 내역 조회\n")
	b.WriteString(fmt.Sprintf("총 사용 횟수 : %v\n", bal.Total))
	for _, e := range bal.Entries {
		b.WriteString(fmt.Sprintf("\t%d년 %d월 %d일: %s\n", e.Year, e.Month, e.Day, e.Type))
	}
	return b.String()
}

type interactionRequest struct {
	SenderHandle string `json:"senderHandle,omitempty"`
	Value        string `json:"value,omitempty"`
}

type interactionResponse struct {
	SessionID openapi_types.UUID `json:"sessionId"`
	Prompt    string             `json:"prompt,omitempty"`
	Options   []string           `json:"options,omitempty"`
	Done      bool               `json:"done"`
	Text      string             `json:"text,omitempty"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

func (h *Handler) startInteraction(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(r)
	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SenderHandle == "" {
		writeJSON(w, http.StatusBadRequest, corrID, map[string]string{"code": "BAD_REQUEST", "message": "senderHandle is required"})
		return
	}
	sess := h.sessions.Open(req.SenderHandle)
	writeJSON(w, http.StatusCreated, corrID, interactionResponse{
		SessionID: sess.ID,
		Prompt:    promptScope,
		Options:   []string{command.ScopeLabelDaily, command.ScopeLabelWeekly, command.ScopeLabelMonthly},
		ExpiresAt: sess.ExpiresAt,
	})
}

func (h *Handler) advanceInteraction(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(r)
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, corrID, map[string]string{"code": "NOT_FOUND", "message": "unknown session"})
		return
	}
	sess, ok := h.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, corrID, map[string]string{"code": "NOT_FOUND", "message": "unknown or expired session"})
		return
	}
	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == "" {
		writeJSON(w, http.StatusBadRequest, corrID, map[string]string{"code": "BAD_REQUEST", "message": "value is required"})
		return
	}

	if sess.Scope == 0 {
		scope, ok := scopeForLabel(req.Value)
		if !ok {
			writeJSON(w, http.StatusOK, corrID, interactionResponse{
				SessionID: sess.ID,
				Prompt:    promptScope,
				Options:   []string{command.ScopeLabelDaily, command.ScopeLabelWeekly, command.ScopeLabelMonthly},
				Text:      command.UsageScope,
				ExpiresAt: sess.ExpiresAt,
			})
			return
		}
		h.sessions.SetScope(id, scope)
		writeJSON(w, http.StatusOK, corrID, interactionResponse{
			SessionID: sess.ID,
			Prompt:    dateUsageFor(scope),
			ExpiresAt: sess.ExpiresAt,
		})
		return
	}

	spec, err := command.ParseQuery(sess.Scope.Label(), req.Value)
	if err != nil {
		var verr command.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusOK, corrID, interactionResponse{
				SessionID: sess.ID,
				Prompt:    verr.Message,
				ExpiresAt: sess.ExpiresAt,
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, corrID, map[string]string{"code": "INTERNAL_ERROR", "message": err.Error()})
		return
	}

	text := h.runQuery(r.Context(), h.logger.With("corrId", corrID), sess.SenderHandle, *spec)
	h.sessions.Close(id)
	writeJSON(w, http.StatusOK, corrID, interactionResponse{
		SessionID: sess.ID,
		Done:      true,
		Text:      text,
		ExpiresAt: sess.ExpiresAt,
	})
}

type balanceEntry struct {
	Date openapi_types.Date `json:"date"`
	Type string             `json:"type"`
}

type balanceResponse struct {
	Actor   string         `json:"actor"`
	Total   float64        `json:"total"`
	Entries []balanceEntry `json:"entries"`
}

// leaveBalance is the structured query surface for the external UI; the
// chat flow uses the text rendering instead.
func (h *Handler) leaveBalance(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(r)
	actor := chi.URLParam(r, "actor")
	bal, err := h.leave.Balance(actor)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, corrID, map[string]string{"code": "NOT_FOUND", "message": msgNoLeaveHistory})
			return
		}
		writeJSON(w, http.StatusInternalServerError, corrID, map[string]string{"code": "INTERNAL_ERROR", "message": err.Error()})
		return
	}
	resp := balanceResponse{Actor: actor, Total: bal.Total}
	for _, e := range bal.Entries {
		resp.Entries = append(resp.Entries, balanceEntry{
			Date: openapi_types.Date{Time: time.Date(e.Year, time.Month(e.Month), e.Day, 0, 0, 0, 0, time.UTC)},
			Type: e.Type,
		})
	}
	writeJSON(w, http.StatusOK, corrID, resp)
}

type exportRequest struct {
	Actor string `json:"actor"`
}

// startExport kicks off a background archive of all ledger files. The
// archive endpoints are an administrative surface, not part of the chat
// flow.
func (h *Handler) startExport(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(r)
	var req exportRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Actor == "" {
		req.Actor = "unknown"
	}

	job, err := h.exports.Enqueue(req.Actor)
	if err != nil {
		var conflict export.ConflictError
		if errors.As(err, &conflict) {
			writeJSON(w, http.StatusConflict, corrID, map[string]string{"code": "EXPORT_IN_PROGRESS", "jobId": conflict.JobID})
			return
		}
		var limited export.RateLimitError
		if errors.As(err, &limited) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(limited.RetryAfter.Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, corrID, map[string]string{"code": "RATE_LIMITED"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, corrID, map[string]string{"code": "INTERNAL_ERROR", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, corrID, job)
}

func (h *Handler) exportStatus(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(r)
	job, err := h.exports.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, corrID, map[string]string{"code": "NOT_FOUND", "message": "unknown export job"})
		return
	}
	writeJSON(w, http.StatusOK, corrID, job)
}

func (h *Handler) exportArchive(w http.ResponseWriter, r *http.Request) {
	path, err := h.exports.ArchivePath(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, correlationID(r), map[string]string{"code": "NOT_FOUND", "message": "archive not available"})
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	http.ServeFile(w, r, path)
}

func (h *Handler) cancelExport(w http.ResponseWriter, r *http.Request) {
	corrID := correlationID(r)
	var req exportRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Actor == "" {
		req.Actor = "unknown"
	}

	job, err := h.exports.Cancel(req.Actor, chi.URLParam(r, "id"))
	if err != nil {
		var conflict export.ConflictError
		if errors.As(err, &conflict) {
			writeJSON(w, http.StatusConflict, corrID, job)
			return
		}
		writeJSON(w, http.StatusNotFound, corrID, map[string]string{"code": "NOT_FOUND", "message": "unknown export job"})
		return
	}
	writeJSON(w, http.StatusOK, corrID, job)
}

func scopeForLabel(label string) (command.Scope, bool) {
	switch label {
	case command.ScopeLabelDaily:
		return command.Daily, true
	case command.ScopeLabelWeekly:
		return command.Weekly, true
	case command.ScopeLabelMonthly:
		return command.Monthly, true
	}
	return 0, false
}

func dateUsageFor(scope command.Scope) string {
	switch scope {
	case command.Daily:
		return command.UsageDaily
	case command.Weekly:
		return command.UsageWeekly
	default:
		return command.UsageMonthly
	}
}

func isLookupError(err error) bool {
	var lookupErr identity.LookupError
	return errors.As(err, &lookupErr)
}

func decodeMessage(body io.ReadCloser) (inboundMessage, error) {
	defer body.Close()
	var msg inboundMessage
	if err := json.NewDecoder(body).Decode(&msg); err != nil {
		return msg, err
	}
	return msg, nil
}

func replies(texts []string) []reply {
	out := make([]reply, 0, len(texts))
	for _, t := range texts {
		out = append(out, reply{Text: t})
	}
	return out
}

func correlationID(r *http.Request) string {
	if v := r.Header.Get("X-Correlation-Id"); v != "" {
		return v
	}
	return uuid.New().String()
}

func writeJSON(w http.ResponseWriter, status int, corrID string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if corrID != "" {
		w.Header().Set("X-Correlation-Id", corrID)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
