package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/ttleague/livesync/internal/domain/livematch"
	"github.com/ttleague/livesync/internal/domain/scoresheet"
	"github.com/ttleague/livesync/internal/interfaces/stream"
	"github.com/ttleague/livesync/internal/platform/id"
	"github.com/ttleague/livesync/internal/platform/logging"
	"github.com/ttleague/livesync/internal/usecase"
)

type Handler struct {
	live        *usecase.LiveMatchService
	submissions *usecase.SubmissionService
	hub         *stream.Hub
	ids         id.Generator
	connBuffer  int
	logger      *logging.Logger
	validator   *validator.Validate
}

func NewHandler(
	live *usecase.LiveMatchService,
	submissions *usecase.SubmissionService,
	hub *stream.Hub,
	connBuffer int,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if connBuffer < 1 {
		connBuffer = 16
	}

	return &Handler{
		live:        live,
		submissions: submissions,
		hub:         hub,
		ids:         id.NewRandomGenerator(),
		connBuffer:  connBuffer,
		logger:      logger,
		validator:   validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitMatchRequest struct {
	Result    scoresheet.State  `json:"result" validate:"required"`
	OldResult *scoresheet.State `json:"oldResult"`
}

// SubmitMatch ingests one incremental edit from a reporting client.
func (h *Handler) SubmitMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SubmitMatch")
	defer span.End()

	var req submitMatchRequest
	decoder := jsoniter.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	version, err := h.live.Ingest(ctx, req.Result, req.OldResult)
	if err != nil {
		h.logger.WarnContext(ctx, "submit match failed", "match_id", req.Result.ID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{"ok": true, "version": version})
}

type versionedMatch struct {
	Data    scoresheet.State `json:"data"`
	Version uint64           `json:"version"`
}

type versionedList struct {
	Data    []livematch.Entry `json:"data"`
	Version uint64            `json:"version"`
}

type getMatchResponse struct {
	Match *versionedMatch `json:"match,omitempty"`
	List  *versionedList  `json:"list,omitempty"`
}

// GetMatch is the poll fallback for clients without a working event stream.
// The caller supplies the versions it already has; whatever is still current
// is omitted from the response.
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatch")
	defer span.End()

	query := r.URL.Query()
	matchID := strings.TrimSpace(query.Get("mId"))

	matchVersion, hasMatchVersion, err := parseVersionParam(query.Get("mVer"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	listVersion, hasListVersion, err := parseVersionParam(query.Get("lVer"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var resp getMatchResponse

	entries, currentListVersion := h.live.SnapshotList()
	if !hasListVersion || currentListVersion > listVersion {
		resp.List = &versionedList{Data: entries, Version: currentListVersion}
	}

	if matchID != "" {
		if match, ok := h.live.Get(matchID); ok {
			if !hasMatchVersion || match.Version > matchVersion {
				resp.Match = &versionedMatch{Data: match.State, Version: match.Version}
			}
		}
	}

	writeSuccess(ctx, w, http.StatusOK, resp)
}

type finalizeMatchRequest struct {
	Status string `json:"status" validate:"required,oneof=submitted final cancelled"`
}

// FinalizeMatch is the internal hook called once the report was committed to
// the system of record.
func (h *Handler) FinalizeMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.FinalizeMatch")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))

	var req finalizeMatchRequest
	decoder := jsoniter.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := h.submissions.Submit(ctx, matchID, req.Status); err != nil {
		h.logger.WarnContext(ctx, "finalize match failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) newStreamConn(connID, matchID string) *stream.Conn {
	return stream.NewConn(connID, matchID, h.connBuffer)
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func parseVersionParam(raw string) (uint64, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	version, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: version %q is not a number", usecase.ErrInvalidInput, raw)
	}
	return version, true, nil
}
