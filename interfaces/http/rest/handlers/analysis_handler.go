package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"scribe/application/services"
	"scribe/domain/content"
	"scribe/domain/core/entities"
	"scribe/pkg/common"
	pkgerrors "scribe/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultProgressInterval is how often the progress stream re-reads the
// whiteboard.
const DefaultProgressInterval = time.Second

// AnalysisHandler runs analyses and serves their results
type AnalysisHandler struct {
	analysis     *services.AnalysisService
	pollInterval time.Duration
	errors       *pkgerrors.ErrorHandler
	logger       *zap.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analysis *services.AnalysisService, pollInterval time.Duration, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *AnalysisHandler {
	if pollInterval <= 0 {
		pollInterval = DefaultProgressInterval
	}
	return &AnalysisHandler{
		analysis:     analysis,
		pollInterval: pollInterval,
		errors:       errs,
		logger:       logger,
	}
}

// AnalyzeRequest is the body of POST /api/analyze
type AnalyzeRequest struct {
	WhiteboardID string `json:"whiteboard_id" validate:"required"`
}

// ContentResponse is an analyzed whiteboard's content
type ContentResponse struct {
	WhiteboardID      string                     `json:"whiteboard_id"`
	Status            string                     `json:"status"`
	RawText           string                     `json:"raw_text"`
	StructuredContent *content.StructuredContent `json:"structured_content"`
	ConfidenceScore   float64                    `json:"confidence_score"`
}

// ProgressEvent is one message on the progress stream
type ProgressEvent struct {
	Status     string              `json:"status"`
	Progress   int                 `json:"progress"`
	Message    string              `json:"message"`
	Error      string              `json:"error,omitempty"`
	Whiteboard *WhiteboardResponse `json:"whiteboard,omitempty"`
}

// Analyze handles POST /api/analyze. The request blocks until the vendor
// has answered.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req AnalyzeRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	wb, err := h.analysis.Analyze(r.Context(), user.UserID, req.WhiteboardID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, newWhiteboardResponse(wb))
}

// Content handles GET /api/content/{whiteboardID}
func (h *AnalysisHandler) Content(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	wb, sc, err := h.analysis.Content(r.Context(), user.UserID, chi.URLParam(r, "whiteboardID"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ContentResponse{
		WhiteboardID:      wb.ID,
		Status:            string(wb.ProcessingStatus),
		RawText:           wb.ExtractedText,
		StructuredContent: sc,
		ConfidenceScore:   wb.ConfidenceScore,
	})
}

// Progress handles GET /api/whiteboards/{whiteboardID}/progress as a
// server-sent event stream. An event is written whenever the status or the
// percentage changes; the stream ends with the terminal state.
func (h *AnalysisHandler) Progress(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	id := chi.URLParam(r, "whiteboardID")

	// Ownership and existence are reported as normal JSON errors.
	wb, err := h.analysis.Whiteboard(r.Context(), user.UserID, id)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("streaming is not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var lastStatus entities.ProcessingStatus
	lastProgress := -1
	for {
		if wb.ProcessingStatus.Terminal() {
			h.writeEvent(w, flusher, finalEvent(wb))
			return
		}
		if wb.ProcessingStatus != lastStatus || wb.Progress != lastProgress {
			h.writeEvent(w, flusher, ProgressEvent{
				Status:   string(wb.ProcessingStatus),
				Progress: wb.Progress,
				Message:  wb.ProgressMessage(),
			})
			lastStatus, lastProgress = wb.ProcessingStatus, wb.Progress
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		next, err := h.analysis.Whiteboard(r.Context(), user.UserID, id)
		if err != nil {
			h.logger.Warn("Progress stream lost its whiteboard",
				zap.String("whiteboardID", id),
				zap.Error(err),
			)
			h.writeEvent(w, flusher, ProgressEvent{
				Status:  string(entities.WhiteboardError),
				Message: "whiteboard is no longer available",
				Error:   "not_found",
			})
			return
		}
		wb = next
	}
}

func (h *AnalysisHandler) writeEvent(w http.ResponseWriter, flusher http.Flusher, ev ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode progress event", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

func finalEvent(wb *entities.Whiteboard) ProgressEvent {
	resp := newWhiteboardResponse(wb)
	return ProgressEvent{
		Status:     string(wb.ProcessingStatus),
		Progress:   wb.Progress,
		Message:    wb.ProgressMessage(),
		Error:      wb.ErrorMessage,
		Whiteboard: &resp,
	}
}
