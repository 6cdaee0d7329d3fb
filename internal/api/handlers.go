package api

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sse"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"autocloud.com/car-insurance-estimator/internal/apperr"
	"autocloud.com/car-insurance-estimator/internal/core"
)

// ReportStreamer is the part of core.Estimator the handlers use.
type ReportStreamer interface {
	EstimateRequest(ctx context.Context, req core.DamageReportRequest) iter.Seq2[string, error]
}

type APIHandler struct {
	estimator      ReportStreamer
	maxUploadBytes int64
	logger         *zap.SugaredLogger
}

func NewAPIHandler(estimator ReportStreamer, maxUploadBytes int64, logger *zap.SugaredLogger) *APIHandler {
	return &APIHandler{
		estimator:      estimator,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

type snapshotEvent struct {
	Report string `json:"report"`
}

type errorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// EstimateHandler accepts a multipart form with an optional "description"
// field and an optional "image" file and streams the growing report as
// Server-Sent Events. Failures before the first snapshot are returned as a
// plain HTTP error; later failures end the stream with an "error" event.
func (h *APIHandler) EstimateHandler(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadBytes {
		http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}

	req := core.DamageReportRequest{Description: r.FormValue("description")}
	img, err := readUpload(r)
	if err != nil {
		h.logger.Warnf("Rejected upload: %v", err)
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	req.Image = img

	id := uuid.NewString()
	ctx := core.WithEstimateID(r.Context(), id)
	w.Header().Set("X-Estimate-ID", id)

	next, stop := iter.Pull2(h.estimator.EstimateRequest(ctx, req))
	defer stop()

	report, err, ok := next()
	if ok && err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	seq := 0
	for ok {
		if err != nil {
			h.writeEvent(w, rc, "error", seq, errorEvent{Kind: apperr.KindOf(err).String(), Message: err.Error()})
			return
		}
		seq++
		if !h.writeEvent(w, rc, "snapshot", seq, snapshotEvent{Report: report}) {
			return
		}
		report, err, ok = next()
	}
	h.writeEvent(w, rc, "done", seq, struct{}{})
}

// writeEvent reports false once the client has gone away or the payload
// cannot be encoded.
func (h *APIHandler) writeEvent(w io.Writer, rc *http.ResponseController, event string, id int, payload any) bool {
	if err := sse.Encode(w, sse.Event{Id: strconv.Itoa(id), Event: event, Data: payload}); err != nil {
		h.logger.Errorf("Failed to encode %s event: %v", event, err)
		return false
	}
	if err := rc.Flush(); err != nil {
		h.logger.Debugf("Flush failed: %v", err)
		return false
	}
	return true
}

func readUpload(r *http.Request) (*core.Image, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File["image"]) == 0 {
		return nil, nil
	}
	f, err := r.MultipartForm.File["image"][0].Open()
	if err != nil {
		return nil, apperr.New(apperr.KindImageEncoding, "open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.New(apperr.KindImageEncoding, "read upload", err)
	}
	if len(data) == 0 {
		// Browsers send an empty part when no file was chosen.
		return nil, nil
	}
	return core.NewImage(data)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
