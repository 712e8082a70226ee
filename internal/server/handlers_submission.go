package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"gitlab.com/nandar/payquest/internal/models"
	"gitlab.com/nandar/payquest/internal/verification"
)

type submissionResponse struct {
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	TransactionID int64  `json:"transaction_id,omitempty"`
}

type previewResponse struct {
	WouldApprove bool           `json:"would_approve"`
	Token        string         `json:"token,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Fields       *previewFields `json:"fields,omitempty"`
}

type previewFields struct {
	ReferenceID     string `json:"reference_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Amount          string `json:"amount"`
	TransactionType string `json:"transaction_type"`
}

// parseUpload reads the multipart submission form: a participant_id
// field and a receipt image file.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (int64, []byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return 0, nil, "", false
	}

	participantID, err := strconv.ParseInt(r.FormValue("participant_id"), 10, 64)
	if err != nil || participantID < 1 {
		respondError(w, http.StatusBadRequest, "participant_id is required")
		return 0, nil, "", false
	}

	file, header, err := r.FormFile("receipt")
	if err != nil {
		respondError(w, http.StatusBadRequest, "receipt file is required")
		return 0, nil, "", false
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read receipt file")
		return 0, nil, "", false
	}

	if _, err := s.participants.GetByID(r.Context(), participantID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondError(w, http.StatusNotFound, "unknown participant")
		} else {
			respondError(w, http.StatusInternalServerError, "could not resolve participant")
		}
		return 0, nil, "", false
	}

	return participantID, image, header.Filename, true
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	participantID, image, filename, ok := s.parseUpload(w, r)
	if !ok {
		return
	}

	res := s.verifier.Submit(r.Context(), participantID, image, filename)
	writeVerificationResult(w, res)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	participantID, image, filename, ok := s.parseUpload(w, r)
	if !ok {
		return
	}

	res := s.verifier.Preview(r.Context(), participantID, image, filename)
	resp := previewResponse{
		WouldApprove: res.WouldApprove(),
		Token:        res.Token,
		Reason:       res.Reason,
	}
	if txn := res.Transaction; txn != nil && txn.ParsedFields != nil {
		resp.Fields = &previewFields{
			ReferenceID:     txn.ParsedFields.ReferenceID,
			Date:            txn.ParsedFields.Date,
			Time:            txn.ParsedFields.Time,
			Amount:          txn.ParsedFields.Amount,
			TransactionType: txn.ParsedFields.TransactionType,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	res, err := s.verifier.Confirm(r.Context(), token)
	if err != nil {
		if errors.Is(err, verification.ErrPreviewNotFound) {
			respondError(w, http.StatusNotFound, "preview token is unknown or expired")
			return
		}
		respondError(w, http.StatusInternalServerError, "confirmation failed")
		return
	}
	writeVerificationResult(w, res)
}

// writeVerificationResult maps a pipeline outcome onto an HTTP response.
// Rejections are complete, well-formed outcomes, so they respond with a
// body carrying the reason rather than a bare error.
func writeVerificationResult(w http.ResponseWriter, res *verification.Result) {
	resp := submissionResponse{Reason: res.Reason}
	if res.Transaction != nil {
		resp.TransactionID = res.Transaction.ID
	}

	switch {
	case res.Approved:
		resp.Status = models.StatusApproved
		respondJSON(w, http.StatusOK, resp)
	case res.Reason == models.ReasonDailyLimit:
		resp.Status = models.StatusRejected
		respondJSON(w, http.StatusTooManyRequests, resp)
	default:
		resp.Status = models.StatusRejected
		respondJSON(w, http.StatusUnprocessableEntity, resp)
	}
}
