package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	"github.com/slipstreamlabs/recordwatch/internal/service"
)

// SearchHandlers exposes map-search submission and polling.
type SearchHandlers struct {
	Svc *service.SearchService
}

type searchAccepted struct {
	JobID     string             `json:"job_id"`
	Status    model.SearchStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// CreateSearch handles POST /api/searches. An accepted submission returns 202
// with the job id to poll; the sweep itself runs on the search worker.
func (h *SearchHandlers) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSearchRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	record, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, searchAccepted{
		JobID:     record.ID,
		Status:    record.Status,
		CreatedAt: record.CreatedAt,
	})
}

// GetSearch handles GET /api/searches/{job_id}. Expired records read as 404;
// the TTL is the retention contract, not an error.
func (h *SearchHandlers) GetSearch(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     errors.New("job id is required"),
		})
		return
	}

	record, err := h.Svc.Get(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, record)
}
