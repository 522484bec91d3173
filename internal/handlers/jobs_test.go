package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"lingua-backend/internal/models"
)

type stubJobRepo struct {
	jobs map[uuid.UUID]*models.Job
}

func (s *stubJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if j, ok := s.jobs[id]; ok {
		return j, nil
	}
	return nil, errors.New("no rows in result set")
}

func TestJobHandler_GetJob(t *testing.T) {
	owner := uuid.New()
	jobID := uuid.New()
	h := &JobHandler{jobRepo: &stubJobRepo{jobs: map[uuid.UUID]*models.Job{
		jobID: {ID: jobID, UserID: owner, Type: models.JobTypeSourceProcessing, Status: "processing"},
	}}}

	tests := []struct {
		name     string
		id       string
		user     uuid.UUID
		wantCode int
	}{
		{"owner", jobID.String(), owner, http.StatusOK},
		{"other user", jobID.String(), uuid.New(), http.StatusForbidden},
		{"missing", uuid.New().String(), owner, http.StatusNotFound},
		{"malformed id", "not-a-uuid", owner, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+tc.id, nil)
			req = withURLParam(withUser(req, tc.user), "id", tc.id)
			rr := httptest.NewRecorder()
			h.GetJob(rr, req)

			if rr.Code != tc.wantCode {
				t.Errorf("expected status %d, got %d", tc.wantCode, rr.Code)
			}
		})
	}
}
