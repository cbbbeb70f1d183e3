package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/callshield/callshield/pkg/gateway/analyzers"
	"github.com/callshield/callshield/pkg/gateway/apierror"
	"github.com/callshield/callshield/pkg/gateway/enroll"
)

// Enrollment uploads are full reference recordings, not stream frames,
// so the cap is intentionally generous.
const maxEnrollUploadBytes = 32 << 20

// EnrollHandler registers a reference voiceprint for a user from an
// uploaded audio sample.
type EnrollHandler struct {
	Verifier *analyzers.Verifier
}

type enrollResponse struct {
	UserID    string `json:"user_id"`
	Dimension int    `json:"dimension"`
	CreatedAt string `json:"created_at"`
}

func (h EnrollHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEnrollUploadBytes)
	if err := r.ParseMultipartForm(maxEnrollUploadBytes); err != nil {
		writeError(w, r, apierror.TypeInvalidRequest, "invalid multipart form", "")
		return
	}

	userID := strings.TrimSpace(r.FormValue("user_id"))
	if userID == "" {
		writeError(w, r, apierror.TypeInvalidRequest, "user_id is required", "user_id")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apierror.TypeInvalidRequest, "file is required", "file")
		return
	}
	defer file.Close()

	sample, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, apierror.TypeInvalidRequest, "failed to read uploaded file", "file")
		return
	}
	if len(sample) == 0 {
		writeError(w, r, apierror.TypeInvalidRequest, "uploaded file is empty", "file")
		return
	}

	vp, err := h.Verifier.Enroll(r.Context(), userID, sample)
	if err != nil {
		writeError(w, r, apierror.TypeUpstream, "voiceprint enrollment failed", "")
		return
	}

	writeJSON(w, http.StatusCreated, enrollResponse{
		UserID:    vp.UserID,
		Dimension: len(vp.Embedding),
		CreatedAt: vp.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// EnrollStatusHandler reports whether a user has an enrolled voiceprint.
type EnrollStatusHandler struct {
	Store enroll.Store
}

type enrollStatusResponse struct {
	UserID    string `json:"user_id"`
	Enrolled  bool   `json:"enrolled"`
	Dimension int    `json:"dimension,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (h EnrollStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	vp, err := h.Store.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, enroll.ErrNotEnrolled) {
			writeJSON(w, http.StatusOK, enrollStatusResponse{UserID: userID})
			return
		}
		writeError(w, r, apierror.TypeAPI, "failed to read enrollment", "")
		return
	}

	writeJSON(w, http.StatusOK, enrollStatusResponse{
		UserID:    userID,
		Enrolled:  true,
		Dimension: len(vp.Embedding),
		CreatedAt: vp.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// EnrollDeleteHandler removes a user's voiceprint. Unknown users are a
// no-op so the operation is safely retryable.
type EnrollDeleteHandler struct {
	Store enroll.Store
}

func (h EnrollDeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), r.PathValue("user_id")); err != nil {
		writeError(w, r, apierror.TypeAPI, "failed to delete enrollment", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
