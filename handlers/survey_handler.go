// handlers/survey_handler.go
package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gewnthar/surveyetl/models"
	"github.com/gewnthar/surveyetl/utils"
)

type surveyResponse struct {
	models.Descriptor
	State   string `json:"state"`
	Archive string `json:"archive"`
}

// SurveysHandler lists the catalog.
// Expects GET /api/surveys, with ?downloaded=true for the local archives.
func (h *Handler) SurveysHandler(w http.ResponseWriter, r *http.Request) {
	downloaded := false
	if v := r.URL.Query().Get("downloaded"); v != "" {
		var err error
		if downloaded, err = strconv.ParseBool(v); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid 'downloaded' parameter. Use true or false.")
			return
		}
	}

	surveys, err := h.pipeline.Surveys(r.Context(), downloaded)
	if err != nil && len(surveys) == 0 {
		respondWithError(w, http.StatusBadGateway, fmt.Sprintf("Failed to list surveys: %v", err))
		return
	}
	if err != nil {
		log.Printf("WARN Handler: Survey listing is partial: %v\n", err)
	}

	out := make([]surveyResponse, 0, len(surveys))
	for _, s := range surveys {
		out = append(out, surveyResponse{Descriptor: s.Descriptor, State: s.State().String(), Archive: s.ArchivePath()})
	}
	respondWithJSON(w, http.StatusOK, out)
}

// MetadataHandler returns the metadata table.
// Expects GET /api/metadata, optionally filtered with ?year=YYYY.
func (h *Handler) MetadataHandler(w http.ResponseWriter, r *http.Request) {
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		var err error
		if year, err = utils.ParseYear(v); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid year format. Use YYYY. Error: "+err.Error())
			return
		}
	}

	meta, err := h.pipeline.Metadata(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read metadata: %v", err))
		return
	}

	out := make([]models.ColumnMetadata, 0, len(meta)) // always an array, even if empty
	for _, m := range meta {
		if year == 0 || m.Year == year {
			out = append(out, m)
		}
	}
	respondWithJSON(w, http.StatusOK, out)
}
