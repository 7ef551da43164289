package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/username/tradefolio/backend/src/config"
	"github.com/username/tradefolio/backend/src/decoder"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/security/validation"
	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/universal"
	"github.com/username/tradefolio/backend/src/utils"
)

type ImportHandler struct {
	importService services.ImportService
}

func NewImportHandler(service services.ImportService) *ImportHandler {
	return &ImportHandler{importService: service}
}

// HandleImport accepts a multipart upload ("file", optional "locale" and
// "smart" fields) and responds with either a parse result or a
// mapping-confirmation request the UI renders as an editable form.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, config.Cfg.MaxUploadSizeBytes+1))
	if err != nil {
		logger.L.Error("Failed to read uploaded file", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, "Failed to read uploaded file.", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > config.Cfg.MaxUploadSizeBytes {
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	if _, err := validation.ValidateFileContent(data); err != nil {
		logger.L.Warn("File content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := services.ImportRequest{
		File: models.RawFile{
			Name: fileHeader.Filename,
			MIME: clientContentType,
			Data: data,
		},
		Locale:         r.FormValue("locale"),
		ForceUniversal: r.FormValue("smart") == "true",
	}

	logger.L.Info("Processing import request", "filename", fileHeader.Filename, "locale", req.Locale, "smart", req.ForceUniversal)
	result, err := h.importService.ProcessImport(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedFile) || errors.Is(err, decoder.ErrUnsupportedFormat) {
			utils.SendJSONError(w, err.Error(), http.StatusUnsupportedMediaType)
		} else {
			logger.L.Error("Internal error processing import", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the file. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, result)
}

type confirmRequest struct {
	SessionID string                  `json:"sessionId"`
	Mapping   models.UniversalMapping `json:"mapping"`
	Locale    string                  `json:"locale"`
}

// HandleConfirmImport runs the authoritative second pass once the user has
// confirmed (or corrected) the proposed column mapping.
func (h *ImportHandler) HandleConfirmImport(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid JSON body.", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		utils.SendJSONError(w, "sessionId is required.", http.StatusBadRequest)
		return
	}

	result, err := h.importService.ConfirmImport(req.SessionID, req.Mapping, req.Locale)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSessionNotFound):
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, universal.ErrMissingRequiredColumn):
			utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			logger.L.Error("Internal error confirming import", "sessionID", req.SessionID, "error", err)
			utils.SendJSONError(w, "An internal error occurred while confirming the import.", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, result)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("Error encoding JSON response", "error", err)
	}
}
