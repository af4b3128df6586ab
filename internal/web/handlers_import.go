package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/inventory/internal/core"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv; charset=utf-8"
)

// handleImportTemplate downloads the template workbook (format=xlsx|csv).
func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = core.FormatXLSX
	}
	if format != core.FormatXLSX && format != core.FormatCSV {
		respondError(w, r, fmt.Errorf("%w: template format %q", core.ErrUnsupportedFile, format))
		return
	}

	names, err := s.service.CategoryNames(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	data, err := core.BuildTemplate(format, names)
	if err != nil {
		respondError(w, r, err)
		return
	}

	contentType := contentTypeXLSX
	if format == core.FormatCSV {
		contentType = contentTypeCSV
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, core.TemplateFileName(format)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// importUpload is the parsed body of a validate or import request.
type importUpload struct {
	FileName string
	Data     []byte
	Rows     []core.Row
}

// readImportUpload accepts a multipart "file" field or a JSON body of
// {"rows": [...]}.
func (s *Server) readImportUpload(w http.ResponseWriter, r *http.Request) (*importUpload, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		rows, err := core.ParseJSONRows(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return &importUpload{FileName: "rows.json", Rows: rows}, nil
	}

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("parse upload: %w", err)
		}
		return nil, fmt.Errorf("%w: parse upload: %v", errBadRequest, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	rows, err := core.ParseImportFile(header.Filename, data)
	if err != nil {
		return nil, err
	}
	return &importUpload{FileName: header.Filename, Data: data, Rows: rows}, nil
}

// handleValidateImport always answers 200 with the validation report;
// Valid tells the client whether the import may start.
func (s *Server) handleValidateImport(w http.ResponseWriter, r *http.Request) {
	up, err := s.readImportUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	v, err := s.service.ValidateImportRows(r.Context(), up.Rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleStartImport validates the upload and starts a background import of
// the valid rows. Invalid files answer 422 with the validation report.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	up, err := s.readImportUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	v, err := s.service.ValidateImportRows(r.Context(), up.Rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !v.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, v)
		return
	}

	id, err := s.service.StartImport(requestContext(r), core.ImportRequest{
		FileName: up.FileName,
		Data:     up.Data,
		Products: v.Products,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"importId": id,
		"total":    len(v.Products),
		"warnings": v.Warnings,
		"errors":   v.Errors,
	})
}

// handleImportProgress streams progress as Server-Sent Events. The event id
// is the processed record count, so a reconnecting client passing
// lastEventId (or the Last-Event-ID header) skips what it already saw.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	lastSeen := -1
	last := r.URL.Query().Get("lastEventId")
	if last == "" {
		last = r.Header.Get("Last-Event-ID")
	}
	if n, err := strconv.Atoi(last); err == nil {
		lastSeen = n
	}

	updates, err := s.service.SubscribeImport(id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case p, ok := <-updates:
			if !ok {
				res, err := s.service.ImportResultOf(r.Context(), id)
				if err != nil {
					return
				}
				data, _ := json.Marshal(res)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			if p.Phase == core.PhaseRunning && p.Processed <= lastSeen {
				continue
			}
			data, _ := json.Marshal(p)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", p.Processed, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult returns the finished result. While the job runs it
// answers 202 with the current progress unless wait=true.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	progress, err := s.service.ImportProgressOf(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if progress.Phase == core.PhaseRunning && r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, progress)
		return
	}

	res, err := s.service.ImportResultOf(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ImportStatus())
}
