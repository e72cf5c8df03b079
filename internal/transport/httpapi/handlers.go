package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "civicdesk/internal/domain/grievance"
	"civicdesk/internal/infrastructure/zones"
	grievanceuc "civicdesk/internal/usecase/grievance"
)

// multipartMemory is how much of a form is held in memory before spilling to temp files.
const multipartMemory = 8 << 20

type resolveRequest struct {
	AdminReply string `json:"adminReply"`
}

func (h *handler) submitText(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	defer cleanupForm(r)

	image, closeImage, err := formAttachment(r, "image")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeImage()

	record, err := h.svc.SubmitText(r.Context(), grievanceuc.SubmitTextInput{
		CitizenName:    r.FormValue("citizenName"),
		Area:           r.FormValue("area"),
		Description:    r.FormValue("description"),
		Image:          image,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
		Actor:          r.FormValue("citizenName"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, record)
}

func (h *handler) submitAudio(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	defer cleanupForm(r)

	audio, closeAudio, err := formAttachment(r, "audio")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeAudio()
	if audio == nil {
		writeFailure(w, http.StatusBadRequest, domain.KindValidation, "No audio file uploaded")
		return
	}

	image, closeImage, err := formAttachment(r, "image")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer closeImage()

	record, err := h.svc.SubmitAudio(r.Context(), grievanceuc.SubmitAudioInput{
		CitizenName:    r.FormValue("citizenName"),
		Area:           r.FormValue("area"),
		Audio:          audio,
		Image:          image,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
		Actor:          r.FormValue("citizenName"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, record)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	items, err := h.svc.List(r.Context(), grievanceuc.ListFilter{
		Status:      query.Get("status"),
		CitizenName: query.Get("citizenName"),
		Area:        query.Get("area"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Grievance{}
	}
	writeData(w, items)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, record)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeData(w, events)
}

func (h *handler) resolve(w http.ResponseWriter, r *http.Request) {
	var body resolveRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := decoder.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, http.StatusBadRequest, domain.KindValidation, "invalid json body")
		return
	}

	record, err := h.svc.Resolve(r.Context(), grievanceuc.ResolveInput{
		ID:         chi.URLParam(r, "id"),
		AdminReply: body.AdminReply,
		Actor:      r.Header.Get(OperatorHeader),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, record)
}

func (h *handler) reject(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.Reject(r.Context(), grievanceuc.RejectInput{
		ID:    chi.URLParam(r, "id"),
		Actor: r.Header.Get(OperatorHeader),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, record)
}

func (h *handler) listZones(w http.ResponseWriter, _ *http.Request) {
	if h.zones == nil {
		writeData(w, zones.DefaultZones())
		return
	}
	writeData(w, h.zones.List())
}

func (h *handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, domain.KindValidation, "upload exceeds size limit")
			return false
		}
		writeFailure(w, http.StatusBadRequest, domain.KindValidation, "expected multipart/form-data body")
		return false
	}
	return true
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

// formAttachment returns nil when the field is absent or the file is empty.
func formAttachment(r *http.Request, field string) (*grievanceuc.Attachment, func(), error) {
	noop := func() {}
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, domain.ValidationError("read %s upload: %v", field, err)
	}
	if header.Size == 0 {
		_ = file.Close()
		return nil, noop, nil
	}
	return &grievanceuc.Attachment{
		Filename:    header.Filename,
		ContentType: contentType(header),
		Body:        file,
	}, func() { _ = file.Close() }, nil
}

func contentType(header *multipart.FileHeader) string {
	return strings.TrimSpace(header.Header.Get("Content-Type"))
}
