package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/avelinc/edgegate/internal/store"
)

// maxDocumentSize bounds admin request bodies. Route documents are small;
// anything near this limit is abuse or a mistake.
const maxDocumentSize = 1 << 20

// AdminHandler serves the authenticated control surface: read/replace the
// route table and rotate the shared secret.
type AdminHandler struct {
	st *store.Store
}

// NewAdminHandler creates the admin API over the given store.
func NewAdminHandler(st *store.Store) *AdminHandler {
	return &AdminHandler{st: st}
}

// GetRoutes returns the persisted document verbatim, credential included:
// the admin surface is the trusted editor of the whole document.
func (h *AdminHandler) GetRoutes(w http.ResponseWriter, r *http.Request) {
	raw, err := h.st.RawDocument()
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("cannot read routing document")
		WriteError(w, http.StatusInternalServerError, errTypePersistence, "cannot read routing document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// PostRoutes replaces the whole route table. The body must carry a
// default_backend field and a rules list; the document is validated
// atomically and either fully applied (persist, then swap) or fully
// rejected with the state untouched. Any admin_password in the body is
// ignored: the credential only changes via explicit rotation.
func (h *AdminHandler) PostRoutes(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		WriteError(w, http.StatusBadRequest, errTypeValidation, "cannot read request body")
		return
	}

	if !gjson.ValidBytes(body) {
		WriteError(w, http.StatusBadRequest, errTypeValidation, "body is not valid JSON")
		return
	}
	// Key presence is checked on the raw body: an absent rules list and an
	// empty one are different mistakes.
	if !gjson.GetBytes(body, "default_backend").Exists() {
		WriteError(w, http.StatusBadRequest, errTypeValidation, "default_backend is required")
		return
	}
	if rules := gjson.GetBytes(body, "rules"); !rules.Exists() || !rules.IsArray() {
		WriteError(w, http.StatusBadRequest, errTypeValidation, "rules must be present and a list")
		return
	}

	var doc store.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		WriteError(w, http.StatusBadRequest, errTypeValidation, "malformed document: "+err.Error())
		return
	}

	if err := h.st.Replace(&doc); err != nil {
		if store.IsValidation(err) {
			WriteError(w, http.StatusBadRequest, errTypeValidation, err.Error())
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("cannot persist routing document")
		WriteError(w, http.StatusInternalServerError, errTypePersistence, "cannot persist routing document")
		return
	}

	zerolog.Ctx(r.Context()).Info().Int("rules", len(doc.Rules)).Msg("route table replaced")
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type passwordChange struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// PostPassword rotates the shared secret. The old-password check is the
// authentication for this endpoint; no header is required. The rotation is
// effective for the very next request.
func (h *AdminHandler) PostPassword(w http.ResponseWriter, r *http.Request) {
	var change passwordChange
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentSize)).Decode(&change); err != nil {
		WriteError(w, http.StatusBadRequest, errTypeValidation, "malformed password change request")
		return
	}
	if change.NewPassword == "" {
		WriteError(w, http.StatusBadRequest, errTypeValidation, "new_password is required")
		return
	}

	if err := h.st.Rotate(change.OldPassword, change.NewPassword); err != nil {
		if errors.Is(err, store.ErrBadCredential) {
			failAuth(w, r, "current password does not match")
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("cannot persist rotated credential")
		WriteError(w, http.StatusInternalServerError, errTypePersistence, "cannot persist rotated credential")
		return
	}

	zerolog.Ctx(r.Context()).Info().Msg("admin password rotated")
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
