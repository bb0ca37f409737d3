package identity

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/pix-deposit/internal/taxid"
)

// NewSandbox serves lookups locally. Known numbers answer with their name, any
// other valid CPF answers with fallbackName.
func NewSandbox(known map[string]string, fallbackName string) http.Handler {
	r := chi.NewRouter()
	r.Get("/{token}/{package}/{cpf}", func(w http.ResponseWriter, r *http.Request) {
		cpf := taxid.Strip(chi.URLParam(r, "cpf"))
		w.Header().Set("Content-Type", "application/json")

		name, ok := known[cpf]
		if !ok && taxid.Valid(cpf) {
			name, ok = fallbackName, fallbackName != ""
		}
		if !ok {
			_ = json.NewEncoder(w).Encode(lookupResponse{Status: 0, Error: "CPF inválido"})
			return
		}
		_ = json.NewEncoder(w).Encode(lookupResponse{Name: name, Status: 1})
	})
	return r
}
