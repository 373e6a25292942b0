package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/strata/internal/election"
	"github.com/roach88/strata/internal/ir"
	"github.com/roach88/strata/internal/projection"
)

// DomainView describes one configured policy.
type DomainView struct {
	Name     string   `json:"name"`
	Types    []string `json:"types"`
	Grouping string   `json:"grouping"`
	Governed bool     `json:"governed"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newOKResponse(map[string]string{"status": "healthy"}))
}

func (s *Server) handleDomains(w http.ResponseWriter, _ *http.Request) {
	specs := s.backend.Policies().Specs()
	out := make([]DomainView, len(specs))
	for i, spec := range specs {
		out[i] = DomainView{
			Name:     spec.Name,
			Types:    spec.Types,
			Grouping: spec.Grouping,
			Governed: spec.Governance != nil,
		}
	}
	writeJSON(w, http.StatusOK, newOKResponse(out))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, newErrorResponse("INVALID_QUERY", err.Error()))
		return
	}
	entities, err := s.backend.ListEntities(r.Context(), chi.URLParam(r, "domain"), f)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]EntityView, len(entities))
	for i, e := range entities {
		out[i] = newEntityView(e)
	}
	writeJSON(w, http.StatusOK, newOKResponse(out))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := s.backend.GetEntity(r.Context(), chi.URLParam(r, "domain"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOKResponse(newEntityView(e)))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.backend.History(r.Context(), chi.URLParam(r, "domain"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOKResponse(records))
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	author, fields, ok := readMutation(w, r, true)
	if !ok {
		return
	}
	rec, err := s.backend.Publish(r.Context(), chi.URLParam(r, "domain"), author, fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOKResponse(rec))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	author, fields, ok := readMutation(w, r, true)
	if !ok {
		return
	}
	rec, err := s.backend.PublishEdit(r.Context(), chi.URLParam(r, "domain"), author, chi.URLParam(r, "id"), fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOKResponse(rec))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	author, _, ok := readMutation(w, r, false)
	if !ok {
		return
	}
	rec, err := s.backend.DeleteEntity(r.Context(), chi.URLParam(r, "domain"), author, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOKResponse(rec))
}

func (s *Server) handleElection(w http.ResponseWriter, r *http.Request) {
	method := election.MethodDemocracy
	if raw := r.URL.Query().Get("method"); raw != "" {
		m, err := election.ParseMethod(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, newErrorResponse("INVALID_QUERY", err.Error()))
			return
		}
		method = m
	}
	res, err := s.backend.Election(r.Context(), chi.URLParam(r, "domain"), chi.URLParam(r, "key"), method)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOKResponse(res))
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	now := s.now().UnixMilli()
	if raw := r.URL.Query().Get("now"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, newErrorResponse("INVALID_QUERY", fmt.Sprintf("invalid now: %q", raw)))
			return
		}
		now = n
	}
	res, err := s.backend.Sweep(r.Context(), chi.URLParam(r, "domain"), now)
	if err != nil {
		writeError(w, err)
		return
	}
	if res == nil {
		res = []election.Resolution{}
	}
	writeJSON(w, http.StatusOK, newOKResponse(res))
}

// readMutation extracts the author header and, when withBody is set, the
// JSON field object. It writes the error response itself.
func readMutation(w http.ResponseWriter, r *http.Request, withBody bool) (string, ir.Object, bool) {
	author := r.Header.Get(AuthorHeader)
	if author == "" {
		writeJSON(w, http.StatusUnauthorized, newErrorResponse("MISSING_AUTHOR", AuthorHeader+" header is required"))
		return "", nil, false
	}
	if !withBody {
		return author, nil, true
	}
	var fields ir.Object
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, newErrorResponse("INVALID_BODY", err.Error()))
		return "", nil, false
	}
	return author, fields, true
}

func parseFilter(q url.Values) (projection.Filter, error) {
	f := projection.Filter{
		Author:   q.Get("author"),
		Category: q.Get("category"),
		Statuses: q["status"],
	}
	switch o := projection.Order(q.Get("order")); o {
	case "", projection.OrderRecent, projection.OrderOldest, projection.OrderTop:
		f.Order = o
	default:
		return f, fmt.Errorf("invalid order: %q", o)
	}
	if raw := q.Get("since"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid since: %q", raw)
		}
		f.Since = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit: %q", raw)
		}
		f.Limit = n
	}
	return f, nil
}
