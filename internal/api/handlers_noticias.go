package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/classify"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/news"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/store"
)

// paramError is a malformed query parameter; handlers map it to 400.
type paramError struct {
	name, value string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.name, e.value)
}

func intParam(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &paramError{name, raw}
	}
	return n, nil
}

func dateParam(q url.Values, name string) (string, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return "", nil
	}
	if _, err := time.Parse(news.DateLayout, raw); err != nil {
		return "", &paramError{name, raw}
	}
	return raw, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &paramError{"id", raw}
	}
	return id, nil
}

// parseListQuery maps the listing query string onto a store.Query. fecha
// pins both ends of the range; fecha_desde and fecha_hasta override them.
func parseListQuery(q url.Values) (store.Query, error) {
	var out store.Query
	var err error
	if out.Page, err = intParam(q, "page"); err != nil {
		return out, err
	}
	if out.Limit, err = intParam(q, "limit"); err != nil {
		return out, err
	}

	sort, ok := store.ParseSort(q.Get("orden"))
	if !ok {
		return out, &paramError{"orden", q.Get("orden")}
	}
	out.Sort = sort

	out.Source = strings.TrimSpace(q.Get("fuente"))
	out.Category = strings.ToLower(strings.TrimSpace(q.Get("categoria")))
	out.Type = strings.ToLower(strings.TrimSpace(q.Get("tipo")))
	out.Department = strings.ToLower(strings.TrimSpace(q.Get("departamento")))

	day, err := dateParam(q, "fecha")
	if err != nil {
		return out, err
	}
	out.From, out.To = day, day
	from, err := dateParam(q, "fecha_desde")
	if err != nil {
		return out, err
	}
	if from != "" {
		out.From = from
	}
	to, err := dateParam(q, "fecha_hasta")
	if err != nil {
		return out, err
	}
	if to != "" {
		out.To = to
	}
	if out.From != "" && out.To != "" && out.From > out.To {
		return out, &paramError{"fecha_hasta", out.To}
	}
	return out, nil
}

// fail maps store and parameter errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var pe *paramError
	switch {
	case errors.As(err, &pe):
		respondError(w, http.StatusBadRequest, pe.Error())
	case errors.Is(err, store.ErrEmptySearch):
		respondError(w, http.StatusBadRequest, "q is required")
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "noticia no encontrada")
	default:
		s.logger.Error("api request failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseListQuery(r.URL.Query())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		page, err := s.reader.List(r.Context(), q)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, page)
	}
}

func (s *Server) handleGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		item, err := s.reader.Get(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, item)
	}
}

func (s *Server) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		keyword := strings.TrimSpace(q.Get("q"))
		if keyword == "" {
			respondError(w, http.StatusBadRequest, "q is required")
			return
		}
		page, err := intParam(q, "page")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		limit, err := intParam(q, "limit")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		res, err := s.reader.Search(r.Context(), keyword, page, limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleRelated() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		q := r.URL.Query()
		mode, ok := store.ParseRelatedMode(q.Get("modo"))
		if !ok {
			s.fail(w, r, &paramError{"modo", q.Get("modo")})
			return
		}
		limit, err := intParam(q, "limit")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		items, err := s.reader.Related(r.Context(), id, mode, limit)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if items == nil {
			items = []news.Item{}
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"base_id": id,
			"modo":    mode,
			"items":   items,
		})
	}
}

// metaResponse lists stored values with counts next to the fixed vocabularies.
type metaResponse struct {
	Total         int                `json:"total"`
	Fuentes       []store.ValueCount `json:"fuentes"`
	Categorias    []store.ValueCount `json:"categorias"`
	Tipos         []store.ValueCount `json:"tipos"`
	Departamentos []store.ValueCount `json:"departamentos"`
	Vocabulario   vocabulary         `json:"vocabulario"`
}

type vocabulary struct {
	Categorias    []string `json:"categorias"`
	Tipos         []string `json:"tipos"`
	Departamentos []string `json:"departamentos"`
}

func (s *Server) handleMeta() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		total, err := s.reader.Count(ctx, store.Filter{})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp := metaResponse{
			Total: total,
			Vocabulario: vocabulary{
				Categorias:    classify.Categories(),
				Tipos:         classify.Types(),
				Departamentos: classify.Departments(),
			},
		}
		for field, dst := range map[store.Field]*[]store.ValueCount{
			store.FieldSource:     &resp.Fuentes,
			store.FieldCategory:   &resp.Categorias,
			store.FieldType:       &resp.Tipos,
			store.FieldDepartment: &resp.Departamentos,
		} {
			values, err := s.reader.Distinct(ctx, field)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			if values == nil {
				values = []store.ValueCount{}
			}
			*dst = values
		}
		respondJSON(w, http.StatusOK, resp)
	}
}
