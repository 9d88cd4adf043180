package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/gate"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/news"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/pipeline"
	"github.com/RobinCoderZhao/newsdesk/internal/newsbot/store"
	"github.com/RobinCoderZhao/newsdesk/pkg/storage"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := storage.Open(storage.Config{Driver: storage.SQLite, DSN: filepath.Join(t.TempDir(), "api.db")}, nil)
	require.NoError(t, err)
	policy := gate.NewPolicy("Perú21")
	s := store.New(db, store.WithExclusion(policy.Blocked))
	t.Cleanup(func() { s.Close() })
	_, err = s.Migrate(context.Background())
	require.NoError(t, err)

	items := []news.Item{
		{Title: "Sismo en Ica", Link: "https://n.pe/1", Category: "nacional", Type: "informativo", PublishDate: date("2024-03-05"), Source: "RPP Noticias", Department: "ica", Summary: "Fuerte movimiento"},
		{Title: "Alianza gana el clásico", Link: "https://n.pe/2", Category: "nacional", Type: "deporte", PublishDate: date("2024-03-04"), Source: "La República"},
		{Title: "Rumores del Congreso", Link: "https://n.pe/3", Category: "nacional", Type: "politica", PublishDate: date("2024-03-04"), Source: "Peru21"},
		{Title: "Lluvias en Puno", Link: "https://n.pe/4", Category: "regional", Type: "informativo", PublishDate: date("2024-03-01"), Source: "Pachamama Radio", Department: "puno"},
		{Title: "Heladas en Puno", Link: "https://n.pe/5", Category: "regional", Type: "informativo", PublishDate: date("2024-03-02"), Source: "Pachamama Radio", Department: "puno"},
	}
	for _, it := range items {
		it.ScrapedAt = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
		ok, err := s.Insert(context.Background(), &it)
		require.NoError(t, err)
		require.True(t, ok)
	}
	return s
}

func date(s string) time.Time {
	t, err := time.ParseInLocation(news.DateLayout, s, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

func get(t *testing.T, h http.Handler, target string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

type listResponse struct {
	Items []map[string]any `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func titles(r listResponse) []string {
	out := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, it["titulo"].(string))
	}
	return out
}

func TestList(t *testing.T) {
	h := NewServer(newTestStore(t)).Routes()

	var all listResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/noticias", &all))
	assert.Equal(t, 4, all.Total, "blocked source excluded")
	assert.Equal(t, 1, all.Page)
	assert.Equal(t, store.DefaultLimit, all.Limit)
	assert.Equal(t, "Sismo en Ica", titles(all)[0])
	assert.Equal(t, "2024-03-05", all.Items[0]["fecha"])

	var puno listResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/noticias?departamento=PUNO&orden=date_asc", &puno))
	assert.Equal(t, []string{"Lluvias en Puno", "Heladas en Puno"}, titles(puno))

	var oneDay listResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/noticias?fecha=2024-03-04", &oneDay))
	assert.Equal(t, []string{"Alianza gana el clásico"}, titles(oneDay))

	var ranged listResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/noticias?fecha_desde=2024-03-02&fecha_hasta=2024-03-04&limit=1&page=2", &ranged))
	assert.Equal(t, 2, ranged.Total)
	assert.Equal(t, []string{"Heladas en Puno"}, titles(ranged))
}

func TestList_BadParams(t *testing.T) {
	h := NewServer(newTestStore(t)).Routes()
	for _, target := range []string{
		"/api/noticias?page=abc",
		"/api/noticias?limit=-1",
		"/api/noticias?orden=random",
		"/api/noticias?fecha=05/03/2024",
		"/api/noticias?fecha_desde=2024-03-05&fecha_hasta=2024-03-01",
	} {
		var body map[string]string
		assert.Equal(t, http.StatusBadRequest, get(t, h, target, &body), target)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestGet(t *testing.T) {
	s := newTestStore(t)
	h := NewServer(s).Routes()

	page, err := s.List(context.Background(), store.Query{Sort: store.SortTitleAsc})
	require.NoError(t, err)
	id := page.Items[0].ID

	var item map[string]any
	require.Equal(t, http.StatusOK, get(t, h, "/api/noticias/"+itoa(id), &item))
	assert.Equal(t, page.Items[0].Title, item["titulo"])

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/noticias/9999", &body))
	assert.Equal(t, "noticia no encontrada", body["error"])
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/noticias/x", nil))
}

func TestSearch(t *testing.T) {
	h := NewServer(newTestStore(t)).Routes()

	var res listResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/noticias/buscar?q=puno", &res))
	assert.Equal(t, 2, res.Total)

	require.Equal(t, http.StatusOK, get(t, h, "/api/noticias/buscar?q=congreso", &res))
	assert.Equal(t, 0, res.Total, "blocked source not searchable")

	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/noticias/buscar?q=+", &body))
	assert.Equal(t, "q is required", body["error"])
}

func TestRelated(t *testing.T) {
	s := newTestStore(t)
	h := NewServer(s).Routes()
	page, err := s.List(context.Background(), store.Query{Filter: store.Filter{Department: "puno"}})
	require.NoError(t, err)
	base := page.Items[0].ID

	var res struct {
		BaseID int64            `json:"base_id"`
		Modo   string           `json:"modo"`
		Items  []map[string]any `json:"items"`
	}
	require.Equal(t, http.StatusOK, get(t, h, "/api/noticias/"+itoa(base)+"/relacionadas?limit=5", &res))
	assert.Equal(t, base, res.BaseID)
	assert.Equal(t, "categoria", res.Modo)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "regional", res.Items[0]["categoria"])

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/noticias/"+itoa(base)+"/relacionadas?modo=autor", nil))
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/noticias/9999/relacionadas", nil))
}

func TestMeta(t *testing.T) {
	h := NewServer(newTestStore(t)).Routes()

	var meta metaResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/meta", &meta))
	assert.Equal(t, 4, meta.Total)
	require.NotEmpty(t, meta.Fuentes)
	assert.Equal(t, store.ValueCount{Value: "Pachamama Radio", Count: 2}, meta.Fuentes[0])
	for _, f := range meta.Fuentes {
		assert.NotEqual(t, "Peru21", f.Value)
	}
	assert.Len(t, meta.Vocabulario.Departamentos, 25)
	assert.Contains(t, meta.Vocabulario.Tipos, "informativo")
	assert.ElementsMatch(t, []string{"nacional", "internacional", "regional"}, meta.Vocabulario.Categorias)
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("newsdesk_sweeps_total 0\n"))
	})
	h := NewServer(newTestStore(t), WithMetrics(metrics)).Routes()

	var health map[string]string
	require.Equal(t, http.StatusOK, get(t, h, "/healthz", &health))
	assert.Equal(t, "ok", health["status"])

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "newsdesk_sweeps_total")
}

type blockingSweeper struct {
	mu      sync.Mutex
	calls   []string
	release chan struct{}
	started chan struct{}
}

func newBlockingSweeper() *blockingSweeper {
	return &blockingSweeper{release: make(chan struct{}), started: make(chan struct{}, 4)}
}

func (b *blockingSweeper) record(cat string) {
	b.mu.Lock()
	b.calls = append(b.calls, cat)
	b.mu.Unlock()
	b.started <- struct{}{}
	<-b.release
}

func (b *blockingSweeper) RunFullSweep(ctx context.Context) *pipeline.SweepReport {
	b.record("")
	return &pipeline.SweepReport{RunID: "full"}
}

func (b *blockingSweeper) RunSweepForCategory(ctx context.Context, category string) (*pipeline.SweepReport, error) {
	b.record(category)
	return &pipeline.SweepReport{RunID: "cat", Category: category}, nil
}

func post(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	return rec
}

func postAuth(h http.Handler, target, token string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(rec, req)
	return rec
}

func TestScrape(t *testing.T) {
	sw := newBlockingSweeper()
	srv := NewServer(newTestStore(t), WithSweeper(sw))
	h := srv.Routes()

	rec := post(h, "/api/scrape?categoria=Regional")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"categoria":"regional"`)
	<-sw.started

	assert.Equal(t, http.StatusConflict, post(h, "/api/scrape").Code)

	close(sw.release)
	srv.Wait()

	assert.Equal(t, http.StatusAccepted, post(h, "/api/scrape").Code)
	<-sw.started
	srv.Wait()

	sw.mu.Lock()
	defer sw.mu.Unlock()
	assert.Equal(t, []string{"regional", ""}, sw.calls)
}

func TestScrape_RequiresToken(t *testing.T) {
	sw := newBlockingSweeper()
	close(sw.release)
	srv := NewServer(newTestStore(t), WithSweeper(sw), WithAuthSecret("s3cret"))
	h := srv.Routes()

	var body map[string]string
	rec := post(h, "/api/scrape")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing authentication token", body["error"])

	forged, err := IssueToken([]byte("other"), "ops", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, postAuth(h, "/api/scrape", forged).Code)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, postAuth(h, "/api/scrape", expired).Code)

	valid, err := IssueToken([]byte("s3cret"), "ops", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, postAuth(h, "/api/scrape?categoria=nacional", valid).Code)
	<-sw.started
	srv.Wait()

	assert.Equal(t, http.StatusOK, get(t, h, "/api/noticias", nil), "read routes stay public")

	sw.mu.Lock()
	defer sw.mu.Unlock()
	assert.Equal(t, []string{"nacional"}, sw.calls)
}

func TestIssueToken_NoSecret(t *testing.T) {
	_, err := IssueToken(nil, "ops", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestScrape_Validation(t *testing.T) {
	h := NewServer(newTestStore(t), WithSweeper(newBlockingSweeper())).Routes()
	rec := post(h, "/api/scrape?categoria=deportes")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "deportes"))

	withoutSweeper := NewServer(newTestStore(t)).Routes()
	assert.Equal(t, http.StatusNotFound, post(withoutSweeper, "/api/scrape").Code)
}

func TestCORS(t *testing.T) {
	h := CORS("http://localhost:3000", NewServer(newTestStore(t)).Routes())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/noticias", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
