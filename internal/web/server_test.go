package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/inventory/internal/auth"
	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/store/memstore"
)

type testEnv struct {
	t        *testing.T
	server   *Server
	service  *core.Service
	provider *auth.LocalProvider
	store    *memstore.Store
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Import: config.ImportConfig{MaxFileSize: 1 << 20},
		Rate:   config.RateLimitConfig{Enabled: false},
		Auth:   config.AuthConfig{CookieName: "inventory_session", TokenTTL: time.Hour},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memstore.New()
	service := core.NewService(store, core.Options{})
	provider := auth.NewLocalProvider(auth.LocalOptions{
		Credentials: store,
		Secret:      []byte("web-test-secret-value"),
		TokenTTL:    time.Hour,
		BcryptCost:  bcrypt.MinCost,
	})
	gate := auth.NewGate(provider, service, time.Minute)
	t.Cleanup(gate.Close)

	srv := NewServer(service, gate, testConfig())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{t: t, server: srv, service: service, provider: provider, store: store}
}

// signIn creates a user with role and returns a bearer token.
func (e *testEnv) signIn(email string, role core.Role) string {
	e.t.Helper()
	ctx := context.Background()
	uid, err := e.provider.Register(ctx, email, "password-123")
	require.NoError(e.t, err)
	_, err = e.service.CreateProfile(ctx, core.UserProfile{UID: uid, Email: email, Name: "Test", Role: role})
	require.NoError(e.t, err)

	rec := e.do(http.MethodPost, "/api/auth/login", "", jsonBody(map[string]string{"email": email, "password": "password-123"}), "application/json")
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func (e *testEnv) do(method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	e.t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func jsonBody(v any) *bytes.Buffer {
	b, _ := json.Marshal(v)
	return bytes.NewBuffer(b)
}

func sampleProduct(sku string) map[string]any {
	return map[string]any{
		"producto":    "Bandeja " + sku,
		"categoria":   "Plásticos",
		"descripcion": "Bandeja reciclada",
		"peso":        0.5,
		"unidad_peso": "kg",
		"dimensiones": map[string]any{"largo": 40, "ancho": 30, "alto": 10, "unidad": "cm"},
		"tamaño":      "grande",
		"sku":         sku,
		"stock":       5,
		"ubicacion":   "P1-E1-N1",
	}
}

func TestLoginAndSession(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn("ana@example.com", core.RoleAdmin)

	rec := env.do(http.MethodGet, "/api/session", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "ana@example.com", sess.Email)
	assert.True(t, sess.IsAdmin)

	rec = env.do(http.MethodPost, "/api/auth/login", "", jsonBody(map[string]string{"email": "ana@example.com", "password": "wrong"}), "application/json")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH001")

	rec = env.do(http.MethodPost, "/api/auth/logout", token, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/api/session", token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginSetsCookie(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.provider.Register(ctx, "bob@example.com", "password-123")
	require.NoError(t, err)

	rec := env.do(http.MethodPost, "/api/auth/login", "", jsonBody(map[string]string{"email": "bob@example.com", "password": "password-123"}), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "inventory_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, core.RoleAssistant, sess.Role, "users without a profile act as assistants")
	assert.Nil(t, sess.Profile)
}

func TestProductRoleGating(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signIn("admin@example.com", core.RoleAdmin)
	assistant := env.signIn("asst@example.com", core.RoleAssistant)

	rec := env.do(http.MethodPost, "/api/products", assistant, jsonBody(sampleProduct("A-1")), "application/json")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/products", admin, jsonBody(sampleProduct("A-1")), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created core.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.do(http.MethodPatch, "/api/products/"+created.ID+"/stock", assistant, jsonBody(map[string]int{"stock": 0}), "application/json")
	assert.Equal(t, http.StatusOK, rec.Code, "assistants may adjust stock")

	rec = env.do(http.MethodPatch, "/api/products/"+created.ID+"/stock", assistant, jsonBody(map[string]int{"stock": -2}), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "PRD003")

	rec = env.do(http.MethodDelete, "/api/products/"+created.ID, assistant, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/products", assistant, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []core.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].Stock)

	rec = env.do(http.MethodDelete, "/api/products/"+created.ID, admin, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/api/products/"+created.ID, admin, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDuplicateSKUConflict(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signIn("admin@example.com", core.RoleAdmin)

	rec := env.do(http.MethodPost, "/api/products", admin, jsonBody(sampleProduct("DUP-1")), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)
	var first core.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = env.do(http.MethodPost, "/api/products", admin, jsonBody(sampleProduct("DUP-1")), "application/json")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bandeja DUP-1")

	rec = env.do(http.MethodGet, "/api/products/check-sku?sku=DUP-1", admin, nil, "")
	assert.Contains(t, rec.Body.String(), `"available":false`)

	rec = env.do(http.MethodGet, "/api/products/check-sku?sku=DUP-1&exclude="+first.ID, admin, nil, "")
	assert.Contains(t, rec.Body.String(), `"available":true`)

	invalid := sampleProduct("BAD-1")
	invalid["producto"] = ""
	rec = env.do(http.MethodPost, "/api/products", admin, jsonBody(invalid), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fields"`)
}

func TestCategoriesAndWarehouse(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signIn("admin@example.com", core.RoleAdmin)

	rec := env.do(http.MethodPost, "/api/categories", admin, jsonBody(map[string]string{"nombre": "  "}), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/categories", admin, jsonBody(map[string]string{"nombre": "Plásticos"}), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPost, "/api/products", admin, jsonBody(sampleProduct("W-1")), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodGet, "/api/warehouse/grid", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var grid struct {
		Aisles  []json.RawMessage `json:"aisles"`
		Summary core.GridSummary  `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grid))
	assert.Len(t, grid.Aisles, 3)
	assert.Equal(t, 36, grid.Summary.TotalSlots)
	assert.Equal(t, 1, grid.Summary.OccupiedSlots)

	rec = env.do(http.MethodGet, "/api/warehouse/locations/p1-e1-n1", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "W-1")

	rec = env.do(http.MethodGet, "/api/warehouse/locations/P9-E9-N9", admin, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/api/warehouse/locations?occupied=true&sort=quantity", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var locs struct {
		Slots []core.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &locs))
	assert.Len(t, locs.Slots, 1)

	rec = env.do(http.MethodGet, "/api/dashboard", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats core.DashboardStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalProducts)
	assert.Equal(t, 1, stats.TotalCategories)
	assert.Equal(t, 1, stats.LowStockCount)
}

func multipartFile(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestImportFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signIn("admin@example.com", core.RoleAdmin)
	assistant := env.signIn("asst@example.com", core.RoleAssistant)
	ctx := context.Background()
	for _, name := range []string{"Plásticos", "Botellas"} {
		_, err := env.service.CreateCategory(ctx, name)
		require.NoError(t, err)
	}

	rec := env.do(http.MethodGet, "/api/import/template?format=csv", assistant, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/import/template?format=csv", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "plantilla_productos.csv")
	template := rec.Body.Bytes()

	body, ct := multipartFile(t, "productos.csv", template)
	rec = env.do(http.MethodPost, "/api/import/validate", admin, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v core.ImportValidation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.Valid, "errors: %v", v.Errors)
	assert.Len(t, v.Products, 3)

	body, ct = multipartFile(t, "productos.csv", template)
	rec = env.do(http.MethodPost, "/api/import", admin, body, ct)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var started struct {
		ImportID string `json:"importId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.ImportID)

	rec = env.do(http.MethodGet, "/api/import/"+started.ImportID+"/progress", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: complete")

	rec = env.do(http.MethodGet, "/api/import/"+started.ImportID+"/result?wait=true", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res core.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Succeeded)
	assert.True(t, res.AllSucceeded)

	rec = env.do(http.MethodGet, "/api/import/unknown/result", admin, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "IMP002")
}

func TestImportRejectsInvalidFiles(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signIn("admin@example.com", core.RoleAdmin)

	files := []struct {
		name string
		data []byte
		code string
	}{
		{"productos.txt", []byte("sku\nA-1"), "FILE006"},
		{"broken.xlsx", []byte("PK\x03\x04 truncated"), "FILE003"},
		{"broken.xls", []byte("not a biff workbook"), "FILE003"},
	}
	for _, f := range files {
		body, ct := multipartFile(t, f.name, f.data)
		rec := env.do(http.MethodPost, "/api/import/validate", admin, body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code, f.name)
		assert.Contains(t, rec.Body.String(), f.code, f.name)
	}

	rec := env.do(http.MethodPost, "/api/import/validate", admin,
		bytes.NewBufferString("--nope\r\nbroken"), "multipart/form-data; boundary=xyz")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "REQ003")

	rec = env.do(http.MethodPost, "/api/import", admin, jsonBody(map[string]any{"rows": []map[string]any{{"sku": "A"}}}), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "more than 1 product")

	empty := &bytes.Buffer{}
	mw := multipart.NewWriter(empty)
	require.NoError(t, mw.Close())
	rec = env.do(http.MethodPost, "/api/import/validate", admin, empty, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE004")
}

func TestProgressEventIDsCountRecords(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signIn("admin@example.com", core.RoleAdmin)
	_, err := env.service.CreateCategory(context.Background(), "Plásticos")
	require.NoError(t, err)

	rows := make([]map[string]any, 150)
	for i := range rows {
		p := sampleProduct(fmt.Sprintf("EV-%03d", i))
		delete(p, "dimensiones")
		p["dimensiones.largo"] = 40
		p["dimensiones.ancho"] = 30
		p["dimensiones.alto"] = 10
		p["dimensiones.unidad"] = "cm"
		rows[i] = p
	}
	rec := env.do(http.MethodPost, "/api/import", admin, jsonBody(map[string]any{"rows": rows}), "application/json")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var started struct {
		ImportID string `json:"importId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))

	rec = env.do(http.MethodGet, "/api/import/"+started.ImportID+"/result?wait=true", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/import/"+started.ImportID+"/progress?lastEventId=120", admin, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "id: 150\n", "the event id is the processed count")
	assert.NotContains(t, body, "id: 100\n")
	assert.Contains(t, body, "event: complete")
}

func TestProfileUpdateReachesSession(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn("asst@example.com", core.RoleAssistant)

	rec := env.do(http.MethodGet, "/api/session", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPatch, "/api/profile", token, jsonBody(map[string]string{"name": "Lucía", "lastName": "Rojas"}), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/session", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotNil(t, sess.Profile)
	assert.Equal(t, "Rojas", sess.Profile.LastName, "cached profile is dropped on update")
	assert.Equal(t, core.RoleAssistant, sess.Role)
}

func TestAdminSetsRole(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signIn("admin@example.com", core.RoleAdmin)
	assistant := env.signIn("asst@example.com", core.RoleAssistant)

	rec := env.do(http.MethodGet, "/api/session", assistant, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sess SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	uid := sess.UID

	rec = env.do(http.MethodPatch, "/api/users/"+uid+"/role", assistant, jsonBody(map[string]string{"role": "admin"}), "application/json")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPatch, "/api/users/"+uid+"/role", admin, jsonBody(map[string]string{"role": "owner"}), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "USR001")

	rec = env.do(http.MethodPatch, "/api/users/"+uid+"/role", admin, jsonBody(map[string]string{"role": "admin"}), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/session", assistant, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.True(t, sess.IsAdmin, "promotion applies to the next request")

	rec = env.do(http.MethodPatch, "/api/users/missing/role", admin, jsonBody(map[string]string{"role": "admin"}), "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIPathsAnswerJSONWithoutAccept(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "API paths answer JSON even without an Accept header")
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("1.1.1.1"))
	assert.False(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("2.2.2.2"))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.allow("1.1.1.1"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrNotFound, http.StatusNotFound},
		{&core.DuplicateSKUError{SKU: "A"}, http.StatusConflict},
		{core.ValidationErrors{{Field: "sku", Message: "is required"}}, http.StatusBadRequest},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{auth.ErrSessionRevoked, http.StatusUnauthorized},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("%w: invalid csv: bad quote", core.ErrInvalidFile), http.StatusBadRequest},
		{fmt.Errorf("%w: \"owner\"", core.ErrUnknownRole), http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "statusFor(%v)", tt.err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
