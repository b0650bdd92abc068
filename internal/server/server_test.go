package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/renewpackages/renewapi/pkg/aggregate"
	"github.com/renewpackages/renewapi/pkg/auth"
	"github.com/renewpackages/renewapi/pkg/brands"
	"github.com/renewpackages/renewapi/pkg/cache"
	"github.com/renewpackages/renewapi/pkg/importer"
	"github.com/renewpackages/renewapi/pkg/storage"
)

type testEnv struct {
	t     *testing.T
	srv   *httptest.Server
	db    *storage.DB
	token string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "server.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := cache.New()
	authSvc := auth.New(db, auth.WithHashCost(bcrypt.MinCost))
	_, err = authSvc.SeedAdmin(context.Background(), "admin", "pw")
	require.NoError(t, err)

	s := New(aggregate.New(db, db, c), brands.New(db, c), authSvc)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)

	env := &testEnv{t: t, srv: hs, db: db}
	var login loginResponse
	env.do(http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"pw"}`, http.StatusOK, &login)
	require.NotEmpty(t, login.Token)
	require.Equal(t, auth.RoleAdmin, login.User.Role)
	env.token = login.Token
	return env
}

func (e *testEnv) request(method, path, token, contentType string, body []byte) *http.Response {
	e.t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(body))
	require.NoError(e.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(e.t, err)
	return resp
}

// do sends a JSON body and decodes the JSON reply into out when non-nil.
func (e *testEnv) do(method, path, token, body string, wantStatus int, out interface{}) {
	e.t.Helper()
	resp := e.request(method, path, token, "application/json", []byte(body))
	defer resp.Body.Close()
	require.Equal(e.t, wantStatus, resp.StatusCode, "%s %s", method, path)
	if out != nil {
		require.NoError(e.t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func (e *testEnv) importJSON(rows string) {
	e.t.Helper()
	var res importResponse
	e.do(http.MethodPost, "/api/data/import", e.token, rows, http.StatusOK, &res)
}

const sampleRows = `[
	{"B1":"X","B2":"phone","B3":"case","detail":"A"},
	{"B1":"X","B2":"pc","B3":"laptop","detail":"B"},
	{"B1":"X","B2":"phone","B3":"case","B3的詳細資料":" A "},
	{"B1":"Y","B2":"pc","B3":"desktop","detail":""}
]`

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	var out map[string]string
	env.do(http.MethodGet, "/api/health", "", "", http.StatusOK, &out)
	require.Equal(t, "OK", out["status"])
	require.NotEmpty(t, out["timestamp"])
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)
	body := `{"b1":"X","value":"pc","percentage":10}`

	var e errorResponse
	env.do(http.MethodPut, "/api/data/b2/percentage", "", body, http.StatusUnauthorized, &e)
	require.Equal(t, "Access token required", e.Error)

	env.do(http.MethodPut, "/api/data/b2/percentage", "bogus", body, http.StatusForbidden, &e)
	require.Equal(t, "Invalid or expired token", e.Error)

	var v validateResponse
	env.do(http.MethodGet, "/api/auth/validate", env.token, "", http.StatusOK, &v)
	require.True(t, v.Valid)
	require.Equal(t, "admin", v.User.Username)
}

func TestAdminRequired(t *testing.T) {
	env := newTestEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = env.db.ReplaceUser(context.Background(), storage.User{Username: "viewer", PasswordHash: string(hash), Role: auth.RoleUser})
	require.NoError(t, err)

	var login loginResponse
	env.do(http.MethodPost, "/api/auth/login", "", `{"username":"viewer","password":"pw"}`, http.StatusOK, &login)

	var e errorResponse
	env.do(http.MethodDelete, "/api/data/configurations", login.Token, "", http.StatusForbidden, &e)
	require.Equal(t, "Admin access required", e.Error)
}

func TestLoginErrors(t *testing.T) {
	env := newTestEnv(t)
	var e errorResponse
	env.do(http.MethodPost, "/api/auth/login", "", `{"username":"admin"}`, http.StatusBadRequest, &e)
	require.Equal(t, "Username and password are required", e.Error)
	env.do(http.MethodPost, "/api/auth/login", "", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized, &e)
	require.Equal(t, "Invalid credentials", e.Error)
}

func TestDistributionFlow(t *testing.T) {
	env := newTestEnv(t)
	env.importJSON(sampleRows)

	var b1 []string
	env.do(http.MethodGet, "/api/data/b1", "", "", http.StatusOK, &b1)
	require.Equal(t, []string{"X", "Y"}, b1)

	var rows []aggregate.Row
	env.do(http.MethodGet, "/api/data/b2?b1=X", "", "", http.StatusOK, &rows)
	require.Equal(t, []aggregate.Row{
		{Value: "phone", Count: 2, TotalCount: 3, Percentage: 67},
		{Value: "pc", Count: 1, TotalCount: 3, Percentage: 33},
	}, rows)

	var msg messageResponse
	env.do(http.MethodPut, "/api/data/b2/percentage", env.token, `{"b1":"X","value":"pc","percentage":80}`, http.StatusOK, &msg)
	require.Equal(t, "B2 percentage updated successfully", msg.Message)

	env.do(http.MethodGet, "/api/data/b2?b1=X", "", "", http.StatusOK, &rows)
	require.Equal(t, "pc", rows[0].Value)
	require.Equal(t, 80.0, rows[0].Percentage)

	env.do(http.MethodPut, "/api/data/b3/percentage", env.token, `{"b1":"X","b2":"phone","value":"case","percentage":0}`, http.StatusOK, &msg)
	env.do(http.MethodGet, "/api/data/b3?b1=X&b2=phone", "", "", http.StatusOK, &rows)
	require.Equal(t, []aggregate.Row{{Value: "case", Count: 2, TotalCount: 2, Percentage: 0}}, rows)

	env.do(http.MethodDelete, "/api/data/configurations", env.token, "", http.StatusOK, &msg)
	env.do(http.MethodGet, "/api/data/b2?b1=X", "", "", http.StatusOK, &rows)
	require.Equal(t, "phone", rows[0].Value)
	require.Equal(t, 67.0, rows[0].Percentage)

	env.do(http.MethodGet, "/api/data/b2", "", "", http.StatusOK, &rows)
	require.Empty(t, rows)
}

func TestPercentageValidation(t *testing.T) {
	env := newTestEnv(t)
	env.importJSON(sampleRows)

	var e errorResponse
	env.do(http.MethodPut, "/api/data/b2/percentage", env.token, `{"b1":"X","value":"pc"}`, http.StatusBadRequest, &e)
	require.Equal(t, "B1, value and percentage are required", e.Error)
	env.do(http.MethodPut, "/api/data/b2/percentage", env.token, `{"b1":"X","value":"pc","percentage":"50"}`, http.StatusBadRequest, &e)
	require.Equal(t, "percentage must be a number", e.Error)
	env.do(http.MethodPut, "/api/data/b2/percentage", env.token, `{"b1":"X","value":"pc","percentage":150}`, http.StatusBadRequest, &e)
	env.do(http.MethodPut, "/api/data/b3/percentage", env.token, `{"b1":"X","value":"pc","percentage":5}`, http.StatusBadRequest, &e)
	require.Equal(t, "B1, B2, value and percentage are required", e.Error)
	env.do(http.MethodPut, "/api/data/b2/percentage", env.token, `{not json`, http.StatusBadRequest, &e)
}

func TestDetails(t *testing.T) {
	env := newTestEnv(t)
	env.importJSON(sampleRows)

	var e errorResponse
	env.do(http.MethodGet, "/api/data/b3/details?b1=X&b2=phone", "", "", http.StatusBadRequest, &e)
	require.Equal(t, "B1, B2, and B3 parameters are required", e.Error)

	var msg messageResponse
	env.do(http.MethodPut, "/api/data/b3/details/percentage", env.token,
		`{"b1":"X","b2":"phone","b3":"case","detail":"A","percentage":12.5}`, http.StatusOK, &msg)

	var rows []aggregate.DetailRow
	env.do(http.MethodGet, "/api/data/b3/details?b1=X&b2=phone&b3=case", "", "", http.StatusOK, &rows)
	require.Len(t, rows, 1)
	require.Equal(t, "A", rows[0].Detail)
	require.Equal(t, 2, rows[0].Count)
	require.Equal(t, 100.0, rows[0].Percentage)
	require.NotNil(t, rows[0].ConfiguredPercentage)
	require.Equal(t, 12.5, *rows[0].ConfiguredPercentage)
}

func TestImportCSVAndMultipart(t *testing.T) {
	env := newTestEnv(t)

	csvBody := "B1,B2,B3,B3的詳細資料\nX,phone,case,A\nX,pc,laptop,\n,,,\n"
	resp := env.request(http.MethodPost, "/api/data/import", env.token, "text/csv", []byte(csvBody))
	var res importResponse
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	require.Equal(t, importResponse{Message: "Data imported successfully", Count: 2, Skipped: 1}, res)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "rows.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("B1,B2,B3\nZ,tv,oled\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp = env.request(http.MethodPost, "/api/data/import", env.token, mw.FormDataContentType(), buf.Bytes())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var b1 []string
	env.do(http.MethodGet, "/api/data/b1", "", "", http.StatusOK, &b1)
	require.Equal(t, []string{"Z"}, b1)

	var e errorResponse
	env.do(http.MethodPost, "/api/data/import", env.token, `[]`, http.StatusBadRequest, &e)
	require.Equal(t, "No rows to import", e.Error)
}

func TestImportXLSXUpload(t *testing.T) {
	env := newTestEnv(t)

	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]interface{}{"B1", "B2", "B3", importer.DetailHeader}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]interface{}{"X", "phone", "case", "iPhone 15"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A3", &[]interface{}{"X", "pc", "laptop"}))
	xlsx, err := wb.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	// The upload name carries no extension, so only the zip signature can
	// identify the workbook.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "export")
	require.NoError(t, err)
	_, err = fw.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp := env.request(http.MethodPost, "/api/data/import", env.token, mw.FormDataContentType(), buf.Bytes())
	var res importResponse
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	require.Equal(t, importResponse{Message: "Data imported successfully", Count: 2}, res)

	var details []aggregate.DetailRow
	env.do(http.MethodGet, "/api/data/b3/details?b1=X&b2=phone&b3=case", "", "", http.StatusOK, &details)
	require.Len(t, details, 1)
	require.Equal(t, "iPhone 15", details[0].Detail)
}

func TestClearDataAndMigrate(t *testing.T) {
	env := newTestEnv(t)
	env.importJSON(sampleRows)

	var msg messageResponse
	env.do(http.MethodPut, "/api/data/b2/percentage", env.token, `{"b1":"X","value":"pc","percentage":80}`, http.StatusOK, &msg)
	env.do(http.MethodPost, "/api/data/migrate-percentage-configs", env.token, "", http.StatusOK, &msg)
	require.Equal(t, "Percentage configuration migration completed successfully", msg.Message)

	var rows []aggregate.Row
	env.do(http.MethodGet, "/api/data/b2?b1=X", "", "", http.StatusOK, &rows)
	require.Equal(t, "phone", rows[0].Value)

	env.do(http.MethodDelete, "/api/data", env.token, "", http.StatusOK, &msg)
	var b1 []string
	env.do(http.MethodGet, "/api/data/b1", "", "", http.StatusOK, &b1)
	require.Empty(t, b1)
}

func TestPhoneBrands(t *testing.T) {
	env := newTestEnv(t)

	var apple, nokia storage.Brand
	env.do(http.MethodPost, "/api/phone-brands", env.token, `{"name":"Apple","percentage":30}`, http.StatusCreated, &apple)
	env.do(http.MethodPost, "/api/phone-brands", env.token, `{"name":"Nokia","percentage":50}`, http.StatusCreated, &nokia)
	require.NotEmpty(t, apple.ID)

	var e errorResponse
	env.do(http.MethodPost, "/api/phone-brands", env.token, `{"name":"Apple","percentage":1}`, http.StatusBadRequest, &e)
	require.Equal(t, "Phone brand name already exists", e.Error)
	env.do(http.MethodPost, "/api/phone-brands", env.token, `{"name":"Sony"}`, http.StatusBadRequest, &e)
	require.Equal(t, "Name and percentage are required", e.Error)

	var list []storage.Brand
	env.do(http.MethodGet, "/api/phone-brands", "", "", http.StatusOK, &list)
	require.Equal(t, []storage.Brand{nokia, apple}, list)

	var updated storage.Brand
	env.do(http.MethodPut, "/api/phone-brands/"+apple.ID, env.token, `{"percentage":90}`, http.StatusOK, &updated)
	require.Equal(t, storage.Brand{ID: apple.ID, Name: "Apple", Percentage: 90}, updated)

	env.do(http.MethodGet, "/api/phone-brands", "", "", http.StatusOK, &list)
	require.Equal(t, "Apple", list[0].Name)

	env.do(http.MethodPut, "/api/phone-brands/missing", env.token, `{"percentage":1}`, http.StatusNotFound, &e)
	require.Equal(t, "Phone brand not found", e.Error)

	var msg messageResponse
	env.do(http.MethodDelete, "/api/phone-brands/"+nokia.ID, env.token, "", http.StatusOK, &msg)
	env.do(http.MethodDelete, "/api/phone-brands/"+nokia.ID, env.token, "", http.StatusNotFound, &e)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/health", "", "", http.StatusOK, nil)

	resp := env.request(http.MethodGet, "/metrics", "", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(buf.String(), "renewapi_http_requests_total"))
}
