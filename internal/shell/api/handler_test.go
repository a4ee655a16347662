package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/shipyard/internal/core/domain"
	"github.com/artpar/shipyard/internal/shell/catalog"
	"github.com/artpar/shipyard/internal/shell/deployer"
	"github.com/artpar/shipyard/internal/shell/docker"
	"github.com/artpar/shipyard/internal/shell/store"
	"github.com/artpar/shipyard/internal/shell/vcs"
	"github.com/artpar/shipyard/internal/shell/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type stubFetcher struct {
	err error
}

func (f *stubFetcher) Fetch(ctx context.Context, remote, dest string) error {
	if f.err != nil {
		return f.err
	}
	return os.MkdirAll(dest, 0755)
}

func (f *stubFetcher) Reclone(ctx context.Context, remote, dest string) error {
	if f.err != nil {
		return f.err
	}
	if err := os.RemoveAll(dest); err != nil {
		return err
	}
	return os.MkdirAll(dest, 0755)
}

type stubDocker struct {
	buildErr error
	pingErr  error
	pushed   []string
	creds    docker.Credentials
}

func (d *stubDocker) BuildImage(ctx context.Context, ref domain.ImageRef, contextDir string) (*docker.BuildOutput, error) {
	if d.buildErr != nil {
		return nil, d.buildErr
	}
	return &docker.BuildOutput{ImageID: "sha256:abc", Log: "Successfully tagged " + ref.String()}, nil
}

func (d *stubDocker) RemoveImage(ctx context.Context, ref domain.ImageRef) error { return nil }

func (d *stubDocker) ImageExists(ctx context.Context, ref domain.ImageRef) (bool, error) {
	return true, nil
}

func (d *stubDocker) Login(ctx context.Context, creds docker.Credentials) error {
	d.creds = creds
	return nil
}

func (d *stubDocker) PushImage(ctx context.Context, ref domain.ImageRef, creds docker.Credentials) (*docker.PushOutput, error) {
	d.pushed = append(d.pushed, ref.String())
	return &docker.PushOutput{Digest: "sha256:def", Log: "pushed"}, nil
}

func (d *stubDocker) Ping(ctx context.Context) error { return d.pingErr }

func (d *stubDocker) Close() error { return nil }

type stubDeployer struct {
	report *domain.DeployReport
	err    error
	called string
}

func (d *stubDeployer) Deploy(ctx context.Context, name string) (*domain.DeployReport, error) {
	d.called = name
	return d.report, d.err
}

type testServer struct {
	server   *httptest.Server
	fetcher  *stubFetcher
	docker   *stubDocker
	deployer *stubDeployer
	store    *store.SQLiteStore
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ws, err := workspace.New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, ws.Bootstrap())

	fetcher := &stubFetcher{}
	dc := &stubDocker{}
	dep := &stubDeployer{}

	svc := catalog.NewService(catalog.Config{
		Store:     st,
		Workspace: ws,
		Fetcher:   fetcher,
		Runtime:   dc,
	})

	h := NewHandler(Config{
		Catalog:  svc,
		Deployer: dep,
		Database: st,
		Runtime:  dc,
	})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &testServer{server: srv, fetcher: fetcher, docker: dc, deployer: dep, store: st}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, Envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

// decodeData re-decodes the envelope's data into v.
func decodeData(t *testing.T, env Envelope, v any) {
	t.Helper()
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func (ts *testServer) seedTemplate(t *testing.T) {
	t.Helper()
	status, _ := ts.do(t, http.MethodPost, BasePath+"/build-templates", BuildTemplateRequest{
		Ref:   "go/1.22",
		Name:  "Go 1.22",
		Steps: []string{"FROM golang:1.22", "COPY . .", "RUN go build ./..."},
	})
	require.Equal(t, http.StatusCreated, status)
}

func (ts *testServer) seedImage(t *testing.T, name, tag string) {
	t.Helper()
	status, env := ts.do(t, http.MethodPost, BasePath+"/images", CreateImageRequest{
		Name: name, Tag: tag, Remote: "https://example.com/" + name + ".git", BTRef: "go/1.22",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestReady(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.server.URL + "/ready")
	require.NoError(t, err)
	var ready ReadyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", ready.Checks["database"])
	assert.Equal(t, "ok", ready.Checks["docker"])

	ts.docker.pingErr = errors.New("daemon down")
	resp, err = http.Get(ts.server.URL + "/ready")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "failed", ready.Checks["docker"])
}

func TestOpenAPI(t *testing.T) {
	ts := setupTestServer(t)

	resp, err := http.Get(ts.server.URL + "/openapi.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Contains(t, doc.Paths, BasePath+"/images/{ref}/build")
	assert.Contains(t, doc.Paths, BasePath+"/applications/{name}/deploy")
	assert.Contains(t, doc.Paths, BasePath+"/build-templates/{ref}")
}

// =============================================================================
// Build Template Tests
// =============================================================================

func TestBuildTemplates_CRUD(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedTemplate(t)

	// Refs containing '/' are addressable.
	status, env := ts.do(t, http.MethodGet, BasePath+"/build-templates/go/1.22", nil)
	require.Equal(t, http.StatusOK, status)
	var bt domain.BuildTemplate
	decodeData(t, env, &bt)
	assert.Equal(t, "go/1.22", bt.Ref)
	assert.Len(t, bt.Steps, 3)

	status, env = ts.do(t, http.MethodPut, BasePath+"/build-templates/go/1.22", BuildTemplateRequest{
		Name:  "Go",
		Steps: []string{"FROM golang:1.23"},
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	decodeData(t, env, &bt)
	assert.Equal(t, []string{"FROM golang:1.23"}, bt.Steps)

	status, env = ts.do(t, http.MethodGet, BasePath+"/build-templates", nil)
	require.Equal(t, http.StatusOK, status)
	var list ListResponse[domain.BuildTemplate]
	decodeData(t, env, &list)
	assert.Len(t, list.Items, 1)
	assert.Equal(t, 100, list.Meta.Limit)

	status, _ = ts.do(t, http.MethodDelete, BasePath+"/build-templates/go/1.22", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = ts.do(t, http.MethodGet, BasePath+"/build-templates/go/1.22", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Error)
}

func TestBuildTemplates_Duplicate(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedTemplate(t)

	status, env := ts.do(t, http.MethodPost, BasePath+"/build-templates", BuildTemplateRequest{Ref: "go/1.22", Name: "again"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_exists", env.Error)
}

// =============================================================================
// Image Tests
// =============================================================================

func TestImages_CreateAndGet(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedTemplate(t)

	status, env := ts.do(t, http.MethodPost, BasePath+"/images", CreateImageRequest{
		Name: "web", Remote: "https://example.com/web.git", BTRef: "go/1.22",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	assert.Equal(t, http.StatusCreated, env.Code)

	var res ImageResult
	decodeData(t, env, &res)
	assert.Equal(t, "latest", res.Image.Tag)
	assert.Equal(t, "sha256:abc", res.ImageID)
	assert.Contains(t, res.Log, "web:latest")

	status, env = ts.do(t, http.MethodGet, BasePath+"/images/web", nil)
	require.Equal(t, http.StatusOK, status)
	var img domain.Image
	decodeData(t, env, &img)
	assert.Equal(t, "web", img.Name)
	assert.Equal(t, "go/1.22", img.BuildTemplateRef)

	status, _ = ts.do(t, http.MethodGet, BasePath+"/images/web:latest", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestImages_NamespacedRef(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedTemplate(t)
	ts.seedImage(t, "alice/web", "v2")

	status, env := ts.do(t, http.MethodGet, BasePath+"/images/alice/web:v2", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var img domain.Image
	decodeData(t, env, &img)
	assert.Equal(t, "alice/web", img.Name)

	status, env = ts.do(t, http.MethodPost, BasePath+"/images/alice/web:v2/build", nil)
	assert.Equal(t, http.StatusOK, status, env.Message)
}

func TestImages_Validation(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedTemplate(t)

	status, env := ts.do(t, http.MethodPost, BasePath+"/images", CreateImageRequest{Name: "web", BTRef: "go/1.22"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", env.Error)

	status, env = ts.do(t, http.MethodGet, BasePath+"/images/web:", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", env.Error)

	req, err := http.NewRequest(http.MethodPost, ts.server.URL+BasePath+"/images", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImages_UnknownTemplate(t *testing.T) {
	ts := setupTestServer(t)

	status, env := ts.do(t, http.MethodPost, BasePath+"/images", CreateImageRequest{
		Name: "web", Remote: "https://example.com/web.git", BTRef: "missing",
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Error)
}

func TestImages_Duplicate(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedTemplate(t)
	ts.seedImage(t, "web", "v1")

	status, env := ts.do(t, http.MethodPost, BasePath+"/images", CreateImageRequest{
		Name: "web", Tag: "v1", Remote: "https://example.com/other.git", BTRef: "go/1.22",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_exists", env.Error)
}

func TestImages_FetchFailure(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedTemplate(t)
	ts.fetcher.err = &vcs.FetchError{Remote: "https://example.com/web.git", Err: errors.New("authentication required")}

	status, env := ts.do(t, http.MethodPost, BasePath+"/images", CreateImageRequest{
		Name: "web", Remote: "https://example.com/web.git", BTRef: "go/1.22",
	})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "fetch_failed", env.Error)

	status, _ = ts.do(t, http.MethodGet, BasePath+"/images/web", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestImages_BuildFailureCarriesOutput(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedTemplate(t)
	ts.docker.buildErr = &docker.BuildError{Ref: "web:latest", Output: "Step 3/3 : RUN go build\nundefined: foo", Err: errors.New("exit 1")}

	status, env := ts.do(t, http.MethodPost, BasePath+"/images", CreateImageRequest{
		Name: "web", Remote: "https://example.com/web.git", BTRef: "go/1.22",
	})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "build_failed", env.Error)
	assert.Contains(t, env.Output, "undefined: foo")

	// The record survives so the build can be retried.
	ts.docker.buildErr = nil
	status, env = ts.do(t, http.MethodGet, BasePath+"/images/web/build", nil)
	assert.Equal(t, http.StatusOK, status, env.Message)
}

func TestImages_UpdateAndDelete(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedTemplate(t)
	ts.seedImage(t, "web", "v1")

	status, env := ts.do(t, http.MethodPut, BasePath+"/images/web:v1", UpdateImageRequest{Remote: "https://example.com/web2.git"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var res ImageResult
	decodeData(t, env, &res)
	assert.Equal(t, "https://example.com/web2.git", res.Image.Remote)
	assert.Equal(t, "go/1.22", res.Image.BuildTemplateRef)

	status, _ = ts.do(t, http.MethodDelete, BasePath+"/images/web:v1", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodDelete, BasePath+"/images/web:v1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestImages_List(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedTemplate(t)
	ts.seedImage(t, "web", "v1")
	ts.seedImage(t, "api", "v1")

	status, env := ts.do(t, http.MethodGet, BasePath+"/images?limit=1", nil)
	require.Equal(t, http.StatusOK, status)
	var list ListResponse[domain.Image]
	decodeData(t, env, &list)
	assert.Len(t, list.Items, 1)
	assert.Equal(t, 1, list.Meta.Limit)
}

func TestImages_Push(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedTemplate(t)
	ts.seedImage(t, "web", "v1")

	status, env := ts.do(t, http.MethodGet, BasePath+"/images/web:v1/push", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", env.Error)

	status, env = ts.do(t, http.MethodGet, BasePath+"/images/web:v1/push?docker_user=alice&docker_password=s3cret", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var res ImageResult
	decodeData(t, env, &res)
	assert.Equal(t, "sha256:def", res.Digest)
	assert.Equal(t, []string{"web:v1"}, ts.docker.pushed)
	assert.Equal(t, "alice", ts.docker.creds.Username)
}

// =============================================================================
// Application Tests
// =============================================================================

func shopRequest() ApplicationRequest {
	return ApplicationRequest{
		Name: "shop",
		Services: []domain.Service{
			{Name: "web", Image: "web:v1", Ports: []string{"8080:80"}},
			{Name: "cache", Image: "redis"},
		},
	}
}

func TestApplications_CRUDAndManifest(t *testing.T) {
	ts := setupTestServer(t)

	status, env := ts.do(t, http.MethodPost, BasePath+"/applications", shopRequest())
	require.Equal(t, http.StatusCreated, status, env.Message)
	var app domain.Application
	decodeData(t, env, &app)
	assert.Equal(t, "3.9", app.ComposeVersion)

	status, env = ts.do(t, http.MethodGet, BasePath+"/applications/shop/manifest", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var mf ManifestResponse
	decodeData(t, env, &mf)
	assert.Equal(t, "shop", mf.Application)
	assert.Contains(t, mf.Manifest, "web:v1")
	assert.Contains(t, mf.Manifest, "redis:latest")

	req := shopRequest()
	req.Services = req.Services[:1]
	status, env = ts.do(t, http.MethodPut, BasePath+"/applications/shop", req)
	require.Equal(t, http.StatusOK, status, env.Message)

	_, env = ts.do(t, http.MethodGet, BasePath+"/applications/shop/manifest", nil)
	decodeData(t, env, &mf)
	assert.NotContains(t, mf.Manifest, "redis")

	status, env = ts.do(t, http.MethodGet, BasePath+"/applications", nil)
	require.Equal(t, http.StatusOK, status)
	var list ListResponse[domain.Application]
	decodeData(t, env, &list)
	assert.Len(t, list.Items, 1)

	status, _ = ts.do(t, http.MethodDelete, BasePath+"/applications/shop", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodGet, BasePath+"/applications/shop", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestApplications_Invalid(t *testing.T) {
	ts := setupTestServer(t)

	req := shopRequest()
	req.Services = append(req.Services, domain.Service{Name: "web", Image: "other"})
	status, env := ts.do(t, http.MethodPost, BasePath+"/applications", req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", env.Error)

	status, _ = ts.do(t, http.MethodGet, BasePath+"/applications/shop", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestApplications_Deploy(t *testing.T) {
	ts := setupTestServer(t)

	report := domain.NewDeployReport("shop", time.Now())
	report.Succeeded("web", "web:v1")
	report.Skipped("cache", "redis:latest", "image not in catalog")
	ts.deployer.report = report

	status, env := ts.do(t, http.MethodGet, BasePath+"/applications/shop/deploy", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, "shop", ts.deployer.called)

	var got domain.DeployReport
	decodeData(t, env, &got)
	require.Len(t, got.Services, 2)
	assert.Equal(t, domain.OutcomeSkipped, got.Services[1].Status)
}

func TestApplications_DeployStartupFailure(t *testing.T) {
	ts := setupTestServer(t)

	ts.deployer.report = domain.NewDeployReport("shop", time.Now())
	ts.deployer.err = &deployer.DeployError{Application: "shop", Stage: deployer.StageStartup, Err: errors.New("port is already allocated")}

	status, env := ts.do(t, http.MethodPost, BasePath+"/applications/shop/deploy", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "startup_failed", env.Error)
	assert.NotNil(t, env.Data)
}

func TestApplications_DeployNotFound(t *testing.T) {
	ts := setupTestServer(t)
	ts.deployer.err = &deployer.DeployError{
		Application: "ghost",
		Stage:       deployer.StageResolve,
		Err:         store.NewStoreError("GetApplication", "application", "ghost", "application not found", store.ErrNotFound),
	}

	status, env := ts.do(t, http.MethodGet, BasePath+"/applications/ghost/deploy", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Nil(t, env.Data)
}

// =============================================================================
// Classification
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound, "not_found"},
		{"duplicate", store.ErrDuplicate, http.StatusConflict, "already_exists"},
		{"image exists", catalog.ErrImageExists, http.StatusConflict, "already_exists"},
		{"source missing", catalog.ErrSourceMissing, http.StatusConflict, "source_missing"},
		{"source conflict", fmt.Errorf("%w: user_app_latest", catalog.ErrSourceConflict), http.StatusConflict, "source_conflict"},
		{"invalid", catalog.ErrInvalidInput, http.StatusBadRequest, "validation_error"},
		{"login", docker.ErrLoginFailed, http.StatusBadGateway, "login_failed"},
		{"push", docker.ErrPushFailed, http.StatusBadGateway, "push_failed"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"io", &workspace.IOError{Op: "write", Path: filepath.Join("a", "b"), Err: errors.New("disk full")}, http.StatusInternalServerError, "io_error"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, kind := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestSharedSecret(t *testing.T) {
	h := NewHandler(Config{SharedSecret: "s3cret"})
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + BasePath + "/images")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
