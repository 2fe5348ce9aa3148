package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/config"
	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/lambdatest"
	"github.com/subhramit/testcafe-browser-provider-lambdatest/internal/provider"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubDriver struct {
	currentURL string
	quit       bool
	resized    [2]int
	maximized  bool
}

func (d *stubDriver) Get(url string) error {
	d.currentURL = url
	return nil
}

func (d *stubDriver) Title() (string, error) { return "stub", nil }

func (d *stubDriver) Screenshot() ([]byte, error) { return []byte("png-bytes"), nil }

func (d *stubDriver) ResizeWindow(handle string, width, height int) error {
	d.resized = [2]int{width, height}
	return nil
}

func (d *stubDriver) MaximizeWindow(handle string) error {
	d.maximized = true
	return nil
}

func (d *stubDriver) SessionID() string { return "remote-1" }

func (d *stubDriver) Quit() error {
	d.quit = true
	return nil
}

// vendorStub fakes the two automation API endpoints the handlers reach.
func vendorStub(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var patched []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/platforms":
			_ = json.NewEncoder(w).Encode(lambdatest.PlatformsResponse{
				Platforms: map[string][]lambdatest.Platform{
					"Desktop": {{
						OS:       "Windows 10",
						Browsers: []lambdatest.Browser{{Name: "chrome", Version: "86.0"}},
					}},
				},
			})
		case r.Method == http.MethodPatch:
			patched = append(patched, r.URL.Path)
			_, _ = w.Write([]byte(`{"status":"success"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, &patched
}

func testServer(t *testing.T, driver *stubDriver) (*Server, *[]string) {
	t.Helper()
	vendor, patched := vendorStub(t)

	cfg := &config.AppConfig{
		Username:            "alice",
		AccessKey:           "secret",
		GridURL:             config.DefaultGridURL,
		APIURL:              vendor.URL,
		PingIntervalSeconds: 90,
	}
	client := lambdatest.NewClient(log.StandardLogger(), cfg.Username, cfg.AccessKey, cfg.APIURL)

	dial := func(caps map[string]interface{}, hubURL string) (provider.Driver, error) {
		return driver, nil
	}
	browserProvider, err := provider.New(cfg, client, nil, provider.WithDialer(dial))
	require.NoError(t, err)

	return NewServer(&ServerConfig{Port: "0", Provider: browserProvider}), patched
}

func doRequest(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestOpenBrowserEndpoint(t *testing.T) {
	driver := &stubDriver{}
	s, _ := testServer(t, driver)

	w := doRequest(s, http.MethodPost, "/v1/sessions", OpenBrowserRequest{
		ID:      "s1",
		URL:     "http://localhost:1337/fixture",
		Browser: "chrome@86.0:Windows 10",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var response OpenBrowserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "s1", response.ID)
	assert.Equal(t, "http://localhost:1337/fixture", driver.currentURL)
}

func TestOpenBrowserEndpoint_GeneratesID(t *testing.T) {
	s, _ := testServer(t, &stubDriver{})

	w := doRequest(s, http.MethodPost, "/v1/sessions", OpenBrowserRequest{
		URL:     "http://localhost/",
		Browser: "chrome",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var response OpenBrowserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response.ID)
}

func TestOpenBrowserEndpoint_Validation(t *testing.T) {
	s, _ := testServer(t, &stubDriver{})

	w := doRequest(s, http.MethodPost, "/v1/sessions", map[string]string{"url": "http://localhost/"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOpenBrowserEndpoint_Duplicate(t *testing.T) {
	s, _ := testServer(t, &stubDriver{})

	request := OpenBrowserRequest{ID: "s1", URL: "http://localhost/", Browser: "chrome"}
	require.Equal(t, http.StatusCreated, doRequest(s, http.MethodPost, "/v1/sessions", request).Code)
	assert.Equal(t, http.StatusConflict, doRequest(s, http.MethodPost, "/v1/sessions", request).Code)
}

func TestCloseBrowserEndpoint(t *testing.T) {
	driver := &stubDriver{}
	s, _ := testServer(t, driver)

	require.Equal(t, http.StatusCreated, doRequest(s, http.MethodPost, "/v1/sessions", OpenBrowserRequest{
		ID: "s1", URL: "http://localhost/", Browser: "chrome",
	}).Code)

	w := doRequest(s, http.MethodDelete, "/v1/sessions/s1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, driver.quit)

	w = doRequest(s, http.MethodDelete, "/v1/sessions/s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResizeEndpoint(t *testing.T) {
	driver := &stubDriver{}
	s, _ := testServer(t, driver)

	require.Equal(t, http.StatusCreated, doRequest(s, http.MethodPost, "/v1/sessions", OpenBrowserRequest{
		ID: "s1", URL: "http://localhost/", Browser: "chrome",
	}).Code)

	w := doRequest(s, http.MethodPost, "/v1/sessions/s1/resize", ResizeRequest{Width: 1280, Height: 720})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, [2]int{1280, 720}, driver.resized)

	w = doRequest(s, http.MethodPost, "/v1/sessions/s1/resize", map[string]int{"width": 1280})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMaximizeEndpoint(t *testing.T) {
	driver := &stubDriver{}
	s, _ := testServer(t, driver)

	require.Equal(t, http.StatusCreated, doRequest(s, http.MethodPost, "/v1/sessions", OpenBrowserRequest{
		ID: "s1", URL: "http://localhost/", Browser: "chrome",
	}).Code)

	w := doRequest(s, http.MethodPost, "/v1/sessions/s1/maximize", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, driver.maximized)
}

func TestScreenshotEndpoint(t *testing.T) {
	s, _ := testServer(t, &stubDriver{})

	require.Equal(t, http.StatusCreated, doRequest(s, http.MethodPost, "/v1/sessions", OpenBrowserRequest{
		ID: "s1", URL: "http://localhost/", Browser: "chrome",
	}).Code)

	w := doRequest(s, http.MethodPost, "/v1/sessions/s1/screenshot", ScreenshotRequest{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	s, patched := testServer(t, &stubDriver{})

	require.Equal(t, http.StatusCreated, doRequest(s, http.MethodPost, "/v1/sessions", OpenBrowserRequest{
		ID: "s1", URL: "http://localhost/", Browser: "chrome",
	}).Code)

	w := doRequest(s, http.MethodPost, "/v1/sessions/s1/status", StatusRequest{Status: "passed"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"/sessions/remote-1"}, *patched)

	w = doRequest(s, http.MethodPost, "/v1/sessions/missing/status", StatusRequest{Status: "passed"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBrowsersEndpoint(t *testing.T) {
	s, _ := testServer(t, &stubDriver{})

	w := doRequest(s, http.MethodGet, "/v1/browsers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response BrowsersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, []string{"chrome@86.0:Windows 10"}, response.Browsers)
}

func TestRootEndpoint(t *testing.T) {
	s, _ := testServer(t, &stubDriver{})

	w := doRequest(s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "LambdaTest Browser Provider")
}
