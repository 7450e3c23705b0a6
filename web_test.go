/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T, cfg *Config) *httprouter.Router {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	mux, gm := newRouter(ctx, cfg, make(chan error, 64))

	t.Cleanup(func() {
		gm.Close()
		cancel()
	})

	return mux
}

func get(mux http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStaticRoutes(t *testing.T) {
	mux := testRouter(t, testConfig())

	cases := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/healthz", "text/plain; charset=utf-8", "Ok"},
		{"/version", "text/plain; charset=utf-8", "twelfthman v" + releaseVersion},
		{"/robots.txt", "text/plain; charset=utf-8", "Disallow: /"},
		{"/assets/app.css", "text/css; charset=utf-8", ".card"},
		{"/assets/app.js", "text/javascript; charset=utf-8", "WebSocket"},
		{"/icon.svg", "image/svg+xml", "<svg"},
		{"/sw.js", "text/javascript; charset=utf-8", "twelfthman-v" + releaseVersion},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := get(mux, tc.path)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.contentType, rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tc.contains)
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestRootRedirectsToNewSession(t *testing.T) {
	mux := testRouter(t, testConfig())

	for _, path := range []string{"/", "/play"} {
		rec := get(mux, path)

		require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Regexp(t, regexp.MustCompile(`^/play/[A-Za-z0-9]{8}$`), rec.Header().Get("Location"))
	}

	assert.NotEqual(t, get(mux, "/").Header().Get("Location"), get(mux, "/").Header().Get("Location"))
}

func TestSessionPage(t *testing.T) {
	mux := testRouter(t, testConfig())

	rec := get(mux, "/play/abcdefgh")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-session="abcdefgh"`)
	assert.Contains(t, rec.Body.String(), `href="/manifest.webmanifest"`)
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, clientCookieName, cookies[0].Name)
}

func TestSessionPageKeepsClientCookie(t *testing.T) {
	mux := testRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/play/abcdefgh", nil)
	req.AddCookie(&http.Cookie{Name: clientCookieName, Value: "0b9f1c6e-4a8e-4e8b-9d59-1f0d6f0a2a11"})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Cookies())
}

func TestOfflineShell(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/cricket"
	mux := testRouter(t, cfg)

	rec := get(mux, "/cricket/offline")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-session=""`)
	assert.Contains(t, rec.Body.String(), `src="/cricket/assets/app.js"`)

	// launching from the manifest's start_url offline lands on the cached
	// shell, never on the "/" redirect
	sw := get(mux, "/cricket/sw.js").Body.String()
	assert.Contains(t, sw, `const PREFIX = "/cricket";`)
	assert.Contains(t, sw, `const OFFLINE = PREFIX + "/offline";`)
	assert.Contains(t, sw, "OFFLINE,")
	assert.Contains(t, sw, "caches.match(OFFLINE)")
	assert.Contains(t, sw, "!res.redirected")

	for _, asset := range []string{"/cricket/assets/app.js", "/cricket/assets/app.css", "/cricket/icon.svg"} {
		assert.Equal(t, http.StatusOK, get(mux, asset).Code, asset)
	}

	// the page deals and tosses by itself when there is no socket
	js := get(mux, "/cricket/assets/app.js").Body.String()
	assert.Contains(t, js, "crypto.getRandomValues")
	assert.Contains(t, js, "local.handle(msg)")
	assert.Contains(t, js, "goOffline()")
}

func TestManifest(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/cricket/"

	mux := testRouter(t, cfg)

	rec := get(mux, "/cricket/manifest.webmanifest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/manifest+json", rec.Header().Get("Content-Type"))

	var manifest struct {
		Name      string `json:"name"`
		ShortName string `json:"short_name"`
		StartURL  string `json:"start_url"`
		Display   string `json:"display"`
		Icons     []struct {
			Src string `json:"src"`
		} `json:"icons"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &manifest))

	assert.Equal(t, "12 MEN Protocol", manifest.Name)
	assert.Equal(t, "12 MEN", manifest.ShortName)
	assert.Equal(t, "/cricket/", manifest.StartURL)
	assert.Equal(t, "standalone", manifest.Display)
	require.Len(t, manifest.Icons, 1)
	assert.Equal(t, "/cricket/icon.svg", manifest.Icons[0].Src)

	redirect := get(mux, "/cricket/")
	assert.Regexp(t, regexp.MustCompile(`^/cricket/play/[A-Za-z0-9]{8}$`), redirect.Header().Get("Location"))
}

func TestInstallQR(t *testing.T) {
	mux := testRouter(t, testConfig())

	rec := get(mux, "/qr")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestNotFound(t *testing.T) {
	mux := testRouter(t, testConfig())

	rec := get(mux, "/no/such/page")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not Found")
}

func TestProfileRoutes(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, http.StatusNotFound, get(testRouter(t, cfg), "/pprof/heap").Code)

	cfg = testConfig()
	cfg.profile = true

	assert.Equal(t, http.StatusOK, get(testRouter(t, cfg), "/pprof/heap").Code)
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1:5000", realIP(req))

	req.Header.Set("X-Real-IP", "192.168.1.9")
	assert.Equal(t, "192.168.1.9:5000", realIP(req))

	req.Header.Set("X-Real-IP", "not-an-ip")
	assert.Equal(t, "10.0.0.1:5000", realIP(req))

	req.Header.Set("CF-Connecting-IP", "::1")
	assert.Equal(t, "[::1]:5000", realIP(req))
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.0 kB", humanReadableSize(1000))
	assert.Equal(t, "1.5 MB", humanReadableSize(1500000))
}
