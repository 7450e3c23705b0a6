/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"net/http"
	"path"
	"strconv"
	"text/template"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

//go:embed assets/*
var assets embed.FS

var (
	indexTemplate    = htmltemplate.Must(htmltemplate.ParseFS(assets, "assets/index.html"))
	manifestTemplate = template.Must(template.ParseFS(assets, "assets/manifest.webmanifest"))
	workerTemplate   = template.Must(template.ParseFS(assets, "assets/sw.js"))
)

// pageData fills the embedded templates.
type pageData struct {
	Prefix     string
	Version    string
	Session    string
	ThemeColor string
}

func newPageData(cfg *Config, session string) pageData {
	return pageData{
		Prefix:     cfg.prefix,
		Version:    releaseVersion,
		Session:    session,
		ThemeColor: themeColor,
	}
}

func cacheFor(w http.ResponseWriter, d time.Duration) {
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(d.Seconds())))
	w.Header().Set("Expires", time.Now().Add(d).UTC().Format(http.TimeFormat))
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

// serveAsset serves a static file from the embedded assets directory.
func serveAsset(cfg *Config, name, contentType string, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		data, err := assets.ReadFile(path.Join("assets", name))
		if err != nil {
			errs <- err
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		cacheFor(w, time.Hour)
		securityHeaders(cfg, w)

		written, err := w.Write(data)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: %s (%s) to %s in %s",
			name,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveTemplate renders one of the text templates. The service worker must
// never be cached by the browser, or clients would miss release updates.
func serveTemplate(cfg *Config, t *template.Template, contentType string, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var buf bytes.Buffer
		if err := t.Execute(&buf, newPageData(cfg, "")); err != nil {
			errs <- err
			http.Error(w, "template error", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		securityHeaders(cfg, w)

		_, err := w.Write(buf.Bytes())
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveSessionPage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var buf bytes.Buffer
		if err := indexTemplate.Execute(&buf, newPageData(cfg, p.ByName("session"))); err != nil {
			errs <- err
			http.Error(w, "template error", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetClientID(w, r)

		_, err := w.Write(buf.Bytes())
		if err != nil {
			errs <- err

			return
		}
	}
}

// serveInstallQR encodes the app's root URL, so a second phone can scan it
// and install the app.
func serveInstallQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		url := requestScheme(r) + "://" + r.Host + cfg.prefix + "/"

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		cacheFor(w, time.Hour)
		securityHeaders(cfg, w)

		_, _ = w.Write(png)
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /`

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		cacheFor(w, time.Hour)
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}

// registerInstallable serves everything a browser needs to install the app
// and keep its shell available offline. /offline is the app shell with no
// session, which the service worker falls back to when launched without a
// network.
func registerInstallable(cfg *Config, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/assets/app.css", serveAsset(cfg, "app.css", "text/css; charset=utf-8", errs))
	mux.GET(cfg.prefix+"/assets/app.js", serveAsset(cfg, "app.js", "text/javascript; charset=utf-8", errs))
	mux.GET(cfg.prefix+"/offline", serveSessionPage(cfg, errs))
	mux.GET(cfg.prefix+"/icon.svg", serveFavicon(cfg, errs))
	mux.GET(cfg.prefix+"/manifest.webmanifest", serveTemplate(cfg, manifestTemplate, "application/manifest+json", errs))
	mux.GET(cfg.prefix+"/sw.js", serveTemplate(cfg, workerTemplate, "text/javascript; charset=utf-8", errs))
}
