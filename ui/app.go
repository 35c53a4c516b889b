// Package ui serves the interactive peeking demo: a single page that
// simulates a Bernoulli A/B experiment and streams confidence-sequence
// and e-value snapshots over Server-Sent Events, next to the naive
// pooled z-test that inflates under the same monitoring.
package ui

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"goanytime/internal"
)

//go:embed templates/*
var embeddedFiles embed.FS

// Config holds demo server configuration.
type Config struct {
	Addr string
}

// App is the demo HTTP application.
type App struct {
	router    *chi.Mux
	templates *template.Template
	addr      string
	log       *internal.Logger
}

// NewApp builds the demo application with its routes wired.
func NewApp(config Config) (*App, error) {
	templates, err := template.New("").ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	addr := config.Addr
	if addr == "" {
		addr = ":8080"
	}

	app := &App{
		router:    chi.NewRouter(),
		templates: templates,
		addr:      addr,
		log:       internal.DefaultLogger.Named("ui"),
	}

	app.setupMiddleware()
	app.setupRoutes()

	return app, nil
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
}

func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/events", a.handleEvents)
}

// Start starts the HTTP server and blocks until it exits.
func (a *App) Start() error {
	a.log.Info("serving demo on %s", a.addr)
	return http.ListenAndServe(a.addr, a.router)
}

func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.templates.ExecuteTemplate(w, templateName, data); err != nil {
		a.log.Error("template %s: %v", templateName, err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
