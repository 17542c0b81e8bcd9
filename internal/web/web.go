// Package web serves the calendar page, its JSON API and the derived
// outputs (iCalendar feed, PNG preview).
package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"studycal/internal/config"
	"studycal/internal/controller"
	"studycal/internal/gateway"
	"studycal/internal/ics"
	appLog "studycal/internal/log"
	"studycal/internal/render"
)

const (
	previewCacheTTL = 30 * time.Second
	maxRequestBody  = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// PreviewFunc produces a PNG of the calendar page.
type PreviewFunc func(ctx context.Context) ([]byte, error)

// Server exposes one controller over HTTP.
type Server struct {
	cfg     *config.Config
	ctrl    *controller.Controller
	mux     *http.ServeMux
	now     func() time.Time
	preview PreviewFunc

	// The preview is expensive (a browser start), so it is cached briefly.
	previewMu    sync.Mutex
	previewCache *previewCache
}

type previewCache struct {
	png       []byte
	updatedAt time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithPreview enables /preview.png.
func WithPreview(fn PreviewFunc) Option {
	return func(s *Server) { s.preview = fn }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer constructs a Server.
func NewServer(cfg *config.Config, ctrl *controller.Controller, opts ...Option) *Server {
	s := &Server{
		cfg:  cfg,
		ctrl: ctrl,
		mux:  http.NewServeMux(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the mux, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run listens on cfg.Listen until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String(), "basic_auth", s.basicAuthEnabled())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="studycal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
	s.mux.HandleFunc("GET /calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/day/{date}", s.handleDay)
	s.mux.HandleFunc("POST /api/ui/{action}", s.handleUI)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := render.Page(&buf, s.ctrl.Page(s.now())); err != nil {
		appLog.Error("calendar page render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// stateResponse is the JSON shape of /api/state and every UI transition.
type stateResponse struct {
	State controller.State `json:"state"`
	Grid  render.Grid      `json:"grid"`
}

func (s *Server) stateResponse() stateResponse {
	return stateResponse{State: s.ctrl.Snapshot(), Grid: s.ctrl.Grid(s.now())}
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stateResponse())
}

type dayResponse struct {
	Date    string         `json:"date"`
	Entries []render.Entry `json:"entries"`
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	entries, err := s.ctrl.DayEntries(date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dayResponse{Date: date, Entries: entries})
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	st := s.ctrl.Snapshot()
	name := fmt.Sprintf("%s (subgroup %d)", st.Group, st.Subgroup)
	body, err := ics.Export(name, s.ctrl.Events(), s.now())
	if err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="studycal.ics"`)
	_, _ = io.WriteString(w, body)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.preview == nil {
		http.NotFound(w, r)
		return
	}

	s.previewMu.Lock()
	defer s.previewMu.Unlock()

	pc := s.previewCache
	if pc == nil || s.now().Sub(pc.updatedAt) >= previewCacheTTL {
		png, err := s.preview(r.Context())
		if err != nil {
			appLog.Error("preview capture failed", err)
			writeError(w, http.StatusServiceUnavailable, "preview unavailable")
			return
		}
		pc = &previewCache{png: png, updatedAt: s.now()}
		s.previewCache = pc
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(pc.png)
}

// uiRequest is the union of all transition bodies; each action reads the
// fields it needs.
type uiRequest struct {
	Date     string `json:"date"`
	EventID  string `json:"event_id"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Action   string `json:"action"`
	Confirm  bool   `json:"confirm"`
	Subgroup int    `json:"subgroup"`
	Delta    int    `json:"delta"`
	Today    bool   `json:"today"`

	// Edit form inputs; Date is shared with the menu transitions.
	Title     string `json:"title"`
	Type      string `json:"type"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (r uiRequest) form() controller.EventForm {
	return controller.EventForm{
		Title:     r.Title,
		Type:      r.Type,
		Date:      r.Date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	}
}

func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")

	var req uiRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	var err error
	switch action {
	case "contextmenu":
		err = s.ctrl.OpenContextMenu(req.Date, req.EventID, req.X, req.Y)
	case "open":
		err = s.ctrl.OpenEvent(req.EventID)
	case "dismiss":
		s.ctrl.Dismiss()
	case "action":
		err = s.ctrl.ChooseAction(controller.Action(req.Action))
	case "submit":
		err = s.ctrl.Submit(ctx, req.form())
	case "cancel":
		s.ctrl.Cancel()
	case "confirm":
		err = s.ctrl.Confirm(ctx, req.Confirm)
	case "subgroup":
		err = s.ctrl.SwitchSubgroup(ctx, req.Subgroup)
	case "month":
		switch {
		case req.Today:
			err = s.ctrl.Today()
		case req.Delta < 0:
			err = s.ctrl.PrevMonth()
		case req.Delta > 0:
			err = s.ctrl.NextMonth()
		}
	case "day":
		err = s.ctrl.ShowDay(req.Date)
	case "refresh":
		err = s.ctrl.Refresh(ctx)
		if errors.Is(err, controller.ErrSuperseded) {
			err = nil
		}
	default:
		writeError(w, http.StatusNotFound, "unknown action "+action)
		return
	}

	if err != nil {
		appLog.Warn("ui transition rejected", "action", action, "err", err)
		writeTransitionError(w, err, s.stateResponse())
		return
	}
	writeJSON(w, http.StatusOK, s.stateResponse())
}

// transitionError carries the current state along with the failure so the
// page can redraw without a second request.
type transitionError struct {
	Error  string                  `json:"error"`
	Fields []controller.FieldError `json:"fields,omitempty"`
	stateResponse
}

func writeTransitionError(w http.ResponseWriter, err error, st stateResponse) {
	resp := transitionError{Error: err.Error(), stateResponse: st}
	var verr *controller.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	writeJSON(w, statusFor(err), resp)
}

// statusFor maps controller and gateway errors onto HTTP statuses.
func statusFor(err error) int {
	var verr *controller.ValidationError
	var gerr *gateway.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &gerr):
		return http.StatusBadGateway
	case errors.Is(err, controller.ErrUnknownEvent):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrInvalidDate),
		errors.Is(err, controller.ErrInvalidSubgroup):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrActionNotAllowed),
		errors.Is(err, controller.ErrNotEditable),
		errors.Is(err, controller.ErrModalOpen),
		errors.Is(err, controller.ErrNoModal),
		errors.Is(err, controller.ErrNoConfirmation),
		errors.Is(err, controller.ErrNoGroup):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
