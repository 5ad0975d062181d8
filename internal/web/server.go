// Package web serves rendered reports so they can be printed or downloaded
// from a browser.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"backoffice/internal/export"
)

const printScript = `<script>window.addEventListener("load", function () { window.print(); });</script>`

// Config configures a Server.
type Config struct {
	Addr      string
	PublicURL string
	TTL       time.Duration
	Logger    zerolog.Logger
	Now       func() time.Time
}

type stored struct {
	doc     export.Document
	expires time.Time
}

// Server keeps documents in memory under short-lived tokens.
type Server struct {
	publicURL string
	ttl       time.Duration
	now       func() time.Time
	logger    zerolog.Logger
	router    *mux.Router
	http      *http.Server

	mu   sync.Mutex
	docs map[string]stored
}

func NewServer(cfg Config) *Server {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Server{
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		ttl:       cfg.TTL,
		now:       cfg.Now,
		logger:    cfg.Logger,
		docs:      make(map[string]stored),
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "ok")
	}).Methods(http.MethodGet)
	r.HandleFunc("/print/{token}", s.handlePrint).Methods(http.MethodGet)
	r.HandleFunc("/download/{token}", s.handleDownload).Methods(http.MethodGet)
	return r
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Accepting reports whether links handed out by the server can be reached.
func (s *Server) Accepting() bool { return s.publicURL != "" }

// Store keeps doc until the TTL elapses and returns its token.
func (s *Server) Store(doc export.Document) string {
	token := uuid.NewString()
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	s.docs[token] = stored{doc: doc, expires: now.Add(s.ttl)}
	return token
}

// PrintURL is the public link that opens the document and prints it.
func (s *Server) PrintURL(token string) string {
	return s.publicURL + "/print/" + token
}

// DownloadURL is the public link that downloads the document.
func (s *Server) DownloadURL(token string) string {
	return s.publicURL + "/download/" + token
}

func (s *Server) lookup(token string) (export.Document, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	entry, ok := s.docs[token]
	return entry.doc, ok
}

func (s *Server) pruneLocked(now time.Time) {
	for token, entry := range s.docs {
		if !now.Before(entry.expires) {
			delete(s.docs, token)
		}
	}
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(mux.Vars(r)["token"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	body := doc.Body
	if strings.HasPrefix(doc.ContentType, "text/html") {
		body = withPrintScript(body)
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(body); err != nil {
		s.logger.Warn().Err(err).Msg("write print page")
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(mux.Vars(r)["token"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(doc.Filename))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(doc.Body); err != nil {
		s.logger.Warn().Err(err).Msg("write download")
	}
}

func withPrintScript(body []byte) []byte {
	idx := bytes.LastIndex(body, []byte("</body>"))
	if idx < 0 {
		return append(append([]byte{}, body...), printScript...)
	}
	out := make([]byte, 0, len(body)+len(printScript))
	out = append(out, body[:idx]...)
	out = append(out, printScript...)
	return append(out, body[idx:]...)
}

// Start serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("web server listening")
		errCh <- s.http.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Opener returns a print opener whose surfaces publish the print link
// through publish, typically a chat message.
func (s *Server) Opener(publish func(ctx context.Context, url string) error) export.Opener {
	return &opener{server: s, publish: publish}
}

type opener struct {
	server  *Server
	publish func(ctx context.Context, url string) error
}

func (o *opener) Open(context.Context) (export.Surface, error) {
	if !o.server.Accepting() || o.publish == nil {
		return nil, export.ErrSurfaceBlocked
	}
	return &surface{opener: o}, nil
}

type surface struct {
	opener *opener
	token  string
}

func (s *surface) Render(_ context.Context, doc export.Document) error {
	s.token = s.opener.server.Store(doc)
	return nil
}

func (s *surface) Print(ctx context.Context) error {
	if s.token == "" {
		return errors.New("nothing rendered")
	}
	return s.opener.publish(ctx, s.opener.server.PrintURL(s.token))
}
