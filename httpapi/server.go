package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gmbyapa/ktopics/pkg/async"
	"github.com/gmbyapa/ktopics/pkg/errors"
	"github.com/gorilla/handlers"
	"github.com/tryfix/log"
)

type Server struct {
	srv    *http.Server
	logger log.Logger
}

// NewServer serves h on host with CORS enabled for the UI origin(s).
func NewServer(host string, h http.Handler, logger log.Logger, origins ...string) *Server {
	cors := []handlers.CORSOption{
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{`Content-Type`}),
	}
	if len(origins) > 0 {
		cors = append(cors, handlers.AllowedOrigins(origins))
	}

	return &Server{
		srv: &http.Server{
			Addr:              host,
			Handler:           handlers.CORS(cors...)(h),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.NewLog(log.Prefixed(`http-server`)),
	}
}

// Run serves until the group stops.
func (s *Server) Run(opts *async.Opts) error {
	errs := make(chan error, 1)
	go func() {
		s.logger.Info(fmt.Sprintf(`http server started on %s`, s.srv.Addr))
		errs <- s.srv.ListenAndServe()
	}()
	opts.Ready()

	select {
	case err := <-errs:
		return errors.Wrap(err, `cannot start web server`)
	case <-opts.Stopping():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, `http server shutdown failed`)
	}
	s.logger.Info(`http server stopped`)

	return nil
}
