// Package api exposes the mutation engine, DOM scanner and CSP evaluator
// over a small JSON HTTP API served by fasthttp.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/xsslab/xsslab/internal/config"
	"github.com/xsslab/xsslab/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// Server serves the JSON API.
type Server struct {
	config *config.Config
	log    logger.Logger
	srv    *fasthttp.Server
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, log logger.Logger) *Server {
	s := &Server{config: cfg, log: log}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler(),
		Name:               "xsslab",
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		MaxRequestBodySize: cfg.Server.MaxBodySize,
		Logger:             fasthttpLogger{log},
	}
	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.withAccessLog(s.withRequestID(s.withCORS(s.withRecover(s.route))))
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("API server listening", "addr", ln.Addr().String())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("Shutting down API server")
		if err := s.srv.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/api/fuzz":
		s.allow(ctx, s.handleFuzz, fasthttp.MethodGet, fasthttp.MethodPost)
	case "/api/scan":
		s.allow(ctx, s.handleScan, fasthttp.MethodPost)
	case "/api/csp":
		s.allow(ctx, s.handleCSP, fasthttp.MethodPost)
	case "/healthz":
		s.allow(ctx, s.handleHealth, fasthttp.MethodGet)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "no route for "+string(ctx.Path()))
	}
}

func (s *Server) allow(ctx *fasthttp.RequestCtx, h fasthttp.RequestHandler, methods ...string) {
	method := string(ctx.Method())
	for _, m := range methods {
		if m == method {
			h(ctx)
			return
		}
	}
	writeError(ctx, fasthttp.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", method))
}

func (s *Server) withRecover(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("Handler panic", "path", string(ctx.Path()), "panic", r)
				ctx.Response.ResetBody()
				writeError(ctx, fasthttp.StatusInternalServerError, fmt.Sprint(r))
			}
		}()
		next(ctx)
	}
}

func (s *Server) withCORS(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		h := &ctx.Response.Header
		h.Set("Access-Control-Allow-Origin", s.config.Server.CORSOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
		if ctx.IsOptions() {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}
		next(ctx)
	}
}

func (s *Server) withRequestID(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id := string(ctx.Request.Header.Peek(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		ctx.SetUserValue(requestIDHeader, id)
		ctx.Response.Header.Set(requestIDHeader, id)
		next(ctx)
	}
}

func (s *Server) withAccessLog(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		s.log.Info("Request handled",
			"request_id", ctx.UserValue(requestIDHeader),
			"method", string(ctx.Method()),
			"path", string(ctx.Path()),
			"status", ctx.Response.StatusCode(),
			"duration", time.Since(start).String())
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = fasthttp.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{
			Error:   fasthttp.StatusMessage(status),
			Message: err.Error(),
		})
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	writeJSON(ctx, status, errorResponse{
		Error:   fasthttp.StatusMessage(status),
		Message: message,
	})
}

// badRequest is a validation failure reported as 400.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func invalid(format string, args ...interface{}) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

func writeFailure(ctx *fasthttp.RequestCtx, err error) {
	var br *badRequest
	if errors.As(err, &br) {
		writeError(ctx, fasthttp.StatusBadRequest, br.msg)
		return
	}
	writeError(ctx, fasthttp.StatusInternalServerError, err.Error())
}

type fasthttpLogger struct{ log logger.Logger }

func (l fasthttpLogger) Printf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
