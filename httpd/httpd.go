// Package httpd serves the outlier filter over HTTP.
//
//	POST /filter                 JSON frame in, JSON frame out (same form as the gRPC service)
//	GET  /tables                 table names in the database
//	POST /tables/{table}/filter  filter a table into another table, parameters in the query
//	GET  /health
//	GET  /metrics                Prometheus metrics
package httpd

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/damiani91/aprende/config"
	"github.com/damiani91/aprende/rpc"
	"github.com/damiani91/aprende/store"
)

// Server is the HTTP API. db may be nil, then the table endpoints fail.
type Server struct {
	filter *rpc.Server
	db     *store.DB
	log    *slog.Logger
}

// New returns the HTTP handler. Metrics are served from gatherer.
func New(filter *rpc.Server, db *store.DB, gatherer prometheus.Gatherer, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		filter: filter,
		db:     db,
		log:    log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/filter", s.filterHandler)
	r.Get("/tables", s.tablesHandler)
	r.Post("/tables/{table}/filter", s.tableFilterHandler)
	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

func (s *Server) filterHandler(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		s.error(w, r, http.StatusBadRequest, err)
		return
	}

	req, err := structpb.NewStruct(body)
	if err != nil {
		s.error(w, r, http.StatusBadRequest, err)
		return
	}

	resp, err := s.filter.Filter(r.Context(), req)
	if err != nil {
		s.error(w, r, httpStatus(rpc.ErrorCode(err)), err)
		return
	}

	render.JSON(w, r, resp.AsMap())
}

func (s *Server) tablesHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.error(w, r, http.StatusServiceUnavailable, errors.New("database not initialized"))
		return
	}

	tables, err := s.db.Tables(r.Context())
	if err != nil {
		s.error(w, r, http.StatusInternalServerError, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}

	render.JSON(w, r, map[string]any{"tables": tables})
}

// tableFilterHandler filters a table into ?out= (default <table>_clean).
// The other query parameters are config keys, exclude is comma separated.
func (s *Server) tableFilterHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.error(w, r, http.StatusServiceUnavailable, errors.New("database not initialized"))
		return
	}

	table := chi.URLParam(r, "table")
	query := r.URL.Query()
	out := query.Get("out")
	if out == "" {
		out = table + "_clean"
	}
	if out == table {
		s.error(w, r, http.StatusBadRequest, errors.New("output table is the input table"))
		return
	}

	params := make(map[string]any)
	for key := range query {
		switch key {
		case "out":
		case "exclude":
			params[key] = strings.Split(query.Get(key), ",")
		default:
			params[key] = query.Get(key)
		}
	}

	cfg, err := config.FromMap(params)
	if err != nil {
		s.error(w, r, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	df, err := s.db.Load(ctx, table)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, store.ErrNoTable) {
			code = http.StatusNotFound
		}
		s.error(w, r, code, err)
		return
	}

	clean, err := s.filter.Apply(ctx, cfg, df)
	if err != nil {
		s.error(w, r, httpStatus(rpc.ErrorCode(err)), err)
		return
	}

	if err := s.db.Save(ctx, out, clean); err != nil {
		s.error(w, r, http.StatusInternalServerError, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"table":    out,
		"method":   cfg.Method,
		"rows_in":  df.Nrow(),
		"rows_out": clean.Nrow(),
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) error(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
	}

	render.Status(r, code)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	case codes.Canceled, codes.DeadlineExceeded:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
