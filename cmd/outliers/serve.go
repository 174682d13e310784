package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/damiani91/aprende/httpd"
	"github.com/damiani91/aprende/metrics"
	"github.com/damiani91/aprende/rpc"
	"github.com/damiani91/aprende/store"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	*rootOptions

	addr     string
	httpAddr string
	dbFile   string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the outliers gRPC and HTTP servers",
		Long: `Run the outliers gRPC and HTTP servers until interrupted.

Defaults come from the environment:
  OUTLIERS_ADDR  gRPC address (:9999)
  HTTPD_ADDR     HTTP address (:8080)
  DB_FILE        SQLite database for the table endpoints (data.db)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return opts.serve(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", root.env.Addr, "gRPC address")
	flags.StringVar(&opts.httpAddr, "http-addr", root.env.HTTPAddr, "HTTP address")
	flags.StringVar(&opts.dbFile, "db", root.env.DBFile, "SQLite database file")
	return cmd
}

// serve runs the servers until ctx is done or a signal arrives.
func (o *serveOptions) serve(ctx context.Context) error {
	db, err := store.Open(o.dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	filter := rpc.NewServer(rpc.WithLogger(o.log), rpc.WithMetrics(metrics.New(reg)))

	lis, err := net.Listen("tcp", o.addr)
	if err != nil {
		return err
	}
	grpcSrv := grpc.NewServer()
	rpc.Register(grpcSrv, filter)

	httpLis, err := net.Listen("tcp", o.httpAddr)
	if err != nil {
		lis.Close()
		return err
	}
	httpSrv := &http.Server{
		Handler:           httpd.New(filter, db, reg, o.log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o.log.Info("grpc server starting", "addr", lis.Addr().String(), "db", o.dbFile)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		o.log.Info("http server starting", "addr", httpLis.Addr().String())
		if err := httpSrv.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		o.log.Info("servers stopping")
		grpcSrv.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
