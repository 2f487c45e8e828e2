// Command docrepod serves the document repository over gRPC and exposes
// Prometheus metrics over HTTP.
package main

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/docrepo/internal/common"
	"github.com/joseph-ayodele/docrepo/internal/server"
)

// grpcOverhead covers base64 expansion and the Struct envelope around an upload.
const grpcOverhead = 1 << 20

func main() {
	os.Exit(run())
}

// maxRecvMsgSize sizes the gRPC receive limit for a base64 upload of at most
// maxBytes. Zero or an oversized limit means no practical cap.
func maxRecvMsgSize(maxBytes int64) int {
	if maxBytes <= 0 || maxBytes > (math.MaxInt32-grpcOverhead)/4*3 {
		return math.MaxInt32
	}
	return int((maxBytes+2)/3*4) + grpcOverhead
}

func run() int {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log)
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c, err := server.NewComponents(ctx, cfg, logger, reg)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return 1
	}
	defer c.Close()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		return 1
	}
	maxMsg := maxRecvMsgSize(cfg.Ingest.MaxBytes)
	grpcServer, healthServer := server.NewGRPCServer(c, logger, grpc.MaxRecvMsgSize(maxMsg))
	reflection.Register(grpcServer)

	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsServer = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	logger.Info("docrepod listening", "addr", cfg.Server.GRPCAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return 0
}
