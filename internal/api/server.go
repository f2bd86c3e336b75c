// Package api serves the staff-facing admin HTTP API: running bulk approval
// batches, reading their reports and downloading exports.
package api

import (
	"context"
	"time"

	"opas-admin-workers/internal/common/auth"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/models"
	exportrecords "opas-admin-workers/internal/workers/reporting/export-records"
	bulksellerapproval "opas-admin-workers/internal/workers/seller-approval/bulk-seller-approval"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BatchRunner interface {
	Run(ctx context.Context, req *bulksellerapproval.Request) *bulksellerapproval.WorkflowResult
}

type ReportReader interface {
	Get(ctx context.Context, batchID string) (*models.BatchReport, error)
}

type Exporter interface {
	Render(ctx context.Context, input *exportrecords.Input) (*models.ExportResult, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Runner   BatchRunner
	Reports  ReportReader
	Exporter Exporter
	Verifier *auth.JWTVerifier
	Policy   *auth.Policy
	Health   map[string]HealthCheck
	// RunTimeout bounds a batch started over HTTP. The run is detached from
	// the request so a dropped connection does not stop it halfway.
	RunTimeout time.Duration
	Logger     logger.Logger
}

type Server struct {
	opts   Options
	logger logger.Logger
}

func NewServer(opts Options) *Server {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Server{
		opts:   opts,
		logger: opts.Logger.WithFields(map[string]interface{}{"component": "admin-api"}),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), requestMetrics())

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(s.authenticate())
	{
		batches := v1.Group("/seller-batches")
		batches.POST("", s.authorize(auth.ObjSellerBatches, auth.ActRun), s.runBatch)
		batches.GET("/:batchId", s.authorize(auth.ObjSellerBatches, auth.ActRead), s.getBatchReport)

		v1.POST("/exports", s.authorize(auth.ObjExports, auth.ActRun), s.createExport)
	}
	return r
}
