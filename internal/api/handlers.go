package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	commonerrors "opas-admin-workers/internal/common/errors"
	"opas-admin-workers/internal/export"
	"opas-admin-workers/internal/models"
	exportrecords "opas-admin-workers/internal/workers/reporting/export-records"
	buildbatchreport "opas-admin-workers/internal/workers/seller-approval/build-batch-report"
	bulksellerapproval "opas-admin-workers/internal/workers/seller-approval/bulk-seller-approval"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("filterkind", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", models.FilterAllPending, models.FilterDateRange, models.FilterDocumentsComplete, models.FilterRecent:
			return true
		}
		return false
	})
	return v
}

type criteriaRequest struct {
	Kind  string     `json:"kind" validate:"filterkind"`
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end" validate:"required_with=Start"`
}

type batchRequest struct {
	Criteria         criteriaRequest `json:"criteria"`
	AdminNotes       string          `json:"adminNotes" validate:"max=500"`
	StopOnFirstError *bool           `json:"stopOnFirstError"`
	MaxBatchSize     int             `json:"maxBatchSize" validate:"omitempty,min=1,max=1000"`
}

type exportRequest struct {
	Name    string          `json:"name" validate:"max=100"`
	Title   string          `json:"title" validate:"max=200"`
	Format  string          `json:"format" validate:"required,oneof=csv pdf excel xlsx json"`
	Source  string          `json:"source" validate:"omitempty,oneof=inline approval_audit"`
	BatchID string          `json:"batchId"`
	Columns []string        `json:"columns"`
	Records []models.Record `json:"records"`
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.opts.Health))
	for name, check := range s.opts.Health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

// runBatch starts a bulk approval run and answers with its result. Aborted
// runs carry the same body with success=false.
func (s *Server) runBatch(c *gin.Context) {
	if s.opts.Runner == nil {
		abortWithError(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "bulk approval is not configured")
		return
	}

	var req batchRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.opts.RunTimeout)
	defer cancel()

	s.logger.Info("bulk approval requested", map[string]interface{}{
		"staff":  c.GetString(ctxStaffSubject),
		"filter": req.Criteria.Kind,
	})
	result := s.opts.Runner.Run(ctx, &bulksellerapproval.Request{
		Criteria: models.FilterCriteria{
			Kind:  req.Criteria.Kind,
			Start: req.Criteria.Start,
			End:   req.Criteria.End,
		},
		AdminNotes:       req.AdminNotes,
		StopOnFirstError: req.StopOnFirstError,
		MaxBatchSize:     req.MaxBatchSize,
	})

	if result.Success {
		c.JSON(http.StatusOK, result)
		return
	}
	c.JSON(statusForCode(result.ErrorCode), result)
}

func (s *Server) getBatchReport(c *gin.Context) {
	if s.opts.Reports == nil {
		abortWithError(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "report cache is not configured")
		return
	}

	batchID := c.Param("batchId")
	report, err := s.opts.Reports.Get(c.Request.Context(), batchID)
	if errors.Is(err, buildbatchreport.ErrReportNotFound) {
		abortWithError(c, http.StatusNotFound, "REPORT_NOT_FOUND", "no report cached for "+batchID)
		return
	}
	if err != nil {
		s.logger.Error("report lookup failed", map[string]interface{}{"batchId": batchID, "error": err.Error()})
		abortWithError(c, http.StatusBadGateway, string(commonerrors.ErrCodeExternalService), "report cache unavailable")
		return
	}
	c.JSON(http.StatusOK, report)
}

// createExport formats the requested records and returns the file itself.
func (s *Server) createExport(c *gin.Context) {
	if s.opts.Exporter == nil {
		abortWithError(c, http.StatusServiceUnavailable, "NOT_CONFIGURED", "exports are not configured")
		return
	}

	var req exportRequest
	if !bindAndValidate(c, &req) {
		return
	}

	res, err := s.opts.Exporter.Render(c.Request.Context(), &exportrecords.Input{
		Name:    req.Name,
		Title:   req.Title,
		Format:  req.Format,
		Source:  req.Source,
		BatchID: req.BatchID,
		Columns: req.Columns,
		Records: req.Records,
	})
	if err != nil {
		stdErr := commonerrors.Normalize(err)
		c.AbortWithStatusJSON(statusForCode(stdErr.Code), gin.H{"error": stdErr})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	c.Header("X-Record-Count", strconv.Itoa(res.RecordCount))
	c.Data(http.StatusOK, export.ContentType(res.Format), res.Content)
}

func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return false
	}
	if err := requestValidator.Struct(req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return false
	}
	return true
}

func statusForCode(code commonerrors.ErrorCode) int {
	switch code {
	case commonerrors.ErrCodeFetchFailed, commonerrors.ErrCodeExternalService, commonerrors.ErrCodeExportStorageFailed:
		return http.StatusBadGateway
	case commonerrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case commonerrors.ErrCodeInvalidFilter, commonerrors.ErrCodeExportUnsupportedFormat, commonerrors.ErrCodeBusinessRule:
		return http.StatusBadRequest
	case commonerrors.ErrCodeNoApplicationsMatched, commonerrors.ErrCodeBatchValidationFailed, commonerrors.ErrCodeExportEmptyDataset:
		return http.StatusUnprocessableEntity
	case commonerrors.ErrCodeExportTooLarge:
		return http.StatusRequestEntityTooLarge
	case commonerrors.ErrCodeDatabaseConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
