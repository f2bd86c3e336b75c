// Package app builds the shared components of the worker manager and the
// admin CLI from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"opas-admin-workers/internal/api"
	"opas-admin-workers/internal/audit"
	"opas-admin-workers/internal/common/auth"
	commonaws "opas-admin-workers/internal/common/aws"
	"opas-admin-workers/internal/common/camunda"
	"opas-admin-workers/internal/common/config"
	"opas-admin-workers/internal/common/database"
	"opas-admin-workers/internal/common/events"
	httpclient "opas-admin-workers/internal/common/http"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/observability"
	"opas-admin-workers/internal/common/storage"
	"opas-admin-workers/internal/common/validation"
	"opas-admin-workers/internal/export"
	"opas-admin-workers/internal/opas"
	exportrecords "opas-admin-workers/internal/workers/reporting/export-records"
	buildbatchreport "opas-admin-workers/internal/workers/seller-approval/build-batch-report"
	bulksellerapproval "opas-admin-workers/internal/workers/seller-approval/bulk-seller-approval"
	executeapprovals "opas-admin-workers/internal/workers/seller-approval/execute-approvals"
	filterapplications "opas-admin-workers/internal/workers/seller-approval/filter-applications"
	sendapprovalnotifications "opas-admin-workers/internal/workers/seller-approval/send-approval-notifications"
	validatebatch "opas-admin-workers/internal/workers/seller-approval/validate-batch"
	"opas-admin-workers/pkg/registry"
)

const eventSource = "opas-admin-workers"

// App holds every configured component. Optional stores are nil when their
// section of the configuration is empty.
type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Obs       *observability.Observability
	Registry  *registry.ActivityRegistry
	Validator *validation.Validator

	OPAS     *opas.Client
	Postgres *database.PostgresClient
	Redis    *database.RedisClient
	Elastic  *database.ElasticsearchClient
	Audit    *audit.Store
	Reports  *buildbatchreport.RedisSink
	Events   events.Publisher
	Exports  *storage.Store

	Filter   *filterapplications.Handler
	Validate *validatebatch.Handler
	Execute  *executeapprovals.Handler
	Notify   *sendapprovalnotifications.Handler
	Report   *buildbatchreport.Handler
	Bulk     *bulksellerapproval.Handler
	Export   *exportrecords.Handler

	closers     []func() error
	extraChecks map[string]api.HealthCheck
}

// New connects the optional stores and builds every handler. Stores are not
// pinged here, see HealthChecks; only the report index is bootstrapped.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, obs *observability.Observability) (*App, error) {
	a := &App{Config: cfg, Logger: log, Obs: obs}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	if err := a.loadRegistry(); err != nil {
		return err
	}

	a.OPAS = opas.NewClient(cfg.OpasAPI.BaseURL, config.GetDuration(cfg.OpasAPI.Timeout), tokenSource(cfg))

	if cfg.Database.Postgres.Enabled() {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.Postgres = pg
		a.closers = append(a.closers, pg.Close)
		a.Audit = audit.NewStore(pg.DB)
		if err := a.Audit.EnsureSchema(ctx); err != nil {
			a.Logger.Warn("audit schema not ensured", map[string]interface{}{"error": err.Error()})
		}
	}

	var sinks []buildbatchreport.Sink
	if cfg.Database.Redis.Address != "" {
		a.Redis = database.NewRedis(cfg.Database.Redis)
		a.closers = append(a.closers, a.Redis.Close)
		a.Reports = buildbatchreport.NewRedisSink(a.Redis.Client, time.Duration(cfg.Batch.ReportTTLHours)*time.Hour)
		sinks = append(sinks, a.Reports)
	}
	if cfg.Database.Elasticsearch.GetURL() != "" {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return fmt.Errorf("elasticsearch: %w", err)
		}
		a.Elastic = es
		if err := es.EnsureIndex(ctx, cfg.Database.Elasticsearch.ReportIndex, database.ReportIndexMapping); err != nil {
			a.Logger.Warn("report index not ensured", map[string]interface{}{"error": err.Error()})
		}
		sinks = append(sinks, buildbatchreport.NewElasticsearchSink(es.Client, cfg.Database.Elasticsearch.ReportIndex))
	}
	a.Events = events.NewKafkaPublisher(cfg.Events.Kafka.Brokers, cfg.Events.Kafka.Topic, eventSource)
	a.closers = append(a.closers, a.Events.Close)
	if len(cfg.Events.Kafka.Brokers) > 0 {
		sinks = append(sinks, buildbatchreport.NewEventSink(a.Events))
	}

	if cfg.Export.BucketURL != "" {
		store, err := storage.Open(ctx, cfg.Export.BucketURL, "exports")
		if err != nil {
			return err
		}
		a.Exports = store
		a.closers = append(a.closers, store.Close)
	}

	return a.buildHandlers(ctx, sinks)
}

func (a *App) loadRegistry() error {
	reg, err := registry.LoadRegistry(a.Config.RegistryPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		a.Logger.Warn("activity registry not found, input schemas disabled", map[string]interface{}{
			"path": a.Config.RegistryPath,
		})
		reg = nil
	case err != nil:
		return fmt.Errorf("load activity registry: %w", err)
	default:
		if problems := reg.Validate(); len(problems) > 0 {
			return fmt.Errorf("activity registry %s is invalid: %v", a.Config.RegistryPath, problems)
		}
	}

	v, err := validation.NewValidator(reg)
	if err != nil {
		return err
	}
	a.Registry = reg
	a.Validator = v
	return nil
}

func (a *App) buildHandlers(ctx context.Context, sinks []buildbatchreport.Sink) error {
	cfg := a.Config
	log := a.Logger
	timeout := func(taskType string) time.Duration {
		return handlerTimeout(config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout))
	}

	filterCfg := filterapplications.LoadConfig()
	filterCfg.Timeout = timeout(filterapplications.TaskType)
	filterCfg.RecentWindow = time.Duration(cfg.Batch.RecentWindowDays) * 24 * time.Hour
	a.Filter = filterapplications.NewHandler(filterCfg, a.Validator, log)

	validateCfg := validatebatch.LoadConfig()
	validateCfg.Timeout = timeout(validatebatch.TaskType)
	validateCfg.MaxBatchSize = cfg.Batch.MaxSize
	a.Validate = validatebatch.NewHandler(validateCfg, a.Validator, log)

	executeCfg := executeapprovals.LoadConfig()
	executeCfg.StopOnFirstError = cfg.Batch.StopOnFirstError
	executeCfg.Timeout = timeout(executeapprovals.TaskType)
	var recorder executeapprovals.AuditRecorder
	if a.Audit != nil {
		recorder = a.Audit
	}
	a.Execute = executeapprovals.NewHandler(executeCfg, a.OPAS, recorder, a.Validator, log)

	notify, err := a.buildNotify(ctx)
	if err != nil {
		return err
	}
	a.Notify = notify

	reportCfg := buildbatchreport.LoadConfig()
	reportCfg.Timeout = timeout(buildbatchreport.TaskType)
	a.Report = buildbatchreport.NewHandler(reportCfg, sinks, a.Validator, log)

	bulkCfg := bulksellerapproval.LoadConfig()
	bulkCfg.Timeout = timeout(bulksellerapproval.TaskType)
	a.Bulk = bulksellerapproval.NewHandler(bulkCfg, a.OPAS, bulksellerapproval.Stages{
		Filter:   a.Filter,
		Validate: a.Validate,
		Execute:  a.Execute,
		Notify:   a.Notify,
		Report:   a.Report,
	}, a.Obs, a.Validator, log)

	formatter := export.NewFormatter(export.Options{
		Delimiter:      delimiter(cfg.Export.Delimiter),
		IncludeHeaders: true,
		MaxCSVBytes:    cfg.Export.MaxCSVBytes,
	})
	exportCfg := exportrecords.LoadConfig()
	exportCfg.Timeout = timeout(exportrecords.TaskType)
	var store exportrecords.FileStore
	if a.Exports != nil {
		store = a.Exports
	}
	var lister exportrecords.AuditLister
	if a.Audit != nil {
		lister = a.Audit
	}
	a.Export = exportrecords.NewHandler(exportCfg, formatter, store, lister, a.Validator, log)
	return nil
}

func (a *App) buildNotify(ctx context.Context) (*sendapprovalnotifications.Handler, error) {
	n := a.Config.Notifications
	nc := sendapprovalnotifications.DefaultConfig()
	nc.Timeout = handlerTimeout(config.GetDuration(config.GetWorkerConfig(a.Config, sendapprovalnotifications.TaskType).Timeout))
	nc.Mode = n.Mode
	nc.EmailEnabled = n.Email.Enabled
	nc.SMSEnabled = n.SMS.Enabled
	if n.Email.FromEmail != "" {
		nc.FromEmail = n.Email.FromEmail
	}
	if !nc.EmailEnabled && !nc.SMSEnabled {
		nc.EmailEnabled = true
	}

	var email sendapprovalnotifications.EmailSender
	var sms sendapprovalnotifications.SMSSender
	if nc.Mode == sendapprovalnotifications.ModeSES {
		ses, sns, err := commonaws.NewClients(ctx, n.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("aws clients: %w", err)
		}
		email, sms = ses, sns
	}
	return sendapprovalnotifications.NewHandler(nc, email, sms, a.Validator, a.Logger)
}

func delimiter(s string) rune {
	for _, r := range s {
		return r
	}
	return ','
}

func tokenSource(cfg *config.Config) httpclient.TokenSource {
	kc := cfg.Auth.Keycloak
	if cfg.OpasAPI.Token == "" && kc.Enabled() {
		return auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret)
	}
	return auth.StaticToken(cfg.OpasAPI.Token)
}

// Handlers maps every Zeebe task type to its handler.
func (a *App) Handlers() map[string]camunda.JobHandler {
	return map[string]camunda.JobHandler{
		bulksellerapproval.TaskType:        a.Bulk,
		filterapplications.TaskType:        a.Filter,
		validatebatch.TaskType:             a.Validate,
		executeapprovals.TaskType:          a.Execute,
		sendapprovalnotifications.TaskType: a.Notify,
		buildbatchreport.TaskType:          a.Report,
		exportrecords.TaskType:             a.Export,
	}
}

// RegisterHealthCheck adds a check for a dependency owned outside App,
// such as the Zeebe gateway.
func (a *App) RegisterHealthCheck(name string, check api.HealthCheck) {
	if a.extraChecks == nil {
		a.extraChecks = map[string]api.HealthCheck{}
	}
	a.extraChecks[name] = check
}

// HealthChecks returns a ping for every configured store.
func (a *App) HealthChecks() map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{}
	for name, check := range a.extraChecks {
		checks[name] = check
	}
	if a.Postgres != nil {
		checks["postgres"] = a.Postgres.Ping
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Ping
	}
	if a.Elastic != nil {
		checks["elasticsearch"] = a.Elastic.Ping
	}
	return checks
}

// APIServer builds the admin HTTP API. Without a JWT secret every /api
// route answers 503.
func (a *App) APIServer() (*api.Server, error) {
	policy, err := auth.NewPolicy()
	if err != nil {
		return nil, err
	}
	opts := api.Options{
		Runner:     a.Bulk,
		Exporter:   a.Export,
		Policy:     policy,
		Health:     a.HealthChecks(),
		RunTimeout: 10 * time.Minute,
		Logger:     a.Logger,
	}
	if a.Reports != nil {
		opts.Reports = a.Reports
	}
	if a.Config.Auth.JWT.Secret != "" {
		opts.Verifier = auth.NewJWTVerifier(a.Config.Auth.JWT.Secret, a.Config.Auth.JWT.Issuer)
	}
	return api.NewServer(opts), nil
}

// Close releases every store in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
}

// handlerTimeout bounds a handler inside the Zeebe job lock, leaving a margin
// to settle the job before the broker can activate it again elsewhere.
func handlerTimeout(jobTimeout time.Duration) time.Duration {
	if jobTimeout <= 0 {
		return 0
	}
	margin := jobTimeout / 10
	if margin > 5*time.Second {
		margin = 5 * time.Second
	}
	return jobTimeout - margin
}
