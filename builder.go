package goCtrl

import (
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/goCtrl/authcache"
	"github.com/MrEthical07/goCtrl/credential"
	"github.com/MrEthical07/goCtrl/masking"
)

// Builder assembles a [Client]. Construction is allocation-only; no I/O
// happens before Build, and Build itself only reads the masking ruleset
// file. A Builder is single-use.
type Builder struct {
	config Config
	rdb    *redis.Client

	auditSink  AuditSink
	logger     *zap.Logger
	httpClient *http.Client

	built bool
}

// New returns a Builder pre-loaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. Zero values are filled from the
// defaults at Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis provides the shared Redis client backing the authorization
// cache and the audit queue. Optional; without it the cache runs in
// pass-through mode.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.rdb = client
	return b
}

// WithAuditSink overrides the audit destination. Without an explicit sink,
// records go to the Redis queue when a Redis client is present, else they
// are discarded.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger provides the structured logger for internal diagnostics.
// Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithHTTPClient overrides the HTTP client used for every controller call,
// token issuance included.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// Build validates the configuration, loads the masking ruleset once, and
// wires the client together.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	applyConfigDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("goctrl")

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	metrics := &metricSet{enabled: cfg.Metrics.Enabled}

	masker := masking.New(masking.Options{
		RulesetPath: cfg.Masking.RulesetPath,
		OnFallback:  func() { metrics.inc(MetricMaskingFallback) },
	})

	fetcher := &tokenFetcher{cfg: cfg.Controller, client: httpClient, now: time.Now}
	creds := credential.NewStore(fetcher, credential.Options{
		RefreshWindow: cfg.Credential.RefreshWindow,
		ExpiryBuffer:  cfg.Credential.ExpiryBuffer,
		FetchTimeout:  cfg.Credential.FetchTimeout,
		Logger:        logger,
		Events:        credEvents{m: metrics},
	})

	transport := newTransport(cfg.Controller, creds, httpClient, logger, func() {
		metrics.inc(MetricTransportRetry)
	})

	sink := b.auditSink
	if sink == nil && b.rdb != nil {
		sink = NewRedisQueueSink(
			b.rdb,
			cfg.Audit.QueueKey,
			cfg.Audit.QueueMaxLen,
			transport,
			cfg.Controller.LogIngestPath,
			cfg.Audit.DeliveryTimeout,
			logger,
		)
	}
	disp := newAuditDispatcher(cfg.Audit, sink)

	var pipeline Doer = transport
	if disp != nil {
		pipeline = newAuditPipeline(
			transport, disp, masker, cfg.Audit, cfg.Controller, creds, logger,
			func() { metrics.inc(MetricAuditEmitted) },
			func() { metrics.inc(MetricAuditExcluded) },
		)
	}

	var cacheStore redis.Cmdable
	if cfg.Cache.Enabled && b.rdb != nil {
		cacheStore = b.rdb
	}
	cache := authcache.New(cacheStore, &controllerLoader{doer: pipeline}, authcache.Options{
		Prefix:    cfg.Cache.RedisPrefix,
		TTL:       cfg.Cache.TTL,
		OpTimeout: cfg.Cache.OpTimeout,
		Logger:    logger,
		Events:    cacheEvents{m: metrics},
	})

	b.built = true

	return &Client{
		cfg:        cfg,
		log:        logger,
		metrics:    metrics,
		creds:      creds,
		transport:  transport,
		pipeline:   pipeline,
		cache:      cache,
		masker:     masker,
		disp:       disp,
		httpClient: httpClient,
	}, nil
}
