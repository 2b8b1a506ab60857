package goCtrl

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/goCtrl/credential"
	"github.com/MrEthical07/goCtrl/masking"
)

const auditActionControllerCall = "controller_call"

// AuditPipeline wraps a Doer and emits one masked audit record per call.
// Records are handed to the dispatcher asynchronously; nothing on this
// path may fail the wrapped call, so record construction runs under a
// recover and every delivery problem is absorbed downstream.
//
// Calls to the token-issuance and log-ingestion endpoints are excluded,
// otherwise shipping an audit record would itself produce audit records
// without end.
type AuditPipeline struct {
	next       Doer
	disp       *auditDispatcher
	masker     *masking.Masker
	cfg        AuditConfig
	controller ControllerConfig
	creds      *credential.Store
	log        *zap.Logger
	exclude    map[string]struct{}
	onEmitted  func()
	onExcluded func()
}

func newAuditPipeline(
	next Doer,
	disp *auditDispatcher,
	masker *masking.Masker,
	cfg AuditConfig,
	controller ControllerConfig,
	creds *credential.Store,
	log *zap.Logger,
	onEmitted, onExcluded func(),
) *AuditPipeline {
	return &AuditPipeline{
		next:       next,
		disp:       disp,
		masker:     masker,
		cfg:        cfg,
		controller: controller,
		creds:      creds,
		log:        log.Named("audit"),
		exclude: map[string]struct{}{
			controller.TokenPath:     {},
			controller.LogIngestPath: {},
		},
		onEmitted:  onEmitted,
		onExcluded: onExcluded,
	}
}

// Do executes req through the wrapped Doer and audits the outcome. The
// returned values are exactly those of the wrapped call; auditing cannot
// change them.
func (p *AuditPipeline) Do(ctx context.Context, req Request) (*Response, error) {
	if _, excluded := p.exclude[req.Path]; excluded || p.disp == nil {
		if excluded && p.onExcluded != nil {
			p.onExcluded()
		}
		return p.next.Do(ctx, req)
	}

	start := time.Now()
	resp, err := p.next.Do(ctx, req)
	duration := time.Since(start)

	p.record(ctx, req, resp, err, duration)

	return resp, err
}

// record builds and enqueues the audit record. Every failure in here is
// swallowed: logging must never cause a request to fail.
func (p *AuditPipeline) record(ctx context.Context, req Request, resp *Response, callErr error, duration time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Debug("audit record construction failed", zap.Any("panic", r))
		}
	}()

	rec := AuditRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    auditActionControllerCall,
		Resource:  req.Path,
		Context:   p.buildContext(req, resp, callErr, duration),
	}

	p.disp.Emit(ctx, rec)
	if p.onEmitted != nil {
		p.onEmitted()
	}
}

func (p *AuditPipeline) buildContext(req Request, resp *Response, callErr error, duration time.Duration) map[string]any {
	c := map[string]any{
		"method":     req.Method,
		"path":       req.Path,
		"durationMs": duration.Milliseconds(),
		"caller":     p.callerIdentity(),
	}
	if len(req.Query) > 0 {
		c["query"] = p.masker.MaskQuery(req.Query)
	}
	if resp != nil {
		c["statusCode"] = resp.StatusCode
		c["requestSize"] = resp.RequestSize
		c["responseSize"] = int64(len(resp.Body))
	}
	if callErr != nil {
		c["error"] = p.masker.MaskBody([]byte(callErr.Error()))
	}

	if p.cfg.Debug {
		c["baseUrl"] = p.controller.BaseURL
		c["timeoutMs"] = p.controller.RequestTimeout.Milliseconds()
		if req.Body != nil {
			c["requestBody"] = p.masker.Mask(req.Body)
		}
		if resp != nil {
			c["requestHeaders"] = p.masker.MaskHeaders(resp.RequestHeader)
			c["responseHeaders"] = p.masker.MaskHeaders(resp.Header)
			c["responseBody"] = p.masker.MaskBody(resp.Body)
		}
	}
	return c
}

// callerIdentity decodes the subject claim out of the current credential.
// The value is this SDK's own token, already trusted, so an unverified
// decode is fine; anything undecodable falls back to the configured client
// id.
func (p *AuditPipeline) callerIdentity() string {
	cred, ok := p.creds.Current()
	if ok && cred.Value != "" {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(cred.Value, claims); err == nil {
			if sub, err := claims.GetSubject(); err == nil && sub != "" {
				return sub
			}
		}
	}
	return p.controller.ClientID
}
