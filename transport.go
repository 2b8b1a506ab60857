package goCtrl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/goCtrl/credential"
)

// Headers carried on every authenticated outbound call. The client token
// rides in a dedicated header, not the bearer-auth header, so it can never
// be confused with an end-user token.
const (
	headerClientToken = "X-Client-Token"
	headerEnvironment = "X-Environment-Id"
	headerApplication = "X-Application-Id"
	headerRequestKey  = "X-Request-Key"
)

// Request describes one controller call. Body, when non-nil, is marshaled
// as JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is the raw outcome of one controller call. RequestHeader is a
// copy of the headers actually sent, kept for debug auditing.
type Response struct {
	StatusCode    int
	Header        http.Header
	Body          []byte
	RequestHeader http.Header
	RequestSize   int64
}

// Doer is the outbound call surface. Transport implements it against the
// controller; AuditPipeline wraps another Doer with audit records.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Transport performs authenticated HTTP calls against the controller. It
// injects the current credential before every call and, on an
// authentication rejection, invalidates the credential store and retries
// the call exactly once with a freshly fetched credential. A second
// rejection surfaces as ErrAuthorizationRejected.
type Transport struct {
	cfg     ControllerConfig
	creds   *credential.Store
	client  *http.Client
	log     *zap.Logger
	onRetry func()
}

func newTransport(cfg ControllerConfig, creds *credential.Store, client *http.Client, log *zap.Logger, onRetry func()) *Transport {
	if client == nil {
		client = &http.Client{}
	}
	return &Transport{
		cfg:     cfg,
		creds:   creds,
		client:  client,
		log:     log.Named("transport"),
		onRetry: onRetry,
	}
}

// Do executes req. Failed responses (status >= 400) are returned together
// with a translated error so the audit pipeline can still record status and
// body.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	resp, err := t.attempt(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.creds.Invalidate()
		if t.onRetry != nil {
			t.onRetry()
		}
		t.log.Debug("credential rejected, retrying once",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
		)

		resp, err = t.attempt(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return resp, fmt.Errorf("%w: %s %s", ErrAuthorizationRejected, req.Method, req.Path)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return resp, translateAPIError(resp.StatusCode, resp.Body, req.Path)
	}
	return resp, nil
}

func (t *Transport) attempt(ctx context.Context, req Request) (*Response, error) {
	cred, err := t.creds.Token(ctx)
	if err != nil {
		return nil, err
	}

	var (
		body io.Reader
		size int64
	)
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		size = int64(len(data))
	}

	target := t.cfg.BaseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	cctx, cancel := context.WithTimeout(ctx, t.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(cctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerClientToken, cred.Value)
	httpReq.Header.Set(headerEnvironment, t.cfg.EnvironmentID)
	httpReq.Header.Set(headerApplication, t.cfg.ApplicationID)
	httpReq.Header.Set(headerRequestKey, uuid.NewString())

	res, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode:    res.StatusCode,
		Header:        res.Header,
		Body:          data,
		RequestHeader: httpReq.Header.Clone(),
		RequestSize:   size,
	}, nil
}

// tokenFetcher implements credential.Fetcher against the controller's
// token-issuance endpoint. It deliberately bypasses Transport: the
// credential it fetches is the one Transport would try to inject.
type tokenFetcher struct {
	cfg    ControllerConfig
	client *http.Client
	now    func() time.Time
}

func (f *tokenFetcher) Fetch(ctx context.Context) (credential.Credential, error) {
	payload, err := json.Marshal(tokenRequest{
		ClientID:      f.cfg.ClientID,
		ClientSecret:  f.cfg.ClientSecret,
		EnvironmentID: f.cfg.EnvironmentID,
		ApplicationID: f.cfg.ApplicationID,
	})
	if err != nil {
		return credential.Credential{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.BaseURL+f.cfg.TokenPath, bytes.NewReader(payload))
	if err != nil {
		return credential.Credential{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerEnvironment, f.cfg.EnvironmentID)
	httpReq.Header.Set(headerApplication, f.cfg.ApplicationID)
	httpReq.Header.Set(headerRequestKey, uuid.NewString())

	res, err := f.client.Do(httpReq)
	if err != nil {
		return credential.Credential{}, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return credential.Credential{}, err
	}
	if res.StatusCode != http.StatusOK {
		return credential.Credential{}, fmt.Errorf("token endpoint returned %d", res.StatusCode)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return credential.Credential{}, fmt.Errorf("decode token response: %w", err)
	}
	if parsed.Value == "" {
		return credential.Credential{}, fmt.Errorf("token response missing value")
	}

	now := f.now()
	cred := credential.Credential{Value: parsed.Value, IssuedAt: now}
	switch {
	case parsed.ExpiresAt != nil:
		cred.ExpiresAt = *parsed.ExpiresAt
	case parsed.ExpiresIn > 0:
		cred.ExpiresAt = now.Add(time.Duration(parsed.ExpiresIn) * time.Second)
	default:
		return credential.Credential{}, fmt.Errorf("token response missing lifetime")
	}
	return cred, nil
}
