package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/viewkit/errors"
	"github.com/kbukum/viewkit/logger"
	"github.com/kbukum/viewkit/observability"
	"github.com/kbukum/viewkit/resilience"
	"github.com/kbukum/viewkit/resource"
)

const serviceName = "postgrest"

// Store implements resource.Store over the PostgREST HTTP API that Supabase
// exposes.
type Store struct {
	baseURL    string
	apiKey     string
	schema     string
	httpClient *http.Client
	retry      resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
	log        *logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log.WithComponent(serviceName)
		}
	}
}

// New creates a PostgREST store.
func New(cfg Config, opts ...Option) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/" + strings.Trim(cfg.RestPath, "/"),
		apiKey:     cfg.APIKey,
		schema:     cfg.Schema,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.retry = cfg.Retry
	s.retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		s.log.Warn("retrying select", logger.Fields("attempt", attempt, "backoff", backoff.String(), logger.FieldError, err.Error()))
	}
	breaker := cfg.Breaker
	breaker.Name = serviceName
	breaker.OnStateChange = func(name string, from, to resilience.State) {
		s.log.Warn("circuit breaker state changed", logger.Fields("service", name, "from", from.String(), "to", to.String()))
	}
	s.breaker = resilience.NewCircuitBreaker(breaker)
	return s, nil
}

// Select returns the rows matching q.
func (s *Store) Select(ctx context.Context, name string, q resource.Query) ([]resource.Row, error) {
	res, err := s.selectRows(ctx, name, q, false)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// SelectWithCount returns the rows matching q and the exact number of rows
// matching its predicates, ignoring the range.
func (s *Store) SelectWithCount(ctx context.Context, name string, q resource.Query) (resource.Result, error) {
	return s.selectRows(ctx, name, q, true)
}

func (s *Store) selectRows(ctx context.Context, name string, q resource.Query, count bool) (resource.Result, error) {
	if err := q.Validate(name); err != nil {
		return resource.Result{}, err
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanStoreQuery, trace.WithAttributes(
		attribute.String(observability.AttrResource, name),
		attribute.String("store", serviceName),
	))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	var res resource.Result
	res, err = resilience.Retry(ctx, s.retry, func(ctx context.Context) (resource.Result, error) {
		return s.fetch(ctx, name, q, count)
	})
	if err != nil {
		return resource.Result{}, err
	}
	s.log.Debug("rows selected", logger.Fields(logger.FieldResource, name, "rows", len(res.Rows), "count", res.Count))
	return res, nil
}

// fetch sends one select request. The request is rebuilt on every attempt.
func (s *Store) fetch(ctx context.Context, name string, q resource.Query, count bool) (resource.Result, error) {
	req, err := s.newRequest(ctx, http.MethodGet, name, encodeQuery(q), nil)
	if err != nil {
		return resource.Result{}, err
	}
	if q.Range != nil {
		req.Header.Set("Range-Unit", "items")
		req.Header.Set("Range", fmt.Sprintf("%d-%d", q.Range.From, q.Range.To))
	}
	if count {
		req.Header.Set("Prefer", "count=exact")
	}

	resp, err := s.do(req, name)
	if err != nil {
		return resource.Result{}, err
	}
	defer resp.Body.Close()

	total := parseContentRange(resp.Header.Get("Content-Range"))

	// a range past the last row is 416 with the total still reported
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		return resource.Result{Rows: []resource.Row{}, Count: max(total, 0)}, nil
	}
	if err := checkStatus(resp, name); err != nil {
		return resource.Result{}, err
	}

	var rows []resource.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return resource.Result{}, errors.ExternalServiceError(serviceName, fmt.Errorf("decode %s rows: %w", name, err))
	}
	if rows == nil {
		rows = []resource.Row{}
	}
	if total < 0 {
		total = len(rows)
	}
	return resource.Result{Rows: rows, Count: total}, nil
}

// Insert creates rows and returns them as stored.
func (s *Store) Insert(ctx context.Context, name string, rows ...resource.Row) ([]resource.Row, error) {
	if !resource.ValidIdentifier(name) {
		return nil, errors.InvalidInput("resource", "invalid resource name "+name)
	}
	if len(rows) == 0 {
		return []resource.Row{}, nil
	}
	return s.write(ctx, http.MethodPost, name, nil, rows)
}

// Update sets values on rows matching where and returns the updated rows.
func (s *Store) Update(ctx context.Context, name string, values resource.Row, where ...resource.Predicate) ([]resource.Row, error) {
	if err := checkWhere(name, where); err != nil {
		return nil, err
	}
	v := url.Values{}
	addFilters(v, where)
	return s.write(ctx, http.MethodPatch, name, v, values)
}

// Delete removes rows matching where.
func (s *Store) Delete(ctx context.Context, name string, where ...resource.Predicate) error {
	if err := checkWhere(name, where); err != nil {
		return err
	}
	v := url.Values{}
	addFilters(v, where)

	req, err := s.newRequest(ctx, http.MethodDelete, name, v, nil)
	if err != nil {
		return err
	}
	resp, err := s.do(req, name)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, name); err != nil {
		return err
	}
	s.log.Debug("rows deleted", logger.Fields(logger.FieldResource, name))
	return nil
}

// CheckHealth implements observability.HealthChecker.
func (s *Store) CheckHealth(ctx context.Context) observability.Health {
	h := observability.Health{Name: serviceName, Status: observability.HealthStatusUp}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/", nil)
	if err != nil {
		h.Status, h.Message = observability.HealthStatusDown, err.Error()
		return h
	}
	s.setHeaders(req)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		h.Status, h.Message = observability.HealthStatusDown, err.Error()
		return h
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		h.Status, h.Message = observability.HealthStatusDown, fmt.Sprintf("status %d", resp.StatusCode)
	}
	return h
}

func checkWhere(name string, where []resource.Predicate) error {
	if !resource.ValidIdentifier(name) {
		return errors.InvalidInput("resource", "invalid resource name "+name)
	}
	if len(where) == 0 {
		return errors.MissingField("where")
	}
	return resource.ValidatePredicates(where)
}

func (s *Store) write(ctx context.Context, method, name string, v url.Values, body any) ([]resource.Row, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.InvalidInput("body", err.Error())
	}

	req, err := s.newRequest(ctx, method, name, v, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.do(req, name)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, name); err != nil {
		return nil, err
	}

	var rows []resource.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, errors.ExternalServiceError(serviceName, fmt.Errorf("decode %s rows: %w", name, err))
	}
	s.log.Debug("rows written", logger.Fields(logger.FieldResource, name, "method", method, "rows", len(rows)))
	return rows, nil
}

func (s *Store) newRequest(ctx context.Context, method, name string, v url.Values, body io.Reader) (*http.Request, error) {
	u := s.baseURL + "/" + name
	if len(v) > 0 {
		u += "?" + v.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("postgrest: create request: %w", err))
	}
	s.setHeaders(req)
	if s.schema != "" {
		if method == http.MethodGet {
			req.Header.Set("Accept-Profile", s.schema)
		} else {
			req.Header.Set("Content-Profile", s.schema)
		}
	}
	return req, nil
}

func (s *Store) setHeaders(req *http.Request) {
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
}

// do sends req through the circuit breaker. Transport errors and 5xx
// responses count as failures; a 5xx response is still returned so that
// checkStatus can map it.
func (s *Store) do(req *http.Request, name string) (*http.Response, error) {
	var (
		resp  *http.Response
		doErr error
	)
	err := s.breaker.Execute(func() error {
		resp, doErr = s.httpClient.Do(req)
		switch {
		case doErr != nil && req.Context().Err() != nil:
			return nil
		case doErr != nil:
			return doErr
		case resp.StatusCode >= 500:
			return errServerStatus
		}
		return nil
	})
	if resp != nil {
		return resp, nil
	}
	if doErr != nil {
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}
		s.log.Warn("request failed", logger.Fields(logger.FieldResource, name, logger.FieldError, doErr.Error()))
		return nil, errors.ConnectionFailed(serviceName).WithCause(doErr)
	}
	if err != nil {
		s.log.Warn("request rejected", logger.Fields(logger.FieldResource, name, logger.FieldError, err.Error()))
	}
	return nil, err
}

var errServerStatus = stderrors.New("postgrest: server error")

// BreakerState returns the state of the store's circuit breaker.
func (s *Store) BreakerState() resilience.State {
	return s.breaker.State()
}

// apiError is the PostgREST error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func checkStatus(resp *http.Response, name string) error {
	if resp.StatusCode < 400 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)

	var apiErr apiError
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	cause := fmt.Errorf("postgrest %s failed (status %d): %s", name, resp.StatusCode, msg)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound(name, "").WithCause(cause)
	case resp.StatusCode == http.StatusConflict:
		return errors.Conflict(msg).WithCause(cause)
	case resp.StatusCode == http.StatusBadRequest:
		return errors.InvalidInput(name, msg).WithCause(cause)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return errors.ServiceUnavailable(serviceName).WithCause(cause)
	default:
		return errors.ExternalServiceError(serviceName, cause).WithDetail("status", resp.StatusCode).WithDetail("code", apiErr.Code)
	}
}

var (
	_ resource.Store              = (*Store)(nil)
	_ observability.HealthChecker = (*Store)(nil)
)
