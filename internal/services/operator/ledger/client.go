package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dablchess/operator/internal/platform/timeouts"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 16 << 20

// Config controls how a Client reaches the JSON API.
type Config struct {
	// BaseURL is the JSON API root, e.g. http://localhost:7575.
	BaseURL string
	// Token is the bearer JWT presented on every request.
	Token          string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	// SubmitLimiter paces create and exercise calls. Nil means unlimited.
	SubmitLimiter *rate.Limiter
	// NewCommandID returns the command id attached to each submission.
	NewCommandID func() string
	Dialer       *websocket.Dialer
}

// Client talks to the ledger JSON API on behalf of one party.
type Client struct {
	baseURL      *url.URL
	token        string
	http         *http.Client
	timeout      time.Duration
	limiter      *rate.Limiter
	newCommandID func() string
	dialer       *websocket.Dialer
}

// NewClient validates cfg and returns a ready client.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("ledger url is required")
	}
	baseURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse ledger url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("ledger url scheme must be http or https, got %q", baseURL.Scheme)
	}
	if baseURL.Host == "" {
		return nil, fmt.Errorf("ledger url host is required")
	}
	baseURL.Path = strings.TrimSuffix(baseURL.Path, "/")

	client := &Client{
		baseURL:      baseURL,
		token:        strings.TrimSpace(cfg.Token),
		http:         cfg.HTTPClient,
		timeout:      cfg.RequestTimeout,
		limiter:      cfg.SubmitLimiter,
		newCommandID: cfg.NewCommandID,
		dialer:       cfg.Dialer,
	}
	if client.http == nil {
		client.http = http.DefaultClient
	}
	if client.timeout <= 0 {
		client.timeout = timeouts.LedgerRequest
	}
	if client.newCommandID == nil {
		client.newCommandID = uuid.NewString
	}
	if client.dialer == nil {
		client.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeouts.StreamHandshake,
		}
	}
	return client, nil
}

type queryRequest struct {
	TemplateIDs []string       `json:"templateIds"`
	Query       map[string]any `json:"query,omitempty"`
}

type commandMeta struct {
	CommandID string `json:"commandId"`
}

type createRequest struct {
	TemplateID string         `json:"templateId"`
	Payload    map[string]any `json:"payload"`
	Meta       commandMeta    `json:"meta"`
}

type exerciseRequest struct {
	TemplateID string         `json:"templateId"`
	ContractID string         `json:"contractId"`
	Choice     string         `json:"choice"`
	Argument   map[string]any `json:"argument"`
	Meta       commandMeta    `json:"meta"`
}

type responseEnvelope struct {
	Status int             `json:"status"`
	Result json.RawMessage `json:"result"`
	Errors []string        `json:"errors"`
}

// Query returns the active contracts of templateID whose payload matches filter.
func (c *Client) Query(ctx context.Context, templateID string, filter map[string]any) ([]Contract, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return nil, fmt.Errorf("template id is required")
	}
	var contracts []Contract
	if err := c.post(ctx, "/v1/query", queryRequest{TemplateIDs: []string{templateID}, Query: filter}, &contracts); err != nil {
		return nil, fmt.Errorf("query %s: %w", templateID, err)
	}
	return contracts, nil
}

// Create submits a create command and returns the created contract.
func (c *Client) Create(ctx context.Context, templateID string, payload map[string]any) (Contract, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return Contract{}, fmt.Errorf("template id is required")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if err := c.waitSubmit(ctx); err != nil {
		return Contract{}, err
	}
	var created Contract
	request := createRequest{
		TemplateID: templateID,
		Payload:    payload,
		Meta:       commandMeta{CommandID: c.newCommandID()},
	}
	if err := c.post(ctx, "/v1/create", request, &created); err != nil {
		return Contract{}, fmt.Errorf("create %s: %w", templateID, err)
	}
	return created, nil
}

// Exercise submits choice on contractID with argument.
func (c *Client) Exercise(ctx context.Context, templateID, contractID, choice string, argument map[string]any) (ExerciseResult, error) {
	templateID = strings.TrimSpace(templateID)
	contractID = strings.TrimSpace(contractID)
	choice = strings.TrimSpace(choice)
	switch {
	case templateID == "":
		return ExerciseResult{}, fmt.Errorf("template id is required")
	case contractID == "":
		return ExerciseResult{}, fmt.Errorf("contract id is required")
	case choice == "":
		return ExerciseResult{}, fmt.Errorf("choice is required")
	}
	if argument == nil {
		argument = map[string]any{}
	}
	if err := c.waitSubmit(ctx); err != nil {
		return ExerciseResult{}, err
	}
	var result ExerciseResult
	request := exerciseRequest{
		TemplateID: templateID,
		ContractID: contractID,
		Choice:     choice,
		Argument:   argument,
		Meta:       commandMeta{CommandID: c.newCommandID()},
	}
	if err := c.post(ctx, "/v1/exercise", request, &result); err != nil {
		return ExerciseResult{}, fmt.Errorf("exercise %s on %s: %w", choice, contractID, err)
	}
	return result, nil
}

func (c *Client) waitSubmit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for submission slot: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= http.StatusMultipleChoices {
			return &APIError{Status: resp.StatusCode, Errors: []string{strings.TrimSpace(string(raw))}}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	status := envelope.Status
	if status == 0 || resp.StatusCode >= http.StatusMultipleChoices {
		status = resp.StatusCode
	}
	if status >= http.StatusMultipleChoices || len(envelope.Errors) > 0 {
		if status < http.StatusMultipleChoices {
			status = http.StatusInternalServerError
		}
		return &APIError{Status: status, Errors: envelope.Errors}
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	return u.String()
}
