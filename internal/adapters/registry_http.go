package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pipeline-bundles/internal/ports"
	"pipeline-bundles/internal/shared"
	"pipeline-bundles/internal/types"
)

const defaultRegistryTimeout = 60 * time.Second

// RegistryHTTPAdapter talks to the registry service REST API.
type RegistryHTTPAdapter struct {
	Endpoint  string
	APIKey    string
	HTTPProxy string
	Timeout   time.Duration
}

func NewRegistryHTTPAdapter(endpoint string, apiKey string, httpProxy string, timeoutSec int) RegistryHTTPAdapter {
	timeout := defaultRegistryTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	return RegistryHTTPAdapter{
		Endpoint:  strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		APIKey:    apiKey,
		HTTPProxy: httpProxy,
		Timeout:   timeout,
	}
}

type searchRequest struct {
	Filters [][]any  `json:"filters"`
	Fields  []string `json:"fields,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

type recordsResponse struct {
	Data []types.ServiceRecord `json:"data"`
}

type recordResponse struct {
	Data types.ServiceRecord `json:"data"`
}

func (a RegistryHTTPAdapter) Host() string {
	return a.Endpoint
}

func (a RegistryHTTPAdapter) Find(ctx context.Context, entityType string, filters []types.Filter, fields []string) ([]types.ServiceRecord, error) {
	return a.search(ctx, entityType, filters, fields, 0)
}

func (a RegistryHTTPAdapter) FindOne(ctx context.Context, entityType string, filters []types.Filter, fields []string) (types.ServiceRecord, error) {
	records, err := a.search(ctx, entityType, filters, fields, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (a RegistryHTTPAdapter) search(ctx context.Context, entityType string, filters []types.Filter, fields []string, limit int) ([]types.ServiceRecord, error) {
	body := searchRequest{Fields: fields, Limit: limit, Filters: [][]any{}}
	for _, filter := range filters {
		body.Filters = append(body.Filters, []any{filter.Field, "is", filter.Value})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode registry query").
			WithCause(err)
	}
	endpoint, err := a.url("entity", entityType, "_search")
	if err != nil {
		return nil, err
	}
	data, err := a.do(ctx, http.MethodPost, endpoint, "application/json", payload)
	if err != nil {
		return nil, err
	}
	var decoded recordsResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("invalid registry response").
			WithCause(err)
	}
	log.Debug().Str("entity", entityType).Int("records", len(decoded.Data)).Msg("registry query")
	return decoded.Data, nil
}

func (a RegistryHTTPAdapter) DownloadAttachment(ctx context.Context, attachmentID int) ([]byte, error) {
	endpoint, err := a.url("attachments", strconv.Itoa(attachmentID), "download")
	if err != nil {
		return nil, err
	}
	return a.do(ctx, http.MethodGet, endpoint, "", nil)
}

func (a RegistryHTTPAdapter) UploadAttachment(ctx context.Context, entityType string, entityID int, field string, filename string, data []byte) (int, error) {
	endpoint, err := a.url("entity", entityType, strconv.Itoa(entityID), field, "_upload")
	if err != nil {
		return 0, err
	}
	endpoint += "?filename=" + url.QueryEscape(filename)
	body, err := a.do(ctx, http.MethodPost, endpoint, "application/octet-stream", data)
	if err != nil {
		return 0, err
	}
	var decoded recordResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("invalid upload response").
			WithCause(err)
	}
	id, ok := decoded.Data.Int("id")
	if !ok {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("upload response carries no attachment id")
	}
	return id, nil
}

func (a RegistryHTTPAdapter) CreateEvent(ctx context.Context, event types.ServiceRecord) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode event").
			WithCause(err)
	}
	endpoint, err := a.url("entity", "EventLogEntry")
	if err != nil {
		return err
	}
	_, err = a.do(ctx, http.MethodPost, endpoint, "application/json", payload)
	return err
}

func (a RegistryHTTPAdapter) url(parts ...string) (string, error) {
	if a.Endpoint == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("registry endpoint is empty")
	}
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	return a.Endpoint + "/api/v1/" + strings.Join(escaped, "/"), nil
}

func (a RegistryHTTPAdapter) client() (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy := strings.TrimSpace(a.HTTPProxy); proxy != "" {
		if !strings.Contains(proxy, "://") {
			proxy = "http://" + proxy
		}
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid http proxy").
				WithCause(err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{Timeout: a.Timeout, Transport: transport}, nil
}

func (a RegistryHTTPAdapter) do(ctx context.Context, method string, endpoint string, contentType string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create registry request").
			WithCause(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(a.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("registry request %s %s failed", method, endpoint)).
			WithCause(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read registry response").
			WithCause(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := errbuilder.CodeInternal
		switch resp.StatusCode {
		case http.StatusNotFound:
			code = errbuilder.CodeNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			code = errbuilder.CodePermissionDenied
		}
		return nil, errbuilder.New().
			WithCode(code).
			WithMsg("registry request failed").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, endpoint, strings.TrimSpace(string(body))))
	}
	return body, nil
}

var _ ports.RegistryServicePort = RegistryHTTPAdapter{}
