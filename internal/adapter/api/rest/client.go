// Package rest implements the generic call-api passthrough: a thin client
// over manifest-declared REST APIs with a per-method endpoint table.
package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/microfunc/microfunc/internal/adapter/notify/webhook"
	"github.com/microfunc/microfunc/internal/manifest"
)

var (
	// ErrAPINotFound is returned when no API with the given id is declared.
	ErrAPINotFound = errors.New("api not found")

	// ErrMethodNotFound is returned when the API declares no such endpoint.
	ErrMethodNotFound = errors.New("api method not found")
)

// Registry holds one client per declared REST API.
type Registry struct {
	clients map[string]*Client
	log     *zap.Logger
}

// NewRegistry builds clients for every declared API, skipping
// unsupported types with a warning.
func NewRegistry(apis []manifest.API, log *zap.Logger) *Registry {
	clients := make(map[string]*Client, len(apis))
	for _, api := range apis {
		if api.ID == "" {
			log.Warn("Skipping API configuration without an id")
			continue
		}
		if t := strings.ToLower(api.Type); t != "" && t != "rest" {
			log.Warn("Skipping unsupported API type", zap.String("api", api.ID), zap.String("type", api.Type))
			continue
		}
		clients[api.ID] = NewClient(api, log.Named(api.ID))
	}
	log.Info("Initialized API clients", zap.Int("count", len(clients)))
	return &Registry{clients: clients, log: log}
}

// Call invokes methodName on the API identified by apiID.
func (r *Registry) Call(ctx context.Context, apiID, methodName string, params map[string]any) (any, error) {
	client, ok := r.clients[apiID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAPINotFound, apiID)
	}
	return client.Call(ctx, methodName, params)
}

// Client calls one REST API.
type Client struct {
	cfg       manifest.API
	endpoints map[string]manifest.Endpoint
	http      *http.Client
	log       *zap.Logger
}

func NewClient(cfg manifest.API, log *zap.Logger) *Client {
	endpoints := make(map[string]manifest.Endpoint, len(cfg.Methods))
	for _, ep := range cfg.Methods {
		if ep.Name != "" {
			endpoints[ep.Name] = ep
		}
	}
	return &Client{
		cfg:       cfg,
		endpoints: endpoints,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log,
	}
}

// Call resolves the named endpoint, substitutes {param} path segments,
// places the remaining params in the query string (GET/DELETE) or the
// JSON body (everything else), and decodes the response as JSON when
// possible, raw text otherwise.
func (c *Client) Call(ctx context.Context, methodName string, params map[string]any) (any, error) {
	ep, ok := c.endpoints[methodName]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrMethodNotFound, c.cfg.ID, methodName)
	}

	verb := strings.ToUpper(ep.Method)
	if verb == "" {
		verb = http.MethodGet
	}

	target := c.cfg.BaseURL
	if !strings.HasSuffix(target, "/") && !strings.HasPrefix(ep.Path, "/") {
		target += "/"
	}
	target += ep.Path

	// Split params into path substitutions and the rest.
	rest := make(map[string]any, len(params))
	for name, value := range params {
		placeholder := "{" + name + "}"
		if strings.Contains(target, placeholder) {
			target = strings.ReplaceAll(target, placeholder, url.PathEscape(fmt.Sprint(value)))
			continue
		}
		rest[name] = value
	}

	var body io.Reader
	query := url.Values{}
	if verb == http.MethodGet || verb == http.MethodDelete {
		for name, value := range rest {
			query.Set(name, fmt.Sprint(value))
		}
	} else {
		data, err := json.Marshal(rest)
		if err != nil {
			return nil, fmt.Errorf("encode params for %s.%s: %w", c.cfg.ID, methodName, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, verb, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s.%s: %w", c.cfg.ID, methodName, err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", c.cfg.ID, methodName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response of %s.%s: %w", c.cfg.ID, methodName, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s.%s returned %d: %s", c.cfg.ID, methodName, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		// Not JSON, hand back the raw text.
		return string(data), nil
	}
	return decoded, nil
}

// setAuthHeader applies the configured auth scheme. Credential values may
// reference environment variables as ${VAR}.
func (c *Client) setAuthHeader(req *http.Request) {
	auth := c.cfg.Auth
	switch strings.ToLower(auth.Type) {
	case "basic":
		user := webhook.ExpandEnv(auth.Username)
		pass := webhook.ExpandEnv(auth.Password)
		if user != "" && pass != "" {
			cred := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
			req.Header.Set("Authorization", "Basic "+cred)
		}
	case "api_key":
		key := webhook.ExpandEnv(auth.APIKey)
		header := auth.HeaderName
		if header == "" {
			header = "X-API-Key"
		}
		if key != "" {
			req.Header.Set(header, key)
		}
	case "bearer":
		if token := webhook.ExpandEnv(auth.Token); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}
