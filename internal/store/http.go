package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofiber/fiber/v2"

	"github.com/mkawato/shotline/internal/model"
)

// HTTPConfig configures the REST transport to the record store.
type HTTPConfig struct {
	BaseURL    string
	ScriptName string
	APIKey     string
	// Timeout bounds every individual request.
	Timeout time.Duration
	// RetryMaxElapsed bounds the total retry window for reads.
	RetryMaxElapsed time.Duration
}

func (c *HTTPConfig) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryMaxElapsed == 0 {
		c.RetryMaxElapsed = 30 * time.Second
	}
}

// HTTPStore talks to the record store over its JSON API. Reads are retried
// with exponential backoff on transient failures; Update and Batch are
// issued exactly once.
type HTTPStore struct {
	cfg    HTTPConfig
	client *fiber.Client
	logger *slog.Logger
}

func NewHTTPStore(cfg HTTPConfig, logger *slog.Logger) *HTTPStore {
	cfg.applyDefaults()
	return &HTTPStore{
		cfg:    cfg,
		client: &fiber.Client{},
		logger: logger,
	}
}

type searchRequest struct {
	Filters []Filter `json:"filters"`
	Fields  []string `json:"fields,omitempty"`
	Order   []Order  `json:"order,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

type searchResponse struct {
	Records []model.Record `json:"records"`
}

type batchRequest struct {
	Operations []model.BatchOperation `json:"operations"`
}

func (s *HTTPStore) Find(ctx context.Context, entityType string, filters []Filter, fields []string, order ...Order) ([]model.Record, error) {
	req := searchRequest{Filters: filters, Fields: fields, Order: order}
	var resp searchResponse
	err := s.retryRead(ctx, func() error {
		return s.post(fmt.Sprintf("%s/api/v1/entity/%s/_search", s.cfg.BaseURL, entityType), req, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", entityType, err)
	}
	return resp.Records, nil
}

func (s *HTTPStore) FindOne(ctx context.Context, entityType string, filters []Filter, fields []string) (model.Record, error) {
	records, err := s.Find(ctx, entityType, filters, fields)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

func (s *HTTPStore) Update(ctx context.Context, entityType string, id int, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/v1/entity/%s/%d", s.cfg.BaseURL, entityType, id)
	if err := s.send(s.client.Put(url), map[string]any{"data": data}, nil); err != nil {
		return fmt.Errorf("update %s %d: %w", entityType, id, err)
	}
	return nil
}

func (s *HTTPStore) Batch(ctx context.Context, ops []model.BatchOperation) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var resp searchResponse
	url := fmt.Sprintf("%s/api/v1/batch", s.cfg.BaseURL)
	// No retry here: a partially applied batch must not be replayed.
	if err := s.send(s.client.Post(url), batchRequest{Operations: ops}, &resp); err != nil {
		return nil, fmt.Errorf("batch of %d operations: %w", len(ops), err)
	}
	return resp.Records, nil
}

func (s *HTTPStore) post(url string, body, out any) error {
	return s.send(s.client.Post(url), body, out)
}

func (s *HTTPStore) send(agent *fiber.Agent, body, out any) error {
	agent.Timeout(s.cfg.Timeout)
	agent.Set("X-Script-Name", s.cfg.ScriptName)
	agent.Set("X-Script-Key", s.cfg.APIKey)
	agent.JSON(body)

	code, respBody, errs := agent.Bytes()
	if len(errs) > 0 {
		return &transportError{err: errs[0]}
	}
	if code >= 500 {
		return &transportError{err: fmt.Errorf("server returned %d: %s", code, respBody)}
	}
	if code >= 400 {
		return fmt.Errorf("store rejected request (%d): %s", code, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// transportError marks failures worth retrying on the read path.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func (s *HTTPStore) retryRead(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.cfg.RetryMaxElapsed
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		var te *transportError
		if errors.As(err, &te) {
			s.logger.Warn("record store read failed, retrying",
				"attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}
