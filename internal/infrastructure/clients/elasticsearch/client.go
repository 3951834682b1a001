package elasticsearch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"

	"github.com/learnlane/coursesearch/pkg/config"
	"github.com/learnlane/coursesearch/pkg/errors"
	"github.com/learnlane/coursesearch/pkg/retry"
)

// Client wraps the Elasticsearch client
type Client struct {
	client *elasticsearch.Client
}

// NewClient creates a new Elasticsearch client with exponential backoff retry
func NewClient(cfg *config.ElasticsearchConfig) (*Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.NewUnavailableError("failed to create Elasticsearch client", err)
	}

	err = retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return ping(ctx, client)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Int("attempt", attempt).Err(err).Dur("next_delay", nextDelay).
				Msg("Elasticsearch connection attempt failed, retrying")
		},
	)

	if err != nil {
		return nil, errors.NewUnavailableError("failed to connect to Elasticsearch after retries", err)
	}

	log.Info().Msg("Connected to Elasticsearch")
	return &Client{client: client}, nil
}

// NewClientFromES wraps an existing Elasticsearch client, used by tests
func NewClientFromES(client *elasticsearch.Client) *Client {
	return &Client{client: client}
}

// Client returns the underlying Elasticsearch client
func (c *Client) Client() *elasticsearch.Client {
	return c.client
}

// Ping verifies the connection to Elasticsearch
func (c *Client) Ping(ctx context.Context) error {
	return ping(ctx, c.client)
}

func ping(ctx context.Context, client *elasticsearch.Client) error {
	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch ping error [%s]: %s", res.Status(), body)
	}
	return nil
}
