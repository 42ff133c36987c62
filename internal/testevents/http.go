package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/okian/gamebot/internal/adapters/http/api"
	"github.com/okian/gamebot/internal/domain/types"
	"github.com/okian/gamebot/pkg/logger"
)

// client talks to a running gamebot.
type client struct {
	http   *http.Client
	base   string
	secret []byte
}

func newClient(cfg *Config) *client {
	return &client{http: &http.Client{Timeout: cfg.Timeout}, base: cfg.BaseURL, secret: []byte(cfg.Secret)}
}

// post sends d and returns the response status code.
func (c *client) post(ctx context.Context, d Delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/webhook", bytes.NewReader(d.Body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.HeaderEvent, d.Event)
	req.Header.Set(api.HeaderDelivery, d.ID)
	if len(c.secret) > 0 {
		req.Header.Set(api.HeaderSignature, api.Sign(c.secret, d.Body))
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// getJSON decodes a GET response into v. It returns the status code.
func (c *client) getJSON(ctx context.Context, path string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, http.NoBody)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(v)
}

func (c *client) entry(ctx context.Context, repo, username string) (types.LedgerEntry, int, error) {
	var e types.LedgerEntry
	code, err := c.getJSON(ctx, "/ledger/"+repo+"/"+username, &e)
	return e, code, err
}

func (c *client) leaderboard(ctx context.Context, repo string, limit int) (types.Leaderboard, error) {
	var b types.Leaderboard
	code, err := c.getJSON(ctx, fmt.Sprintf("/leaderboard/%s?limit=%d", repo, limit), &b)
	if err == nil && code != http.StatusOK {
		err = fmt.Errorf("leaderboard: status %d", code)
	}
	return b, err
}

// submit posts every delivery with cfg.Workers senders.
func submit(ctx context.Context, c *client, cfg *Config, deliveries []Delivery, stats *Stats) error {
	var accepted, duplicates, failed atomic.Int64
	log := logger.Get().Named("testevents")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, d := range deliveries {
		g.Go(func() error {
			code, err := c.post(gctx, d)
			switch {
			case err != nil:
				failed.Add(1)
				log.Warn(gctx, "delivery failed", logger.String("delivery", d.ID), logger.Error(err))
			case code == http.StatusAccepted:
				accepted.Add(1)
			case code == http.StatusOK:
				duplicates.Add(1)
			default:
				failed.Add(1)
				if cfg.Verbose {
					log.Warn(gctx, "delivery rejected", logger.String("delivery", d.ID), logger.Int("status", code))
				}
			}
			return gctx.Err()
		})
	}
	err := g.Wait()

	stats.Accepted += int(accepted.Load())
	stats.Duplicates += int(duplicates.Load())
	stats.Failed += int(failed.Load())
	return err
}
