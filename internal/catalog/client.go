package catalog

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

	"github.com/gasandbox/sandbox-server/internal/config"
	"github.com/gasandbox/sandbox-server/internal/game"
	"go.uber.org/zap"
)

const (
	defaultType    = "UNKNOWN"
	defaultElement = "NORM"
)

// rawCard is the subset of the card API payload the sandbox uses.
type rawCard struct {
	UUID      string       `json:"uuid"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Types     []string     `json:"types"`
	Element   string       `json:"element"`
	EffectRaw string       `json:"effect_raw"`
	Stats     rawStats     `json:"stats"`
	Editions  []rawEdition `json:"editions"`
}

type rawStats struct {
	CostMemory int `json:"cost_memory"`
}

type rawEdition struct {
	Slug string `json:"slug"`
	Set  struct {
		Prefix string `json:"prefix"`
	} `json:"set"`
}

// Client pages through the remote card search API.
type Client struct {
	http      *http.Client
	baseURL   string
	imageBase string
	maxPages  int
	pageDelay time.Duration
	logger    *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client for the endpoint described by cfg.
func NewClient(cfg config.APIConfig, logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		imageBase: strings.TrimSuffix(cfg.ImageBase, "/"),
		maxPages:  cfg.MaxPages,
		pageDelay: cfg.PageDelay,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchSet returns every card of set, requesting pages 1..maxPages until a page comes
// back empty or the server answers with a non-2xx status. Failures end the walk early:
// they are logged and the cards gathered so far are returned.
func (c *Client) FetchSet(ctx context.Context, set string) []game.CardDefinition {
	cards := make([]game.CardDefinition, 0)
	logger := c.logger.With(zap.String("set", set))

	for page := 1; page <= c.maxPages; page++ {
		batch, err := c.fetchPage(ctx, set, page)
		if err != nil {
			logger.Warn("card fetch stopped early",
				zap.Int("page", page),
				zap.Int("fetched", len(cards)),
				zap.Error(err),
			)
			return cards
		}
		if len(batch) == 0 {
			break
		}
		for _, raw := range batch {
			cards = append(cards, c.toDefinition(raw, set))
		}
		logger.Debug("fetched card page", zap.Int("page", page), zap.Int("cards", len(batch)))

		if page < c.maxPages && c.pageDelay > 0 {
			timer := time.NewTimer(c.pageDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				logger.Warn("card fetch cancelled", zap.Int("fetched", len(cards)), zap.Error(ctx.Err()))
				return cards
			case <-timer.C:
			}
		}
	}

	logger.Info("fetched card set", zap.Int("cards", len(cards)))
	return cards
}

func (c *Client) pageURL(set string, page int) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("prefix", set)
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) fetchPage(ctx context.Context, set string, page int) ([]rawCard, error) {
	target, err := c.pageURL(set, page)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("page %d: unexpected status %s", page, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", page, err)
	}
	return decodePage(body)
}

// decodePage accepts either a bare JSON array or an object with a data array.
func decodePage(body []byte) ([]rawCard, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var cards []rawCard
		if err := json.Unmarshal(trimmed, &cards); err != nil {
			return nil, fmt.Errorf("decode card array: %w", err)
		}
		return cards, nil
	}

	var envelope struct {
		Data []rawCard `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode card page: %w", err)
	}
	return envelope.Data, nil
}

func (c *Client) toDefinition(raw rawCard, set string) game.CardDefinition {
	types := raw.Types
	if types == nil {
		types = []string{defaultType}
	}
	element := raw.Element
	if element == "" {
		element = defaultElement
	}

	slug := raw.Slug
	for _, ed := range raw.Editions {
		if ed.Set.Prefix == set {
			slug = ed.Slug
			break
		}
	}

	return game.CardDefinition{
		ID:      raw.UUID,
		Name:    raw.Name,
		Types:   types,
		Element: element,
		Cost:    raw.Stats.CostMemory,
		Image:   fmt.Sprintf("%s/%s.jpg", c.imageBase, slug),
		Text:    raw.EffectRaw,
	}
}

// Sync fetches set and writes it to store. It returns how many cards were stored.
func Sync(ctx context.Context, client *Client, store Store, set string) (int, error) {
	cards := client.FetchSet(ctx, set)
	valid := make([]game.CardDefinition, 0, len(cards))
	for _, card := range cards {
		if err := card.Validate(); err != nil {
			client.logger.Warn("skipping invalid card", zap.String("name", card.Name), zap.Error(err))
			continue
		}
		valid = append(valid, card)
	}
	if len(valid) == 0 {
		return 0, nil
	}
	n, err := store.Upsert(ctx, valid)
	if err != nil {
		return n, fmt.Errorf("store %s cards: %w", set, err)
	}
	return n, nil
}
