package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"xapobank-backend/internal/config"
	"xapobank-backend/internal/logger"
)

type pricingService struct {
	fallbackPrice float64
	feedURL       string
	cacheTTL      time.Duration
	client        *http.Client

	mu        sync.Mutex
	cached    float64
	fetchedAt time.Time
}

// NewPricingService returns a BTC/USD price source. With no feed URL it
// always returns the configured fallback price.
func NewPricingService(cfg config.PricingConfig) PricingService {
	return &pricingService{
		fallbackPrice: cfg.FallbackPriceUSD,
		feedURL:       cfg.FeedURL,
		cacheTTL:      time.Duration(cfg.CacheSeconds) * time.Second,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *pricingService) BTCUSDPrice(ctx context.Context) float64 {
	if s.feedURL == "" {
		return s.fallbackPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached > 0 && time.Since(s.fetchedAt) < s.cacheTTL {
		return s.cached
	}

	price, err := s.fetchPrice(ctx)
	if err != nil {
		logger.Warn("price feed unavailable, using fallback", "error", err, "fallback", s.fallbackPrice)
		if s.cached > 0 {
			return s.cached
		}
		return s.fallbackPrice
	}

	s.cached = price
	s.fetchedAt = time.Now()
	return price
}

// fetchPrice expects the CoinGecko simple-price shape.
func (s *pricingService) fetchPrice(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return 0, err
	}

	logger.ExternalServiceCall("pricing", "fetch_btc_price", "url", s.feedURL)
	resp, err := s.client.Do(req)
	if err != nil {
		logger.ExternalServiceResult("pricing", "fetch_btc_price", err)
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("price feed returned status %d", resp.StatusCode)
		logger.ExternalServiceResult("pricing", "fetch_btc_price", err)
		return 0, err
	}

	var payload struct {
		Bitcoin struct {
			USD float64 `json:"usd"`
		} `json:"bitcoin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logger.ExternalServiceResult("pricing", "fetch_btc_price", err)
		return 0, err
	}
	if payload.Bitcoin.USD <= 0 {
		err := fmt.Errorf("price feed returned non-positive price %f", payload.Bitcoin.USD)
		logger.ExternalServiceResult("pricing", "fetch_btc_price", err)
		return 0, err
	}

	logger.ExternalServiceResult("pricing", "fetch_btc_price", nil, "price", payload.Bitcoin.USD)
	return payload.Bitcoin.USD, nil
}
