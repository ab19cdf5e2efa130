// Package netcheck probes general internet reachability and the
// translation service's API endpoint. It backs the startup
// connectivity gate and the periodic background status check.
package netcheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"livesub/config"
	"livesub/log"
)

var probeSites = []string{
	"https://www.baidu.com",
	"https://www.aliyun.com",
	"https://www.bing.com",
}

const serviceProbeURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

// serviceProbeBody is a minimal generation request; any authorized
// response (including quota errors) proves the key reaches the API.
const serviceProbeBody = `{"model":"qwen-turbo","input":{"messages":[{"role":"user","content":"ping"}]}}`

var (
	ErrNoInternet = errors.New("no internet connectivity")
	ErrNoAPIKey   = errors.New("api key is missing")
	ErrBadAPIKey  = errors.New("api key rejected")
)

// Checker probes connectivity. The HTTP client and probe URLs are
// injectable for tests.
type Checker struct {
	cfg    *config.Config
	client *http.Client

	sites      []string
	serviceURL string

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func NewChecker(cfg *config.Config) *Checker {
	return &Checker{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.NetworkCheckTimeout},
		sites:      probeSites,
		serviceURL: serviceProbeURL,
	}
}

// CheckInternet reports whether any of the probe sites answers. A
// response below 400 from any one site is enough.
func (c *Checker) CheckInternet(ctx context.Context) bool {
	for _, site := range c.sites {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, site, nil)
		if err != nil {
			continue
		}
		resp, err := c.client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 400 {
			return true
		}
	}
	return false
}

// CheckService verifies the API key against the translation service
// with a minimal authorized call.
func (c *Checker) CheckService(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return ErrNoAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.serviceURL, bytes.NewReader([]byte(serviceProbeBody)))
	if err != nil {
		return fmt.Errorf("service probe: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("service probe: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrBadAPIKey
	default:
		return fmt.Errorf("service probe: HTTP %d", resp.StatusCode)
	}
}

// Check runs the full gate: internet first, then the service.
func (c *Checker) Check(ctx context.Context) error {
	if !c.CheckInternet(ctx) {
		return ErrNoInternet
	}
	return c.CheckService(ctx)
}

// StartPeriodic launches a background loop that re-checks every
// interval and reports each result to update. Stop ends it.
func (c *Checker) StartPeriodic(interval time.Duration, update func(ok bool)) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), c.cfg.NetworkCheckTimeout)
				err := c.Check(ctx)
				cancel()
				if err != nil {
					log.Warnf("network check failed: %v", err)
				}
				if update != nil {
					update(err == nil)
				}
			}
		}
	}()
}

func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	close(c.done)
}
