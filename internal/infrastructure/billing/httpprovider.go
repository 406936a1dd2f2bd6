// Package billing implements the remote entitlement provider integrations.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"mizan/internal/domain/subscription"
	"mizan/internal/shared/config"
	"mizan/internal/shared/logger"
)

const httpTimeout = 10 * time.Second

// HTTPClient talks to the billing provider's REST API. One client is shared
// by all user sessions; it also owns the push-update listener registry that
// the webhook handler delivers into.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logger.Interface

	mu           sync.RWMutex
	listeners    map[string]map[uint64]func(*subscription.CustomerInfo)
	nextListener uint64
}

func NewHTTPClient(cfg *config.BillingConfig, log logger.Interface) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
		logger:    log,
		listeners: make(map[string]map[uint64]func(*subscription.CustomerInfo)),
	}
}

// Session returns a provider session. The session is unbound until
// InitializeForUser is called.
func (c *HTTPClient) Session() subscription.BillingProvider {
	return &httpSession{client: c}
}

// DeliverUpdate fans a push update out to every listener registered for the
// user. Called by the webhook handler when the provider notifies us of an
// entitlement change.
func (c *HTTPClient) DeliverUpdate(userID string, info *subscription.CustomerInfo) {
	c.mu.RLock()
	callbacks := make([]func(*subscription.CustomerInfo), 0, len(c.listeners[userID]))
	for _, cb := range c.listeners[userID] {
		callbacks = append(callbacks, cb)
	}
	c.mu.RUnlock()

	for _, cb := range callbacks {
		cb(info)
	}
}

func (c *HTTPClient) addListener(userID string, fn func(*subscription.CustomerInfo)) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextListener++
	id := c.nextListener
	if c.listeners[userID] == nil {
		c.listeners[userID] = make(map[uint64]func(*subscription.CustomerInfo))
	}
	c.listeners[userID][id] = fn
	return id
}

func (c *HTTPClient) removeListener(userID string, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if callbacks, ok := c.listeners[userID]; ok {
		delete(callbacks, id)
		if len(callbacks) == 0 {
			delete(c.listeners, userID)
		}
	}
}

// httpSession binds the shared client to one user.
type httpSession struct {
	client *HTTPClient

	mu     sync.RWMutex
	userID string
}

func (s *httpSession) InitializeForUser(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
	return nil
}

func (s *httpSession) boundUser() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userID == "" {
		return "", errors.New("provider session is not bound to a user")
	}
	return s.userID, nil
}

func (s *httpSession) FetchCustomerInfo(ctx context.Context) (*subscription.CustomerInfo, error) {
	userID, err := s.boundUser()
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/subscribers/%s", s.client.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.client.apiKey)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch customer info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var payload subscriberPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	info := payload.toCustomerInfo(userID)

	s.client.logger.Debugw("fetched customer info",
		"user_id", userID,
		"active_entitlements", len(info.ActiveEntitlements),
	)
	return info, nil
}

func (s *httpSession) SubscribeToUpdates(fn func(*subscription.CustomerInfo)) (subscription.UpdateHandle, error) {
	userID, err := s.boundUser()
	if err != nil {
		return nil, err
	}

	id := s.client.addListener(userID, fn)
	return &listenerHandle{
		remove: func() { s.client.removeListener(userID, id) },
	}, nil
}

func (s *httpSession) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.userID = ""
	s.mu.Unlock()
	return nil
}

type listenerHandle struct {
	once   sync.Once
	remove func()
}

func (h *listenerHandle) Remove() {
	h.once.Do(h.remove)
}
