package xrayclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"xui-quota-bot/internal/config"
	"xui-quota-bot/internal/constants"
	apperrors "xui-quota-bot/internal/errors"
	"xui-quota-bot/internal/models"
)

const sessionCacheKey = "session"

// Client is a 3x-ui panel API client. Sessions are cookie based: Login
// stores the cookies in a short-lived cache and every call retries once with
// a fresh login when the panel answers 401.
type Client struct {
	httpClient  *resty.Client
	panelConfig config.PanelConfig
	cookieCache *cache.Cache
	logger      *logrus.Logger
}

// apiResponse is the envelope every panel endpoint answers with.
type apiResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

// NewClient creates a new panel API client
func NewClient(panelConfig config.PanelConfig, logger *logrus.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(constants.DefaultTimeout * time.Second).
		SetRetryCount(constants.DefaultRetryCount).
		SetRetryWaitTime(constants.DefaultRetryWaitTime * time.Second).
		SetRetryMaxWaitTime(constants.DefaultRetryMaxWaitTime * time.Second).
		SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})

	return &Client{
		httpClient:  httpClient,
		panelConfig: panelConfig,
		cookieCache: cache.New(constants.CacheExpiration*time.Minute, constants.CacheCleanupInterval*time.Minute),
		logger:      logger,
	}
}

// Login logs in to the panel and caches the session cookies.
func (c *Client) Login(ctx context.Context) error {
	if _, found := c.cookieCache.Get(sessionCacheKey); found {
		return nil
	}

	c.logger.Infof("Logging in to panel at %s", c.panelConfig.URL)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": c.panelConfig.Username,
			"password": c.panelConfig.Password,
		}).
		Post(c.panelConfig.URL + "/login")
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return &apperrors.PanelAPIError{Operation: "login", Status: resp.StatusCode(), Message: string(resp.Body())}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}
	if !apiResp.Success {
		return &apperrors.PanelAPIError{Operation: "login", Status: resp.StatusCode(), Message: apiResp.Msg}
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return errors.New("no session cookie received from panel")
	}
	c.cookieCache.Set(sessionCacheKey, cookies, cache.DefaultExpiration)
	c.logger.Info("Successfully logged in to panel")
	return nil
}

// do performs an authenticated request against a panel endpoint, retrying
// once with a fresh login when the session has expired, and decodes the
// success envelope into obj (when obj is non-nil).
func (c *Client) do(ctx context.Context, operation, method, path string, body interface{}, obj interface{}) error {
	for attempt := 0; attempt < 2; attempt++ {
		if err := c.Login(ctx); err != nil {
			return err
		}

		cookies, found := c.cookieCache.Get(sessionCacheKey)
		if !found {
			continue
		}

		req := c.httpClient.R().
			SetContext(ctx).
			SetCookies(cookies.([]*http.Cookie))
		if body != nil {
			req.SetBody(body)
		}

		var resp *resty.Response
		var err error
		switch method {
		case http.MethodGet:
			resp, err = req.Get(c.panelConfig.URL + path)
		default:
			resp, err = req.Post(c.panelConfig.URL + path)
		}
		if err != nil {
			return fmt.Errorf("%s request failed: %w", operation, err)
		}

		if resp.StatusCode() == http.StatusUnauthorized {
			c.cookieCache.Delete(sessionCacheKey)
			continue
		}
		if resp.StatusCode() != http.StatusOK {
			return &apperrors.PanelAPIError{Operation: operation, Status: resp.StatusCode(), Message: string(resp.Body())}
		}

		var apiResp apiResponse
		if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", operation, err)
		}
		if !apiResp.Success {
			return &apperrors.PanelAPIError{Operation: operation, Status: resp.StatusCode(), Message: apiResp.Msg}
		}

		if obj != nil && len(apiResp.Obj) > 0 {
			if err := json.Unmarshal(apiResp.Obj, obj); err != nil {
				return fmt.Errorf("failed to unmarshal %s object: %w", operation, err)
			}
		}
		return nil
	}

	return &apperrors.PanelAPIError{Operation: operation, Status: http.StatusUnauthorized, Message: "session expired and relogin failed"}
}

// GetInbounds gets all inbounds from the panel.
func (c *Client) GetInbounds(ctx context.Context) ([]models.Inbound, error) {
	var inbounds []models.Inbound
	if err := c.do(ctx, "get inbounds", http.MethodGet, "/panel/api/inbounds/list", nil, &inbounds); err != nil {
		return nil, err
	}
	return inbounds, nil
}

// GetInbound gets a single inbound by id.
func (c *Client) GetInbound(ctx context.Context, inboundID int) (*models.Inbound, error) {
	var inbound models.Inbound
	path := fmt.Sprintf("/panel/api/inbounds/get/%d", inboundID)
	if err := c.do(ctx, "get inbound", http.MethodGet, path, nil, &inbound); err != nil {
		return nil, err
	}
	return &inbound, nil
}

// AddClient adds a client to an inbound. The panel expects the client list
// serialized as a JSON string inside the request body.
func (c *Client) AddClient(ctx context.Context, inboundID int, client models.Client) error {
	settingsJSON, err := json.Marshal(map[string]interface{}{
		"clients": []map[string]interface{}{client.ToDictionary()},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal client settings: %w", err)
	}

	body := map[string]interface{}{
		"id":       inboundID,
		"settings": string(settingsJSON),
	}

	c.logger.Infof("Adding client %s to inbound %d", client.Email, inboundID)
	return c.do(ctx, "add client", http.MethodPost, "/panel/api/inbounds/addClient", body, nil)
}

// UpdateClient replaces a client's settings on the panel. clientID is the
// client's UUID (or password for trojan inbounds).
func (c *Client) UpdateClient(ctx context.Context, inboundID int, clientID string, client models.Client) error {
	settingsJSON, err := json.Marshal(map[string]interface{}{
		"clients": []map[string]interface{}{client.ToDictionary()},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal client settings: %w", err)
	}

	body := map[string]interface{}{
		"id":       inboundID,
		"settings": string(settingsJSON),
	}

	path := fmt.Sprintf("/panel/api/inbounds/updateClient/%s", clientID)
	return c.do(ctx, "update client", http.MethodPost, path, body, nil)
}

// DeleteClient removes a client from an inbound.
func (c *Client) DeleteClient(ctx context.Context, inboundID int, clientID string) error {
	c.logger.Infof("Deleting client %s from inbound %d", clientID, inboundID)
	path := fmt.Sprintf("/panel/api/inbounds/%d/delClient/%s", inboundID, clientID)
	return c.do(ctx, "delete client", http.MethodPost, path, nil, nil)
}

// clientTrafficObj matches the panel's getClientTraffics payload.
type clientTrafficObj struct {
	InboundID int    `json:"inboundId"`
	Enable    bool   `json:"enable"`
	Email     string `json:"email"`
	Up        int64  `json:"up"`
	Down      int64  `json:"down"`
}

// GetClientTraffic returns the cumulative traffic counters for one client.
func (c *Client) GetClientTraffic(ctx context.Context, email string) (*models.TrafficInfo, error) {
	var obj clientTrafficObj
	path := fmt.Sprintf("/panel/api/inbounds/getClientTraffics/%s", email)
	if err := c.do(ctx, "get client traffic", http.MethodGet, path, nil, &obj); err != nil {
		return nil, err
	}

	info := models.NewTrafficInfo(email, obj.InboundID, obj.Enable, obj.Up, obj.Down)
	return &info, nil
}

// GetAllClientTraffics returns the traffic report of every client on every
// inbound, read from the inbound list's clientStats.
func (c *Client) GetAllClientTraffics(ctx context.Context) ([]models.TrafficInfo, error) {
	inbounds, err := c.GetInbounds(ctx)
	if err != nil {
		return nil, err
	}

	var traffics []models.TrafficInfo
	for _, inbound := range inbounds {
		for _, stat := range inbound.ClientStats {
			traffics = append(traffics, models.NewTrafficInfo(stat.Email, stat.InboundID, stat.Enable, stat.Up, stat.Down))
		}
	}
	return traffics, nil
}

// ResetClientTraffic zeroes a client's counters on the panel.
func (c *Client) ResetClientTraffic(ctx context.Context, inboundID int, email string) error {
	path := fmt.Sprintf("/panel/api/inbounds/%d/resetClientTraffic/%s", inboundID, email)
	return c.do(ctx, "reset client traffic", http.MethodPost, path, nil, nil)
}

// FindClientByEmail scans all inbounds for the client with the given email
// and returns it together with its inbound.
func (c *Client) FindClientByEmail(ctx context.Context, email string) (*models.Client, *models.Inbound, error) {
	inbounds, err := c.GetInbounds(ctx)
	if err != nil {
		return nil, nil, err
	}

	for i := range inbounds {
		if client := inbounds[i].FindClient(email); client != nil {
			return client, &inbounds[i], nil
		}
	}
	return nil, nil, fmt.Errorf("client %s not found in any inbound", email)
}
