package models

import (
	"strings"

	"github.com/google/uuid"
)

// Client represents one account inside an inbound's settings.
// ID carries a UUID for vless/vmess; trojan clients are keyed by Password.
type Client struct {
	ID         string `json:"id,omitempty"`
	Password   string `json:"password,omitempty"`
	Email      string `json:"email"`
	Flow       string `json:"flow,omitempty"`
	AlterID    int    `json:"alterId,omitempty"`
	Security   string `json:"security,omitempty"`
	Enable     bool   `json:"enable"`
	LimitIP    int    `json:"limitIp"`
	TotalGB    int64  `json:"totalGB"`
	ExpiryTime int64  `json:"expiryTime"`
	TgID       string `json:"tgId"`
	SubID      string `json:"subId"`
	Reset      int    `json:"reset"`
}

// Secret returns the credential that identifies this client on the wire.
func (c *Client) Secret() string {
	if c.Password != "" {
		return c.Password
	}
	return c.ID
}

// ToDictionary converts the client to a map for panel API requests.
func (c *Client) ToDictionary() map[string]interface{} {
	result := map[string]interface{}{
		"email":      c.Email,
		"enable":     c.Enable,
		"limitIp":    c.LimitIP,
		"totalGB":    c.TotalGB,
		"expiryTime": c.ExpiryTime,
		"tgId":       c.TgID,
		"subId":      c.SubID,
		"reset":      c.Reset,
	}

	if c.ID != "" {
		result["id"] = c.ID
	}
	if c.Password != "" {
		result["password"] = c.Password
	}
	if c.Flow != "" {
		result["flow"] = c.Flow
	}

	return result
}

// NewClientID generates a fresh client UUID.
func NewClientID() string {
	return uuid.NewString()
}

// NewSubID generates a short subscription identifier the way the panel does:
// the first eight characters of a UUID.
func NewSubID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:8]
}
