package models

import "encoding/json"

// Inbound represents a 3x-ui inbound as returned by the panel API.
// Settings and StreamSettings arrive as raw JSON text and are decoded on demand.
type Inbound struct {
	ID             int          `json:"id"`
	Up             int64        `json:"up"`
	Down           int64        `json:"down"`
	Total          int64        `json:"total"`
	Remark         string       `json:"remark"`
	Enable         bool         `json:"enable"`
	ExpiryTime     int64        `json:"expiryTime"`
	ClientStats    []ClientStat `json:"clientStats"`
	Listen         string       `json:"listen"`
	Port           int          `json:"port"`
	Protocol       string       `json:"protocol"`
	Settings       string       `json:"settings"`
	StreamSettings string       `json:"streamSettings"`
}

// ClientStat represents per-client traffic counters reported by the panel.
type ClientStat struct {
	ID         int    `json:"id"`
	InboundID  int    `json:"inboundId"`
	Enable     bool   `json:"enable"`
	Email      string `json:"email"`
	Up         int64  `json:"up"`
	Down       int64  `json:"down"`
	ExpiryTime int64  `json:"expiryTime"`
	Total      int64  `json:"total"`
	Reset      int64  `json:"reset"`
}

// InboundSettings is the decoded form of Inbound.Settings.
type InboundSettings struct {
	Clients []Client `json:"clients"`
}

// Clients decodes the inbound's settings JSON and returns its client list.
// Malformed settings yield an empty list.
func (i *Inbound) Clients() []Client {
	var settings InboundSettings
	if err := json.Unmarshal([]byte(i.Settings), &settings); err != nil {
		return nil
	}
	return settings.Clients
}

// FindClient returns the client with the given email, or nil.
// Email is the stable lookup key: the panel's client identifier differs by
// protocol (UUID for vless/vmess, password for trojan).
func (i *Inbound) FindClient(email string) *Client {
	for _, c := range i.Clients() {
		if c.Email == email {
			client := c
			return &client
		}
	}
	return nil
}
