package link

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"xui-quota-bot/internal/models"
)

// Supported inbound protocols.
const (
	ProtocolVless  = "vless"
	ProtocolVmess  = "vmess"
	ProtocolTrojan = "trojan"
)

// param is one optional query parameter. Parameters with empty values are
// filtered out before joining, so a missing source field is omitted from the
// link rather than emitted empty.
type param struct {
	key   string
	value string
}

type paramList []param

func (p *paramList) add(key, value string) {
	if value == "" {
		return
	}
	*p = append(*p, param{key, value})
}

func (p paramList) encode() string {
	pairs := make([]string, 0, len(p))
	for _, kv := range p {
		pairs = append(pairs, kv.key+"="+kv.value)
	}
	return strings.Join(pairs, "&")
}

// Build produces the shareable connection URI for a client on an inbound.
// Unknown protocols yield an empty string; that is the "unsupported protocol"
// signal, not an error.
func Build(protocol string, client *models.Client, address string, port int, remark string, ss StreamSettings) string {
	switch protocol {
	case ProtocolVless:
		return buildVless(client, address, port, remark, ss)
	case ProtocolVmess:
		return buildVmess(client, address, port, remark, ss)
	case ProtocolTrojan:
		return buildTrojan(client, address, port, remark, ss)
	}
	return ""
}

// SubscriptionLink returns the stable URL a client app polls for its configs.
func SubscriptionLink(panelBaseURL, subID string) string {
	return fmt.Sprintf("%s/sub/%s", strings.TrimRight(panelBaseURL, "/"), subID)
}

func buildVless(client *models.Client, address string, port int, remark string, ss StreamSettings) string {
	params := paramList{}
	params.add("type", ss.Network)
	appendSecurityParams(&params, ss, true)
	appendNetworkParams(&params, ss)
	params.add("flow", client.Flow)
	params.add("encryption", "none")

	return fmt.Sprintf("vless://%s@%s:%d?%s#%s",
		client.ID, address, port, params.encode(), fragment(remark, client.Email))
}

func buildTrojan(client *models.Client, address string, port int, remark string, ss StreamSettings) string {
	params := paramList{}
	params.add("type", ss.Network)
	appendSecurityParams(&params, ss, false)
	appendNetworkParams(&params, ss)

	return fmt.Sprintf("trojan://%s@%s:%d?%s#%s",
		client.Password, address, port, params.encode(), fragment(remark, client.Email))
}

// appendSecurityParams emits the security block. Trojan links omit the
// security parameter entirely for plain inbounds, so includeNone is false
// there; vless spells out security=none.
func appendSecurityParams(params *paramList, ss StreamSettings, includeNone bool) {
	switch ss.Security {
	case SecurityReality:
		params.add("security", SecurityReality)
		if reality := ss.Reality; reality != nil {
			params.add("pbk", reality.PublicKey)
			params.add("fp", reality.Fingerprint)
			if len(reality.ServerNames) > 0 {
				params.add("sni", reality.ServerNames[0])
			}
			if len(reality.ShortIDs) > 0 {
				params.add("sid", reality.ShortIDs[0])
			}
			params.add("spx", escape(reality.SpiderX))
		}
	case SecurityTLS:
		params.add("security", SecurityTLS)
		if tls := ss.TLS; tls != nil {
			params.add("sni", tls.ServerName)
			params.add("fp", tls.Fingerprint)
			if len(tls.ALPN) > 0 {
				params.add("alpn", escapeKeepSlash(strings.Join(tls.ALPN, ",")))
			}
		}
	default:
		if includeNone {
			params.add("security", SecurityNone)
		}
	}
}

func appendNetworkParams(params *paramList, ss StreamSettings) {
	switch ss.Network {
	case NetworkWS:
		if ws := ss.WS; ws != nil {
			params.add("path", escapeKeepSlash(ws.Path))
			params.add("host", ws.Host)
		}
	case NetworkGRPC:
		if grpc := ss.GRPC; grpc != nil {
			params.add("serviceName", grpc.ServiceName)
			if grpc.MultiMode {
				params.add("mode", "multi")
			}
		}
	case NetworkTCP:
		if header := ss.TCPHTTPHeader; header != nil {
			params.add("headerType", "http")
			params.add("path", escapeKeepSlash(header.Path))
			params.add("host", header.Host)
		}
	}
}

// vmessConfig is the fixed-key payload of a vmess:// link. Key order matters
// to downstream clients, so this is a struct rather than a map. Port and
// alterId are serialized as strings.
type vmessConfig struct {
	V    string `json:"v"`
	PS   string `json:"ps"`
	Add  string `json:"add"`
	Port string `json:"port"`
	ID   string `json:"id"`
	Aid  string `json:"aid"`
	Scy  string `json:"scy"`
	Net  string `json:"net"`
	Type string `json:"type"`
	Host string `json:"host"`
	Path string `json:"path"`
	TLS  string `json:"tls"`
	SNI  string `json:"sni"`
	ALPN string `json:"alpn"`
	FP   string `json:"fp"`
}

func buildVmess(client *models.Client, address string, port int, remark string, ss StreamSettings) string {
	cfg := vmessConfig{
		V:    "2",
		PS:   label(remark, client.Email),
		Add:  address,
		Port: strconv.Itoa(port),
		ID:   client.ID,
		Aid:  strconv.Itoa(client.AlterID),
		Scy:  "auto",
		Net:  ss.Network,
		Type: "none",
	}

	if client.Security != "" {
		cfg.Scy = client.Security
	}

	if ss.Security == SecurityTLS || ss.Security == "xtls" {
		cfg.TLS = ss.Security
	}
	if ss.Security == SecurityTLS && ss.TLS != nil {
		cfg.SNI = ss.TLS.ServerName
		cfg.FP = ss.TLS.Fingerprint
		cfg.ALPN = strings.Join(ss.TLS.ALPN, ",")
	}

	switch ss.Network {
	case NetworkWS:
		if ws := ss.WS; ws != nil {
			cfg.Path = ws.Path
			cfg.Host = ws.Host
		}
	case NetworkGRPC:
		cfg.Type = "gun"
		if grpc := ss.GRPC; grpc != nil {
			cfg.Path = grpc.ServiceName
		}
	case NetworkTCP:
		if header := ss.TCPHTTPHeader; header != nil {
			cfg.Type = "http"
			cfg.Path = header.Path
			cfg.Host = header.Host
		}
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(payload)
}

// label is the human-readable link name: "{remark}-{email}", or just the
// email when the inbound has no remark.
func label(remark, email string) string {
	if remark != "" {
		return remark + "-" + email
	}
	return email
}

func fragment(remark, email string) string {
	return escapeKeepSlash(label(remark, email))
}

// escape percent-encodes everything, including slashes.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// escapeKeepSlash percent-encodes each path segment but keeps slashes
// literal, which is what client apps expect for path-like values.
func escapeKeepSlash(s string) string {
	segments := strings.Split(s, "/")
	for i, segment := range segments {
		segments[i] = escape(segment)
	}
	return strings.Join(segments, "/")
}
