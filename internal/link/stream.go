package link

import "encoding/json"

// Network and security tokens as the panel emits them.
const (
	NetworkTCP  = "tcp"
	NetworkWS   = "ws"
	NetworkGRPC = "grpc"

	SecurityNone    = "none"
	SecurityTLS     = "tls"
	SecurityReality = "reality"
)

const (
	defaultRealityFingerprint = "chrome"
	defaultSpiderX            = "/"
)

// StreamSettings is the normalized transport/security description of an
// inbound. Exactly one of TLS/Reality is populated when Security is
// "tls"/"reality"; both are nil when Security is "none".
type StreamSettings struct {
	Network  string
	Security string

	TLS     *TLSParams
	Reality *RealityParams

	WS            *WSParams
	GRPC          *GRPCParams
	TCPHTTPHeader *HTTPHeaderParams
}

// TLSParams carries the TLS parameters used verbatim in links.
type TLSParams struct {
	ServerName  string
	Fingerprint string
	ALPN        []string
}

// RealityParams carries the Reality handshake parameters. Fingerprint and
// SpiderX are always populated (the decoder applies their defaults).
type RealityParams struct {
	PublicKey   string
	Fingerprint string
	ServerNames []string
	ShortIDs    []string
	SpiderX     string
}

// WSParams carries the WebSocket path and Host header.
type WSParams struct {
	Path string
	Host string
}

// GRPCParams carries the gRPC service name and mode.
type GRPCParams struct {
	ServiceName string
	MultiMode   bool
}

// HTTPHeaderParams carries the TCP HTTP-obfuscation path and Host header.
type HTTPHeaderParams struct {
	Path string
	Host string
}

// Raw shapes matching the panel's streamSettings JSON. The panel nests some
// Reality fields both at the top level and under a "settings" object, hence
// the duplicated fields in rawReality.
type rawStream struct {
	Network         string      `json:"network"`
	Security        string      `json:"security"`
	TLSSettings     *rawTLS     `json:"tlsSettings"`
	RealitySettings *rawReality `json:"realitySettings"`
	WSSettings      *rawWS      `json:"wsSettings"`
	GRPCSettings    *rawGRPC    `json:"grpcSettings"`
	TCPSettings     *rawTCP     `json:"tcpSettings"`
}

type rawTLS struct {
	ServerName  string   `json:"serverName"`
	Fingerprint string   `json:"fingerprint"`
	ALPN        []string `json:"alpn"`
}

type rawReality struct {
	PublicKey   string   `json:"publicKey"`
	Fingerprint string   `json:"fingerprint"`
	SpiderX     string   `json:"spiderX"`
	ServerNames []string `json:"serverNames"`
	ShortIDs    []string `json:"shortIds"`
	Settings    struct {
		PublicKey   string `json:"publicKey"`
		Fingerprint string `json:"fingerprint"`
		SpiderX     string `json:"spiderX"`
	} `json:"settings"`
}

type rawWS struct {
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers"`
}

type rawGRPC struct {
	ServiceName string `json:"serviceName"`
	MultiMode   bool   `json:"multiMode"`
}

type rawTCP struct {
	Header struct {
		Type    string `json:"type"`
		Request struct {
			Path    []string            `json:"path"`
			Headers map[string][]string `json:"headers"`
		} `json:"request"`
	} `json:"header"`
}

// DecodeStreamSettings parses the inbound's raw streamSettings JSON into a
// normalized StreamSettings. It never fails: malformed or absent input yields
// the "tcp network, no security" default and the caller proceeds with
// best-effort link generation.
func DecodeStreamSettings(raw string) StreamSettings {
	ss := StreamSettings{
		Network:  NetworkTCP,
		Security: SecurityNone,
	}

	var stream rawStream
	if err := json.Unmarshal([]byte(raw), &stream); err != nil {
		return ss
	}

	if stream.Network != "" {
		ss.Network = stream.Network
	}
	if stream.Security != "" {
		ss.Security = stream.Security
	}

	switch ss.Security {
	case SecurityTLS:
		ss.TLS = decodeTLS(stream.TLSSettings)
	case SecurityReality:
		ss.Reality = decodeReality(stream.RealitySettings)
	}

	switch ss.Network {
	case NetworkWS:
		if ws := stream.WSSettings; ws != nil {
			ss.WS = &WSParams{
				Path: ws.Path,
				Host: ws.Headers["Host"],
			}
		}
	case NetworkGRPC:
		if grpc := stream.GRPCSettings; grpc != nil {
			ss.GRPC = &GRPCParams{
				ServiceName: grpc.ServiceName,
				MultiMode:   grpc.MultiMode,
			}
		}
	case NetworkTCP:
		if tcp := stream.TCPSettings; tcp != nil && tcp.Header.Type == "http" {
			header := &HTTPHeaderParams{}
			if paths := tcp.Header.Request.Path; len(paths) > 0 {
				header.Path = paths[0]
			}
			if hosts := tcp.Header.Request.Headers["Host"]; len(hosts) > 0 {
				header.Host = hosts[0]
			}
			ss.TCPHTTPHeader = header
		}
	}

	return ss
}

func decodeTLS(tls *rawTLS) *TLSParams {
	if tls == nil {
		return &TLSParams{}
	}
	return &TLSParams{
		ServerName:  tls.ServerName,
		Fingerprint: tls.Fingerprint,
		ALPN:        tls.ALPN,
	}
}

// decodeReality resolves the panel's inconsistent nesting: the nested
// settings object wins over the top-level field for publicKey, fingerprint
// and spiderX. Fingerprint falls back to "chrome" (Reality needs a plausible
// browser fingerprint to function) and spiderX to "/".
func decodeReality(reality *rawReality) *RealityParams {
	params := &RealityParams{
		Fingerprint: defaultRealityFingerprint,
		SpiderX:     defaultSpiderX,
	}
	if reality == nil {
		return params
	}

	params.ServerNames = reality.ServerNames
	params.ShortIDs = reality.ShortIDs

	params.PublicKey = firstNonEmpty(reality.Settings.PublicKey, reality.PublicKey)
	if fp := firstNonEmpty(reality.Settings.Fingerprint, reality.Fingerprint); fp != "" {
		params.Fingerprint = fp
	}
	if spx := firstNonEmpty(reality.Settings.SpiderX, reality.SpiderX); spx != "" {
		params.SpiderX = spx
	}

	return params
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
