package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStreamSettings_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"not json", "{{{"},
		{"json array", "[1,2,3]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss := DecodeStreamSettings(tt.raw)
			assert.Equal(t, NetworkTCP, ss.Network)
			assert.Equal(t, SecurityNone, ss.Security)
			assert.Nil(t, ss.TLS)
			assert.Nil(t, ss.Reality)
			assert.Nil(t, ss.WS)
			assert.Nil(t, ss.GRPC)
			assert.Nil(t, ss.TCPHTTPHeader)
		})
	}
}

func TestDecodeStreamSettings_SecuritySections(t *testing.T) {
	ss := DecodeStreamSettings(`{"network":"ws","security":"tls","tlsSettings":{"serverName":"a.com","fingerprint":"firefox","alpn":["h2","http/1.1"]}}`)
	require.NotNil(t, ss.TLS)
	assert.Nil(t, ss.Reality, "tls and reality sections are mutually exclusive")
	assert.Equal(t, "a.com", ss.TLS.ServerName)
	assert.Equal(t, "firefox", ss.TLS.Fingerprint)
	assert.Equal(t, []string{"h2", "http/1.1"}, ss.TLS.ALPN)

	ss = DecodeStreamSettings(`{"network":"tcp","security":"reality","realitySettings":{"publicKey":"toplevel"}}`)
	require.NotNil(t, ss.Reality)
	assert.Nil(t, ss.TLS)

	ss = DecodeStreamSettings(`{"network":"tcp","security":"none"}`)
	assert.Nil(t, ss.TLS)
	assert.Nil(t, ss.Reality)
}

func TestDecodeStreamSettings_RealityPrecedence(t *testing.T) {
	// Nested settings win over top-level fields.
	ss := DecodeStreamSettings(`{
		"network": "tcp",
		"security": "reality",
		"realitySettings": {
			"publicKey": "top-pbk",
			"fingerprint": "top-fp",
			"spiderX": "/top",
			"serverNames": ["first.example", "second.example"],
			"shortIds": ["aa11", "bb22"],
			"settings": {
				"publicKey": "nested-pbk",
				"fingerprint": "nested-fp",
				"spiderX": "/nested"
			}
		}
	}`)

	require.NotNil(t, ss.Reality)
	assert.Equal(t, "nested-pbk", ss.Reality.PublicKey)
	assert.Equal(t, "nested-fp", ss.Reality.Fingerprint)
	assert.Equal(t, "/nested", ss.Reality.SpiderX)
	assert.Equal(t, []string{"first.example", "second.example"}, ss.Reality.ServerNames)
	assert.Equal(t, []string{"aa11", "bb22"}, ss.Reality.ShortIDs)
}

func TestDecodeStreamSettings_RealityFallbacks(t *testing.T) {
	// Top-level fields are used when the nested settings object is absent.
	ss := DecodeStreamSettings(`{"security":"reality","realitySettings":{"publicKey":"top-pbk","fingerprint":"top-fp"}}`)
	require.NotNil(t, ss.Reality)
	assert.Equal(t, "top-pbk", ss.Reality.PublicKey)
	assert.Equal(t, "top-fp", ss.Reality.Fingerprint)

	// Neither present: publicKey stays empty, fingerprint defaults to chrome,
	// spiderX defaults to "/".
	ss = DecodeStreamSettings(`{"security":"reality","realitySettings":{}}`)
	require.NotNil(t, ss.Reality)
	assert.Empty(t, ss.Reality.PublicKey)
	assert.Equal(t, "chrome", ss.Reality.Fingerprint)
	assert.Equal(t, "/", ss.Reality.SpiderX)

	// Even an absent realitySettings object yields populated defaults.
	ss = DecodeStreamSettings(`{"security":"reality"}`)
	require.NotNil(t, ss.Reality)
	assert.Equal(t, "chrome", ss.Reality.Fingerprint)
	assert.Equal(t, "/", ss.Reality.SpiderX)
}

func TestDecodeStreamSettings_NetworkSections(t *testing.T) {
	ss := DecodeStreamSettings(`{"network":"ws","security":"none","wsSettings":{"path":"/socket","headers":{"Host":"cdn.example"}}}`)
	require.NotNil(t, ss.WS)
	assert.Equal(t, "/socket", ss.WS.Path)
	assert.Equal(t, "cdn.example", ss.WS.Host)

	ss = DecodeStreamSettings(`{"network":"grpc","security":"none","grpcSettings":{"serviceName":"svc","multiMode":true}}`)
	require.NotNil(t, ss.GRPC)
	assert.Equal(t, "svc", ss.GRPC.ServiceName)
	assert.True(t, ss.GRPC.MultiMode)

	ss = DecodeStreamSettings(`{
		"network": "tcp",
		"security": "none",
		"tcpSettings": {
			"header": {
				"type": "http",
				"request": {
					"path": ["/obfs", "/alt"],
					"headers": {"Host": ["h1.example", "h2.example"]}
				}
			}
		}
	}`)
	require.NotNil(t, ss.TCPHTTPHeader)
	assert.Equal(t, "/obfs", ss.TCPHTTPHeader.Path)
	assert.Equal(t, "h1.example", ss.TCPHTTPHeader.Host)

	// A plain tcp header is not an HTTP obfuscation header.
	ss = DecodeStreamSettings(`{"network":"tcp","security":"none","tcpSettings":{"header":{"type":"none"}}}`)
	assert.Nil(t, ss.TCPHTTPHeader)
}
