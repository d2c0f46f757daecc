// Package proxy builds the egress http client all external service
// calls (classification, chat, search grounding, synthesis, image
// generation) go through.
package proxy

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// NewSocksClient returns an http client dialing through a SOCKS5 proxy.
func NewSocksClient(socksAddr string) (*http.Client, error) {
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   120 * time.Second,
	}, nil
}

// NewDirectClient returns the http client used when no proxy is
// configured. The timeout matches the proxied client so slow service
// calls fail the same way on both paths.
func NewDirectClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}
