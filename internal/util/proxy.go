// Package util provides helper functions shared across the CLI, including
// proxy-aware HTTP client setup.
package util

import (
	"context"
	"net"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// SetProxy configures the provided HTTP client with the given proxy URL.
// It supports SOCKS5, HTTP, and HTTPS proxies. The function modifies the
// client's transport to route requests through the configured proxy server.
// An empty or unparseable proxy URL leaves the client untouched.
func SetProxy(proxyURLStr string, httpClient *http.Client) *http.Client {
	if proxyURLStr == "" {
		return httpClient
	}
	var transport *http.Transport
	proxyURL, errParse := url.Parse(proxyURLStr)
	if errParse == nil {
		if proxyURL.Scheme == "socks5" {
			var proxyAuth *proxy.Auth
			if proxyURL.User != nil {
				username := proxyURL.User.Username()
				password, _ := proxyURL.User.Password()
				proxyAuth = &proxy.Auth{User: username, Password: password}
			}
			dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
			if errSOCKS5 != nil {
				log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
				return httpClient
			}
			transport = &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				},
			}
		} else if proxyURL.Scheme == "http" || proxyURL.Scheme == "https" {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	if transport != nil {
		httpClient.Transport = transport
	}
	return httpClient
}
