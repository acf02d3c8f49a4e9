package youtube

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "github.com/bdandy/go-socks4"
	youtube "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

const clientTimeout = 15 * time.Second

// NewClient builds a kkdai client routed through proxyStr when it is a
// supported http(s), socks5 or socks4 URL. The second return value is the
// proxy actually in use, empty when going direct.
func NewClient(proxyStr string, log zerolog.Logger) (*youtube.Client, string) {
	direct := &youtube.Client{HTTPClient: &http.Client{Timeout: clientTimeout}}
	if proxyStr == "" {
		return direct, ""
	}

	transport, err := proxyTransport(proxyStr)
	if err != nil {
		log.Warn().Err(err).Str("proxy", proxyStr).Msg("proxy unusable, going direct")
		return direct, ""
	}

	log.Info().Str("proxy", proxyStr).Msg("youtube client uses proxy")
	return &youtube.Client{
		HTTPClient: &http.Client{Timeout: clientTimeout, Transport: transport},
	}, proxyStr
}

func proxyTransport(proxyStr string) (*http.Transport, error) {
	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, err
	}

	switch proxyURL.Scheme {
	case "http", "https":
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}, nil

	case "socks5":
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return dialerTransport(dialer), nil

	case "socks4":
		// registered by the go-socks4 import
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			return nil, err
		}
		return dialerTransport(dialer), nil

	default:
		return nil, &url.Error{Op: "proxy", URL: proxyStr, Err: errUnsupportedScheme}
	}
}

func dialerTransport(d proxy.Dialer) *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := d.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return d.Dial(network, addr)
		},
	}
}
