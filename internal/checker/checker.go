package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/August26/proxyscan/internal/iprange"
	"github.com/August26/proxyscan/internal/model"
)

var ErrProbeFailure = errors.New("probe failed")

// Client asks the classification service whether an address is an active
// proxy.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
	timeout  time.Duration
	geo      GeoResolver
}

// NewClient builds a Client from cfg. geo may be nil.
func NewClient(cfg model.Config, geo GeoResolver) (*Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = model.DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", endpoint)
	}

	transport, err := buildTransport(cfg.UpstreamProxy)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint: u,
		// No client-wide Timeout; each probe carries its own deadline.
		http:    &http.Client{Transport: transport},
		dial:    transport.DialContext,
		timeout: timeout,
		geo:     geo,
	}, nil
}

// serviceResponse matches the fields we care about from the lookup service.
type serviceResponse struct {
	ProxyStatus string     `json:"proxyStatus"`
	ISP         string     `json:"isp"`
	CountryCode string     `json:"countryCode"`
	Delay       looseValue `json:"delay"`
}

// looseValue accepts a JSON string or number; the service is not consistent
// about how it reports delay.
type looseValue string

func (v *looseValue) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = looseValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = looseValue(n.String())
	return nil
}

// Probe classifies one address. Transport errors, non-2xx responses and
// undecodable bodies are returned wrapped in ErrProbeFailure.
func (c *Client) Probe(ctx context.Context, addr iprange.Address) (model.ProbeResult, error) {
	ip := addr.String()
	out := model.ProbeResult{
		Address: addr,
		IP:      ip,
		Status:  model.StatusUnknown,
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.fetch(probeCtx, ip)
	out.Latency = time.Since(start)
	if err != nil {
		out.Error = err.Error()
		return out, fmt.Errorf("%w: %s: %w", ErrProbeFailure, ip, err)
	}

	out.Status = model.ParseProxyStatus(resp.ProxyStatus)
	out.ISP = resp.ISP
	out.CountryCode = resp.CountryCode
	out.Delay = string(resp.Delay)

	if c.geo != nil && (out.CountryCode == "" || out.ISP == "") {
		if info, err := c.geo.Lookup(ip); err == nil {
			if out.CountryCode == "" {
				out.CountryCode = info.CountryCode
			}
			if out.ISP == "" {
				out.ISP = info.ISP
			}
		}
	}
	out.Hosting = IsHostingISP(out.ISP)

	return out, nil
}

func (c *Client) fetch(ctx context.Context, ip string) (serviceResponse, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("ip", ip)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return serviceResponse{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return serviceResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return serviceResponse{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed serviceResponse
	dec := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	if err := dec.Decode(&parsed); err != nil {
		return serviceResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return parsed, nil
}

// ------------------------------------------------------------------------------------
// Transport construction
// ------------------------------------------------------------------------------------

// buildTransport returns a transport that reaches the service directly, or
// through an upstream http(s) or socks5 proxy when one is configured.
func buildTransport(upstream string) (*http.Transport, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   16,
	}
	if upstream == "" {
		return transport, nil
	}

	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream proxy %q: %w", upstream, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid upstream proxy %q: missing host", upstream)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
		return transport, nil
	case "socks5", "socks5h":
		dialContext, err := socks5DialContext(u)
		if err != nil {
			return nil, err
		}
		transport.DialContext = dialContext
		return transport, nil
	default:
		return nil, fmt.Errorf("unsupported upstream proxy scheme %q", u.Scheme)
	}
}

func socks5DialContext(u *url.URL) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	var auth *proxy.Auth
	if u.User != nil {
		pass, _ := u.User.Password()
		auth = &proxy.Auth{
			User:     u.User.Username(),
			Password: pass,
		}
	}

	port := u.Port()
	if port == "" {
		port = strconv.Itoa(1080)
	}
	addr := net.JoinHostPort(u.Hostname(), port)

	dialer, err := proxy.SOCKS5("tcp", addr, auth, &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}
