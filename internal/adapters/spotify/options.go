package spotify

import "net/http"

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithMarket aplica track relinking para ese país (ISO 3166-1 alpha-2).
func WithMarket(m string) Option {
	return func(c *Client) { c.market = m }
}
