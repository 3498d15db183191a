package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

const (
	defaultBase     = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
)

type Client struct {
	http    *http.Client
	baseURL string
	market  string
}

// New arma el cliente con client-credentials: el token se pide y renueva solo.
// WithHTTPClient reemplaza todo el transporte (tests).
func New(clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{baseURL: defaultBase}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		cc := clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     defaultTokenURL,
		}
		base := &http.Client{Timeout: 10 * time.Second}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		c.http = cc.Client(ctx)
		c.http.Timeout = 10 * time.Second
	}
	return c
}

// doJSON: construye URL, maneja 404 y 429 con Retry-After (un solo reintento).
func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, out any) error {
	return c.do(ctx, method, path, q, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, out any, retry bool) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("spotify request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("spotify http: %w: %w", domain.ErrConnectivity, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests && retry {
		if sec, _ := strconv.Atoi(res.Header.Get("Retry-After")); sec > 0 {
			select {
			case <-time.After(time.Duration(sec) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			return c.do(ctx, method, path, q, out, false)
		}
	}

	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	// Spotify contesta 400 "invalid id" para ids mal formados
	case res.StatusCode == http.StatusBadRequest:
		return ErrNotFound
	case res.StatusCode < 200 || res.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("spotify decode: %w", err)
	}
	return nil
}
