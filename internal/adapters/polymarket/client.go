package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultGammaBase = "https://gamma-api.polymarket.com"
	userAgent        = "polyagent/1.0"

	// Gamma /markets: 300/10s → 180/10s → 18/s (60% del límite documentado)
	gammaRatePerSec = 18
	gammaBurst      = 10

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
	maxRetryWait  = 10 * time.Second
	maxErrorBody  = 512
)

// ErrNoMarkets se devuelve cuando Gamma no trae ningún mercado operable.
var ErrNoMarkets = errors.New("polymarket: no tradable markets")

// StatusError es una respuesta 4xx que no merece reintento.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.Code, e.Body)
}

// Client lee la Gamma API con rate limiting y retries.
// Implementa ports.MarketFeed.
type Client struct {
	http      *http.Client
	gammaBase string
	limiter   *rate.Limiter
	limit     int
}

// NewClient crea un Client contra gammaBase que trae como máximo limit
// mercados por llamada. Si gammaBase está vacío, usa la URL de producción.
func NewClient(gammaBase string, limit int) *Client {
	if gammaBase == "" {
		gammaBase = defaultGammaBase
	}
	if limit <= 0 {
		limit = defaultMarketLimit
	}
	return &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		gammaBase: gammaBase,
		limiter:   rate.NewLimiter(gammaRatePerSec, gammaBurst),
		limit:     limit,
	}
}

// getJSON hace GET url y decodifica el cuerpo en out. Reintenta errores de
// red, 429 y 5xx; un 4xx vuelve enseguida como *StatusError.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt-1, lastErr); err != nil {
				return fmt.Errorf("%w (last: %v)", err, lastErr)
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		retry, err := c.once(ctx, url, out)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
		slog.Debug("gamma request failed, retrying", "attempt", attempt+1, "err", err)
	}
	return fmt.Errorf("exhausted %d retries: %w", maxRetries, lastErr)
}

// once hace un intento. retry indica si el error es transitorio.
func (c *Client) once(ctx context.Context, url string, out any) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("rate limited by gamma", "retry_after", resp.Header.Get("Retry-After"))
		return true, &retryAfterError{wait: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("server error %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return false, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}

// retryAfterError lleva la espera pedida por el servidor en un 429.
type retryAfterError struct {
	wait time.Duration
}

func (e *retryAfterError) Error() string {
	return "too many requests"
}

// backoff espera 2^attempt × base, o lo que pida Retry-After, sin pasar de
// maxRetryWait. Devuelve ctx.Err() si el contexto se cancela antes.
func (c *Client) backoff(ctx context.Context, attempt int, last error) error {
	wait := baseRetryWait << attempt
	var ra *retryAfterError
	if errors.As(last, &ra) && ra.wait > wait {
		wait = ra.wait
	}
	wait = min(wait, maxRetryWait)

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseRetryAfter acepta segundos enteros; cualquier otra cosa es cero.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
