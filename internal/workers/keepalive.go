package workers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// KeepAlive pings the service's own health endpoint so free-tier hosts do not idle it out.
type KeepAlive struct {
	httpClient *http.Client
	url        string
	interval   time.Duration
	log        zerolog.Logger
}

func NewKeepAlive(url string, interval time.Duration, log zerolog.Logger) *KeepAlive {
	return &KeepAlive{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        url,
		interval:   interval,
		log:        log,
	}
}

// Start pings once per interval until ctx is cancelled.
func (k *KeepAlive) Start(ctx context.Context) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	k.log.Info().Str("url", k.url).Dur("interval", k.interval).Msg("Starting keep-alive pinger...")
	for {
		select {
		case <-ctx.Done():
			k.log.Info().Msg("Stopping keep-alive pinger...")
			return
		case <-ticker.C:
			if err := k.Ping(ctx); err != nil {
				k.log.Error().Err(err).Msg("Keep-alive ping failed")
				continue
			}
			k.log.Info().Str("url", k.url).Msg("Keep-alive ping sent")
		}
	}
}

// Ping performs a single GET against the configured URL.
func (k *KeepAlive) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return err
	}
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
