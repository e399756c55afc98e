package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/robfig/cron"

	"github.com/example/pharmadrop/internal/metrics"
)

// Keepalive pings a public URL on a schedule so idle hosting does not put
// the service to sleep.
type Keepalive struct {
	url      string
	schedule string
	client   *http.Client
	metrics  *metrics.Metrics
	cron     *cron.Cron
}

func NewKeepalive(url, schedule string, m *metrics.Metrics) *Keepalive {
	return &Keepalive{
		url:      url,
		schedule: schedule,
		client:   &http.Client{Timeout: 30 * time.Second},
		metrics:  m,
	}
}

func (k *Keepalive) Enabled() bool {
	return k.url != ""
}

// Ping issues one GET against the configured URL.
func (k *Keepalive) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return err
	}
	resp, err := k.client.Do(req)
	if err != nil {
		k.metrics.KeepalivePinged(err)
		log.Printf("[Keepalive] Ping failed: %v", err)
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		err = fmt.Errorf("keepalive returned status %d", resp.StatusCode)
		log.Printf("[Keepalive] %v", err)
	}
	k.metrics.KeepalivePinged(err)
	return err
}

// Start pings once and then on every tick of the schedule.
func (k *Keepalive) Start() error {
	if !k.Enabled() {
		log.Println("[Keepalive] KEEPALIVE_URL not set, job disabled")
		return nil
	}

	c := cron.New()
	if err := c.AddFunc(k.schedule, k.tick); err != nil {
		return fmt.Errorf("keepalive schedule %q: %w", k.schedule, err)
	}
	c.Start()
	k.cron = c

	go k.tick()
	log.Printf("[Keepalive] Pinging %s on %s", k.url, k.schedule)
	return nil
}

func (k *Keepalive) Stop() {
	if k.cron != nil {
		k.cron.Stop()
	}
}

func (k *Keepalive) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), k.client.Timeout)
	defer cancel()
	_ = k.Ping(ctx)
}
