package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/spacesedan/bluesense/config"
)

// ValkeyClient holds the counters that let several dashboard replicas
// share one scoring quota.
type ValkeyClient struct {
	Client valkey.Client
	opts   valkey.ClientOption
	mu     sync.Mutex
}

func NewValkeyClient(ctx context.Context, cfg config.Valkey) (*ValkeyClient, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{
			cfg.InitAddress,
		},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}

	if cfg.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := connectValkey(ctx, opts)
	if err != nil {
		return nil, err
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", cfg.InitAddress))
	return &ValkeyClient{Client: client, opts: opts}, nil
}

func connectValkey(ctx context.Context, opts valkey.ClientOption) (valkey.Client, error) {
	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func (vc *ValkeyClient) recreateClient(ctx context.Context) {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := connectValkey(ctx, vc.opts)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed", slog.String("error", err.Error()))
		return
	}

	vc.Client.Close()
	vc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyClient) client() valkey.Client {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.Client
}

func (vc *ValkeyClient) Close() {
	vc.client().Close()
}

// counterCommands are the two halves of a reservation. They run as
// separate round trips so a failed EXPIRE can be retried on its own.
type counterCommands interface {
	incr(ctx context.Context, key string) (int64, error)
	expire(ctx context.Context, key string, ttl time.Duration) error
}

var valkeyRetryDelay = 250 * time.Millisecond

// Incr bumps key and sets its expiry, returning the new count. INCR is
// sent once; only EXPIRE is retried since it is idempotent.
func (vc *ValkeyClient) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return incrWithExpiry(ctx, vc, key, ttl, 3)
}

func incrWithExpiry(ctx context.Context, cmds counterCommands, key string, ttl time.Duration, retries int) (int64, error) {
	count, err := cmds.incr(ctx, key)
	if err != nil {
		return 0, err
	}

	for i := 0; i < retries; i++ {
		err = cmds.expire(ctx, key, ttl)
		if err == nil {
			return count, nil
		}
		slog.Warn("[ValkeyClient] Expire failed",
			slog.String("key", key),
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		if i == retries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return count, nil
		case <-time.After(valkeyRetryDelay):
		}
	}

	// The reservation itself was counted, so the count still stands.
	slog.Error("[ValkeyClient] Counter left without expiry", slog.String("key", key))
	return count, nil
}

func (vc *ValkeyClient) incr(ctx context.Context, key string) (int64, error) {
	c := vc.client()
	res := c.Do(ctx, c.B().Incr().Key(key).Build())
	if err := res.Error(); err != nil {
		if isConnectionError(err) {
			vc.recreateClient(ctx)
		}
		return 0, err
	}
	return res.AsInt64()
}

func (vc *ValkeyClient) expire(ctx context.Context, key string, ttl time.Duration) error {
	c := vc.client()
	err := c.Do(ctx, c.B().Expire().Key(key).Seconds(int64(ttl/time.Second)).Build()).Error()
	if isConnectionError(err) {
		vc.recreateClient(ctx)
	}
	return err
}

// Decr releases a reservation. It is not retried for the same reason INCR
// is not.
func (vc *ValkeyClient) Decr(ctx context.Context, key string) error {
	c := vc.client()
	err := c.Do(ctx, c.B().Decr().Key(key).Build()).Error()
	if isConnectionError(err) {
		vc.recreateClient(ctx)
	}
	return err
}

func (vc *ValkeyClient) Ping(ctx context.Context) error {
	c := vc.client()
	return c.Do(ctx, c.B().Ping().Build()).Error()
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
