package valkey

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/reviewlens/internal/config"
)

const connectTimeout = 5 * time.Second

// NewClient connects to the queue server and fails fast when it is not
// answering PING within connectTimeout.
func NewClient(ctx context.Context, cfg config.ValkeyConfig) (valkey.Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Addr},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
		Dialer:      net.Dialer{Timeout: connectTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create valkey client %s: %w", cfg.Addr, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := Ping(client)(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Ping returns a readiness probe for client.
func Ping(client valkey.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Do(ctx, client.B().Ping().Build()).Error()
	}
}
