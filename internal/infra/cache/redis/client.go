package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"staybook/internal/domain/shared/storage"
)

type Options struct {
	Addr      string
	Password  string
	DB        int
	TLS       bool
	KeyPrefix string
}

// NewClient connects and pings with a short timeout.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	var tlsConf *tls.Config
	if opts.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:      opts.Addr,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: tlsConf,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, storage.Unavailable("redis ping", err)
	}
	return client, nil
}

func classify(op string, err error) error {
	if err == nil || errors.Is(err, goredis.Nil) {
		return err
	}
	return storage.Unavailable(op, err)
}
