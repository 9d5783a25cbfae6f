package redis_session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mohammad-safakhou/picbot/session"
	redis_session "github.com/mohammad-safakhou/picbot/session/redis"
	"github.com/mohammad-safakhou/picbot/session/sessiontest"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	t.Cleanup(func() { _ = redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisStoreSuite(t *testing.T) {
	addr := startRedis(t)
	n := 0
	sessiontest.Run(t, func(t *testing.T) session.Store {
		n++
		client, err := redis_session.Conn(context.Background(), addr, "", 0, 5*time.Second)
		if err != nil {
			t.Fatalf("conn: %v", err)
		}
		st := redis_session.NewRedisSessionStore(client,
			redis_session.WithPrefix(fmt.Sprintf("test:%d:", n)),
			redis_session.WithMaxRetries(1000),
		)
		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}

func TestRedisIdleTTLExpiresKey(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()

	st := redis_session.NewRedisSessionStore(client, redis_session.WithIdleTTL(time.Second))
	if _, err := st.Create(ctx, "u1", "cats", []session.ImageRef{"A"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	ttl, err := client.TTL(ctx, redis_session.DefaultPrefix+"u1").Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Second {
		t.Fatalf("expected key ttl within 1s, got %v", ttl)
	}
	time.Sleep(1500 * time.Millisecond)
	if _, err := st.Get(ctx, "u1"); !errors.Is(err, session.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after ttl, got %v", err)
	}
}
