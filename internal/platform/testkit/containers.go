//go:build integration_pg || integration_redis

package testkit

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startContainer runs req and returns host:port for the first exposed port; it is terminated on cleanup
func startContainer(t *testing.T, req tc.ContainerRequest) (host, port string) {
	t.Helper()

	// generous deadline for the first image pull
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err = c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, req.ExposedPorts[0])
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	return host, mapped.Port()
}

// StartPostgres boots postgres:16-alpine and returns a DSN for it
func StartPostgres(t *testing.T) string {
	t.Helper()
	host, port := startContainer(t, tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "bazaar",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(2 * time.Minute),
	})
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/bazaar?sslmode=disable", host, port)
}

// StartRedis boots redis:7-alpine and returns its address
func StartRedis(t *testing.T) string {
	t.Helper()
	host, port := startContainer(t, tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(2 * time.Minute),
	})
	return host + ":" + port
}
