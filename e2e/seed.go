package e2e

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glizzus/dca/internal/catalog"
	"github.com/glizzus/dca/internal/datalayer"
	"github.com/glizzus/dca/internal/generator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var seedOnce sync.Once

// SeedGlobalNoise records unrelated encodes so list queries run against a
// catalog that is not empty.
func SeedGlobalNoise(t *testing.T, repo *catalog.PostgresEncodeRepository) {
	t.Helper()
	seedOnce.Do(func() {
		ids := generator.NewEncodeIDGenerator()
		for i := range 100 {
			id, _ := ids.Next()

			encode := catalog.Encode{
				ID:          id.ID,
				ObjectKey:   id.ObjectKey,
				Source:      "file",
				Title:       fmt.Sprintf("noise-%d", i),
				Application: "audio",
				Bitrate:     64000,
				SampleRate:  48000,
				Channels:    2,
				FrameSize:   960,
			}

			err := repo.Save(t.Context(), encode)
			if err != nil {
				t.Fatalf("failed to save encode: %v", err)
			}
		}
	})
}

var (
	once              sync.Once
	postgresContainer *postgres.PostgresContainer
	connStr           string
	startErr          error
	pool              *pgxpool.Pool
	wg                sync.WaitGroup
)

// UsePostgres signals that the test is using Postgres as its database.
// This will either provision or reuse a Postgres container for the test.
// Do not expect a clean state in the database; it is shared across tests.
func UsePostgres(t *testing.T) string {
	t.Helper()

	once.Do(func() {
		ctx := context.Background()
		postgresContainer, startErr = postgres.Run(
			ctx,
			"postgres",
			postgres.WithDatabase("dca"),
			postgres.WithUsername("user"),
			postgres.WithPassword("password"),
			postgres.BasicWaitStrategies(),
		)
		if startErr != nil {
			return
		}
		connStr, startErr = postgresContainer.ConnectionString(ctx)
		if startErr != nil {
			return
		}

		pool, startErr = pgxpool.New(ctx, connStr)
		if startErr != nil {
			return
		}
		defer pool.Close()

		startErr = datalayer.MigratePostgres(pool)
	})

	if startErr != nil {
		t.Fatalf("failed to start postgres container: %v", startErr)
	}
	wg.Add(1)
	t.Cleanup(wg.Done)
	return connStr
}

func GetRepository(t *testing.T, connStr string) *catalog.PostgresEncodeRepository {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), connStr)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return catalog.NewPostgresEncodeRepository(pool)
}

func TerminatePostgresForE2E() {
	wg.Wait()
	if postgresContainer != nil {
		err := postgresContainer.Terminate(context.Background())
		if err != nil {
			fmt.Printf("failed to terminate postgres container: %v", err)
		}
	}
}
