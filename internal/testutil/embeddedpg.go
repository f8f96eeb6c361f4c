package testutil

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
)

const (
	embeddedDatabaseName = "bobot"
	embeddedUserName     = "bobot_user"
	embeddedPassword     = "bobot_password"
	embeddedStartTimeout = 2 * time.Minute
)

var (
	embeddedStartOnce sync.Once
	embeddedStopOnce  sync.Once

	embeddedServer         *embeddedpostgres.EmbeddedPostgres
	embeddedDataSourceName string
	embeddedStartErr       error
)

// StartEmbeddedPostgresOnce starts a real Postgres inside the test process,
// exactly once per process. The working directories are keyed by pid so
// parallel test binaries never share state.
func StartEmbeddedPostgresOnce() error {
	embeddedStartOnce.Do(func() {
		port, portErr := reserveLoopbackPort()
		if portErr != nil {
			embeddedStartErr = fmt.Errorf("embedded-pg: find free port: %w", portErr)
			return
		}

		baseDirectory := filepath.Join(os.TempDir(), fmt.Sprintf("bobot-embedded-pg-%d", os.Getpid()))
		for _, subdirectory := range []string{"", "data", "runtime", "binaries"} {
			_ = os.MkdirAll(filepath.Join(baseDirectory, subdirectory), 0o755)
		}

		serverConfiguration := embeddedpostgres.DefaultConfig().
			Port(uint32(port)).
			Database(embeddedDatabaseName).
			Username(embeddedUserName).
			Password(embeddedPassword).
			DataPath(filepath.Join(baseDirectory, "data")).
			RuntimePath(filepath.Join(baseDirectory, "runtime")).
			BinariesPath(filepath.Join(baseDirectory, "binaries")).
			StartTimeout(embeddedStartTimeout)

		server := embeddedpostgres.NewDatabase(serverConfiguration)
		if startErr := server.Start(); startErr != nil {
			embeddedStartErr = fmt.Errorf("embedded-pg: start: %w", startErr)
			return
		}

		embeddedServer = server
		embeddedDataSourceName = fmt.Sprintf(
			"host=127.0.0.1 port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			port, embeddedUserName, embeddedPassword, embeddedDatabaseName,
		)
	})
	return embeddedStartErr
}

// StopEmbeddedPostgresOnce stops the embedded Postgres if it was started.
func StopEmbeddedPostgresOnce() {
	embeddedStopOnce.Do(func() {
		if embeddedServer != nil {
			_ = embeddedServer.Stop()
		}
	})
}

// DSN returns the connection string for the embedded Postgres. It is empty
// until StartEmbeddedPostgresOnce has succeeded.
func DSN() string {
	return embeddedDataSourceName
}

func reserveLoopbackPort() (int, error) {
	listener, listenErr := net.Listen("tcp", "127.0.0.1:0")
	if listenErr != nil {
		return 0, listenErr
	}
	defer func() { _ = listener.Close() }()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
