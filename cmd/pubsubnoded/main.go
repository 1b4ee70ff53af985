package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/pubsubnode-go/internal/httpapi"
	"github.com/rmacdonaldsmith/pubsubnode-go/internal/persistence"
	"github.com/rmacdonaldsmith/pubsubnode-go/internal/pubsub"
	pubsubpkg "github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

const (
	appName    = "PubSubNode"
	appVersion = "0.1.0"
)

func main() {
	var (
		serviceID   = flag.String("service-id", getDefaultServiceID(), "Pubsub service identifier")
		address     = flag.String("address", "", "Service address (defaults to the service identifier)")
		pep         = flag.Bool("pep", false, "Run as a personal eventing service; the address is the owner")
		httpPort    = flag.Int("http-port", 8081, "HTTP API listen port")
		secretKey   = flag.String("secret", "", "JWT signing secret (a development default is used if empty)")
		noAuth      = flag.Bool("no-auth", false, "Disable authentication (development only)")
		dataDir     = flag.String("data-dir", "./data", "Item store data directory")
		inMemory    = flag.Bool("in-memory", false, "Keep items in memory only, nothing on disk")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", appName, appVersion)
		os.Exit(0)
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid log level %q: %v", *logLevel, err)
	}
	log.SetLevel(level)

	if *address == "" {
		*address = *serviceID
	}

	log.Infof("🚀 Starting %s v%s", appName, appVersion)
	log.Infof("📋 Service: %s (address %s)", *serviceID, *address)
	log.Infof("🔌 HTTP API: :%d", *httpPort)

	store, err := openStore(*dataDir, *inMemory, log)
	if err != nil {
		log.Fatalf("❌ Failed to open item store: %v", err)
	}
	defer store.Close()

	hub := httpapi.NewHub(log)

	service, err := pubsub.NewService(&pubsub.Config{
		ServiceID:        *serviceID,
		Address:          pubsubpkg.JID(*address),
		PersonalEventing: *pep,
		Store:            store,
		Sender:           hub,
		Sessions:         hub,
		Logger:           log,
	})
	if err != nil {
		log.Fatalf("❌ Failed to create pubsub service: %v", err)
	}
	defer func() {
		if err := service.Close(); err != nil {
			log.Warnf("⚠️  Error closing service: %v", err)
		}
	}()

	server := httpapi.NewServer(service, hub, serverConfig(*httpPort, *secretKey, *noAuth, log))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	if *noAuth {
		log.Warn("⚠️  Authentication disabled")
	}
	log.Infof("✅ %s started, use Ctrl+C to shut down", appName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Infof("🛑 Received signal %v, shutting down gracefully", sig)
	case err := <-errCh:
		if err != nil {
			log.Errorf("❌ HTTP server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warnf("⚠️  Error stopping HTTP server: %v", err)
	}
	log.Infof("👋 %s stopped", appName)
}

// serverConfig builds the HTTP API configuration from the parsed flags.
func serverConfig(port int, secret string, noAuth bool, log *logrus.Logger) httpapi.Config {
	return httpapi.Config{
		Port:      strconv.Itoa(port),
		SecretKey: secret,
		NoAuth:    noAuth,
		Logger:    log,
	}
}

// openStore selects the item store backing. The in-memory provider keeps
// everything in process; the badger store survives restarts.
func openStore(dataDir string, inMemory bool, log *logrus.Logger) (pubsubpkg.PersistenceProvider, error) {
	if inMemory {
		log.Info("💾 Item store: in-memory")
		return persistence.NewInMemoryProvider(), nil
	}
	log.Infof("💾 Item store: %s", dataDir)
	return persistence.NewBadgerStore(persistence.StoreConfig{
		Path:   dataDir,
		Logger: log,
	})
}

// getDefaultServiceID derives a service identifier from the hostname.
func getDefaultServiceID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "pubsub.localhost"
	}
	return fmt.Sprintf("pubsub.%s", hostname)
}
