package connection

import (
	"context"
	"fmt"
	"time"

	dbMonitoring "github.com/nexus-esports/lynx/pkg/dataaccess/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// connectTimeout bounds the initial connection and its verifying ping.
const connectTimeout = 5 * time.Second

// MongoDB connects the application to its Mongo deployment. Configuration
// supplies a complete connection string; nothing is assembled here.
type MongoDB struct {
	ConnectionString string
}

// Connect establishes the client and verifies the deployment with a ping
// before handing the client out.
func (m *MongoDB) Connect() (*mongo.Client, error) {
	if m.ConnectionString == "" {
		return nil, fmt.Errorf("no connection string provided")
	}

	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(m.ConnectionString).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo: %w", err)
	}

	if err := m.ping(ctx, client); err != nil {
		return nil, err
	}

	return client, nil
}

// ping verifies the deployment is reachable, recording the latency the same
// way the DALs record their queries.
func (m *MongoDB) ping(ctx context.Context, client *mongo.Client) error {
	t := prometheus.NewTimer(dbMonitoring.MongoLatency.WithLabelValues("connection", "ping", "-", "-"))
	defer t.ObserveDuration()
	dbMonitoring.MongoTotalRequests.WithLabelValues("connection", "ping", "-", "-").Inc()

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("error pinging mongo: %w", err)
	}
	return nil
}
