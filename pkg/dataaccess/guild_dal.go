package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nexus-esports/lynx/pkg/dataaccess/monitoring"
	"github.com/nexus-esports/lynx/pkg/entities"
	"github.com/nexus-esports/lynx/pkg/logging"
	"github.com/nexus-esports/lynx/pkg/ticketing"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const guildDalName = "guild_dal"

// GuildDal is the data access layer for guild configuration. It satisfies
// ticketing.GuildStore.
type GuildDal interface {
	// SaveGuild saves a guild.
	SaveGuild(ctx context.Context, guild *entities.Guild) error

	// GuildByID gets a guild by ID.
	GuildByID(ctx context.Context, id string) (*entities.Guild, error)
}

type guildDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewGuildDal creates a new guild data access layer.
func NewGuildDal() GuildDal {
	l := slog.Default().With(slog.String(logging.KeyDal, guildDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &guildDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (g *guildDalImpl) SaveGuild(ctx context.Context, guild *entities.Guild) error {
	// Get the guild collection.
	collection := g.client.Database(mongoDatabase).Collection(collectionGuilds)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(guildDalName, "save_guild", mongoDatabase, collectionGuilds).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(guildDalName, "save_guild", mongoDatabase, collectionGuilds))
	defer t.ObserveDuration()

	// Save the guild.
	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx, bson.M{"id": guild.ID}, bson.M{"$set": guild}, opts)
	if err != nil {
		return fmt.Errorf("error updating guild: %w", err)
	}
	return nil
}

func (g *guildDalImpl) GuildByID(ctx context.Context, id string) (*entities.Guild, error) {
	// Get the guild collection.
	collection := g.client.Database(mongoDatabase).Collection(collectionGuilds)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(guildDalName, "guild_by_id", mongoDatabase, collectionGuilds).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(guildDalName, "guild_by_id", mongoDatabase, collectionGuilds))
	defer t.ObserveDuration()

	// Get the guild.
	guild := new(entities.Guild)

	err := collection.FindOne(ctx, bson.M{"id": id}).Decode(guild)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ticketing.ErrNotFound
		}
		return nil, fmt.Errorf("error getting guild: %w", err)
	}
	return guild, nil
}
