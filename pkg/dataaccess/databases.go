package dataaccess

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoDB is the Mongo client. This is a connection pool.
var MongoDB *mongo.Client

const (
	mongoDatabase = "lynx"

	collectionTickets  = "tickets"
	collectionGuilds   = "guilds"
	collectionPanels   = "panels"
	collectionPresets  = "presets"
	collectionCounters = "counters"
)
