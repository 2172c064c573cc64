package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nexus-esports/lynx/pkg/custom"
	"github.com/nexus-esports/lynx/pkg/dataaccess/monitoring"
	"github.com/nexus-esports/lynx/pkg/entities"
	"github.com/nexus-esports/lynx/pkg/logging"
	"github.com/nexus-esports/lynx/pkg/ticketing"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ticketDalName = "ticket_dal"

// TicketDal is the data access layer for tickets. It satisfies
// ticketing.TicketStore.
type TicketDal interface {
	ticketing.TicketStore
}

type ticketDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewTicketDal creates a new ticket data access layer.
func NewTicketDal() TicketDal {
	l := slog.Default().With(slog.String(logging.KeyDal, ticketDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &ticketDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (d *ticketDalImpl) SaveTicket(ctx context.Context, ticket *entities.Ticket) error {
	// Get the ticket collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionTickets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "save_ticket", mongoDatabase, collectionTickets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "save_ticket", mongoDatabase, collectionTickets))
	defer t.ObserveDuration()

	// Save the ticket, keyed by guild and ticket number.
	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx, bson.M{"guild_id": ticket.GuildID, "id": ticket.ID}, bson.M{"$set": ticket}, opts)
	if err != nil {
		return fmt.Errorf("error updating ticket: %w", err)
	}
	return nil
}

func (d *ticketDalImpl) ActiveTicketByChannel(ctx context.Context, guildID, channelID string) (*entities.Ticket, error) {
	// Get the ticket collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionTickets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "active_ticket_by_channel", mongoDatabase, collectionTickets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "active_ticket_by_channel", mongoDatabase, collectionTickets))
	defer t.ObserveDuration()

	// Get the ticket. At most one non-closed ticket exists per channel.
	var ticket entities.Ticket
	err := collection.FindOne(ctx, bson.M{
		"guild_id":   guildID,
		"channel_id": channelID,
		"status":     bson.M{"$ne": entities.StatusClosed},
	}).Decode(&ticket)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ticketing.ErrNotFound
		}
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}

	return &ticket, nil
}

func (d *ticketDalImpl) LatestTicketByChannel(ctx context.Context, guildID, channelID string) (*entities.Ticket, error) {
	// Get the ticket collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionTickets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "latest_ticket_by_channel", mongoDatabase, collectionTickets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "latest_ticket_by_channel", mongoDatabase, collectionTickets))
	defer t.ObserveDuration()

	// Get the newest ticket for the channel, closed or not.
	opts := options.FindOne().SetSort(bson.M{"id": -1})

	var ticket entities.Ticket
	err := collection.FindOne(ctx, bson.M{
		"guild_id":   guildID,
		"channel_id": channelID,
	}, opts).Decode(&ticket)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ticketing.ErrNotFound
		}
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}

	return &ticket, nil
}

func (d *ticketDalImpl) TicketByNumber(ctx context.Context, guildID string, number int) (*entities.Ticket, error) {
	// Get the ticket collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionTickets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "ticket_by_number", mongoDatabase, collectionTickets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "ticket_by_number", mongoDatabase, collectionTickets))
	defer t.ObserveDuration()

	// Get the ticket.
	var ticket entities.Ticket
	err := collection.FindOne(ctx, bson.M{"guild_id": guildID, "id": number}).Decode(&ticket)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ticketing.ErrNotFound
		}
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}

	return &ticket, nil
}

// counter is the per-guild ticket number sequence row.
type counter struct {
	GuildID string `bson:"guild_id"`
	Seq     int    `bson:"seq"`
}

func (d *ticketDalImpl) NextTicketNumber(ctx context.Context, guildID string) (int, error) {
	// Get the counter collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionCounters)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "next_ticket_number", mongoDatabase, collectionCounters).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "next_ticket_number", mongoDatabase, collectionCounters))
	defer t.ObserveDuration()

	// Increment the guild's sequence as one atomic step. Counting rows and
	// inserting separately would race under concurrent creation.
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var c counter
	err := collection.FindOneAndUpdate(ctx,
		bson.M{"guild_id": guildID},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("error allocating ticket number: %w", err)
	}

	return c.Seq, nil
}

func (d *ticketDalImpl) DeleteTicket(ctx context.Context, guildID string, number int) error {
	// Get the ticket collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionTickets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "delete_ticket", mongoDatabase, collectionTickets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "delete_ticket", mongoDatabase, collectionTickets))
	defer t.ObserveDuration()

	// Remove the row.
	if _, err := collection.DeleteOne(ctx, bson.M{"guild_id": guildID, "id": number}); err != nil {
		return fmt.Errorf("error deleting ticket: %w", err)
	}
	return nil
}

func (d *ticketDalImpl) TransitionTicket(ctx context.Context, guildID string, number int, from []entities.TicketStatus, update ticketing.TicketUpdate) (*entities.Ticket, error) {
	// Get the ticket collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionTickets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "transition_ticket", mongoDatabase, collectionTickets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "transition_ticket", mongoDatabase, collectionTickets))
	defer t.ObserveDuration()

	set := bson.M{}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.AssignedTo != nil {
		set["assigned_to"] = *update.AssignedTo
	}
	if update.ClosedBy != nil {
		set["closed_by"] = *update.ClosedBy
	}
	if update.Priority != nil {
		set["priority"] = *update.Priority
	}
	if update.ClosedAt != nil {
		dt := custom.Datetime(update.ClosedAt.UTC())
		set["closed_at"] = &dt
	}

	// The status precondition is part of the filter, making the whole
	// transition a single atomic read-modify-write.
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ticket entities.Ticket
	err := collection.FindOneAndUpdate(ctx,
		bson.M{
			"guild_id": guildID,
			"id":       number,
			"status":   bson.M{"$in": from},
		},
		bson.M{"$set": set},
		opts,
	).Decode(&ticket)
	if err == nil {
		return &ticket, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("error transitioning ticket: %w", err)
	}

	// No match: either the ticket does not exist, or the precondition
	// failed. Tell the two apart for the caller.
	if _, gerr := d.TicketByNumber(ctx, guildID, number); gerr != nil {
		return nil, gerr
	}
	return nil, ticketing.ErrInvalidState
}

func (d *ticketDalImpl) CountByStatus(ctx context.Context, guildID string) (map[entities.TicketStatus]int, error) {
	// Get the ticket collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionTickets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(ticketDalName, "count_by_status", mongoDatabase, collectionTickets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(ticketDalName, "count_by_status", mongoDatabase, collectionTickets))
	defer t.ObserveDuration()

	counts := make(map[entities.TicketStatus]int)
	for _, status := range []entities.TicketStatus{entities.StatusOpen, entities.StatusClaimed, entities.StatusClosed} {
		n, err := collection.CountDocuments(ctx, bson.M{"guild_id": guildID, "status": status})
		if err != nil {
			return nil, fmt.Errorf("error counting tickets: %w", err)
		}
		counts[status] = int(n)
	}

	return counts, nil
}
