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

const templateDalName = "template_dal"

// TemplateDal is the data access layer for panels and presets. It satisfies
// ticketing.TemplateStore.
type TemplateDal interface {
	ticketing.TemplateStore
}

type templateDalImpl struct {
	// l is the logger.
	l *slog.Logger

	// client is the database.
	client *mongo.Client
}

// NewTemplateDal creates a new template data access layer.
func NewTemplateDal() TemplateDal {
	l := slog.Default().With(slog.String(logging.KeyDal, templateDalName))

	if MongoDB == nil {
		l.Warn("MongoDB is nil, this can cause a panic. Proceeding...")
	}

	return &templateDalImpl{
		l:      l,
		client: MongoDB,
	}
}

func (d *templateDalImpl) SavePanel(ctx context.Context, p *entities.Panel) error {
	// Get the panel collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionPanels)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(templateDalName, "save_panel", mongoDatabase, collectionPanels).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(templateDalName, "save_panel", mongoDatabase, collectionPanels))
	defer t.ObserveDuration()

	// Save the panel.
	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx, bson.M{"panel_id": p.PanelID}, bson.M{"$set": p}, opts)
	if err != nil {
		return fmt.Errorf("error updating panel: %w", err)
	}
	return nil
}

func (d *templateDalImpl) PanelByID(ctx context.Context, panelID string) (*entities.Panel, error) {
	// Get the panel collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionPanels)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(templateDalName, "panel_by_id", mongoDatabase, collectionPanels).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(templateDalName, "panel_by_id", mongoDatabase, collectionPanels))
	defer t.ObserveDuration()

	// Get the panel.
	panel := new(entities.Panel)
	err := collection.FindOne(ctx, bson.M{"panel_id": panelID}).Decode(panel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ticketing.ErrNotFound
		}
		return nil, fmt.Errorf("error getting panel: %w", err)
	}
	return panel, nil
}

func (d *templateDalImpl) AllPanels(ctx context.Context) ([]*entities.Panel, error) {
	// Get the panel collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionPanels)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(templateDalName, "all_panels", mongoDatabase, collectionPanels).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(templateDalName, "all_panels", mongoDatabase, collectionPanels))
	defer t.ObserveDuration()

	cur, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error listing panels: %w", err)
	}

	var panels []*entities.Panel
	if err := cur.All(ctx, &panels); err != nil {
		return nil, fmt.Errorf("error decoding panels: %w", err)
	}
	return panels, nil
}

func (d *templateDalImpl) SavePreset(ctx context.Context, p *entities.Preset) error {
	// Get the preset collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionPresets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(templateDalName, "save_preset", mongoDatabase, collectionPresets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(templateDalName, "save_preset", mongoDatabase, collectionPresets))
	defer t.ObserveDuration()

	// Save the preset, keyed by guild and name so repeated saves replace
	// the definition.
	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx, bson.M{"guild_id": p.GuildID, "name": p.Name}, bson.M{"$set": p}, opts)
	if err != nil {
		return fmt.Errorf("error updating preset: %w", err)
	}
	return nil
}

func (d *templateDalImpl) PresetByID(ctx context.Context, presetID string) (*entities.Preset, error) {
	// Get the preset collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionPresets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(templateDalName, "preset_by_id", mongoDatabase, collectionPresets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(templateDalName, "preset_by_id", mongoDatabase, collectionPresets))
	defer t.ObserveDuration()

	// Get the preset.
	preset := new(entities.Preset)
	err := collection.FindOne(ctx, bson.M{"preset_id": presetID}).Decode(preset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ticketing.ErrNotFound
		}
		return nil, fmt.Errorf("error getting preset: %w", err)
	}
	return preset, nil
}

func (d *templateDalImpl) PresetByName(ctx context.Context, guildID, name string) (*entities.Preset, error) {
	// Get the preset collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionPresets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(templateDalName, "preset_by_name", mongoDatabase, collectionPresets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(templateDalName, "preset_by_name", mongoDatabase, collectionPresets))
	defer t.ObserveDuration()

	// Get the preset.
	preset := new(entities.Preset)
	err := collection.FindOne(ctx, bson.M{"guild_id": guildID, "name": name}).Decode(preset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ticketing.ErrNotFound
		}
		return nil, fmt.Errorf("error getting preset: %w", err)
	}
	return preset, nil
}

func (d *templateDalImpl) PresetsByGuild(ctx context.Context, guildID string) ([]*entities.Preset, error) {
	return d.listPresets(ctx, bson.M{"guild_id": guildID}, "presets_by_guild")
}

func (d *templateDalImpl) AllPresets(ctx context.Context) ([]*entities.Preset, error) {
	return d.listPresets(ctx, bson.M{}, "all_presets")
}

func (d *templateDalImpl) listPresets(ctx context.Context, filter bson.M, query string) ([]*entities.Preset, error) {
	// Get the preset collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionPresets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(templateDalName, query, mongoDatabase, collectionPresets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(templateDalName, query, mongoDatabase, collectionPresets))
	defer t.ObserveDuration()

	cur, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing presets: %w", err)
	}

	var presets []*entities.Preset
	if err := cur.All(ctx, &presets); err != nil {
		return nil, fmt.Errorf("error decoding presets: %w", err)
	}
	return presets, nil
}

func (d *templateDalImpl) DeletePreset(ctx context.Context, guildID, name string) error {
	// Get the preset collection.
	collection := d.client.Database(mongoDatabase).Collection(collectionPresets)

	// Start the prometheus metrics.
	monitoring.MongoTotalRequests.WithLabelValues(templateDalName, "delete_preset", mongoDatabase, collectionPresets).Inc()
	t := prometheus.NewTimer(monitoring.MongoLatency.WithLabelValues(templateDalName, "delete_preset", mongoDatabase, collectionPresets))
	defer t.ObserveDuration()

	if _, err := collection.DeleteOne(ctx, bson.M{"guild_id": guildID, "name": name}); err != nil {
		return fmt.Errorf("error deleting preset: %w", err)
	}
	return nil
}
