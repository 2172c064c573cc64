package ticketing

import (
	"context"
	"testing"

	"github.com/nexus-esports/lynx/pkg/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	r := NewRegistry(testLogger(), newFakeTemplateStore())

	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "Hex", in: "#FF0000", want: 0xFF0000},
		{name: "HexPrefix", in: "0x00ff00", want: 0x00FF00},
		{name: "Decimal", in: "255", want: 255},
		{name: "Empty", in: "", want: DefaultEmbedColor},
		{name: "Garbage", in: "bright red", want: DefaultEmbedColor},
		{name: "OutOfRange", in: "#FFFFFFFF", want: DefaultEmbedColor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, r.parseColor(tt.in))
		})
	}
}

func TestParseRoleTokens(t *testing.T) {
	r := NewRegistry(testLogger(), newFakeTemplateStore())

	// Stale mentions and junk are dropped, valid mentions and raw IDs kept.
	got := r.parseRoleTokens("g1", "<@&123>, 456 @Support junk,<@789>")
	require.Equal(t, []string{"123", "456"}, got)
}

func TestCreatePresetValidation(t *testing.T) {
	r := NewRegistry(testLogger(), newFakeTemplateStore())
	ctx := context.Background()

	field := func(name string) entities.FieldSpec {
		return entities.FieldSpec{Name: name}
	}

	t.Run("TooManyFields", func(t *testing.T) {
		_, err := r.CreatePreset(ctx, PresetInput{
			GuildID: "g1",
			Name:    "big",
			Title:   "Big",
			Fields: []entities.FieldSpec{
				field("a"), field("b"), field("c"), field("d"), field("e"), field("f"),
			},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "fields", verr.Field)
	})

	t.Run("MissingName", func(t *testing.T) {
		_, err := r.CreatePreset(ctx, PresetInput{GuildID: "g1", Title: "x"})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("UnnamedField", func(t *testing.T) {
		_, err := r.CreatePreset(ctx, PresetInput{
			GuildID: "g1",
			Name:    "bad",
			Title:   "Bad",
			Fields:  []entities.FieldSpec{{Placeholder: "no name"}},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("Valid", func(t *testing.T) {
		p, err := r.CreatePreset(ctx, PresetInput{
			GuildID: "g1",
			Name:    "Billing",
			Title:   "Billing Issue",
			Fields:  []entities.FieldSpec{{Name: "Amount", Required: true}},
			Color:   "#00FF00",
		})
		require.NoError(t, err)
		assert.Equal(t, "billing", p.Name, "preset names are stored lowercase")
		assert.Equal(t, 0x00FF00, p.EmbedColor)
		assert.NotEmpty(t, p.PresetID)

		// Bound in the dispatch table straight away.
		d, ok := r.Lookup(p.PresetID)
		require.True(t, ok)
		assert.Equal(t, KindPreset, d.Kind)
	})
}

func TestCreatePresetUpsertKeepsID(t *testing.T) {
	r := NewRegistry(testLogger(), newFakeTemplateStore())
	ctx := context.Background()

	first, err := r.CreatePreset(ctx, PresetInput{GuildID: "g1", Name: "billing", Title: "v1"})
	require.NoError(t, err)

	second, err := r.CreatePreset(ctx, PresetInput{GuildID: "g1", Name: "billing", Title: "v2"})
	require.NoError(t, err)

	// Saving the same name replaces the definition under the same entry
	// point ID, so existing buttons keep working.
	require.Equal(t, first.PresetID, second.PresetID)

	d, ok := r.Lookup(first.PresetID)
	require.True(t, ok)
	require.Equal(t, "v2", d.Title)
}

func TestDeletePresetUnbinds(t *testing.T) {
	r := NewRegistry(testLogger(), newFakeTemplateStore())
	ctx := context.Background()

	p, err := r.CreatePreset(ctx, PresetInput{GuildID: "g1", Name: "billing", Title: "Billing"})
	require.NoError(t, err)

	require.NoError(t, r.DeletePreset(ctx, "g1", "billing"))

	_, ok := r.Lookup(p.PresetID)
	require.False(t, ok)
}

func TestRehydrate(t *testing.T) {
	store := newFakeTemplateStore()
	ctx := context.Background()

	// Rows persisted by a previous process. The panel's backing message was
	// deleted externally; rehydration must still bind the panel ID.
	require.NoError(t, store.SavePanel(ctx, &entities.Panel{
		PanelID: "panel-1",
		GuildID: "g1",
		Title:   "Support",
	}))
	require.NoError(t, store.SavePreset(ctx, &entities.Preset{
		PresetID: "preset-1",
		GuildID:  "g1",
		Name:     "billing",
		Title:    "Billing",
	}))

	r := NewRegistry(testLogger(), store)
	require.NoError(t, r.Rehydrate(ctx))

	d, ok := r.Lookup("panel-1")
	require.True(t, ok)
	assert.Equal(t, KindPanel, d.Kind)
	assert.Equal(t, "g1", d.GuildID)

	d, ok = r.Lookup("preset-1")
	require.True(t, ok)
	assert.Equal(t, KindPreset, d.Kind)

	// Rehydrating twice is idempotent.
	require.NoError(t, r.Rehydrate(ctx))
	_, ok = r.Lookup("panel-1")
	require.True(t, ok)
}
