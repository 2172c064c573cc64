package ticketing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nexus-esports/lynx/pkg/logging"
)

// Scope is what an actor is asking to do: either global ticket creation or a
// specific entry point. AllowedRoleIDs come from the panel or preset; an
// empty set defers to the guild's ticketing role.
type Scope struct {
	AllowedRoleIDs []string
}

// Resolver decides whether an actor may create or manage tickets under a
// given scope. Membership is resolved fresh per request; roles can change
// between calls, so nothing is cached.
type Resolver struct {
	l      *slog.Logger
	guilds GuildStore
}

// NewResolver creates a new permission resolver.
func NewResolver(l *slog.Logger, guilds GuildStore) *Resolver {
	return &Resolver{
		l:      l,
		guilds: guilds,
	}
}

// Authorize reports whether the actor may act under the scope in the guild.
//
// An administrator is always authorized. Otherwise, if the scope carries its
// own role set, the actor must hold at least one of those roles. If the
// scope's role set is empty, the guild's ticketing role is the gate; if that
// is also unset, the default is deny.
func (r *Resolver) Authorize(ctx context.Context, actor Actor, guildID string, scope Scope) bool {
	if actor.Admin {
		return true
	}

	if len(scope.AllowedRoleIDs) > 0 {
		return holdsAny(actor.RoleIDs, scope.AllowedRoleIDs)
	}

	// Fall back to the guild-wide ticketing role.
	guild, err := r.guilds.GuildByID(ctx, guildID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.l.Error("Error getting guild configuration",
				slog.String(logging.KeyGuildID, guildID),
				slog.String(logging.KeyError, err.Error()))
		}
		return false
	}

	if guild.Ticketing.RoleID == "" {
		return false
	}

	return holdsAny(actor.RoleIDs, []string{guild.Ticketing.RoleID})
}

// holdsAny reports whether held and wanted intersect.
func holdsAny(held, wanted []string) bool {
	for _, w := range wanted {
		for _, h := range held {
			if h == w {
				return true
			}
		}
	}
	return false
}
