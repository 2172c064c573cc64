package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/gorilla/mux"
	"github.com/nexus-esports/lynx/pkg/dataaccess"
	"github.com/nexus-esports/lynx/pkg/logging"
	"github.com/nexus-esports/lynx/pkg/request"
	"github.com/nexus-esports/lynx/pkg/ticketing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// PathMetrics is the path for metrics.
	PathMetrics = "/metrics"

	// PathHealth is the path for the health check.
	PathHealth = "/health"
)

// IApp is the interface the controllers use to reach the application's
// services.
type IApp interface {
	// Session returns the discord session.
	Session() *discordgo.Session

	// Log returns the logger.
	Log() *slog.Logger

	// GuildDal returns the guild data access layer.
	GuildDal() dataaccess.GuildDal

	// TicketDal returns the ticket data access layer.
	TicketDal() dataaccess.TicketDal

	// TemplateDal returns the panel and preset data access layer.
	TemplateDal() dataaccess.TemplateDal

	// Registry returns the template registry.
	Registry() *ticketing.Registry

	// Lifecycle returns the ticket lifecycle manager.
	Lifecycle() *ticketing.Lifecycle
}

type App struct {
	// l is the logger.
	l *slog.Logger

	// r is the router for the application.
	r *mux.Router

	// svr is the server for the application.
	svr *http.Server

	// s is the discord session.
	s *discordgo.Session

	// eventNotifier is the channel for notifying of events.
	eventNotifier chan any

	// gdb is the guild data access layer.
	gdb dataaccess.GuildDal

	// tdb is the ticket data access layer.
	tdb dataaccess.TicketDal

	// tmpl is the panel and preset data access layer.
	tmpl dataaccess.TemplateDal

	// registry is the template registry.
	registry *ticketing.Registry

	// lifecycle is the ticket lifecycle manager.
	lifecycle *ticketing.Lifecycle
}

// NewApp creates a new instance of App.
func NewApp(l *slog.Logger, r *mux.Router) *App {
	return &App{
		l: l,
		r: r,
	}
}

func (a *App) Run() error {
	// The data access layers share the package level mongo connection that
	// parseConfig established.
	a.gdb = dataaccess.NewGuildDal()
	a.tdb = dataaccess.NewTicketDal()
	a.tmpl = dataaccess.NewTemplateDal()

	a.registry = ticketing.NewRegistry(a.l, a.tmpl)

	// Register bot.
	if err := a.RegisterBot(); err != nil {
		return fmt.Errorf("error registering bot: %w", err)
	}

	// The lifecycle talks to Discord through the session, so it can only be
	// built once the session exists.
	resolver := ticketing.NewResolver(a.l, a.gdb)
	a.lifecycle = ticketing.NewLifecycle(
		a.l,
		a.tdb,
		a.gdb,
		newDiscordChannels(a.s),
		newDiscordMembers(a.s),
		newDiscordArchive(a.l, a.s, a.gdb),
		resolver,
	)

	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.l.Info(fmt.Sprintf("Logged in as %s#%s", r.User.Username, r.User.Discriminator))

		// Rebind every persisted panel and preset so their buttons keep
		// working across restarts.
		if err := a.registry.Rehydrate(context.Background()); err != nil {
			a.l.Error("Error rehydrating the template registry", slog.String(logging.KeyError, err.Error()))
		}
	})

	// Register slash commands.
	if err := a.registerSlashCommands(); err != nil {
		return fmt.Errorf("error registering slash commands: %w", err)
	}

	if err := a.RegisterDiscordHandlers(); err != nil {
		return fmt.Errorf("error registering discord handlers: %w", err)
	}

	// Start event listener.
	go a.eventListener()

	// Open websocket.
	if err := a.s.Open(); err != nil {
		return fmt.Errorf("error opening connection to Discord: %w", err)
	}

	a.l.Info("Bot is now running.")

	a.generateServer()
	a.setupRoutes()
	a.runServer()

	// Register listener for shutdown signal.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	// Process shutdown signal.
	for sig := range c {
		a.l.Info("Received shutdown signal", slog.String("signal", sig.String()))
		if err := a.ShutdownHook(); err != nil {
			a.l.Error("Error shutting down application", slog.String(logging.KeyError, err.Error()))
		}
		os.Exit(0)
	}
	return nil
}

func (a *App) ShutdownHook() error {
	// Reset the total number of guilds to 0.
	TotalDiscordGuilds.Set(0)

	// Cancel any pending channel deletions.
	a.lifecycle.Shutdown()

	// Unregister slash commands.
	if err := a.unregisterSlashCommands(); err != nil {
		return fmt.Errorf("error unregistering slash commands: %w", err)
	}

	// Close the connection to Discord.
	if err := a.s.Close(); err != nil {
		return fmt.Errorf("error closing connection to Discord: %w", err)
	}
	return nil
}

func (a *App) RegisterBot() error {
	// Default the number of guilds to 0.
	TotalDiscordGuilds.Set(0)

	dg, err := discordgo.New("Bot " + BotToken)
	if err != nil {
		return fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsAll)

	if a.eventNotifier == nil {
		// Create event notifier. This is used to runServer events. It is buffered to prevent blocking.
		a.eventNotifier = make(chan any, 100)
	}

	dg.SetEventNotifier(a.eventNotifier)

	a.s = dg
	return nil
}

func (a *App) runServer() {
	go func() {
		a.l.Info("Starting monitoring server")
		if err := a.svr.ListenAndServe(); err != nil {
			a.l.Error("Error starting monitoring server", slog.String(logging.KeyError, err.Error()))
			a.l.Warn("Monitoring server will not be available")
		}
	}()
}

func (a *App) setupRoutes() {
	// PathMetrics is the path for metrics.
	a.r.HandleFunc(PathMetrics, promhttp.Handler().ServeHTTP).Methods(http.MethodGet)

	// PathHealth is the path for health check.
	a.r.HandleFunc(PathHealth, middlewareHttp(a.healthCheck(), a)).Methods(http.MethodGet)

	// NotFoundHandler is the handler for 404.
	a.r.NotFoundHandler = request.NotFoundHandler(a.l)

	// MethodNotAllowedHandler is the handler for 405.
	a.r.MethodNotAllowedHandler = request.MethodNotAllowedHandler(a.l)
}

func (a *App) generateServer() {
	a.svr = &http.Server{
		Addr:    ":" + MonitoringPort,
		Handler: a.r,
	}
}

func (a *App) GetJoinedGuilds() ([]*discordgo.UserGuild, error) {
	guilds, err := a.s.UserGuilds(0, "", "")
	if err != nil {
		return nil, fmt.Errorf("error getting guilds: %w", err)
	}
	return guilds, nil
}

func (a *App) RegisterDiscordHandlers() error {
	// Bot joined guild.
	a.s.AddHandler(guildJoinedHandler(a))

	// Bot left guild.
	a.s.AddHandler(guildLeaveHandler(a))

	// Interaction create handler.
	a.s.AddHandler(interactionHandler(a,
		// Slash Controllers
		map[string]commandController{
			setupCmd.Name:      setupCmdController,
			panelCmd.Name:      panelCmdController,
			presetCmd.Name:     presetCmdController,
			ticketCmd.Name:     ticketCmdController,
			addUserCmd.Name:    addUserCmdController,
			forceCloseCmd.Name: forceCloseCmdController,
		},
		// Button Controllers
		map[string]commandProcessor{
			ClaimTicketButtonID: claimTicketHandler,
			CloseTicketButtonID: closeTicketHandler,
		}))
	return nil
}

func (a *App) eventListener() {
	for e := range a.eventNotifier {
		switch t := e.(type) {
		case *discordgo.Event:
			if t.Type != "" {
				TotalDiscordEvents.WithLabelValues(t.Type).Inc()
			} else {
				// If there is no type, then use the operation name.
				TotalDiscordEvents.WithLabelValues(strings.ToUpper(t.Operation.String())).Inc()
			}
		default:
			a.l.Error("Unknown event type", slog.String("type", fmt.Sprintf("%T", e)))
			TotalDiscordEvents.WithLabelValues("UNKNOWN").Inc()
		}
	}
}

// slashCommands is every command the bot registers per guild.
var slashCommands = []*discordgo.ApplicationCommand{
	setupCmd,
	panelCmd,
	presetCmd,
	ticketCmd,
	addUserCmd,
	forceCloseCmd,
}

func (a *App) registerSlashCommands() error {
	// Get all guilds the bot is in.
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	// Register slash commands for each guild.
	for _, g := range guilds {
		for _, cmd := range slashCommands {
			if _, err := a.Session().ApplicationCommandCreate(ApplicationId, g.ID, cmd); err != nil {
				return fmt.Errorf("error creating %s command for guild %s: %w", cmd.Name, g.ID, err)
			}
		}
	}
	return nil
}

func (a *App) unregisterSlashCommands() error {
	// Get all guilds the bot is in.
	guilds, err := a.GetJoinedGuilds()
	if err != nil {
		return fmt.Errorf("error getting guilds: %w", err)
	}

	// Delete slash commands for each guild.
	for _, guild := range guilds {
		registered, err := a.s.ApplicationCommands(ApplicationId, guild.ID)
		if err != nil {
			return fmt.Errorf("error getting commands for guild %s: %w", guild.ID, err)
		}

		for _, cmd := range registered {
			if err := a.s.ApplicationCommandDelete(ApplicationId, guild.ID, cmd.ID); err != nil {
				return fmt.Errorf("error deleting %s command for guild %s: %w", cmd.Name, guild.ID, err)
			}
		}
	}
	return nil
}

func (a *App) Session() *discordgo.Session {
	return a.s
}

func (a *App) Log() *slog.Logger {
	return a.l
}

func (a *App) GuildDal() dataaccess.GuildDal {
	return a.gdb
}

func (a *App) TicketDal() dataaccess.TicketDal {
	return a.tdb
}

func (a *App) TemplateDal() dataaccess.TemplateDal {
	return a.tmpl
}

func (a *App) Registry() *ticketing.Registry {
	return a.registry
}

func (a *App) Lifecycle() *ticketing.Lifecycle {
	return a.lifecycle
}
