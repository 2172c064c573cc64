package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Jacobbrewer1/discordgo"
	"github.com/gorilla/mux"
	"github.com/nexus-esports/lynx/pkg/logging"
	"github.com/nexus-esports/lynx/pkg/request"
)

// commandController resolves the processor for a slash sub command.
type commandController func(a IApp, cmd string) (commandProcessor, error)

// commandProcessor handles a single interaction.
type commandProcessor func(a IApp, i *discordgo.InteractionCreate) error

type Controller func(w http.ResponseWriter, r *http.Request)

func middlewareHttp(handler Controller, a IApp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		cw := request.NewClientWriter(w)

		// Recover from any panics that occur in the handler.
		defer func() {
			if rec := recover(); rec != nil {
				a.Log().Error("Panic in handler",
					slog.String(logging.KeyError, fmt.Sprintf("%v", rec)),
					slog.String("stack", string(debug.Stack())),
				)
				cw.WriteHeader(http.StatusInternalServerError)
				if err := json.NewEncoder(cw).Encode(request.NewMessage(request.ErrInternalServer.Error())); err != nil {
					a.Log().Error("Error encoding response", slog.String(logging.KeyError, err.Error()))
				}
			}
		}()

		var path string
		route := mux.CurrentRoute(r)
		if route != nil { // The route may be nil if the request is not routed.
			var err error
			path, err = route.GetPathTemplate()
			if err != nil {
				// An error here is only returned if the route does not define a path.
				a.Log().Error("Error getting path template", slog.String(logging.KeyError, err.Error()))
				path = r.URL.Path // If the route does not define a path, use the URL path.
			}
		} else {
			path = r.URL.Path // If the route is nil, use the URL path.
		}

		defer func() {
			// Run the deferred function after the request has been handled, as the status code will not be available until then.
			HttpTotalRequests.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Inc()
			HttpRequestDuration.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Observe(time.Since(now).Seconds())
		}()

		handler(cw, r)
	}
}

// interactionHandler routes every interaction: slash commands go through the
// controller map, message components through the button map, and anything
// not in the button map is looked up in the registry dispatch table so
// panel buttons keep working across restarts.
func interactionHandler(a IApp, controllers map[string]commandController, buttons map[string]commandProcessor) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			handleSlashCommand(a, controllers, i)
		case discordgo.InteractionMessageComponent:
			handleComponent(a, buttons, i)
		case discordgo.InteractionModalSubmit:
			handleModalSubmit(a, i)
		default:
			a.Log().Debug("Ignoring interaction", slog.String("type", fmt.Sprintf("%d", i.Type)))
		}
	}
}

func handleSlashCommand(a IApp, controllers map[string]commandController, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	a.Log().Debug("Handling interaction " + data.Name)

	t := time.Now().UTC()
	defer func() {
		DiscordCommandDuration.WithLabelValues(data.Name).Observe(time.Since(t).Seconds())
	}()

	controller, ok := controllers[data.Name]
	if !ok {
		a.Log().Error("No controller found for command", slog.String("command", data.Name))
		respondInteractionError(a, i)
		return
	}

	// Commands without sub commands are dispatched with their own name.
	sub := data.Name
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		sub = data.Options[0].Name
	}

	processor, err := controller(a, sub)
	if err != nil {
		a.Log().Error(fmt.Sprintf("Error getting processor for command %s", data.Name),
			slog.String(logging.KeyError, err.Error()))
		respondInteractionError(a, i)
		return
	}

	if err := processor(a, i); err != nil {
		a.Log().Error(fmt.Sprintf("Error processing command %s", data.Name),
			slog.String(logging.KeyError, err.Error()))
		respondInteractionError(a, i)
		return
	}
}

func handleComponent(a IApp, buttons map[string]commandProcessor, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	processor, ok := buttons[customID]
	if !ok {
		// Not a static button; panel open buttons carry the panel ID as
		// their custom ID and resolve through the registry.
		if _, found := a.Registry().Lookup(customID); found {
			processor = openEntryPointHandler(customID)
		} else {
			a.Log().Warn("No processor found for component", slog.String("component", customID))
			respondInteractionError(a, i)
			return
		}
	}

	if err := processor(a, i); err != nil {
		a.Log().Error(fmt.Sprintf("Error processing component %s", customID),
			slog.String(logging.KeyError, err.Error()))
		respondInteractionError(a, i)
		return
	}
}

func handleModalSubmit(a IApp, i *discordgo.InteractionCreate) {
	customID := i.ModalSubmitData().CustomID

	if err := ticketModalHandler(a, i, customID); err != nil {
		a.Log().Error(fmt.Sprintf("Error processing modal %s", customID),
			slog.String(logging.KeyError, err.Error()))
		respondInteractionError(a, i)
		return
	}
}

// respondInteractionError tells the user the interaction failed. The
// response itself is best effort.
func respondInteractionError(a IApp, i *discordgo.InteractionCreate) {
	if err := respondSlashError(a, i); err != nil {
		a.Log().Error("Error responding to interaction", slog.String(logging.KeyError, err.Error()))
	}
}
