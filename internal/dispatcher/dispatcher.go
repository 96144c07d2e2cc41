// Package dispatcher wires every component into the running process:
// config, the external agent, the router, the enabled channels, and
// the scheduler, following the usual service-startup shape (build
// dependencies → start long-running pieces → wait for signal → shut
// down in reverse).
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emanueleielo/parrotgate/internal/agent"
	"github.com/emanueleielo/parrotgate/internal/channels"
	"github.com/emanueleielo/parrotgate/internal/channels/discord"
	"github.com/emanueleielo/parrotgate/internal/channels/telegram"
	"github.com/emanueleielo/parrotgate/internal/config"
	"github.com/emanueleielo/parrotgate/internal/cron"
	"github.com/emanueleielo/parrotgate/internal/gateway"
	"github.com/emanueleielo/parrotgate/internal/providers"
	"github.com/emanueleielo/parrotgate/internal/router"
	"github.com/emanueleielo/parrotgate/internal/scheduler"
	"github.com/emanueleielo/parrotgate/internal/sessions"
	"github.com/emanueleielo/parrotgate/internal/store"
	"github.com/emanueleielo/parrotgate/internal/tierrouter"
	"github.com/emanueleielo/parrotgate/internal/tools"
	"github.com/emanueleielo/parrotgate/internal/transcription"
)

// Dispatcher owns every long-running component's lifecycle.
type Dispatcher struct {
	cfg        *config.Config
	channels   *channels.Registry
	scheduler  *scheduler.Scheduler
	gatewaySrv *gateway.Server
}

// New builds every component in dependency order: config is assumed
// already loaded by the caller; here we build the agent, the
// router, the channels (registering the router's callback), and the
// scheduler, in that order. Errors here are fatal; channel start
// failures are reported later by Run as non-fatal per adapter.
func New(cfg *config.Config) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatcher: invalid config: %w", err)
	}

	docStore, err := store.Open(cfg.Agent.DataDir + "/sessions.json")
	if err != nil {
		return nil, fmt.Errorf("dispatcher: opening session store: %w", err)
	}
	threads := sessions.NewThreadMap(docStore)
	threads.Reconcile(context.Background(), cfg.Agent.DataDir+"/checkpoints.db")

	chatter, tierRouterImpl, sessionTiers, err := buildChatter(cfg, docStore)
	if err != nil {
		return nil, err
	}

	toolRegistry, gatewaySrv, err := buildTools(cfg, tierRouterImpl, sessionTiers, threads)
	if err != nil {
		return nil, err
	}

	loop := agent.New(agent.Config{
		Chat:          chatter,
		Tools:         toolRegistry,
		SystemPrompt:  "You are a helpful multi-channel assistant.",
		History:       docStore,
		MaxIterations: 8,
		Temperature:   cfg.Provider.Temperature,
		MaxTokens:     cfg.Provider.MaxTokens,
	})

	rt := router.New(threads, loop, cfg.Agent.DataDir+"/sessions")
	if sessionTiers != nil {
		rt.WithTierResolver(sessionTiers)
	}

	channelRegistry := channels.NewRegistry()
	if err := buildChannels(cfg, channelRegistry, rt); err != nil {
		return nil, err
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		taskLog := cron.NewTaskLog(cfg.Scheduler.DataFile)
		pollInterval := time.Duration(cfg.Scheduler.PollInterval) * time.Second
		sched = scheduler.New(taskLog, loop, channelRegistry, pollInterval)

		// schedule_task/list_tasks/cancel_task need the same task log.
		toolRegistry.Register(tools.NewScheduleTaskTool(taskLog))
		toolRegistry.Register(tools.NewListTasksTool(taskLog))
		toolRegistry.Register(tools.NewCancelTaskTool(taskLog))
	}

	return &Dispatcher{cfg: cfg, channels: channelRegistry, scheduler: sched, gatewaySrv: gatewaySrv}, nil
}

func buildChatter(cfg *config.Config, docStore *store.Store) (agent.Chatter, *tierrouter.Router, *tierrouter.SessionTiers, error) {
	if !cfg.ModelRouter.Enabled {
		p := providers.NewOpenAIProvider(cfg.Provider.Name, cfg.Provider.APIKey, cfg.Provider.BaseURL, cfg.Provider.Model)
		return simpleChatter{p}, nil, nil, nil
	}

	tiers := make(map[string]tierrouter.TierSpec, len(cfg.ModelRouter.Tiers))
	for name, tc := range cfg.ModelRouter.Tiers {
		tiers[name] = tierrouter.TierSpec{
			Label:    fmt.Sprintf("%s/%s", tc.Provider, tc.Model),
			Provider: providers.NewOpenAIProvider(tc.Provider, tc.APIKey, tc.BaseURL, tc.Model),
		}
	}
	tr, err := tierrouter.New(cfg.ModelRouter.DefaultTier, tiers)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dispatcher: building tier router: %w", err)
	}
	return tr, tr, tierrouter.NewSessionTiers(docStore), nil
}

// simpleChatter adapts a bare providers.Provider to tierrouter.Chatter
// when model_router is disabled, so the agent loop always talks to the
// same Chat(ctx, req) shape regardless of whether tiers are in play.
type simpleChatter struct {
	p providers.Provider
}

func (c simpleChatter) Chat(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.p.DefaultModel()
	}
	return c.p.Chat(ctx, req)
}

func buildTools(cfg *config.Config, tierRouterImpl *tierrouter.Router, sessionTiers *tierrouter.SessionTiers, threads router.ThreadIdentifier) (*tools.Registry, *gateway.Server, error) {
	registry := tools.NewRegistry()

	registry.Register(tools.NewWebFetchTool(time.Duration(cfg.Web.FetchTimeout) * time.Second))

	var gatewaySrv *gateway.Server
	var gatewayClient *gateway.Client
	bridgeCommands := make(map[string][]string, len(cfg.Gateway.Bridges))
	for name, b := range cfg.Gateway.Bridges {
		bridgeCommands[name] = b.AllowedCommands
	}
	if cfg.Gateway.Enabled {
		bridges := make(map[string]gateway.Bridge, len(cfg.Gateway.Bridges))
		for name, b := range cfg.Gateway.Bridges {
			bridges[name] = gateway.NewBridge(b.AllowedCommands, b.AllowedCwd)
		}
		srv, err := gateway.NewServer(gateway.ServerConfig{
			Token:          cfg.Gateway.Token,
			DefaultTimeout: time.Duration(cfg.Gateway.DefaultTimeout) * time.Second,
			Bridges:        bridges,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("dispatcher: building gateway server: %w", err)
		}
		gatewaySrv = srv
		gatewayClient = gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.Token)
	}
	registry.Register(tools.NewHostExecuteTool(gatewayClient, bridgeCommands, cfg.Gateway.DefaultTimeout))

	if tierRouterImpl != nil && sessionTiers != nil {
		registry.Register(tools.NewSwitchModelTool(tierRouterImpl, sessionTiers, threads))
	}

	return registry, gatewaySrv, nil
}

func buildChannels(cfg *config.Config, registry *channels.Registry, rt *router.Router) error {
	if cfg.Channels.Telegram.Enabled {
		var transcriber *transcription.Client
		if cfg.Transcription.Provider != "" {
			c, err := transcription.New(cfg.Transcription.Provider, cfg.Transcription.Model, cfg.Transcription.APIKey, cfg.Transcription.BaseURL, time.Duration(cfg.Transcription.Timeout)*time.Second)
			if err != nil {
				slog.Warn("dispatcher: transcription client unavailable", "error", err)
			} else {
				transcriber = c
			}
		}
		ch, err := telegram.New(cfg.Channels.Telegram.Token, cfg.Channels.Telegram.AllowedUsers, transcriber)
		if err != nil {
			return fmt.Errorf("dispatcher: building telegram channel: %w", err)
		}
		registerChannel(ch, rt, router.ChannelConfig{AllowedUsers: cfg.Channels.Telegram.AllowedUsers, Trigger: cfg.Channels.Telegram.Trigger})
		registry.Add(ch)
	}

	if cfg.Channels.Discord.Enabled {
		ch, err := discord.New(cfg.Channels.Discord.Token, cfg.Channels.Discord.AllowedUsers)
		if err != nil {
			return fmt.Errorf("dispatcher: building discord channel: %w", err)
		}
		registerChannel(ch, rt, router.ChannelConfig{AllowedUsers: cfg.Channels.Discord.AllowedUsers, Trigger: cfg.Channels.Discord.Trigger})
		registry.Add(ch)
	}

	return nil
}

func registerChannel(ch channels.Channel, rt *router.Router, cfg router.ChannelConfig) {
	ch.OnMessage(func(ctx context.Context, env router.Envelope) *router.AgentResponse {
		return rt.HandleMessage(ctx, env, cfg)
	})
}

// Run starts every configured component, blocks until ctx is
// cancelled (typically by a signal), and shuts everything down in
// reverse order: scheduler first (so dispatch stops), then channels.
// Channel start failures are logged and the channel is excluded
// rather than aborting the whole process; every other failure is
// fatal.
func (d *Dispatcher) Run(ctx context.Context) error {
	gatewayErr := make(chan error, 1)
	if d.gatewaySrv != nil {
		go func() {
			if err := d.gatewaySrv.Run(ctx, fmt.Sprintf(":%d", d.cfg.Gateway.Port)); err != nil {
				slog.Error("dispatcher: gateway server exited", "error", err)
				gatewayErr <- err
			}
		}()
	}

	for _, ch := range d.channels.All() {
		if err := ch.Start(ctx); err != nil {
			slog.Error("dispatcher: channel failed to start, excluding it", "channel", ch.Name(), "error", err)
			continue
		}
		slog.Info("dispatcher: channel started", "channel", ch.Name())
	}

	if d.scheduler != nil {
		d.scheduler.Start(ctx)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-gatewayErr:
	}

	if d.scheduler != nil {
		d.scheduler.Stop()
	}
	for _, ch := range d.channels.All() {
		if !ch.IsRunning() {
			continue
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := ch.Stop(stopCtx); err != nil {
			slog.Error("dispatcher: channel failed to stop cleanly", "channel", ch.Name(), "error", err)
		}
		cancel()
	}
	return runErr
}
