// Command puckline boots every component, ingests the configured seasons,
// then spawns and waits on seven long-running tasks: the REST server, the
// season poll loop, the SSE and polling dispatchers, the vote integrator,
// the writer, and the derived-aggregator refresher.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hanssonlabs/puckline/internal/aggregate"
	"github.com/hanssonlabs/puckline/internal/api"
	"github.com/hanssonlabs/puckline/internal/bus"
	"github.com/hanssonlabs/puckline/internal/config"
	"github.com/hanssonlabs/puckline/internal/ingest"
	"github.com/hanssonlabs/puckline/internal/listener"
	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/notify"
	"github.com/hanssonlabs/puckline/internal/registry"
	"github.com/hanssonlabs/puckline/internal/store"
	"github.com/hanssonlabs/puckline/internal/telemetry"
	"github.com/hanssonlabs/puckline/internal/upstream"
	"github.com/hanssonlabs/puckline/internal/userstore"
	"github.com/hanssonlabs/puckline/internal/votes"
	"github.com/hanssonlabs/puckline/internal/writer"
	"github.com/hanssonlabs/puckline/internal/ws"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "puckline",
		Short: "Real-time hockey-telemetry reconciliation core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

var leagues = []upstream.League{upstream.LeagueSHL, upstream.LeagueHA}

func run(parentCtx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("puckline: %w", err)
	}
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("puckline: starting up")

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("puckline: store: %w", err)
	}

	b := bus.New()
	reg := registry.New(st)
	client := upstream.New(st, cfg.HAURL, cfg.SHLURL, cfg.SSEURL)
	ing := ingest.New(client, st)
	defer ing.Stop()

	voteTallies := make(chan votes.GameTally, 256)
	voteAgg := votes.New(reg, voteTallies, st)
	voteAgg.Restore()

	users := userstore.New(st)

	apnsClient, err := notify.NewAPNsClient(cfg.APNHost, cfg.APNKeyPath, cfg.APNKeyID, cfg.APNTeamID, cfg.APNTopic)
	if err != nil {
		return fmt.Errorf("puckline: apns: %w", err)
	}
	dispatcher := notify.NewDispatcher(users, apnsClient)
	defer dispatcher.Stop()

	wsServer := ws.NewServer(b)
	refresher := aggregate.NewRefresher(reg, client, st, wsServer)
	refresher.Subscribe(b)

	wr := writer.New(st, reg, dispatcher, b)
	wr.Subscribe()

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if cfg.CurrentSeason != "" {
		reg.SetCurrentSeason(cfg.CurrentSeason)
	}
	bootstrap(ctx, ing, reg, st, refresher, cfg)

	apiServer := api.New(reg, st, voteAgg, users, wsServer, cfg.APIKey)
	mux := http.NewServeMux()
	apiServer.Routes(mux)
	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}

	seen := newSeenDeque(40)
	sseSpawn := make(chan model.Game, 64)
	pollSpawn := make(chan model.Game, 64)

	group, gctx := errgroup.WithContext(ctx)

	// (a) REST server
	group.Go(func() error { return runHTTPServer(gctx, httpServer) })

	// (b) season poll loop
	group.Go(func() error {
		return runSeasonPollLoop(gctx, ing, reg, client, st, voteAgg, cfg, seen, sseSpawn, pollSpawn)
	})

	// (c) SSE dispatcher
	group.Go(func() error { return runSSEDispatcher(gctx, b, st, reg, users, client, cfg, sseSpawn) })

	// (d) polling dispatcher
	group.Go(func() error { return runPollDispatcher(gctx, b, st, reg, users, client, pollSpawn) })

	// (e) vote integrator
	group.Go(func() error { return runVoteIntegrator(gctx, reg, voteTallies) })

	// (f) writer: already running on its own bus-subscription goroutine;
	// this task just holds the errgroup slot open until shutdown.
	group.Go(func() error { <-gctx.Done(); return nil })

	// (g) derived-aggregator refresher: driven by its bus subscription,
	// this task is the errgroup's join point for it.
	group.Go(func() error { <-gctx.Done(); return nil })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		telemetry.Infof("puckline: shutdown signal received")
	case <-gctx.Done():
	}
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	if err := group.Wait(); err != nil && err != context.Canceled {
		telemetry.Warnf("puckline: task exited with error: %v", err)
	}
	telemetry.Infof("puckline: shutdown complete")
	return nil
}

func runHTTPServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// bootstrap runs the boot sequence: every historical season once (cached
// permanently), then the current season, then standings/playoffs/
// player-stats built from what was ingested.
func bootstrap(ctx context.Context, ing *ingest.Ingestor, reg *registry.Registry, st *store.Store, refresher *aggregate.Refresher, cfg *config.Config) {
	for _, season := range cfg.HistoricalSeasons {
		games := ing.IngestSeason(ctx, season, leagues, nil)
		reg.Update(season, games, nil)
		buildTeamCatalog(st, games)
	}

	if cfg.CurrentSeason != "" {
		maxAge := 10 * time.Hour
		games := ing.IngestSeason(ctx, cfg.CurrentSeason, leagues, &maxAge)
		reg.Update(cfg.CurrentSeason, games, nil)
		buildTeamCatalog(st, games)
	}

	refresher.Bootstrap(ctx, reg.ReadCurrentSeason())
}

func buildTeamCatalog(st *store.Store, games []model.Game) {
	seen := make(map[string]bool)
	for _, g := range games {
		for _, pair := range [][2]string{{g.HomeTeam, g.League}, {g.AwayTeam, g.League}} {
			code, league := pair[0], pair[1]
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			st.Write("v2_teams", code, struct {
				TeamCode string `json:"team_code"`
				League   string `json:"league"`
			}{code, league})
		}
	}
}

// seenDeque is a bounded recently-seen set so the season poll loop doesn't
// re-spawn a listener for a game it already dispatched.
type seenDeque struct {
	mu       sync.Mutex
	order    []string
	inSet    map[string]bool
	capacity int
}

func newSeenDeque(capacity int) *seenDeque {
	return &seenDeque{inSet: make(map[string]bool), capacity: capacity}
}

// CheckAndAdd reports whether uuid was already seen; if not, it is recorded
// and the oldest entry evicted once the deque exceeds capacity.
func (d *seenDeque) CheckAndAdd(uuid string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inSet[uuid] {
		return true
	}
	d.inSet[uuid] = true
	d.order = append(d.order, uuid)
	if len(d.order) > d.capacity {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.inSet, oldest)
	}
	return false
}

// runSeasonPollLoop runs the 60s season cycle via gocron/v2: re-ingest the
// current season, dispatch newly potentially-live games to the right
// listener transport, persist the status banner, and opportunistically
// back-fill detail caches.
func runSeasonPollLoop(ctx context.Context, ing *ingest.Ingestor, reg *registry.Registry, client *upstream.Client, st *store.Store, voteAgg *votes.Aggregator, cfg *config.Config, seen *seenDeque, sseSpawn, pollSpawn chan<- model.Game) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("season poll: scheduler: %w", err)
	}

	details := newDetailsBudget(10, time.Hour)

	tick := func() {
		if cfg.CurrentSeason == "" {
			return
		}
		maxAge := 10 * time.Hour
		games := ing.IngestSeason(ctx, cfg.CurrentSeason, leagues, &maxAge)
		games = reg.Update(cfg.CurrentSeason, games, voteAgg.GetAll())

		for _, g := range reg.PotentiallyLive(time.Now()) {
			if seen.CheckAndAdd(g.GameUUID) {
				continue
			}
			if cfg.Poll {
				pollSpawn <- g
			} else {
				sseSpawn <- g
			}
		}

		st.Write("v2_status", "current", struct {
			OK              bool      `json:"ok"`
			LastPollAt      time.Time `json:"last_poll_at"`
			ActiveListeners int       `json:"active_listeners"`
		}{OK: true, LastPollAt: time.Now(), ActiveListeners: len(reg.PotentiallyLive(time.Now()))})

		fetchDetails(ctx, client, games, details)
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(60*time.Second),
		gocron.NewTask(tick),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("season poll: schedule: %w", err)
	}
	scheduler.Start()
	tick() // run once immediately so potentially-live games aren't idle for a full cycle at boot

	<-ctx.Done()
	return scheduler.Shutdown()
}

// detailsBudget caps opportunistic back-fill to a fixed number of games per
// rolling window.
type detailsBudget struct {
	limit      int
	window     time.Duration
	used       int
	cycleStart time.Time
}

func newDetailsBudget(limit int, window time.Duration) *detailsBudget {
	return &detailsBudget{limit: limit, window: window}
}

// Take reports whether one more game may be fetched in the current window,
// consuming a slot if so. Only the season poll loop's goroutine calls it.
func (d *detailsBudget) Take() bool {
	now := time.Now()
	if d.cycleStart.IsZero() || now.Sub(d.cycleStart) >= d.window {
		d.cycleStart = now
		d.used = 0
	}
	if d.used >= d.limit {
		return false
	}
	d.used++
	return true
}

// fetchDetails opportunistically back-fills the boxscore/period-stats caches
// for finished games, 1s apart, within the hourly budget.
func fetchDetails(ctx context.Context, client *upstream.Client, games []model.Game, budget *detailsBudget) {
	for _, g := range games {
		if !g.Played {
			continue
		}
		if !budget.Take() {
			return
		}
		league := upstream.League(g.League)
		client.FetchBoxscore(ctx, league, g.GameUUID)
		client.FetchPeriodStats(ctx, league, g.GameUUID)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// runSSEDispatcher spawns one SSE listener goroutine per game handed to it,
// and (on an idle-restart exit) resubmits the same game rather than
// consulting the seen-deque, since a respawn is not a new discovery.
// Respawns wait cfg.SSESleepMillis first so a dead SSE base can't hot-loop
// subscribe attempts.
func runSSEDispatcher(ctx context.Context, b *bus.Bus, st *store.Store, reg *registry.Registry, users *userstore.Store, client *upstream.Client, cfg *config.Config, spawn chan model.Game) error {
	sleep := time.Duration(cfg.SSESleepMillis) * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return nil
		case g := <-spawn:
			go func(g model.Game) {
				l := listener.New(g.GameUUID, upstream.League(g.League), b, st, reg, users, client)
				reason := listener.NewSSE(l).Run(ctx)
				if reason != listener.ExitIdleRestart {
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(sleep):
				}
				select {
				case spawn <- g:
				default:
					telemetry.Warnf("listener[%s]: sse respawn channel full, dropping", g.GameUUID)
				}
			}(g)
		}
	}
}

// runPollDispatcher is the same shape for the polling transport.
func runPollDispatcher(ctx context.Context, b *bus.Bus, st *store.Store, reg *registry.Registry, users *userstore.Store, client *upstream.Client, spawn <-chan model.Game) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case g := <-spawn:
			go func(g model.Game) {
				l := listener.New(g.GameUUID, upstream.League(g.League), b, st, reg, users, client)
				listener.NewPoll(l).Run(ctx)
			}(g)
		}
	}
}

// runVoteIntegrator is the only task allowed to call
// registry.UpdateFromVotes, so vote tallies reach cached games through
// exactly one path.
func runVoteIntegrator(ctx context.Context, reg *registry.Registry, tallies <-chan votes.GameTally) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-tallies:
			reg.UpdateFromVotes(t.GameUUID, t.Tally)
		}
	}
}
