package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"
	jsoncodec "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/hanssonlabs/puckline/internal/store"
	"github.com/hanssonlabs/puckline/internal/telemetry"
)

const restCollection = "rest"

// envelope is what ThrottleCall actually persists: either a decoded success
// value, or an empty placeholder recorded on failure so the next call
// doesn't hot-loop the provider. The placeholder also masks a transient 5xx
// until the cache entry goes stale; tolerable for feeds re-polled on a cycle.
type envelope struct {
	Empty bool                 `json:"empty"`
	Data  jsoncodec.RawMessage `json:"data,omitempty"`
}

// Client issues throttled, cached HTTP GETs against the two league bases
// and the SSE base, all gated through the Artifact Store.
type Client struct {
	st   *store.Store
	http *http.Client

	bases   map[League]string
	sseBase string

	mu       sync.Mutex
	limiters map[League]*rate.Limiter
}

// New constructs a Client. haURL/shlURL/sseBase come straight from Config.
func New(st *store.Store, haURL, shlURL, sseBase string) *Client {
	return &Client{
		st:   st,
		http: &http.Client{Timeout: 15 * time.Second},
		bases: map[League]string{
			LeagueHA:  haURL,
			LeagueSHL: shlURL,
		},
		sseBase:  sseBase,
		limiters: make(map[League]*rate.Limiter),
	}
}

// SSEBase returns the configured SSE endpoint base, for listener construction.
func (c *Client) SSEBase() string { return c.sseBase }

func (c *Client) limiterFor(league League) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[league]
	if !ok {
		// 5 req/s with a burst of 5: generous enough for the season poll
		// loop and per-game detail fetches without risking provider bans.
		l = rate.NewLimiter(rate.Limit(5), 5)
		c.limiters[league] = l
	}
	return l
}

func cacheKey(rawURL string) string {
	return fmt.Sprintf("%x", xxhash.Sum64String(rawURL))
}

// ThrottleCall is the uniform cache-or-fetch path for provider GETs: return
// the cached value if fresh, otherwise fetch, parse, cache, and return. On
// failure, cache an empty placeholder and return (zero, false).
//
// Package-level (not a method) because Go methods can't carry their own
// type parameters.
func ThrottleCall[T any](ctx context.Context, c *Client, league League, rawURL string, maxAge *time.Duration) (T, bool) {
	var zero T
	key := cacheKey(rawURL)

	if !c.st.IsStale(restCollection, key, maxAge) {
		var env envelope
		if c.st.Read(restCollection, key, &env) {
			if env.Empty {
				telemetry.Metrics.UpstreamCacheHits.Inc()
				return zero, false
			}
			var v T
			if err := jsoncodec.Unmarshal(env.Data, &v); err == nil {
				telemetry.Metrics.UpstreamCacheHits.Inc()
				return v, true
			}
		}
	}

	if err := c.limiterFor(league).Wait(ctx); err != nil {
		return zero, false
	}

	start := time.Now()
	v, err := fetch[T](ctx, c, rawURL)
	telemetry.Metrics.UpstreamLatency.Record(time.Since(start))

	if err != nil {
		telemetry.Metrics.UpstreamFailures.Inc()
		telemetry.Warnf("upstream: GET %s failed, caching empty placeholder: %v", rawURL, err)
		c.st.Write(restCollection, key, envelope{Empty: true})
		return zero, false
	}

	telemetry.Metrics.UpstreamFetches.Inc()
	data, _ := jsoncodec.Marshal(v)
	c.st.Write(restCollection, key, envelope{Data: data})
	return v, true
}

// fetch issues the GET with a short bounded retry for transient network
// resets only; HTTP-status and decode failures are not retried (they fall
// straight to the caller's empty-placeholder path, matching the provider's
// own flakiness profile rather than hiding it).
func fetch[T any](ctx context.Context, c *Client, rawURL string) (T, error) {
	var zero T
	var body []byte

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err // retryable: dial/reset/timeout
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("upstream: %s -> %d", rawURL, resp.StatusCode))
		}

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return zero, err
	}

	var v T
	if err := jsoncodec.Unmarshal(body, &v); err != nil {
		return zero, backoff.Permanent(fmt.Errorf("decode %s: %w", rawURL, err))
	}
	return v, nil
}

// SeasonGamesURL builds the season-schedule feed URL for one (league, season,
// game-type) triple, mapping the game-type enum to the provider's fixed id.
func (c *Client) SeasonGamesURL(league League, seasonUUID, gameType string) string {
	base := c.bases[league]
	q := url.Values{}
	q.Set("seasonUuid", seasonUUID)
	q.Set("seriesUuid", league2series[league])
	q.Set("gameTypeUuid", gameTypeProviderID[gameType])
	return fmt.Sprintf("%s/sports/game-info?%s", base, q.Encode())
}

var league2series = map[League]string{
	LeagueSHL: "24a81d25-xxxx-shl-series",
	LeagueHA:  "24a81d25-xxxx-ha-series",
}

func (c *Client) PlayByPlayURL(league League, gameUUID string) string {
	return fmt.Sprintf("%s/gameday/play-by-play/%s", c.bases[league], gameUUID)
}

func (c *Client) InitialEventsURL(league League, gameUUID string) string {
	return fmt.Sprintf("%s/gameday/initial-events/%s", c.bases[league], gameUUID)
}

func (c *Client) BoxscoreURL(league League, gameUUID string) string {
	return fmt.Sprintf("%s/gameday/boxscore/%s", c.bases[league], gameUUID)
}

func (c *Client) PeriodStatsURL(league League, gameUUID string) string {
	return fmt.Sprintf("%s/gameday/periodstats/%s", c.bases[league], gameUUID)
}

// FetchSeasonGames is the typed convenience wrapper the season ingestor
// calls. maxAge is ≈10h for the current season and nil (never-stale) for
// past seasons.
func (c *Client) FetchSeasonGames(ctx context.Context, league League, seasonUUID, gameType string, maxAge *time.Duration) ([]ProviderGame, bool) {
	resp, ok := ThrottleCall[seasonGamesResponse](ctx, c, league, c.SeasonGamesURL(league, seasonUUID, gameType), maxAge)
	if !ok {
		return nil, false
	}
	return resp.Games, true
}

func (c *Client) FetchPlayByPlay(ctx context.Context, league League, gameUUID string) ([]ProviderEvent, bool) {
	zero := time.Duration(0)
	resp, ok := ThrottleCall[eventsResponse](ctx, c, league, c.PlayByPlayURL(league, gameUUID), &zero)
	if !ok {
		return nil, false
	}
	return resp.Events, true
}

func (c *Client) FetchInitialEvents(ctx context.Context, league League, gameUUID string) ([]ProviderEvent, bool) {
	resp, ok := ThrottleCall[eventsResponse](ctx, c, league, c.InitialEventsURL(league, gameUUID), nil)
	if !ok {
		return nil, false
	}
	return resp.Events, true
}

func (c *Client) FetchBoxscore(ctx context.Context, league League, gameUUID string) ([]BoxscorePlayer, bool) {
	resp, ok := ThrottleCall[boxscoreResponse](ctx, c, league, c.BoxscoreURL(league, gameUUID), nil)
	if !ok {
		return nil, false
	}
	return resp.Players, true
}

func (c *Client) FetchPeriodStats(ctx context.Context, league League, gameUUID string) (map[string]any, bool) {
	resp, ok := ThrottleCall[periodStatsResponse](ctx, c, league, c.PeriodStatsURL(league, gameUUID), nil)
	return map[string]any(resp), ok
}
