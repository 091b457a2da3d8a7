package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"sync/atomic"
	"syscall"
	"time"

	agconfig "github.com/aukilabs/areagrid/config"
	"github.com/aukilabs/areagrid/featureflag"
	aghttp "github.com/aukilabs/areagrid/http"
	"github.com/aukilabs/areagrid/models"
	"github.com/aukilabs/areagrid/modules"
	"github.com/aukilabs/areagrid/modules/query"
	"github.com/aukilabs/areagrid/modules/watch"
	"github.com/aukilabs/areagrid/smoketest"
	agwebsocket "github.com/aukilabs/areagrid/websocket"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The AreaGrid version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "areagrid_info",
		Help:        "AreaGrid information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"AREAGRID_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"AREAGRID_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"AREAGRID_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	ServerID           string        `cli:""        env:"AREAGRID_SERVER_ID"            help:"The server identifier used to build global session ids. Random when empty."`
	AuthToken          string        `cli:""        env:"AREAGRID_AUTH_TOKEN"           help:"The bearer token required from clients. Connections are not authenticated when empty."`
	LogLevel           string        `cli:""        env:"AREAGRID_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"AREAGRID_LOG_INDENT"           help:"Indent logs."`
	WorldsFile         string        `cli:""        env:"AREAGRID_WORLDS_FILE"          help:"The YAML file that defines the worlds sessions can be created in."`
	DefaultWorld       worldConfig   `cli:""        env:"-"                             help:"The world used when a join request does not name one."`
	SyncClockInterval  time.Duration `cli:",hidden" env:"AREAGRID_SYNC_CLOCK_INTERVAL"  help:"Client sync clock (heartbeat) message interval."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"AREAGRID_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	FrameDuration      time.Duration `cli:",hidden" env:"AREAGRID_FRAME_DURATION"       help:"The duration of a session frame."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"AREAGRID_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	SmokeTestTimeout   time.Duration `cli:",hidden" env:"AREAGRID_SMOKE_TEST_TIMEOUT"   help:"The maximum duration of a smoke test."`
	Events             eventsConfig  `cli:",hidden" env:"-"                             help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"AREAGRID_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                             help:"Show version."`
	Help               bool          `cli:""        env:"-"                             help:"Show help."`
}

type worldConfig struct {
	Name       string `cli:"" env:"AREAGRID_DEFAULT_WORLD_NAME"        help:"Default world name."`
	Width      int    `cli:"" env:"AREAGRID_DEFAULT_WORLD_WIDTH"       help:"Default world width."`
	Height     int    `cli:"" env:"AREAGRID_DEFAULT_WORLD_HEIGHT"      help:"Default world height."`
	CellLength int    `cli:"" env:"AREAGRID_DEFAULT_WORLD_CELL_LENGTH" help:"Default world cell length. Must be a power of two."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"AREAGRID_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Events are not pushed when empty."`
	FlushInterval time.Duration `cli:",hidden" env:"AREAGRID_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"AREAGRID_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"AREAGRID_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:           ":4000",
		AdminAddr:      ":18190",
		PublicEndpoint: "http://localhost:4000",
		LogLevel:       logs.InfoLevel.String(),
		DefaultWorld: worldConfig{
			Name:       "default",
			Width:      4096,
			Height:     4096,
			CellLength: 64,
		},
		SyncClockInterval:  time.Second * 5,
		ClientIdleTimeout:  time.Minute * 5,
		FrameDuration:      time.Millisecond * 15,
		LogSummaryInterval: time.Minute,
		SmokeTestTimeout:   time.Second * 10,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts AreaGrid server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "areagrid",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)
	if unknown := featureFlags.Unknown(); len(unknown) != 0 {
		logs.WithTag("flags", unknown).Warn(errors.New("unknown feature flags"))
	}

	worlds, err := loadWorlds(conf)
	if err != nil {
		logs.Fatal(errors.New("loading worlds failed").Wrap(err))
	}

	serverID := conf.ServerID
	if serverID == "" {
		serverID = uuid.NewString()[:8]
	}

	sessions := models.SessionStore{
		ServerID:     serverID,
		Worlds:       worlds,
		DefaultWorld: conf.DefaultWorld.Name,
	}

	var ready atomic.Bool
	readinessCheck := ready.Load

	var service http.ServeMux
	service.Handle("/health", aghttp.HandleWithCORS(http.HandlerFunc(aghttp.HandleHealthCheck)))
	service.Handle("/ready", aghttp.HandleWithCORS(aghttp.HandleReadyCheck(readinessCheck)))
	service.Handle("/version", aghttp.HandleWithCORS(aghttp.HandleVersion(version)))

	service.Handle("/", aghttp.HandleWithCORS(websocket.Server{
		Handshake: aghttp.VerifyAuthToken(conf.AuthToken),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var rh agwebsocket.Handler = &agwebsocket.RealtimeHandler{
				ClientSyncClockInterval: conf.SyncClockInterval,
				ClientIdleTimeout:       conf.ClientIdleTimeout,
				FrameDuration:           conf.FrameDuration,
				Sessions:                &sessions,
				Modules:                 newModules(featureFlags),
				FeatureFlags:            featureFlags,
			}
			h := agwebsocket.HandlerWithLogs(rh, conf.LogSummaryInterval)
			h = agwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			agwebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", aghttp.HandleHealthCheck)
	admin.HandleFunc("/ready", aghttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/debug/sessions", aghttp.HandleDebugSessions(&sessions))
	admin.HandleFunc("/debug/sessions/occupancy.png", aghttp.HandleOccupancyImage(&sessions))
	admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		Token:     conf.AuthToken,
		UserAgent: fmt.Sprintf("AreaGrid %s", version),
		Timeout:   conf.SmokeTestTimeout,
		SendResult: func(ctx context.Context, res smoketest.Result) error {
			logs.WithTag("to_endpoint", res.ToEndpoint).
				WithTag("status", res.Status).
				WithTag("latency_ms", res.LatencyMilliSec).
				WithTag("duration_ms", res.DurationMilliSec).
				Info("smoke test done")
			return nil
		},
	}))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("server_id", serverID).
		WithTag("worlds", worlds.Names()).
		WithTag("default_world", conf.DefaultWorld.Name).
		Info("starting areagrid server")

	ready.Store(true)

	aghttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			aghttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func newModules(flags featureflag.FeatureFlag) []modules.Module {
	var mods []modules.Module

	flags.IfNotSet(featureflag.FlagDisableQueryModule, func() {
		mods = append(mods, &query.Module{})
	})
	flags.IfNotSet(featureflag.FlagDisableWatchModule, func() {
		mods = append(mods, &watch.Module{})
	})
	return mods
}

func loadWorlds(conf config) (agconfig.Worlds, error) {
	worlds := make(agconfig.Worlds)

	if conf.WorldsFile != "" {
		w, err := agconfig.LoadWorldsFile(conf.WorldsFile)
		if err != nil {
			return nil, err
		}
		worlds = w
	}

	if _, ok := worlds.Get(conf.DefaultWorld.Name); ok {
		return worlds, nil
	}

	err := worlds.Add(agconfig.World{
		Name:       conf.DefaultWorld.Name,
		Width:      conf.DefaultWorld.Width,
		Height:     conf.DefaultWorld.Height,
		CellLength: conf.DefaultWorld.CellLength,
	})
	if err != nil {
		return nil, errors.New("invalid default world").Wrap(err)
	}
	return worlds, nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.DefaultWorld.Name == "" {
		return errors.New("default world name is empty")
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	return nil
}
