// Package smoketest checks that a running server indexes and queries entities
// end to end, through its public websocket endpoint.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/aukilabs/areagrid/protocol"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/encoding/json"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	entityKind = "smoke-test"

	defaultTimeout = time.Second * 10
)

var smokeTests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "smoke_tests",
	Help: "The number of smoke tests run, by status.",
}, []string{"status"})

type Options struct {
	// The endpoint tested when a request does not name one.
	Endpoint string

	// The bearer token sent to the tested endpoint.
	Token string

	UserAgent string

	// The maximum duration of a smoke test.
	Timeout time.Duration

	// Called with every result. Optional.
	SendResult func(context.Context, Result) error
}

// Request is the optional body of a smoke test request.
type Request struct {
	Endpoint string `json:"endpoint,omitempty"`
	World    string `json:"world,omitempty"`
}

// Result is the outcome of a smoke test.
type Result struct {
	FromEndpoint     string  `json:"from_endpoint"`
	ToEndpoint       string  `json:"to_endpoint"`
	SessionID        string  `json:"session_id,omitempty"`
	Status           string  `json:"status"`
	LatencyMilliSec  float64 `json:"latency_ms"`
	DurationMilliSec float64 `json:"duration_ms"`
	Error            string  `json:"error,omitempty"`
}

// HandleSmokeTest runs a smoke test and writes its result as JSON. The
// response status is 503 when the smoke test failed.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request

		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		if req.Endpoint == "" {
			req.Endpoint = opts.Endpoint
		}

		res, err := Run(ctx, RunOptions{
			FromEndpoint: opts.Endpoint,
			ToEndpoint:   req.Endpoint,
			Token:        opts.Token,
			UserAgent:    opts.UserAgent,
			World:        req.World,
			Timeout:      opts.Timeout,
		})
		if err != nil {
			logs.WithTag("to_endpoint", req.Endpoint).Warn(err)
		}

		if opts.SendResult != nil {
			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}

		data, err := json.Marshal(res)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if res.Status != StatusSuccess {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		w.Write(data)
	}
}

type RunOptions struct {
	FromEndpoint string
	ToEndpoint   string
	Token        string
	UserAgent    string
	World        string
	Timeout      time.Duration
}

// Run joins a new session on the tested endpoint, adds an entity, checks that
// point and region queries find it, deletes it and checks that the queries no
// longer find it. The returned result is filled even when an error is
// returned.
func Run(ctx context.Context, opts RunOptions) (Result, error) {
	res := Result{
		FromEndpoint: opts.FromEndpoint,
		ToEndpoint:   opts.ToEndpoint,
		Status:       StatusFailed,
	}

	err := run(ctx, opts, &res)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Status = StatusSuccess
	}

	smokeTests.WithLabelValues(res.Status).Inc()
	return res, err
}

func run(ctx context.Context, opts RunOptions, res *Result) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		res.DurationMilliSec = float64(time.Since(start)) / float64(time.Millisecond)
	}()

	header := make(http.Header)
	header.Set(protocol.HeaderClientID, uuid.NewString())
	if opts.UserAgent != "" {
		header.Set("User-Agent", opts.UserAgent)
	}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	client, err := protocol.Dial(ctx, opts.ToEndpoint, header)
	if err != nil {
		return err
	}
	defer client.Close()

	joinStart := time.Now()
	var join protocol.ParticipantJoinResponse
	if err := request(ctx, client, protocol.ParticipantJoinRequest{World: opts.World}, &join); err != nil {
		return err
	}
	res.LatencyMilliSec = float64(time.Since(joinStart)) / float64(time.Millisecond)
	res.SessionID = join.SessionID

	var added protocol.EntityAddResponse
	if err := request(ctx, client, protocol.EntityAddRequest{
		Kind:   entityKind,
		Min:    []int{1, 1},
		Extent: []int{2, 2},
	}, &added); err != nil {
		return err
	}

	if err := expectQueries(ctx, client, added.EntityID, true); err != nil {
		return err
	}

	if err := request(ctx, client, protocol.EntityDeleteRequest{EntityID: added.EntityID}, &protocol.EntityDeleteResponse{}); err != nil {
		return err
	}

	return expectQueries(ctx, client, added.EntityID, false)
}

func expectQueries(ctx context.Context, client *protocol.Client, entityID uint32, found bool) error {
	queries := []protocol.Payload{
		protocol.PointQueryRequest{X: 2, Y: 2, Kinds: []string{entityKind}},
		protocol.RegionQueryRequest{Min: []int{0, 0}, Extent: []int{4, 4}, Kinds: []string{entityKind}},
	}

	for _, q := range queries {
		var res protocol.QueryResponse
		if err := request(ctx, client, q, &res); err != nil {
			return err
		}

		ok := slices.ContainsFunc(res.Entities, func(e protocol.Entity) bool {
			return e.ID == entityID
		})
		if ok != found {
			return errors.New("unexpected query result").
				WithTag("query", q.MsgType()).
				WithTag("entity_id", entityID).
				WithTag("expected", found)
		}
	}
	return nil
}

func request[T protocol.Payload](ctx context.Context, client *protocol.Client, req protocol.Payload, res *T) error {
	msg, err := client.Request(ctx, req)
	if err != nil {
		return err
	}

	if msg.Type == protocol.MsgTypeErrorResponse {
		var errRes protocol.ErrorResponse
		if err := msg.DataTo(&errRes); err != nil {
			return err
		}
		return errors.New("request failed").
			WithTag("request_type", req.MsgType()).
			WithTag("code", errRes.Code)
	}

	if expected := (*res).MsgType(); msg.Type != expected {
		return errors.New("unexpected response").
			WithTag("request_type", req.MsgType()).
			WithTag("expected_type", expected).
			WithTag("type", msg.Type)
	}
	return msg.DataTo(res)
}
