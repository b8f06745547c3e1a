package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/comunifi/shuttle/internal/broadcast"
	"github.com/comunifi/shuttle/internal/checkpoint"
	"github.com/comunifi/shuttle/internal/codec"
	"github.com/comunifi/shuttle/internal/config"
	"github.com/comunifi/shuttle/internal/control"
	"github.com/comunifi/shuttle/internal/db"
	"github.com/comunifi/shuttle/internal/dispatcher"
	"github.com/comunifi/shuttle/internal/hubrpc"
	"github.com/comunifi/shuttle/internal/reconciler"
	"github.com/comunifi/shuttle/internal/subscriber"
	"github.com/comunifi/shuttle/pkg/shuttle"
)

// loggingHandler is the default shuttle.Handler: it only logs. Embedders
// with row-level business logic (fan-out to another system, cache
// invalidation) supply their own in place of this one.
type loggingHandler struct{}

func (loggingHandler) OnMessageMerge(ctx context.Context, row *shuttle.Row, tx shuttle.Tx, op shuttle.Operation, wasMissed bool) error {
	log.Printf("applied %s fid=%d type=%s hash=%x missed=%v", op, row.Fid, row.Type, row.Hash, wasMissed)
	return nil
}

func main() {
	log.Default().Println("starting shuttle...")

	env := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	ctx := context.Background()

	conf, err := config.New(ctx, *env)
	if err != nil {
		log.Fatal(err)
	}

	log.Default().Println("starting database service...")
	database, err := db.NewDB(ctx, conf.DBUser, conf.DBPassword, conf.DBName, conf.DBHost, conf.DBPort)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	log.Default().Println("starting checkpoint store...")
	checkpoints := checkpoint.New(conf.RedisAddr, conf.RedisPassword, conf.RedisDB)
	defer checkpoints.Close()

	log.Default().Println("dialing hub: ", conf.HubGRPCAddr)
	hub, err := hubrpc.Dial(conf.HubGRPCAddr)
	if err != nil {
		log.Fatal(err)
	}
	defer hub.Close()

	pools := broadcast.NewPools()

	dec := codec.New()
	dsp := dispatcher.New(conf.HubID, database.Messages, database, checkpoints, dec, loggingHandler{})
	dsp.OnCommitted(func(row *shuttle.Row, op shuttle.Operation, wasMissed bool) {
		pools.Broadcast(row, op, wasMissed)
	})

	rec := reconciler.New(database.Messages, hub, reconcileLogger{dispatcher: dsp})

	ctrl := control.NewServer(conf.HubID, checkpoints, hub, rec)
	cr := ctrl.CreateBaseRouter()
	cr = ctrl.AddMiddleware(cr)
	cr = ctrl.AddRoutes(cr)
	cr.Get("/ws/{fid}", wsHandler(pools))

	go func() {
		if err := ctrl.Start(conf.ControlPlanePort, cr); err != nil {
			log.Fatal(err)
		}
	}()

	sub := subscriber.New(hub, dsp)

	lastEventID, err := checkpoints.Load(ctx, conf.HubID)
	if err != nil {
		log.Fatal(err)
	}

	var fromEventID *uint64
	if lastEventID > 0 {
		fromEventID = &lastEventID
	}

	eventTypes, err := parseEventTypes(conf.HubEventTypes)
	if err != nil {
		log.Fatal(err)
	}

	log.Default().Printf("subscribing to hub %s from event %v", conf.HubID, lastEventID)
	if err := sub.Start(ctx, fromEventID, eventTypes...); err != nil {
		log.Fatal(err)
	}

	log.Default().Println("shuttle stopped")
}

// parseEventTypes splits the HUB_EVENT_TYPES override, returning nil (the
// default filter) when unset.
func parseEventTypes(raw string) ([]shuttle.HubEventType, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	types := make([]shuttle.HubEventType, 0, len(parts))
	for _, p := range parts {
		t, err := shuttle.ParseHubEventType(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// wsHandler upgrades operator clients onto the broadcast pool for one fid, a
// plain net/http-and-chi route so it composes with the rest of the control
// plane rather than running its own listener.
func wsHandler(pools *broadcast.Pools) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fid, err := strconv.ParseUint(chi.URLParam(r, "fid"), 10, 64)
		if err != nil {
			http.Error(w, "invalid fid", http.StatusBadRequest)
			return
		}
		pools.Connect(w, r, fid, r.URL.RawQuery)
	}
}

// reconcileLogger implements shuttle.ReconcileObserver by re-entering the
// dispatcher's transactional pipeline for anything the hub has that the
// store doesn't, re-entering it through the same missing-message path.
type reconcileLogger struct {
	dispatcher *dispatcher.Dispatcher
}

func (r reconcileLogger) OnReconcileMessage(ctx context.Context, msg *shuttle.HubMessage, missingInDb, prunedInDb, revokedInDb bool) error {
	if !missingInDb {
		return nil
	}
	return r.dispatcher.HandleMissing(ctx, msg)
}
