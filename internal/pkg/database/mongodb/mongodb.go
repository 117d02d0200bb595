// Package mongodb keeps a document per run with its inputs and indicators.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/msg"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config locates the database.
type Config struct {
	URI      string `yaml:"uri" validate:"required"`
	Database string `yaml:"database" validate:"required"`
}

const (
	runCollection    = "runs"
	statusCollection = "runStatus"
	writeTimeout     = 10 * time.Second
)

// collection is the part of *mongo.Collection the handler uses.
type collection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config Config
	log    *log.Logger
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New subscribes the handler to status and result messages of system.
func New(cfg Config, system msg.Publisher) (*Handler, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}

	inbox := make(chan msg.Msg, 50)
	chStatus, err := system.Subscribe(pid, msg.Status)
	if err != nil {
		return nil, err
	}
	chResult, err := system.Subscribe(pid, msg.Result)
	if err != nil {
		return nil, err
	}
	go func() {
		done := make(chan struct{})
		go func() {
			redirectMsg(chStatus, inbox)
			close(done)
		}()
		redirectMsg(chResult, inbox)
		<-done
		close(inbox)
	}()

	return &Handler{
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		log:    logger.New("Mongo"),
	}, nil
}

func (h *Handler) PID() uuid.UUID {
	return h.pid
}

// Process connects and writes until the inbox closes or ctx is done.
func (h *Handler) Process(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(h.config.URI))
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			h.log.Warn("disconnect", "err", err)
		}
	}()
	db := client.Database(h.config.Database)
	return h.run(ctx, db.Collection(runCollection), db.Collection(statusCollection))
}

func (h *Handler) run(ctx context.Context, runs, status collection) error {
	h.log.Debug("Process Started")
	defer h.log.Debug("Process Shutdown")
	upsert := options.Update().SetUpsert(true)
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			var err error
			switch m.Topic() {
			case msg.Status:
				r, ok := m.Payload().(msg.Report)
				if !ok {
					cancel()
					continue
				}
				_, err = status.UpdateOne(wctx, bson.M{"pid": r.Run.String()}, msgToBSON(r.Run, m), upsert)
			case msg.Result:
				rec, ok := m.Payload().(*archive.Record)
				if !ok {
					cancel()
					continue
				}
				_, err = runs.UpdateOne(wctx, bson.M{"pid": rec.PID.String()}, recordToBSON(rec), upsert)
			}
			cancel()
			if err != nil {
				return fmt.Errorf("write %v message: %w", m.Topic(), err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PIDs are written as strings so documents can be queried by hand.
func msgToBSON(run uuid.UUID, m msg.Msg) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.M{
			"pid":  run.String(),
			"data": m.Payload(),
		}},
	}
}

// recordToBSON leaves out the solution and the series; the archive holds
// those.
func recordToBSON(rec *archive.Record) bson.D {
	coverage := bson.M{}
	for c, v := range rec.Summary.Coverage {
		coverage[string(c)] = v
	}
	return bson.D{
		{Key: "$set", Value: bson.M{
			"pid":        rec.PID.String(),
			"created":    rec.Created,
			"solver":     rec.Solver,
			"objective":  rec.Objective,
			"steps":      rec.Index.Len,
			"start":      rec.Index.Start,
			"parameters": rec.Parameters,
			"kpi": bson.M{
				"annuity":          rec.Summary.Annuity,
				"variable_cost":    rec.Summary.VariableCost,
				"total_cost":       rec.Summary.TotalCost,
				"co2":              rec.Summary.CO2,
				"self_sufficiency": rec.Summary.SelfSufficiency,
				"coverage":         coverage,
			},
		}},
	}
}
