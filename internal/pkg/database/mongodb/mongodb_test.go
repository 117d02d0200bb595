package mongodb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/kpi"
	"github.com/ohowland/cgc_plan/internal/pkg/msg"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

type update struct {
	filter interface{}
	doc    interface{}
	upsert bool
}

type fakeCollection struct {
	mux     sync.Mutex
	updates []update
}

func (c *fakeCollection) UpdateOne(_ context.Context, filter interface{}, doc interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	u := update{filter: filter, doc: doc}
	for _, o := range opts {
		if o.Upsert != nil {
			u.upsert = *o.Upsert
		}
	}
	c.updates = append(c.updates, u)
	return &mongo.UpdateResult{}, nil
}

func TestRecordToBSON(t *testing.T) {
	rec := &archive.Record{
		PID:        uuid.New(),
		Solver:     "cbc",
		Parameters: map[string]float64{"wacc": 0.05},
		Summary:    kpi.Summary{TotalCost: 10, Coverage: map[bus.Carrier]float64{bus.Electricity: 0.5}},
	}
	doc := recordToBSON(rec)
	assert.Equal(t, doc[0].Key, "$set")
	set := doc[0].Value.(bson.M)
	assert.Equal(t, set["pid"], rec.PID.String())
	assert.Equal(t, set["solver"], "cbc")
	_, hasSolution := set["solution"]
	assert.Assert(t, !hasSolution)
	k := set["kpi"].(bson.M)
	assert.Equal(t, k["total_cost"], 10.0)
	assert.DeepEqual(t, k["coverage"], bson.M{"electricity": 0.5})
}

func TestProcessMessages(t *testing.T) {
	pub := msg.NewPublisher(uuid.New())
	h, err := New(Config{URI: "mongodb://localhost:27017", Database: "cgc"}, pub)
	assert.NilError(t, err)

	run := uuid.New()
	pub.Publish(msg.Status, msg.Report{Run: run, Stage: "solve", Time: time.Now()})
	pub.Publish(msg.Result, &archive.Record{PID: run})
	pub.Publish(msg.Result, "not a record")
	pub.Close()

	runs, status := &fakeCollection{}, &fakeCollection{}
	assert.NilError(t, h.run(context.Background(), runs, status))

	assert.Assert(t, is.Len(runs.updates, 1))
	assert.Assert(t, is.Len(status.updates, 1))
	assert.DeepEqual(t, runs.updates[0].filter, bson.M{"pid": run.String()})
	assert.Assert(t, runs.updates[0].upsert)
	assert.DeepEqual(t, status.updates[0].filter, bson.M{"pid": run.String()})
}
