package natshandler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/bus"
	"github.com/ohowland/cgc_plan/internal/pkg/kpi"
	"github.com/ohowland/cgc_plan/internal/pkg/msg"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

type recorder struct {
	msgs []*nats.Msg
}

func (r *recorder) PublishMsg(m *nats.Msg) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func TestDefaults(t *testing.T) {
	h, err := New(Config{}, msg.NewPublisher(uuid.New()))
	assert.NilError(t, err)
	assert.Equal(t, h.config.Server, nats.DefaultURL)
	assert.Equal(t, h.config.Subject, "cgc.runs")
}

func TestPublishEvents(t *testing.T) {
	pub := msg.NewPublisher(uuid.New())
	h, err := New(Config{Server: "nats://localhost:4222", Subject: "plan"}, pub)
	assert.NilError(t, err)

	run := uuid.New()
	rec := &archive.Record{
		PID:       run,
		Solver:    "cbc",
		Objective: 42,
		Summary: kpi.Summary{
			CO2:             2500,
			TotalCost:       3e6,
			SelfSufficiency: 55,
			Coverage:        map[bus.Carrier]float64{bus.Heat: 0.6},
		},
	}
	pub.Publish(msg.Status, msg.Report{Run: run, Stage: "solve", Time: time.Now()})
	pub.Publish(msg.Result, rec)
	pub.Close()

	out := &recorder{}
	assert.NilError(t, h.run(context.Background(), out))
	assert.Assert(t, is.Len(out.msgs, 2))

	subjects := map[string]*nats.Msg{}
	for _, m := range out.msgs {
		subjects[m.Subject] = m
	}
	status, ok := subjects["plan."+run.String()+".status"]
	assert.Assert(t, ok)
	assert.Equal(t, status.Header.Get("Cgc-Topic"), "status")

	result, ok := subjects["plan."+run.String()+".result"]
	assert.Assert(t, ok)
	var s summary
	assert.NilError(t, json.Unmarshal(result.Data, &s))
	assert.Equal(t, s.CO2Tonnes, 2.5)
	assert.Equal(t, s.CostMillions, 3.0)
	assert.Equal(t, s.Coverage["heat"], 0.6)
}

func TestRunStopsOnCancel(t *testing.T) {
	h, err := New(Config{}, msg.NewPublisher(uuid.New()))
	assert.NilError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.run(ctx, &recorder{}), context.Canceled)
}
