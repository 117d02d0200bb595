package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/kpi"
	"github.com/ohowland/cgc_plan/internal/pkg/msg"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

type statement struct {
	query string
	args  []interface{}
}

type fakeDB struct {
	statements []statement
	fail       bool
}

func (db *fakeDB) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	if db.fail {
		return nil, errors.New("connection reset")
	}
	db.statements = append(db.statements, statement{query, args})
	return nil, nil
}

func newHandler(t *testing.T, driver string) (*Handler, *msg.PubSub) {
	pub := msg.NewPublisher(uuid.New())
	h, err := New(Config{Driver: driver, DSN: "user:pass@tcp(localhost:3306)/cgc"}, pub)
	assert.NilError(t, err)
	return h, pub
}

func TestGetConfig(t *testing.T) {
	h, _ := newHandler(t, "mysql")
	assert.Equal(t, h.config.Table, "run_summary")

	_, err := New(Config{Driver: "sqlite"}, msg.NewPublisher(uuid.New()))
	assert.ErrorContains(t, err, "unsupported sql driver")

	_, err = New(Config{Driver: "mysql", Table: "runs; DROP TABLE x"}, msg.NewPublisher(uuid.New()))
	assert.ErrorContains(t, err, "invalid table name")
}

func TestDialects(t *testing.T) {
	my, err := newDialect("mysql", "runs")
	assert.NilError(t, err)
	assert.Check(t, is.Contains(my.create, "CREATE TABLE IF NOT EXISTS runs"))
	assert.Check(t, strings.HasPrefix(my.upsert, "REPLACE INTO runs"))
	assert.Equal(t, strings.Count(my.upsert, "?"), 10)

	pg, err := newDialect("postgres", "runs")
	assert.NilError(t, err)
	assert.Check(t, is.Contains(pg.create, "pid UUID PRIMARY KEY"))
	assert.Check(t, is.Contains(pg.upsert, "$10)"))
	assert.Check(t, is.Contains(pg.upsert, "ON CONFLICT (pid)"))
}

func TestWriteSummary(t *testing.T) {
	h, pub := newHandler(t, "postgres")
	rec := &archive.Record{PID: uuid.New(), Solver: "cbc", Summary: kpi.Summary{TotalCost: 12, SelfSufficiency: 40}}
	pub.Publish(msg.Result, rec)
	pub.Close()

	db := &fakeDB{}
	assert.NilError(t, h.run(context.Background(), db))
	assert.Assert(t, is.Len(db.statements, 2))
	assert.Equal(t, db.statements[0].query, h.dialect.create)

	args := db.statements[1].args
	assert.Assert(t, is.Len(args, 10))
	assert.Equal(t, args[0], rec.PID.String())
	assert.Equal(t, args[7], 12.0)
	assert.Equal(t, args[9], 40.0)
}

func TestCreateTableFails(t *testing.T) {
	h, _ := newHandler(t, "mysql")
	err := h.run(context.Background(), &fakeDB{fail: true})
	assert.ErrorContains(t, err, "create table run_summary")
}
