// Package natshandler streams pipeline events to a NATS server.
package natshandler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"github.com/ohowland/cgc_plan/internal/pkg/archive"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/msg"
)

// Config locates the server. Subjects are "<Subject>.<run pid>.<topic>".
type Config struct {
	Server  string `yaml:"server" validate:"required"`
	Subject string `yaml:"subject"`
}

const defaultSubject = "cgc.runs"

// publisher is the part of *nats.Conn the handler uses.
type publisher interface {
	PublishMsg(m *nats.Msg) error
}

type Handler struct {
	pid    uuid.UUID
	inbox  <-chan msg.Msg
	config Config
	log    *log.Logger
}

func (h *Handler) PID() uuid.UUID {
	return h.pid
}

func redirectMsg(chIn <-chan msg.Msg, chOut chan<- msg.Msg) {
	for m := range chIn {
		chOut <- m
	}
}

// New subscribes the handler to status and result messages of system.
func New(cfg Config, system msg.Publisher) (*Handler, error) {
	if cfg.Server == "" {
		cfg.Server = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = defaultSubject
	}
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
		pid:    pid,
		inbox:  inbox,
		config: cfg,
		log:    logger.New("NATS client"),
	}, nil
}

// Process connects to the server and publishes until the inbox closes or
// ctx is done.
func (h *Handler) Process(ctx context.Context) error {
	nc, err := nats.Connect(h.config.Server, nats.Name("cgc "+h.pid.String()))
	if err != nil {
		return fmt.Errorf("connect to nats server %s: %w", h.config.Server, err)
	}
	defer nc.Close()
	if err := h.run(ctx, nc); err != nil {
		return err
	}
	return nc.Flush()
}

func (h *Handler) run(ctx context.Context, nc publisher) error {
	h.log.Debug("Process Started")
	defer h.log.Debug("Process Shutdown")
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				return nil
			}
			out, err := h.encode(m)
			if err != nil {
				h.log.Warn("unable to encode message", "topic", m.Topic(), "err", err)
				continue
			}
			if err := nc.PublishMsg(out); err != nil {
				h.log.Errorf("unable to publish to nats server: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// summary is the result message; flows stay in the archive.
type summary struct {
	PID             uuid.UUID          `json:"pid"`
	Solver          string             `json:"solver"`
	Objective       float64            `json:"objective"`
	CO2Tonnes       float64            `json:"co2_t_per_year"`
	CostMillions    float64            `json:"cost_mio_per_year"`
	SelfSufficiency float64            `json:"self_sufficiency_percent"`
	Coverage        map[string]float64 `json:"coverage"`
}

func (h *Handler) encode(m msg.Msg) (*nats.Msg, error) {
	run := m.PID()
	var payload interface{} = m.Payload()
	if r, ok := payload.(msg.Report); ok {
		run = r.Run
	}
	if rec, ok := payload.(*archive.Record); ok {
		run = rec.PID
		s := summary{
			PID:             rec.PID,
			Solver:          rec.Solver,
			Objective:       rec.Objective,
			CO2Tonnes:       rec.Summary.CO2Tonnes(),
			CostMillions:    rec.Summary.TotalCostMillions(),
			SelfSufficiency: rec.Summary.SelfSufficiency,
			Coverage:        make(map[string]float64),
		}
		for c, v := range rec.Summary.Coverage {
			s.Coverage[string(c)] = v
		}
		payload = s
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out := nats.NewMsg(fmt.Sprintf("%s.%s.%s", h.config.Subject, run, m.Topic()))
	out.Data = data
	out.Header.Set("Cgc-Topic", m.Topic().String())
	out.Header.Set("Cgc-Sender", m.PID().String())
	return out, nil
}
