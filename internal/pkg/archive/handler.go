package archive

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_plan/internal/pkg/logger"
	"github.com/ohowland/cgc_plan/internal/pkg/msg"
)

// Handler dumps every published run record into a store.
type Handler struct {
	pid   uuid.UUID
	inbox <-chan msg.Msg
	store Store
	log   *log.Logger
}

// NewHandler subscribes to finished runs of system.
func NewHandler(store Store, system msg.Publisher) (*Handler, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	inbox, err := system.Subscribe(pid, msg.Result)
	if err != nil {
		return nil, err
	}
	return &Handler{pid: pid, inbox: inbox, store: store, log: logger.New("Archive")}, nil
}

// PID is the subscriber identifier.
func (h *Handler) PID() uuid.UUID {
	return h.pid
}

// Process stores records until the inbox closes or ctx is done.
func (h *Handler) Process(ctx context.Context) error {
	h.log.Debug("Process Started")
	defer h.log.Debug("Process Shutdown")
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				return nil
			}
			rec, ok := m.Payload().(*Record)
			if !ok {
				h.log.Warn("unexpected payload", "type", fmt.Sprintf("%T", m.Payload()))
				continue
			}
			if err := h.store.Put(ctx, rec); err != nil {
				return fmt.Errorf("dump run %v: %w", rec.PID, err)
			}
			h.log.Info("run dumped", "pid", rec.PID)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
