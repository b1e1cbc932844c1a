// Package supervisor controls the container running each environment.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/docker"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

// PortLabel is the container label holding the environment port.
const PortLabel = "sistema-admin.port"

// Actions accepted by Do.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionRestart = "restart"
	ActionStatus  = "status"
)

// Runtime is the container engine.
type Runtime interface {
	FindByLabel(ctx context.Context, label, value string) (docker.Container, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string, timeout time.Duration) error
	Restart(ctx context.Context, id string, timeout time.Duration) error
}

// Status describes the process bound to a port.
type Status struct {
	Port      int              `json:"porta"`
	Running   bool             `json:"emExecucao"`
	Container docker.Container `json:"container"`
}

// Supervisor starts, stops and inspects environment processes by port.
type Supervisor struct {
	runtime     Runtime
	logger      *slog.Logger
	stopTimeout time.Duration
}

// New constructs a Supervisor.
func New(runtime Runtime, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{runtime: runtime, logger: logger.With("component", "supervisor"), stopTimeout: 10 * time.Second}
}

// Status reports the container bound to port.
func (s *Supervisor) Status(ctx context.Context, port int) (Status, error) {
	c, err := s.find(ctx, port)
	if err != nil {
		return Status{}, err
	}
	return Status{Port: port, Running: c.State == "running", Container: c}, nil
}

// Do applies action to the container bound to port and returns its status
// afterwards.
func (s *Supervisor) Do(ctx context.Context, port int, action string) (Status, error) {
	if action == ActionStatus {
		return s.Status(ctx, port)
	}
	c, err := s.find(ctx, port)
	if err != nil {
		return Status{}, err
	}
	switch action {
	case ActionStart:
		err = s.runtime.Start(ctx, c.ID)
	case ActionStop:
		err = s.runtime.Stop(ctx, c.ID, s.stopTimeout)
	case ActionRestart:
		err = s.runtime.Restart(ctx, c.ID, s.stopTimeout)
	default:
		return Status{}, fmt.Errorf("%w: unknown action %q", repository.ErrInvalidArgument, action)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "process action failed", "port", port, "action", action, "error", err)
		return Status{}, err
	}
	s.logger.InfoContext(ctx, "process action applied", "port", port, "action", action, "container", c.Name)
	return s.Status(ctx, port)
}

func (s *Supervisor) find(ctx context.Context, port int) (docker.Container, error) {
	c, err := s.runtime.FindByLabel(ctx, PortLabel, strconv.Itoa(port))
	if errors.Is(err, docker.ErrNotFound) {
		return docker.Container{}, fmt.Errorf("%w: no process for port %d", repository.ErrNotFound, port)
	}
	return c, err
}
