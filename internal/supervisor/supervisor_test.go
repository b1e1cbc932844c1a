package supervisor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/docker"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/repository"
)

type fakeRuntime struct {
	containers map[string]*docker.Container
	actions    []string
}

func (f *fakeRuntime) FindByLabel(ctx context.Context, label, value string) (docker.Container, error) {
	if label != PortLabel {
		return docker.Container{}, fmt.Errorf("unexpected label %s", label)
	}
	c, ok := f.containers[value]
	if !ok {
		return docker.Container{}, docker.ErrNotFound
	}
	return *c, nil
}

func (f *fakeRuntime) set(id, state string) {
	for _, c := range f.containers {
		if c.ID == id {
			c.State = state
		}
	}
}

func (f *fakeRuntime) Start(ctx context.Context, id string) error {
	f.actions = append(f.actions, "start:"+id)
	f.set(id, "running")
	return nil
}

func (f *fakeRuntime) Stop(ctx context.Context, id string, timeout time.Duration) error {
	f.actions = append(f.actions, "stop:"+id)
	f.set(id, "exited")
	return nil
}

func (f *fakeRuntime) Restart(ctx context.Context, id string, timeout time.Duration) error {
	f.actions = append(f.actions, "restart:"+id)
	f.set(id, "running")
	return nil
}

func TestSupervisorActionsByPort(t *testing.T) {
	rt := &fakeRuntime{containers: map[string]*docker.Container{
		"5005": {ID: "c1", Name: "ambiente-5005", State: "exited"},
	}}
	s := New(rt, nil)
	ctx := context.Background()

	status, err := s.Do(ctx, 5005, ActionStart)
	if err != nil || !status.Running {
		t.Fatalf("start: %+v err=%v", status, err)
	}
	status, err = s.Do(ctx, 5005, ActionStop)
	if err != nil || status.Running {
		t.Fatalf("stop: %+v err=%v", status, err)
	}
	if _, err := s.Do(ctx, 5005, ActionRestart); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if len(rt.actions) != 3 || rt.actions[2] != "restart:c1" {
		t.Fatalf("unexpected actions %v", rt.actions)
	}
	if _, err := s.Do(ctx, 5005, "kill"); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected invalid action, got %v", err)
	}
	if _, err := s.Status(ctx, 5006); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
