package connectors

import (
	"context"
	"testing"

	"github.com/recoco/recoco-relay/pkg/enums"
)

type stubConnector struct {
	name string
}

func (s *stubConnector) Name() string { return s.name }

func (s *stubConnector) OnEvent(context.Context, int64, enums.ObjectType, Context) error {
	return nil
}

func TestNewRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(&stubConnector{name: "grist"}, &stubConnector{name: "grist"})
	if err == nil {
		t.Fatal("expected error for duplicate connector name")
	}
}

func TestNewRegistryRejectsEmptyName(t *testing.T) {
	_, err := NewRegistry(&stubConnector{name: ""})
	if err == nil {
		t.Fatal("expected error for empty connector name")
	}
}

func TestRegistryAllSortedByName(t *testing.T) {
	reg, err := NewRegistry(
		&stubConnector{name: "lescommuns"},
		&stubConnector{name: "grist"},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	conns := reg.All()
	if len(conns) != 2 {
		t.Fatalf("expected 2 connectors, got %d", len(conns))
	}
	if conns[0].Name() != "grist" || conns[1].Name() != "lescommuns" {
		t.Fatalf("unexpected order: %s, %s", conns[0].Name(), conns[1].Name())
	}

	if _, ok := reg.Get("grist"); !ok {
		t.Fatal("expected grist connector to be registered")
	}
	if _, ok := reg.Get("unknown"); ok {
		t.Fatal("did not expect unknown connector")
	}
}
