package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithEventID(ctx, "evt-123")
	ctx = log.WithProjectID(ctx, 777)

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"event_id\"")) {
		t.Fatalf("expected event_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"project_id\"")) {
		t.Fatalf("expected project_id to be preserved; entry=%s", buf.String())
	}
}

func TestLoggerConnectorField(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})
	ctx := log.WithConnector(context.Background(), "grist")
	log.Info(ctx, "routed")
	if !bytes.Contains(buf.Bytes(), []byte("\"connector\":\"grist\"")) {
		t.Fatalf("expected connector field; entry=%s", buf.String())
	}
}
