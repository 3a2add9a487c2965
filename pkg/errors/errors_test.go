package errors

import (
	"fmt"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("remote said no")
	err := Wrap(CodeDependency, cause, "create record")
	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be preserved")
	}
	if !IsCode(err, CodeDependency) {
		t.Fatalf("expected dependency code")
	}
}

func TestAsThroughWrapping(t *testing.T) {
	inner := New(CodeConfig, "config disabled")
	outer := fmt.Errorf("step failed: %w", inner)
	typed := As(outer)
	if typed == nil || typed.Code() != CodeConfig {
		t.Fatalf("expected config error through chain, got %v", typed)
	}
}

func TestMetadataForUnknownCode(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != 500 {
		t.Fatalf("unknown codes should map to internal metadata")
	}
}
