package util

import "testing"

func TestContextualLoggers(t *testing.T) {
	if e := WithProfile("office"); e.Data["profile"] != "office" {
		t.Errorf("WithProfile data = %v", e.Data)
	}
	if e := WithOperation("apply"); e.Data["operation"] != "apply" {
		t.Errorf("WithOperation data = %v", e.Data)
	}
}

func TestSetLogLevel(t *testing.T) {
	if err := SetLogLevel("debug"); err != nil {
		t.Fatalf("debug: %v", err)
	}
	if err := SetLogLevel("nonsense"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if err := SetLogLevel("warning"); err != nil {
		t.Fatalf("restore: %v", err)
	}
}
