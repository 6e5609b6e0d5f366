package logger

import "testing"

func TestNew_Levels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", " warn ", "error"} {
		l, err := New(lvl)
		if err != nil {
			t.Fatalf("level %q: %v", lvl, err)
		}
		if l == nil {
			t.Fatalf("level %q: nil logger", lvl)
		}
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	if _, err := New("chatty"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestGetInstance_IsShared(t *testing.T) {
	if GetInstance() != GetInstance() {
		t.Error("expected the same logger instance")
	}
}
