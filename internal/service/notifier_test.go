package service

import (
	"context"
	"errors"
	"testing"
)

func TestNotifier(t *testing.T) {
	var n Notifier
	var got []string

	unsubscribeA := n.OnSessionChange(func(e SessionEvent, _ *Session) { got = append(got, "a:"+string(e)) })
	n.OnSessionChange(func(e SessionEvent, _ *Session) { got = append(got, "b:"+string(e)) })
	n.Notify(SignedIn, &Session{})

	unsubscribeA()
	unsubscribeA()
	n.Notify(SignedOut, nil)

	want := []string{"a:SIGNED_IN", "b:SIGNED_IN", "b:SIGNED_OUT"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if n.Listeners() != 1 {
		t.Errorf("expected 1 listener, got %d", n.Listeners())
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
		wantMsg  string
	}{
		{"store message kept", Remote(KindValidation, "title too long"), KindValidation, "title too long"},
		{"store without message", Remote(KindConflict, ""), KindConflict, "failed to add task"},
		{"untyped", errors.New("connection refused"), KindTransport, "failed to add task"},
		{"timeout", Transport(context.DeadlineExceeded), KindTransport, "failed to add task: request timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Describe(tt.err, "failed to add task")

			if e.Kind != tt.wantKind {
				t.Errorf("expected kind %v, got %v", tt.wantKind, e.Kind)
			}
			if e.Error() != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, e.Error())
			}
		})
	}

	if Describe(nil, "x") != nil {
		t.Error("expected nil for nil error")
	}
}
