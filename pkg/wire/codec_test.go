package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
	}{
		{"join", Join(1, "projects")},
		{"leave", Leave(1, "projects")},
		{"ack", Ack(7, "tasks")},
		{"error", Errorf(3, "tasks", CodeUnauthorized, "token %s rejected", "abc")},
		{"event", Event(2, "equipment", "UPDATE", []byte(`{"id":42}`))},
		{"publish", Publish("documents", "INSERT", []byte{0x01, 0x02})},
		{"ping", Ping()},
		{"pong", Pong()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.frame)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if got.Type != tt.frame.Type || got.Ref != tt.frame.Ref || got.Topic != tt.frame.Topic {
				t.Errorf("header mismatch: got %+v, want %+v", got, tt.frame)
			}
			if got.Event != tt.frame.Event || !bytes.Equal(got.Payload, tt.frame.Payload) {
				t.Errorf("body mismatch: got %+v, want %+v", got, tt.frame)
			}
			if got.Code != tt.frame.Code || got.Reason != tt.frame.Reason {
				t.Errorf("error mismatch: got %+v, want %+v", got, tt.frame)
			}
		})
	}
}

func TestEncodeRejectsInvalidFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		want  error
	}{
		{"unknown type", &Frame{Type: 99}, ErrInvalidType},
		{"zero type", &Frame{}, ErrInvalidType},
		{"join without ref", Join(0, "projects"), ErrMissingRef},
		{"join without topic", Join(1, ""), ErrMissingTopic},
		{"event without type", Event(1, "tasks", "", nil), ErrMissingEvent},
		{"publish without topic", Publish("", "INSERT", nil), ErrMissingTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.frame)
			if !errors.Is(err, tt.want) {
				t.Errorf("Encode error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0xfe}); err == nil {
		t.Error("expected error for garbage input")
	}

	// A well-formed map that is not a valid frame.
	data, err := encMode.Marshal(map[int]any{1: int(FrameJoin), 2: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(data); !errors.Is(err, ErrMissingTopic) {
		t.Errorf("Decode error = %v, want %v", err, ErrMissingTopic)
	}
}

func TestDecodeIgnoresUnknownKeys(t *testing.T) {
	data, err := encMode.Marshal(map[int]any{1: int(FramePublish), 3: "tasks", 4: "INSERT", 99: "future"})
	if err != nil {
		t.Fatal(err)
	}

	f, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if f.Topic != "tasks" || f.Event != "INSERT" {
		t.Errorf("got %+v", f)
	}
}

func TestEncodeRejectsOversizedFrame(t *testing.T) {
	_, err := Encode(Publish("tasks", "INSERT", make([]byte, MaxFrameSize)))
	if err == nil {
		t.Error("expected error for oversized frame")
	}
}

func TestFrameError(t *testing.T) {
	if err := Ack(1, "tasks").Error(); err != nil {
		t.Errorf("ack frame Error() = %v, want nil", err)
	}

	err := Errorf(1, "tasks", CodeClosed, "hub shutting down").Error()
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Error() = %T, want *RemoteError", err)
	}
	if remote.Code != CodeClosed {
		t.Errorf("Code = %v, want %v", remote.Code, CodeClosed)
	}
	if got := err.Error(); got != "remote: CLOSED: hub shutting down" {
		t.Errorf("Error() = %q", got)
	}
}

func TestFrameTypeString(t *testing.T) {
	if got := FramePublish.String(); got != "PUBLISH" {
		t.Errorf("String() = %q", got)
	}
	if got := FrameType(42).String(); got != "FrameType(42)" {
		t.Errorf("String() = %q", got)
	}
}
