package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		kind     Kind
		validate func(*testing.T, error)
	}{
		{
			name: "validation",
			err:  Validation("Title is required"),
			kind: KindValidation,
			validate: func(t *testing.T, err error) {
				if !IsValidation(err) {
					t.Error("Expected IsValidation to be true")
				}
			},
		},
		{
			name: "not found local",
			err:  NotFoundLocal("task", "t1"),
			kind: KindNotFoundLocal,
			validate: func(t *testing.T, err error) {
				if !IsNotFoundLocal(err) {
					t.Error("Expected IsNotFoundLocal to be true")
				}
				if Message(err) != `task "t1" is not loaded` {
					t.Errorf("Unexpected message: %s", Message(err))
				}
			},
		},
		{
			name: "transport wrapped",
			err:  fmt.Errorf("delete task: %w", Transport("Request failed (500)", "", 500, nil)),
			kind: KindTransport,
			validate: func(t *testing.T, err error) {
				if !IsTransport(err) {
					t.Error("Expected IsTransport to see through wrapping")
				}
				if Message(err) != "Request failed (500)" {
					t.Errorf("Expected user message to survive wrapping, got %s", Message(err))
				}
			},
		},
		{
			name: "session expired default message",
			err:  SessionExpired(""),
			kind: KindSessionExpired,
			validate: func(t *testing.T, err error) {
				if Message(err) != "Session expired. Please sign in again." {
					t.Errorf("Unexpected message: %s", Message(err))
				}
				var e *Error
				if !errors.As(err, &e) || e.Code != CodeTokenExpired {
					t.Error("Expected TOKEN_EXPIRED code")
				}
			},
		},
		{
			name: "plain error has no kind",
			err:  errors.New("boom"),
			kind: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("Expected kind %q, got %q", tt.kind, got)
			}
			if tt.validate != nil {
				tt.validate(t, tt.err)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	err := Transport("Request timed out", CodeTimeout, 0, context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("Expected cause to be reachable through Unwrap")
	}
	if err.Error() != "transport: Request timed out" {
		t.Errorf("Unexpected Error(): %s", err.Error())
	}

	withStatus := Transport("Task not found", "NOT_FOUND", 404, nil)
	if withStatus.Error() != "transport (status 404): Task not found" {
		t.Errorf("Unexpected Error(): %s", withStatus.Error())
	}
}

func TestMessage_Nil(t *testing.T) {
	t.Parallel()

	if Message(nil) != "" {
		t.Error("Expected empty message for nil error")
	}
}
