package fallback

import (
	"errors"
	"fmt"
	"testing"
)

func TestExtractToolNameExplicit(t *testing.T) {
	execErr := &ToolExecutionError{ToolName: "run_build", Err: fmt.Errorf("exit 1")}
	name, err := extractToolName(execErr)
	if err != nil {
		t.Fatalf("extractToolName: %v", err)
	}
	if name != "run_build" {
		t.Errorf("name = %q", name)
	}
}

func TestExtractToolNameFromDescription(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "single quotes",
			err:  fmt.Errorf("invalid call name='compile' arguments malformed"),
			want: "compile",
		},
		{
			name: "double quotes",
			err:  fmt.Errorf(`bad invocation name="read_file" rejected`),
			want: "read_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execErr := &ToolExecutionError{Err: tt.err}
			name, err := extractToolName(execErr)
			if err != nil {
				t.Fatalf("extractToolName: %v", err)
			}
			if name != tt.want {
				t.Errorf("name = %q, want %q", name, tt.want)
			}
		})
	}
}

func TestExtractToolNameFailsWithoutName(t *testing.T) {
	execErr := &ToolExecutionError{Err: fmt.Errorf("something went wrong")}
	_, err := extractToolName(execErr)
	if !errors.Is(err, ErrNoToolName) {
		t.Errorf("err = %v, want ErrNoToolName", err)
	}
}

func TestToolExecutionErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("exit 1")
	execErr := &ToolExecutionError{ToolName: "run_build", Err: cause}
	if !errors.Is(execErr, cause) {
		t.Error("cause not reachable through Unwrap")
	}
}

func TestToolNotFoundErrorMessage(t *testing.T) {
	err := &ToolNotFoundError{ToolName: "ghost"}
	if got := err.Error(); got != `tool "ghost" not found among bound or registered tools` {
		t.Errorf("message = %q", got)
	}
}
