package apiclient

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/benvon/matrix-todo/internal/apperr"
)

func asAppErr(err error, target **apperr.Error) bool {
	return errors.As(err, target)
}

func TestDetailMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: ``, want: ""},
		{name: "string", raw: `" Not found "`, want: "Not found"},
		{name: "list without loc", raw: `[{"msg":"bad"}]`, want: "bad"},
		{name: "list with index loc", raw: `[{"loc":["body",0],"msg":"bad"}]`, want: "bad"},
		{name: "object", raw: `{"x":1}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := detailMessage(json.RawMessage(tt.raw)); got != tt.want {
				t.Errorf("detailMessage(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
