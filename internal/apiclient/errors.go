package apiclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/benvon/matrix-todo/internal/apperr"
)

type errorBody struct {
	Error     string          `json:"error"`
	Detail    json.RawMessage `json:"detail"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"error_code"`
}

type validationDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// responseError converts a non-2xx response into a transport error.
// The message comes from error, then detail, then message.
func responseError(status int, body []byte) *apperr.Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	msg := strings.TrimSpace(eb.Error)
	if msg == "" {
		msg = detailMessage(eb.Detail)
	}
	if msg == "" {
		msg = strings.TrimSpace(eb.Message)
	}
	if msg == "" {
		msg = fmt.Sprintf("Request failed (%d)", status)
	}
	return apperr.Transport(msg, eb.ErrorCode, status, nil)
}

// detailMessage reads detail as either a string or a list of validation entries
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []validationDetail
	if err := json.Unmarshal(raw, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, d := range list {
			if d.Msg == "" {
				continue
			}
			if field := locField(d.Loc); field != "" {
				msgs = append(msgs, field+": "+d.Msg)
			} else {
				msgs = append(msgs, d.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// locField returns the last named element of a validation location such as ["body", "title"]
func locField(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" && s != "query" && s != "path" {
			return s
		}
	}
	return ""
}
