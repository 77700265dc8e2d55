package models

import (
	"net/url"
	"strconv"
	"strings"
)

// SortOrder is the direction of a sort
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sortable task fields understood by the API
const (
	SortByCreatedAt   = "created_at"
	SortByUpdatedAt   = "updated_at"
	SortByDueDatetime = "due_datetime"
	SortByPriority    = "priority"
	SortByTitle       = "title"
)

// MaxPageLimit is the largest page the API will return
const MaxPageLimit = 100

// FilterSpec selects and orders a projection of the task list.
// Nil pointers mean the filter is not applied.
type FilterSpec struct {
	Priority    *Priority `validate:"omitempty,priority"`
	IsCompleted *bool
	SortBy      string    `validate:"omitempty,sort_field"`
	SortOrder   SortOrder `validate:"omitempty,oneof=asc desc"`
	Limit       int       `validate:"gte=0,lte=100"`
	Offset      int       `validate:"gte=0"`
}

// Descending reports whether the filter asks for descending order
func (f FilterSpec) Descending() bool {
	return strings.EqualFold(string(f.SortOrder), string(SortDesc))
}

// Query encodes the filter as GET /tasks query parameters, omitting unset values
func (f FilterSpec) Query() url.Values {
	q := url.Values{}
	if f.Priority != nil {
		q.Set("priority", string(*f.Priority))
	}
	if f.IsCompleted != nil {
		q.Set("is_completed", strconv.FormatBool(*f.IsCompleted))
	}
	if f.SortBy != "" {
		q.Set("sort_by", f.SortBy)
	}
	if f.SortOrder != "" {
		q.Set("sort_order", string(f.SortOrder))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}
