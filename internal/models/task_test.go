package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPriority_Values(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		value     Priority
		valid     bool
		urgent    bool
		important bool
		rank      int
	}{
		{"urgent important", PriorityUrgentImportant, true, true, true, 1},
		{"not urgent important", PriorityNotUrgentImportant, true, false, true, 2},
		{"urgent not important", PriorityUrgentNotImportant, true, true, false, 3},
		{"not urgent not important", PriorityNotUrgentNotImportant, true, false, false, 4},
		{"invalid", Priority("someday"), false, false, false, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.value.Valid() != tt.valid {
				t.Errorf("Expected Valid() = %v for %s", tt.valid, tt.value)
			}
			if tt.value.Urgent() != tt.urgent {
				t.Errorf("Expected Urgent() = %v for %s", tt.urgent, tt.value)
			}
			if tt.value.Important() != tt.important {
				t.Errorf("Expected Important() = %v for %s", tt.important, tt.value)
			}
			if tt.value.Rank() != tt.rank {
				t.Errorf("Expected Rank() = %d for %s, got %d", tt.rank, tt.value, tt.value.Rank())
			}
		})
	}
}

func TestPriority_Label(t *testing.T) {
	t.Parallel()

	if got := PriorityUrgentImportant.Label(); got != "Urgent & Important" {
		t.Errorf("Expected 'Urgent & Important', got '%s'", got)
	}
	if got := Priority("custom").Label(); got != "custom" {
		t.Errorf("Expected unknown priority label to echo value, got '%s'", got)
	}
}

func TestUpdateTaskRequest_MarshalJSON(t *testing.T) {
	t.Parallel()

	title := "Buy milk"
	done := true
	due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	precise := time.Date(2026, 1, 2, 3, 4, 5, 678000000, time.UTC)

	tests := []struct {
		name     string
		req      UpdateTaskRequest
		expected map[string]any
	}{
		{
			name:     "empty request sends empty object",
			req:      UpdateTaskRequest{},
			expected: map[string]any{},
		},
		{
			name: "only changed fields",
			req:  UpdateTaskRequest{Title: &title, IsCompleted: &done},
			expected: map[string]any{
				"title":        "Buy milk",
				"is_completed": true,
			},
		},
		{
			name:     "due date",
			req:      UpdateTaskRequest{DueDatetime: &due},
			expected: map[string]any{"due_datetime": "2026-03-01T09:00:00Z"},
		},
		{
			name:     "due date keeps sub-second precision",
			req:      UpdateTaskRequest{DueDatetime: &precise},
			expected: map[string]any{"due_datetime": "2026-01-02T03:04:05.678Z"},
		},
		{
			name:     "clear due date wins over value",
			req:      UpdateTaskRequest{DueDatetime: &due, ClearDueDatetime: true},
			expected: map[string]any{"due_datetime": nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := json.Marshal(tt.req)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected %d fields, got %d (%s)", len(tt.expected), len(got), data)
			}
			for k, v := range tt.expected {
				gv, ok := got[k]
				if !ok {
					t.Errorf("Expected field %s to be present", k)
					continue
				}
				if gv != v {
					t.Errorf("Field %s: expected %v, got %v", k, v, gv)
				}
			}
		})
	}
}

func TestDueDatetime_SameEncodingForCreateAndUpdate(t *testing.T) {
	t.Parallel()

	due := time.Date(2026, 1, 2, 3, 4, 5, 678000000, time.FixedZone("CET", 3600))

	create, err := json.Marshal(CreateTaskRequest{Title: "x", Priority: DefaultPriority, DueDatetime: &due})
	if err != nil {
		t.Fatalf("Marshal create failed: %v", err)
	}
	update, err := json.Marshal(UpdateTaskRequest{DueDatetime: &due})
	if err != nil {
		t.Fatalf("Marshal update failed: %v", err)
	}

	var c, u map[string]any
	if err := json.Unmarshal(create, &c); err != nil {
		t.Fatalf("Unmarshal create failed: %v", err)
	}
	if err := json.Unmarshal(update, &u); err != nil {
		t.Fatalf("Unmarshal update failed: %v", err)
	}
	if c["due_datetime"] != u["due_datetime"] {
		t.Errorf("Expected identical due_datetime encoding, create %v, update %v", c["due_datetime"], u["due_datetime"])
	}
}

func TestUpdateTaskRequest_Empty(t *testing.T) {
	t.Parallel()

	if !(UpdateTaskRequest{}).Empty() {
		t.Error("Expected zero request to be empty")
	}
	if (UpdateTaskRequest{ClearDueDatetime: true}).Empty() {
		t.Error("Expected ClearDueDatetime request to be non-empty")
	}
}

func TestTask_Overdue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"no due date", Task{}, false},
		{"past due open", Task{DueDatetime: &past}, true},
		{"past due completed", Task{DueDatetime: &past, IsCompleted: true}, false},
		{"future", Task{DueDatetime: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.task.Overdue(now); got != tt.want {
				t.Errorf("Expected Overdue() = %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFilterSpec_Query(t *testing.T) {
	t.Parallel()

	p := PriorityUrgentImportant
	done := false
	spec := FilterSpec{Priority: &p, IsCompleted: &done, SortBy: SortByTitle, SortOrder: SortDesc, Limit: 20}

	q := spec.Query()
	if q.Get("priority") != "urgent_important" {
		t.Errorf("Expected priority param, got '%s'", q.Get("priority"))
	}
	if q.Get("is_completed") != "false" {
		t.Errorf("Expected is_completed=false, got '%s'", q.Get("is_completed"))
	}
	if q.Get("sort_by") != "title" || q.Get("sort_order") != "desc" {
		t.Errorf("Unexpected sort params: %v", q)
	}
	if q.Get("limit") != "20" {
		t.Errorf("Expected limit=20, got '%s'", q.Get("limit"))
	}
	if q.Has("offset") {
		t.Error("Expected zero offset to be omitted")
	}

	if len((FilterSpec{}).Query()) != 0 {
		t.Error("Expected empty spec to produce no params")
	}
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{in: "urgent_important", want: PriorityUrgentImportant},
		{in: "  Not_Urgent_Important ", want: PriorityNotUrgentImportant},
		{in: "", wantErr: true},
		{in: "urgent", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriority(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePriority(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
