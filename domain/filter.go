package domain

// Filter narrows a board's tasks for display. Empty criteria match all tasks;
// archived tasks are hidden unless ShowArchived is set.
type Filter struct {
	Assignees    []string `json:"assignees,omitempty"`
	Statuses     []Status `json:"statuses,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	ShowArchived bool     `json:"showArchived,omitempty"`
}

// Active reports whether any criterion is set.
func (f Filter) Active() bool {
	return len(f.Assignees) > 0 || len(f.Statuses) > 0 || len(f.Tags) > 0 || f.ShowArchived
}

// Apply returns the tasks that match f in their original order.
func (f Filter) Apply(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Match reports whether t satisfies every criterion of f.
func (f Filter) Match(t Task) bool {
	if t.Status == StatusArchived && !f.ShowArchived {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Assignees) > 0 {
		matched := false
		for _, id := range f.Assignees {
			if t.HasAssignee(id) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(f.Tags) > 0 {
		matched := false
		for _, id := range f.Tags {
			if t.HasTag(id) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
