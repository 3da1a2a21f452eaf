package services

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/taskmaster/kanban/internal/domain/entities"
	"github.com/taskmaster/kanban/internal/ports"
)

const (
	monthLabelLayout = "January 2006"
	monthKeyLayout   = "2006-01"
)

var monthLocation atomic.Pointer[time.Location]

// SetLocation sets the zone in which creation months are derived. Month
// labels and the archival cutoff both use it. The default is time.Local.
func SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	monthLocation.Store(loc)
}

// Location returns the zone set by SetLocation.
func Location() *time.Location {
	if loc := monthLocation.Load(); loc != nil {
		return loc
	}
	return time.Local
}

// MonthYearLabel renders the human month filter value, e.g. "June 2026".
func MonthYearLabel(t time.Time) string {
	return t.In(Location()).Format(monthLabelLayout)
}

// MonthYearKey renders the sortable month key, e.g. "2026-06".
func MonthYearKey(t time.Time) string {
	return t.In(Location()).Format(monthKeyLayout)
}

// MonthLabelForKey converts a "YYYY-MM" key back into its label.
func MonthLabelForKey(key string) (string, bool) {
	t, err := time.Parse(monthKeyLayout, key)
	if err != nil {
		return "", false
	}
	return t.Format(monthLabelLayout), true
}

// FilterTasks returns the tasks matching every non-empty field of q, in their
// original relative order. The input slice is not modified.
func FilterTasks(tasks []entities.Task, q ports.TaskQuery) []entities.Task {
	term := strings.ToLower(q.Search)

	out := make([]entities.Task, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if !t.MatchesText(term) {
			continue
		}
		if q.Month != "" && MonthYearLabel(t.CreatedAt) != q.Month {
			continue
		}
		if q.Author != "" && t.Author != q.Author {
			continue
		}
		out = append(out, *t)
	}
	return out
}

// GroupByStatus buckets tasks into the board columns in workflow order.
// Tasks whose status is outside the enumeration land in no column.
func GroupByStatus(tasks []entities.Task) []ports.Column {
	buckets := make(map[entities.TaskStatus][]entities.Task, len(entities.Statuses))
	for _, t := range tasks {
		buckets[t.Status] = append(buckets[t.Status], t)
	}

	columns := make([]ports.Column, 0, len(entities.Statuses))
	for _, status := range entities.Statuses {
		bucket := buckets[status]
		if bucket == nil {
			bucket = []entities.Task{}
		}
		col := ports.Column{
			Status: status,
			Title:  status.Title(),
			Icon:   status.Icon(),
			Count:  len(bucket),
			Tasks:  bucket,
		}
		if len(bucket) == 0 {
			empty := status.EmptyState()
			col.Empty = &empty
		}
		columns = append(columns, col)
	}
	return columns
}

// GroupByMonth buckets tasks by creation month, most recent month first.
func GroupByMonth(tasks []entities.Task) []ports.MonthGroup {
	index := make(map[string]int)
	var groups []ports.MonthGroup
	for _, t := range tasks {
		key := MonthYearKey(t.CreatedAt)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, ports.MonthGroup{Key: key, Label: MonthYearLabel(t.CreatedAt)})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Key > groups[j].Key
	})
	if groups == nil {
		groups = []ports.MonthGroup{}
	}
	return groups
}

// DistinctAuthors returns each author once, sorted lexicographically.
func DistinctAuthors(tasks []entities.Task) []string {
	seen := make(map[string]struct{}, len(tasks))
	out := make([]string, 0)
	for _, t := range tasks {
		if _, ok := seen[t.Author]; ok {
			continue
		}
		seen[t.Author] = struct{}{}
		out = append(out, t.Author)
	}
	sort.Strings(out)
	return out
}

// DistinctMonths returns each month label once, oldest month first.
func DistinctMonths(tasks []entities.Task) []string {
	labels := make(map[string]string, len(tasks))
	for _, t := range tasks {
		key := MonthYearKey(t.CreatedAt)
		if _, ok := labels[key]; !ok {
			labels[key] = MonthYearLabel(t.CreatedAt)
		}
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, labels[k])
	}
	return out
}

// Options builds the filter dropdown values for tasks.
func Options(tasks []entities.Task) ports.FilterOptions {
	return ports.FilterOptions{
		Authors: DistinctAuthors(tasks),
		Months:  DistinctMonths(tasks),
	}
}
