package batches

import (
	"sort"
	"time"
)

// FilterByCompany keeps batches whose company name equals name exactly. An
// empty name keeps everything.
func FilterByCompany(list []Batch, name string) []Batch {
	if name == "" {
		return list
	}
	out := make([]Batch, 0, len(list))
	for _, b := range list {
		if b.CompanyName == name {
			out = append(out, b)
		}
	}
	return out
}

// Open keeps batches without an exit, preserving order.
func Open(list []Batch) []Batch {
	out := make([]Batch, 0, len(list))
	for _, b := range list {
		if b.IsOpen() {
			out = append(out, b)
		}
	}
	return out
}

// DaysInSystem is the whole number of days between in and now, regardless of
// which comes first.
func DaysInSystem(in, now time.Time) int {
	if in.IsZero() {
		return 0
	}
	diff := now.Sub(in)
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}

// TotalRolls sums the roll counts of items.
func TotalRolls(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.Rolls
	}
	return total
}

// CompanyNames returns the distinct company names of list, sorted.
func CompanyNames(list []Batch) []string {
	seen := make(map[string]struct{}, len(list))
	names := make([]string, 0, len(list))
	for _, b := range list {
		if b.CompanyName == "" {
			continue
		}
		if _, ok := seen[b.CompanyName]; ok {
			continue
		}
		seen[b.CompanyName] = struct{}{}
		names = append(names, b.CompanyName)
	}
	sort.Strings(names)
	return names
}

// Oldest returns the batch with the earliest InTime. Batches without an
// InTime are skipped and the first one wins a tie.
func Oldest(list []Batch) (Batch, bool) {
	var oldest Batch
	found := false
	for _, b := range list {
		if b.InTime.IsZero() {
			continue
		}
		if !found || b.InTime.Before(oldest.InTime.Time) {
			oldest, found = b, true
		}
	}
	return oldest, found
}
