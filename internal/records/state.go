package records

import (
	"net/url"
	"slices"
	"strconv"
)

// viewState is the page state carried in the query string: the company filter
// and which rows have their item or exit panels open.
type viewState struct {
	Company string
	Expand  []int64
	Exit    []int64
}

func parseState(q url.Values) viewState {
	return viewState{
		Company: q.Get("company"),
		Expand:  parseIDs(q["expand"]),
		Exit:    parseIDs(q["exit"]),
	}
}

func parseIDs(raw []string) []int64 {
	var ids []int64
	for _, v := range raw {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (s viewState) expanded(id int64) bool { return slices.Contains(s.Expand, id) }

func (s viewState) exitShown(id int64) bool { return slices.Contains(s.Exit, id) }

// ToggleExpand returns the URL with id's item panel flipped.
func (s viewState) ToggleExpand(id int64) string {
	next := s
	next.Expand = toggle(s.Expand, id)
	return next.URL()
}

// ToggleExit returns the URL with id's exit panel flipped.
func (s viewState) ToggleExit(id int64) string {
	next := s
	next.Exit = toggle(s.Exit, id)
	return next.URL()
}

// URL renders the state as a /view address.
func (s viewState) URL() string {
	q := url.Values{}
	if s.Company != "" {
		q.Set("company", s.Company)
	}
	for _, id := range s.Expand {
		q.Add("expand", strconv.FormatInt(id, 10))
	}
	for _, id := range s.Exit {
		q.Add("exit", strconv.FormatInt(id, 10))
	}
	if len(q) == 0 {
		return "/view"
	}
	return "/view?" + q.Encode()
}

// ExportQuery carries only the filter to the export links.
func (s viewState) ExportQuery() string {
	if s.Company == "" {
		return ""
	}
	return "?" + url.Values{"company": {s.Company}}.Encode()
}

func toggle(ids []int64, id int64) []int64 {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(slices.Clone(ids), i, i+1)
	}
	return append(slices.Clone(ids), id)
}
