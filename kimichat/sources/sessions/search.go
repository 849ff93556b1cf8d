package sessions

import (
	"fmt"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Filter keeps the sessions whose title or any message content contains
// query, ignoring case. An empty query keeps everything. Order is preserved.
func Filter(all []Session, query string) []Session {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all
	}
	var out []Session
	for _, s := range all {
		if matches(s, q) {
			out = append(out, s)
		}
	}
	return out
}

func matches(s Session, q string) bool {
	if strings.Contains(strings.ToLower(s.Title), q) {
		return true
	}
	for _, m := range s.Messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			return true
		}
	}
	return false
}

const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupThisWeek  = "This Week"
	GroupOlder     = "Older"
)

type Group struct {
	Label    string
	Sessions []Session
}

func ageGroup(updated, now time.Time) string {
	switch days := int(now.Sub(updated) / day); {
	case days <= 0:
		return GroupToday
	case days == 1:
		return GroupYesterday
	case days <= 7:
		return GroupThisWeek
	default:
		return GroupOlder
	}
}

// GroupByAge buckets sessions by whole days since UpdatedAt. Groups come
// newest first and empty groups are left out.
func GroupByAge(all []Session, now time.Time) []Group {
	order := []string{GroupToday, GroupYesterday, GroupThisWeek, GroupOlder}
	buckets := make(map[string][]Session, len(order))
	for _, s := range all {
		label := ageGroup(s.UpdatedAt, now)
		buckets[label] = append(buckets[label], s)
	}
	var out []Group
	for _, label := range order {
		if len(buckets[label]) > 0 {
			out = append(out, Group{Label: label, Sessions: buckets[label]})
		}
	}
	return out
}

// RelativeTime renders t as "5m ago", "3h ago" or "2d ago".
func RelativeTime(t, now time.Time) string {
	minutes := int(now.Sub(t) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	switch {
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%dh ago", minutes/60)
	default:
		return fmt.Sprintf("%dd ago", minutes/(24*60))
	}
}
