package core

import "sort"

// BuildListing orders records newest first by raw key and formats each key
// for display.
//
// Records whose keys format to the same display date share a single entry:
// the entry stays where the newest of them sorts, and carries the oldest one's
// content.
func BuildListing(doc Document) []Entry {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	entries := make([]Entry, 0, len(keys))
	byDate := make(map[string]int, len(keys))
	for _, k := range keys {
		rec := doc[k]
		entry := Entry{
			Date:      DisplayDate(k),
			Timestamp: k,
			Username:  rec.Username,
			Message:   rec.Message,
		}
		if i, ok := byDate[entry.Date]; ok {
			entries[i] = entry
			continue
		}
		byDate[entry.Date] = len(entries)
		entries = append(entries, entry)
	}
	return entries
}
