// Package filters holds the feed query parameters and the rules for
// updating them.
package filters

import (
	"net/url"
	"strings"
)

// Category labels as the API stores them.
const (
	CategoryGames  = "🎮 Games"
	CategoryFilmTV = "🎥 Film/TV"
	CategoryMusic  = "🎵 Music"
)

// Audience scopes.
const (
	UsersAll      = "All Users"
	UsersFollowed = "Followed Users"
)

// Age ranges.
const (
	AgeToday = "Today"
	AgeWeek  = "Week"
	AgeMonth = "Month"
	AgeYear  = "Year"
	AgeAll   = "All"
)

// Sort orders.
const (
	SortNewest       = "Newest"
	SortMostLiked    = "Most Liked"
	SortMostComments = "Most Comments"
)

// MaxSearchLen caps the free-text search query.
const MaxSearchLen = 50

// State is the full set of parameters narrowing a feed query.
type State struct {
	Categories  []string `json:"categories"`
	Users       string   `json:"users"`
	AgeRange    string   `json:"ageRange"`
	SortBy      string   `json:"sortBy"`
	SearchQuery string   `json:"searchQuery"`
}

// Categories returns the default category set in display order.
func Categories() []string {
	return []string{CategoryGames, CategoryFilmTV, CategoryMusic}
}

// Default returns the filter state a fresh session starts with: every
// category selected, all users, no age cutoff, newest first, no search.
func Default() State {
	return State{
		Categories:  Categories(),
		Users:       UsersAll,
		AgeRange:    AgeAll,
		SortBy:      SortNewest,
		SearchQuery: "",
	}
}

// ValidCategory reports whether c is one of the known category labels.
func ValidCategory(c string) bool {
	switch c {
	case CategoryGames, CategoryFilmTV, CategoryMusic:
		return true
	default:
		return false
	}
}

// Apply merges an update into the current state and normalizes it.
//
// Submitting an empty category selection does not leave the set empty:
// the result is the complement of the previously selected categories
// within the default set. The original UI's toggle chips behaved this
// way, and downstream behavior depends on it, so it is kept as-is.
func Apply(cur, upd State) State {
	next := upd

	if len(keepKnown(next.Categories)) == 0 {
		next.Categories = complement(cur.Categories)
	} else {
		next.Categories = keepKnown(next.Categories)
	}

	next.Users = pick(next.Users, UsersAll, UsersFollowed)
	next.AgeRange = pick(next.AgeRange, AgeAll, AgeToday, AgeWeek, AgeMonth, AgeYear)
	next.SortBy = pick(next.SortBy, SortNewest, SortMostLiked, SortMostComments)

	next.SearchQuery = strings.TrimSpace(next.SearchQuery)
	if len(next.SearchQuery) > MaxSearchLen {
		next.SearchQuery = next.SearchQuery[:MaxSearchLen]
	}

	return next
}

// Encode writes the state into query parameters the way the original
// client sent them: categories joined by commas plus one key per field.
func Encode(s State, vals url.Values) {
	vals.Set("categories", strings.Join(s.Categories, ","))
	vals.Set("users", s.Users)
	vals.Set("ageRange", s.AgeRange)
	vals.Set("sortBy", s.SortBy)
	vals.Set("searchQuery", s.SearchQuery)
}

// complement returns the default categories that are not in selected.
func complement(selected []string) []string {
	var out []string
	for _, c := range Categories() {
		if !contains(selected, c) {
			out = append(out, c)
		}
	}
	return out
}

// keepKnown drops unknown labels, preserving default-set order.
func keepKnown(selected []string) []string {
	var out []string
	for _, c := range Categories() {
		if contains(selected, c) {
			out = append(out, c)
		}
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// pick returns v if it is one of the allowed values, else the first
// allowed value.
func pick(v string, allowed ...string) string {
	for _, a := range allowed {
		if v == a {
			return a
		}
	}
	return allowed[0]
}
