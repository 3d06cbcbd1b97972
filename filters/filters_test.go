package filters

import (
	"net/url"
	"reflect"
	"testing"
)

func TestDefault(t *testing.T) {
	d := Default()

	if len(d.Categories) != 3 {
		t.Errorf("Default() categories = %v, want all three", d.Categories)
	}
	if d.Users != UsersAll {
		t.Errorf("Default() users = %q, want %q", d.Users, UsersAll)
	}
	if d.AgeRange != AgeAll {
		t.Errorf("Default() ageRange = %q, want %q", d.AgeRange, AgeAll)
	}
	if d.SortBy != SortNewest {
		t.Errorf("Default() sortBy = %q, want %q", d.SortBy, SortNewest)
	}
	if d.SearchQuery != "" {
		t.Errorf("Default() searchQuery = %q, want empty", d.SearchQuery)
	}
}

// TestApplyEmptyCategoriesInverts covers the preserved toggle quirk: an
// empty selection becomes the complement of the previous selection within
// the default set.
func TestApplyEmptyCategoriesInverts(t *testing.T) {
	tests := []struct {
		name string
		prev []string
		want []string
	}{
		{
			name: "one selected inverts to other two",
			prev: []string{CategoryGames},
			want: []string{CategoryFilmTV, CategoryMusic},
		},
		{
			name: "two selected inverts to remaining one",
			prev: []string{CategoryGames, CategoryFilmTV},
			want: []string{CategoryMusic},
		},
		{
			name: "all selected inverts to none",
			prev: []string{CategoryGames, CategoryFilmTV, CategoryMusic},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := Default()
			cur.Categories = tt.prev

			got := Apply(cur, State{Users: UsersAll, AgeRange: AgeAll, SortBy: SortNewest})
			if !reflect.DeepEqual(got.Categories, tt.want) {
				t.Errorf("Apply() categories = %v, want %v", got.Categories, tt.want)
			}
		})
	}
}

func TestApplyNormalizes(t *testing.T) {
	cur := Default()

	got := Apply(cur, State{
		Categories:  []string{CategoryMusic, "Sports"},
		Users:       "Everybody",
		AgeRange:    "Decade",
		SortBy:      "Oldest",
		SearchQuery: "  zelda  ",
	})

	if !reflect.DeepEqual(got.Categories, []string{CategoryMusic}) {
		t.Errorf("Apply() categories = %v, want unknown labels dropped", got.Categories)
	}
	if got.Users != UsersAll {
		t.Errorf("Apply() users = %q, want fallback %q", got.Users, UsersAll)
	}
	if got.AgeRange != AgeAll {
		t.Errorf("Apply() ageRange = %q, want fallback %q", got.AgeRange, AgeAll)
	}
	if got.SortBy != SortNewest {
		t.Errorf("Apply() sortBy = %q, want fallback %q", got.SortBy, SortNewest)
	}
	if got.SearchQuery != "zelda" {
		t.Errorf("Apply() searchQuery = %q, want trimmed %q", got.SearchQuery, "zelda")
	}
}

func TestApplyTruncatesLongSearch(t *testing.T) {
	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}

	got := Apply(Default(), State{
		Categories:  Categories(),
		Users:       UsersAll,
		AgeRange:    AgeAll,
		SortBy:      SortNewest,
		SearchQuery: string(long),
	})

	if len(got.SearchQuery) != MaxSearchLen {
		t.Errorf("Apply() searchQuery length = %d, want %d", len(got.SearchQuery), MaxSearchLen)
	}
}

func TestApplyKeepsValidSelection(t *testing.T) {
	got := Apply(Default(), State{
		Categories: []string{CategoryFilmTV, CategoryGames},
		Users:      UsersFollowed,
		AgeRange:   AgeWeek,
		SortBy:     SortMostLiked,
	})

	// Order follows the default set, not submission order.
	want := []string{CategoryGames, CategoryFilmTV}
	if !reflect.DeepEqual(got.Categories, want) {
		t.Errorf("Apply() categories = %v, want %v", got.Categories, want)
	}
	if got.Users != UsersFollowed || got.AgeRange != AgeWeek || got.SortBy != SortMostLiked {
		t.Errorf("Apply() = %+v, want submitted values kept", got)
	}
}

func TestEncode(t *testing.T) {
	s := State{
		Categories:  []string{CategoryGames, CategoryMusic},
		Users:       UsersFollowed,
		AgeRange:    AgeMonth,
		SortBy:      SortMostComments,
		SearchQuery: "mario",
	}

	vals := url.Values{}
	Encode(s, vals)

	if got := vals.Get("categories"); got != CategoryGames+","+CategoryMusic {
		t.Errorf("Encode() categories = %q", got)
	}
	if got := vals.Get("users"); got != UsersFollowed {
		t.Errorf("Encode() users = %q, want %q", got, UsersFollowed)
	}
	if got := vals.Get("ageRange"); got != AgeMonth {
		t.Errorf("Encode() ageRange = %q, want %q", got, AgeMonth)
	}
	if got := vals.Get("sortBy"); got != SortMostComments {
		t.Errorf("Encode() sortBy = %q, want %q", got, SortMostComments)
	}
	if got := vals.Get("searchQuery"); got != "mario" {
		t.Errorf("Encode() searchQuery = %q, want %q", got, "mario")
	}
}
