package carrier

import "testing"

func TestParseQuery(t *testing.T) {
	cases := []struct {
		q    string
		want SearchFilter
	}{
		{
			q:    "status:active state:tx ridgeline",
			want: SearchFilter{Status: "active", State: "TX", Text: "ridgeline"},
		},
		{
			q:    `equipment:"dry van" apex freight`,
			want: SearchFilter{Equipment: "dry van", Text: "apex freight"},
		},
		{
			q:    "ridgeline trucking",
			want: SearchFilter{Text: "ridgeline trucking"},
		},
		{
			// A typo'd status degrades to a broad search, not an error.
			q:    "status:actve ridgeline",
			want: SearchFilter{Text: "ridgeline"},
		},
		{
			q:    "status:do_not_use",
			want: SearchFilter{Status: "do_not_use"},
		},
		{
			q:    "",
			want: SearchFilter{},
		},
	}

	for _, tc := range cases {
		if got := ParseQuery(tc.q); got != tc.want {
			t.Errorf("ParseQuery(%q) = %+v, want %+v", tc.q, got, tc.want)
		}
	}
}
