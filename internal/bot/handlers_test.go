package bot

import "testing"

func TestParseAssign(t *testing.T) {
	cases := []struct {
		text string
		ok   bool
		want assignCommand
	}{
		{"assign that to me", true, assignCommand{anaphoric: true, self: true}},
		{"assign ABC-123 to me", true, assignCommand{ticket: "ABC-123", self: true}},
		{"assign that to <@U123>", true, assignCommand{anaphoric: true, assignee: "U123"}},
		{"assign PBL-7 to <@U0AB12>", true, assignCommand{ticket: "PBL-7", assignee: "U0AB12"}},
		{"<@BOT> please assign that to me", true, assignCommand{anaphoric: true, self: true}},
		{"Assign That To Me", true, assignCommand{anaphoric: true, self: true}},

		// Trailing text after the assignee invalidates the command.
		{"assign that to me please", false, assignCommand{}},
		{"assign ABC-123 to me now", false, assignCommand{}},

		// Malformed forms.
		{"assign to me", false, assignCommand{}},
		{"assign this to me", false, assignCommand{}},
		{"assign ABC-123 to them", false, assignCommand{}},
		{"", false, assignCommand{}},
	}

	for _, tc := range cases {
		got, ok := parseAssign(tc.text)
		if ok != tc.ok {
			t.Errorf("parseAssign(%q) ok = %v, want %v", tc.text, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("parseAssign(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
	}
}

func TestBindPattern(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"i am jdoe", "jdoe"},
		{"I am j.doe", "j.doe"},
		{"hey, i am user42, by the way", "user42"},
		{"this program works", ""},
		{"miami vice", ""},
	}

	for _, tc := range cases {
		m := bindPattern.FindStringSubmatch(tc.text)
		var got string
		if m != nil {
			got = m[bindPattern.SubexpIndex("username")]
		}
		if got != tc.want {
			t.Errorf("bindPattern(%q) username = %q, want %q", tc.text, got, tc.want)
		}
	}
}
