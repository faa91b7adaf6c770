package dicom

import "testing"

func TestStringTrimsAndIgnoresNonStrings(t *testing.T) {
	tags := Tags{
		"AccessionNumber": " ACC-42 ",
		"InstanceNumber":  float64(3),
	}
	if got := tags.String("AccessionNumber"); got != "ACC-42" {
		t.Errorf("String = %q", got)
	}
	if got := tags.String("InstanceNumber"); got != "" {
		t.Errorf("non-string value should yield empty, got %q", got)
	}
	if got := tags.String("Missing"); got != "" {
		t.Errorf("missing tag should yield empty, got %q", got)
	}
}

func TestPersonName(t *testing.T) {
	cases := []struct {
		name string
		tags Tags
		want string
	}{
		{"plain string", Tags{"PatientName": "DOE JOHN"}, "DOE JOHN"},
		{"caret separated", Tags{"PatientName": "DOE^JOHN^M"}, "DOE JOHN M"},
		{"structured alphabetic", Tags{"PatientName": map[string]any{"Alphabetic": "DOE^JANE"}}, "DOE JANE"},
		{"structured without alphabetic", Tags{"PatientName": map[string]any{"Ideographic": "X"}}, ""},
		{"trailing separators", Tags{"PatientName": "DOE^JOHN^^^"}, "DOE JOHN"},
		{"absent", Tags{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tags.PersonName("PatientName"); got != tc.want {
				t.Errorf("PersonName = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"19840312", "1984-03-12"},
		{"20240229", "2024-02-29"},
		{"20230229", ""}, // not a leap year
		{"1984031", ""},
		{"notadate", ""},
		{"", ""},
		{" 19840312 ", "1984-03-12"},
	}
	for _, tc := range cases {
		if got := NormalizeDate(tc.in); got != tc.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDerivedArchiveID(t *testing.T) {
	if got := DerivedArchiveID("1.2.840.113619"); got != "DERIVED_1_2_840_113619" {
		t.Errorf("DerivedArchiveID = %q", got)
	}
}
