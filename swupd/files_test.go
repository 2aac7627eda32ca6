package swupd

import "testing"

func TestFlagFieldRoundTrip(t *testing.T) {
	cases := []struct {
		typ   FileType
		flags Flags
		field string
	}{
		{TypeFile, Flags{}, "F..."},
		{TypeDirectory, Flags{DoNotUpdate: true}, "Dn.."},
		{TypeSymlink, Flags{Experimental: true}, "L.e."},
		{TypeDeleted, Flags{IgnoredByUpdate: true}, "d..i"},
		{TypeManifest, Flags{DoNotUpdate: true, Experimental: true, IgnoredByUpdate: true}, "Mnei"},
	}

	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			f := &File{Type: tc.typ, Flags: tc.flags}
			if got := f.flagField(); got != tc.field {
				t.Fatalf("flagField() = %q, want %q", got, tc.field)
			}

			gotType, gotFlags, err := parseFlagField(tc.field)
			if err != nil {
				t.Fatalf("parseFlagField(%q) failed: %v", tc.field, err)
			}
			if gotType != tc.typ || gotFlags != tc.flags {
				t.Fatalf("parseFlagField(%q) = %v, %v; want %v, %v", tc.field, gotType, gotFlags, tc.typ, tc.flags)
			}
		})
	}
}

func TestParseFlagFieldInvalid(t *testing.T) {
	invalid := []string{"", "F..", "X...", "F.x.", "Fe.."}
	for _, field := range invalid {
		if _, _, err := parseFlagField(field); err == nil {
			t.Errorf("parseFlagField(%q) should have failed", field)
		}
	}
}

func TestPresent(t *testing.T) {
	cases := []struct {
		typ  FileType
		want bool
	}{
		{TypeFile, true},
		{TypeDirectory, true},
		{TypeSymlink, true},
		{TypeManifest, true},
		{TypeDeleted, false},
		{TypeUnset, false},
	}
	for _, tc := range cases {
		f := &File{Type: tc.typ}
		if got := f.Present(); got != tc.want {
			t.Errorf("File{Type: %v}.Present() = %v, want %v", tc.typ, got, tc.want)
		}
	}
}

func TestSameContent(t *testing.T) {
	a := &File{Path: "/usr/bin/foo", Hash: Hash{1}, Type: TypeFile, LastChange: 10}
	b := &File{Path: "/usr/bin/foo", Hash: Hash{1}, Type: TypeFile, LastChange: 20}
	if !sameContent(a, b) {
		t.Error("records differing only in LastChange should have sameContent")
	}

	c := &File{Path: "/usr/bin/foo", Hash: Hash{2}, Type: TypeFile}
	if sameContent(a, c) {
		t.Error("records with different hashes must not have sameContent")
	}
}
