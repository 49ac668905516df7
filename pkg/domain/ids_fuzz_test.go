package domain

import "testing"

// FuzzParseIncidentID checks that parsing never panics and that every
// accepted input round-trips through String.
func FuzzParseIncidentID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("550E8400-E29B-41D4-A716-446655440000")

	f.Fuzz(func(t *testing.T, input string) {
		parsed, err := ParseIncidentID(input)
		if err != nil {
			return
		}
		reparsed, err := ParseIncidentID(parsed.String())
		if err != nil {
			t.Fatalf("canonical form %q failed to reparse: %v", parsed.String(), err)
		}
		if reparsed != parsed {
			t.Fatalf("round trip changed the id: %v != %v", reparsed, parsed)
		}
	})
}
