package housekeeping

import "testing"

func TestQueryTermsMatchFixedSet(t *testing.T) {
	want := map[string]bool{
		"screenshot": true, "blurry image": true, "scanned document": true,
		"receipt": true, "invoice": true, "meme": true, "whiteboard": true,
		"qr code": true, "text message screenshot": true,
		"low quality image": true, "out of focus": true,
	}
	if len(queryTerms) != len(want) {
		t.Fatalf("expected %d fixed terms, got %d", len(want), len(queryTerms))
	}
	for _, term := range queryTerms {
		if !want[term] {
			t.Errorf("unexpected term %q in fixed query set", term)
		}
	}
}
