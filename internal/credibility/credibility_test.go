package credibility

import "testing"

func TestClassifyIsPure(t *testing.T) {
	a := Classify("PIB", "gov")
	b := Classify("PIB", "gov")
	if a != b {
		t.Fatalf("Classify is not pure: %+v != %+v", a, b)
	}
}

func TestClassifyBuckets(t *testing.T) {
	cases := []struct {
		name, kind string
		wantLevel  Level
		wantScore  float64
		wantVerif  bool
	}{
		{"PIB", "gov", LevelHigh, 0.95, true},
		{"AltNews", "factcheck", LevelHigh, 0.90, true},
		{"BBC", "news", LevelMediumHigh, 0.80, false},
		{"Random Blog", "news", LevelMedium, 0.60, false},
		{"anon", "social", LevelLow, 0.35, false},
	}
	for _, c := range cases {
		got := Classify(c.name, c.kind)
		if got.Level != c.wantLevel || got.Score != c.wantScore || got.IsVerified != c.wantVerif {
			t.Errorf("Classify(%q,%q) = %+v, want level=%s score=%v verified=%v",
				c.name, c.kind, got, c.wantLevel, c.wantScore, c.wantVerif)
		}
	}
}

func TestIsVerifiedThreshold(t *testing.T) {
	if Classify("Random Blog", "news").IsVerified {
		t.Fatal("medium credibility source should not be verified")
	}
	if !Classify("WHO", "gov").IsVerified {
		t.Fatal("gov source should be verified")
	}
}
