package verify

import "testing"

func TestExtractJSONObjectStripsCodeFence(t *testing.T) {
	raw := "Here is my answer:\n```json\n{\"verdict\": \"false\"}\n```\nHope that helps."
	got := extractJSONObject(raw)
	if got != `{"verdict": "false"}` {
		t.Fatalf("extractJSONObject() = %q", got)
	}
}

func TestExtractJSONObjectStripsSurroundingProseWithoutFence(t *testing.T) {
	raw := `Sure, {"verdict": "true", "confidence": 0.5} is my answer.`
	got := extractJSONObject(raw)
	if got != `{"verdict": "true", "confidence": 0.5}` {
		t.Fatalf("extractJSONObject() = %q", got)
	}
}

func TestExtractJSONObjectStripsTrailingCommas(t *testing.T) {
	raw := `{"verdict": "true", "cited_evidence_indices": [1, 2,],}`
	got := extractJSONObject(raw)
	if got != `{"verdict": "true", "cited_evidence_indices": [1, 2]}` {
		t.Fatalf("extractJSONObject() = %q", got)
	}
}

func TestParseReplySucceedsOnCleanJSON(t *testing.T) {
	reply, err := parseReply(`{"verdict":"false","confidence":0.8,"contradiction_score":0.1,"explanation":"x","cited_evidence_indices":[0,1]}`)
	if err != nil {
		t.Fatalf("parseReply() error = %v", err)
	}
	if reply.Verdict != "false" || reply.Confidence != 0.8 || len(reply.CitedEvidenceIndices) != 2 {
		t.Fatalf("parseReply() = %+v", reply)
	}
}

func TestParseReplyFailsOnGarbage(t *testing.T) {
	if _, err := parseReply("the model refused to answer in any structured way"); err == nil {
		t.Fatal("expected error parsing non-JSON reply")
	}
}

func TestNormalizeVerdictCoercesUnknownToUnverified(t *testing.T) {
	cases := map[string]string{
		"TRUE":        VerdictTrue,
		"False":       VerdictFalse,
		"Misleading":  VerdictMisleading,
		"maybe":       VerdictUnverified,
		"":            VerdictUnverified,
	}
	for in, want := range cases {
		if got := normalizeVerdict(in); got != want {
			t.Errorf("normalizeVerdict(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClamp01(t *testing.T) {
	cases := map[float64]float64{-0.5: 0, 0: 0, 0.5: 0.5, 1: 1, 1.5: 1}
	for in, want := range cases {
		if got := clamp01(in); got != want {
			t.Errorf("clamp01(%v) = %v, want %v", in, got, want)
		}
	}
}
