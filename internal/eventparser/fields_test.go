package eventparser

import "testing"

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"CallSid":     "callsid",
		"call_sid":    "callsid",
		"Call-Sid":    "callsid",
		"call sid":    "callsid",
		"AccountSid":  "accountsid",
		"IsFinal":     "isfinal",
		"is_final":    "isfinal",
	}
	for in, want := range cases {
		if got := normalizeKey(in); got != want {
			t.Errorf("normalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormExtractor_AliasFallback(t *testing.T) {
	ex := newFormExtractor(map[string][]string{
		"call_sid": {"CA1"},
	})
	if v, ok := ex.Get("CallSid", "call_sid"); !ok || v != "CA1" {
		t.Fatalf("expected alias fallback to find call_sid, got %q ok=%v", v, ok)
	}
	if _, ok := ex.Get("AccountSid"); ok {
		t.Fatalf("did not expect AccountSid to be found")
	}
}

func TestJSONExtractor_DepthLimit(t *testing.T) {
	deep := map[string]interface{}{
		"a": map[string]interface{}{
			"b": map[string]interface{}{
				"c": map[string]interface{}{
					"d": map[string]interface{}{
						"e": map[string]interface{}{
							"callsid": "too-deep",
						},
					},
				},
			},
		},
	}
	ex := newJSONExtractor(deep)
	if _, ok := ex.Get("callsid"); ok {
		t.Fatalf("expected field beyond max depth to be unreachable")
	}
}
