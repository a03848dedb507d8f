package ocr

import "testing"

func TestClassifyReceipt(t *testing.T) {
	text := `ACME STORE
2025-06-05
Total: $12.34
Thank you`

	c := Classify(text)

	if len(c.Dates) != 1 || c.Dates[0] != "2025-06-05" {
		t.Fatalf("dates = %v", c.Dates)
	}
	found := false
	for _, a := range c.Amounts {
		if a.Cents == 1234 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a 1234-cent amount candidate, got %v", c.Amounts)
	}
	if len(c.Payees) == 0 || c.Payees[0] != "ACME STORE" {
		t.Fatalf("payees = %v", c.Payees)
	}
	if c.Income {
		t.Fatal("plain receipt should not be classified as income")
	}
}

func TestClassifyIncomeMarker(t *testing.T) {
	c := Classify("Payment received\n+250.00\n")
	if !c.Income {
		t.Fatal("leading plus should mark the scan as income")
	}
	if len(c.Amounts) == 0 || c.Amounts[0].Cents != 25000 {
		t.Fatalf("amounts = %v", c.Amounts)
	}
}

func TestParseAmountToken(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		plus  bool
		ok    bool
	}{
		{"$12.34", 1234, false, true},
		{"12,34", 1234, false, true},
		{"1.234,56", 123456, false, true},
		{"1,234.56", 123456, false, true},
		{"+ 99.90", 9990, true, true},
		{"0", 0, false, false},
		{"abc", 0, false, false},
	}
	for _, tc := range cases {
		cents, plus, ok := parseAmountToken(tc.in)
		if ok != tc.ok || cents != tc.cents || plus != tc.plus {
			t.Fatalf("parseAmountToken(%q) = (%d, %v, %v), want (%d, %v, %v)",
				tc.in, cents, plus, ok, tc.cents, tc.plus, tc.ok)
		}
	}
}

func TestClassifyDeduplicates(t *testing.T) {
	c := Classify("$5.00\n$5.00\n$5.00")
	if len(c.Amounts) != 1 {
		t.Fatalf("expected duplicate amounts collapsed, got %v", c.Amounts)
	}
}

func TestCandidatesJSONRoundTrip(t *testing.T) {
	in := Candidates{
		Dates:   []string{"2025-06-05"},
		Amounts: []AmountCandidate{{Text: "$12.34", Cents: 1234}},
		Payees:  []string{"ACME STORE"},
		Income:  true,
	}
	s, err := in.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	out, err := CandidatesFromJSON(s)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if out.Income != in.Income || len(out.Amounts) != 1 || out.Amounts[0].Cents != 1234 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
