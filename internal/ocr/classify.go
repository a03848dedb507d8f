package ocr

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountCandidate is one recognized monetary amount: the raw token the
// user sees in the picker plus its parsed value.
type AmountCandidate struct {
	Text  string `json:"text"`
	Cents int64  `json:"cents"`
}

// Candidates groups the classified OCR tokens the entry form offers as
// pre-fill choices. Income reports whether any amount carried a leading
// plus sign, which marks the document as an income receipt.
type Candidates struct {
	Dates   []string          `json:"dates"`
	Amounts []AmountCandidate `json:"amounts"`
	Payees  []string          `json:"payees"`
	Income  bool              `json:"income"`
}

// ToJSON renders the candidates for storage on the scan row.
func (c Candidates) ToJSON() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CandidatesFromJSON parses candidates stored on a scan row.
func CandidatesFromJSON(s string) (Candidates, error) {
	var c Candidates
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return Candidates{}, err
	}
	return c, nil
}

var (
	dateRe   = regexp.MustCompile(`\b(\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})\b`)
	amountRe = regexp.MustCompile(`[+]?[$€]?\s*\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{1,2})?\b|\+\s*[$€]?\s*\d+(?:[.,]\d{1,2})?`)
	// Words that look like labels rather than a payee name.
	labelWords = map[string]bool{
		"total": true, "subtotal": true, "amount": true, "invoice": true,
		"receipt": true, "date": true, "tax": true, "vat": true, "due": true,
		"cash": true, "change": true, "card": true, "thank": true, "you": true,
	}
)

// Classify splits OCR output into date, amount and payee candidates.
// Matching is permissive; the user picks the right token in the entry form.
func Classify(text string) Candidates {
	var c Candidates
	seenDate := map[string]bool{}
	seenAmount := map[string]bool{}
	seenPayee := map[string]bool{}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for _, d := range dateRe.FindAllString(line, -1) {
			if !seenDate[d] {
				seenDate[d] = true
				c.Dates = append(c.Dates, d)
			}
		}

		for _, raw := range amountRe.FindAllString(line, -1) {
			cents, plus, ok := parseAmountToken(raw)
			if !ok || seenAmount[raw] {
				continue
			}
			seenAmount[raw] = true
			c.Amounts = append(c.Amounts, AmountCandidate{Text: strings.TrimSpace(raw), Cents: cents})
			if plus {
				c.Income = true
			}
		}

		if payee, ok := payeeCandidate(line); ok && !seenPayee[payee] {
			seenPayee[payee] = true
			c.Payees = append(c.Payees, payee)
		}
	}
	return c
}

// parseAmountToken parses a recognized amount token into cents, reporting
// whether it carried a leading plus sign.
func parseAmountToken(raw string) (cents int64, plus, ok bool) {
	s := strings.TrimSpace(raw)
	plus = strings.HasPrefix(s, "+")
	s = strings.TrimLeft(s, "+$€ \t")
	// Normalize thousands/decimal separators: when both appear, the last
	// one is the decimal separator.
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	if lastDot >= 0 && lastComma >= 0 {
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	} else if lastComma >= 0 {
		// Lone comma: decimal if followed by 1-2 digits, thousands otherwise.
		if len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.Sign() <= 0 {
		return 0, false, false
	}
	return d.Round(2).Shift(2).IntPart(), plus, true
}

// payeeCandidate decides whether a line looks like a merchant/payee name:
// short, mostly letters, no digits, and not a common receipt label.
func payeeCandidate(line string) (string, bool) {
	if len(line) > 40 {
		return "", false
	}
	letters := 0
	for _, r := range line {
		if unicode.IsDigit(r) {
			return "", false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < 3 {
		return "", false
	}
	for _, word := range strings.Fields(strings.ToLower(line)) {
		if labelWords[strings.Trim(word, ":.,")] {
			return "", false
		}
	}
	return line, true
}
