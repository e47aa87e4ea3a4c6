package anonymizer

import (
	"context"
	"testing"

	"unboxed/internal/entity"
)

func classify(t *testing.T, text string) []entity.Span {
	t.Helper()
	spans, err := NewRuleClassifier().Classify(context.Background(), text)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	return spans
}

func findSpan(spans []entity.Span, text string, typ entity.Type) bool {
	for _, s := range spans {
		if s.Text == text && s.Type == typ {
			return true
		}
	}
	return false
}

func TestRuleClassifierNames(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", "I spoke with John Smith yesterday", "John Smith"},
		{"honorific", "Ask Dr. Sarah Johnson for details", "Sarah Johnson"},
		{"three words", "Report by Mary Jane Watson attached", "Mary Jane Watson"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := classify(t, tt.text)
			if !findSpan(spans, tt.want, entity.TypeName) {
				t.Errorf("expected NAME %q in %v", tt.want, spans)
			}
		})
	}
}

func TestRuleClassifierSentenceStarterTrimmed(t *testing.T) {
	spans := classify(t, "The Quarterly Report is due")
	for _, s := range spans {
		if s.Type == entity.TypeName && s.Text == "The Quarterly" {
			t.Errorf("sentence starter not trimmed: %v", s)
		}
	}
}

func TestRuleClassifierSingleCapitalizedWordIgnored(t *testing.T) {
	spans := classify(t, "Dear Alice, see you soon")
	if findSpan(spans, "Alice", entity.TypeName) {
		t.Errorf("single capitalized word should not be a NAME: %v", spans)
	}
}

func TestRuleClassifierOrganizations(t *testing.T) {
	spans := classify(t, "She joined Acme Corp last spring")
	if !findSpan(spans, "Acme Corp", entity.TypeOrg) {
		t.Errorf("expected ORGANIZATION span in %v", spans)
	}
}

func TestRuleClassifierDatesTimesMoneyPercent(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		typ  entity.Type
	}{
		{"month date", "Signed on January 2, 2024 in person", "January 2, 2024", entity.TypeDate},
		{"day first date", "Signed on 2 January 2024 in person", "2 January 2024", entity.TypeDate},
		{"time", "The call is at 14:30 sharp", "14:30", entity.TypeTime},
		{"money", "Budget was $1,250.50 total", "$1,250.50", entity.TypeMoney},
		{"money scale", "Revenue hit $3 million this year", "$3 million", entity.TypeMoney},
		{"percent sign", "Growth of 12.5% year over year", "12.5%", entity.TypePercent},
		{"percent word", "Roughly 40 percent responded", "40 percent", entity.TypePercent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := classify(t, tt.text)
			if !findSpan(spans, tt.want, tt.typ) {
				t.Errorf("expected %s %q in %v", tt.typ, tt.want, spans)
			}
		})
	}
}

func TestRuleClassifierLocations(t *testing.T) {
	spans := classify(t, "The office moved from New York to a suburb")
	if !findSpan(spans, "New York", entity.TypeLocation) {
		t.Errorf("expected LOCATION span in %v", spans)
	}
}

func TestRuleClassifierOrdinalsAndCardinals(t *testing.T) {
	spans := classify(t, "The 3rd quarter closed with 750 new accounts")
	if !findSpan(spans, "3rd", entity.TypeOrdinal) {
		t.Errorf("expected ORDINAL span in %v", spans)
	}
	if !findSpan(spans, "750", entity.TypeCardinal) {
		t.Errorf("expected CARDINAL span in %v", spans)
	}
}

func TestRuleClassifierNumbersInsideRicherSpansNotDoubled(t *testing.T) {
	spans := classify(t, "Paid $1,250 on January 2, 2024")
	for _, s := range spans {
		if s.Type == entity.TypeCardinal {
			t.Errorf("number inside a money or date span reported separately: %v", s)
		}
	}
}

func TestRuleClassifierOffsetsValid(t *testing.T) {
	text := "Dr. Sarah Johnson of Acme Corp earned $5 million on January 2, 2024"
	spans := classify(t, text)
	if len(spans) == 0 {
		t.Fatal("expected spans")
	}
	lastEnd := -1
	for _, s := range spans {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			t.Errorf("invalid offsets: %+v", s)
			continue
		}
		if text[s.Start:s.End] != s.Text {
			t.Errorf("offset/text mismatch: %+v", s)
		}
		if s.Start < lastEnd {
			t.Errorf("overlapping span: %+v", s)
		}
		lastEnd = s.End
	}
}
