package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsMasksSensitiveFields(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"patient_phone", "+1 (415) 555-0199",
		"authorization", "Bearer abc",
		"patient_id", "9b1c",
		"answer_text", "I take ibuprofen daily",
		"form_id", "f-1",
	})
	got := map[string]interface{}{}
	for i := 0; i+1 < len(out); i += 2 {
		got[out[i].(string)] = out[i+1]
	}

	if got["patient_phone"] != "***0199" {
		t.Fatalf("phone: want=%q got=%v", "***0199", got["patient_phone"])
	}
	if got["authorization"] != "[REDACTED]" {
		t.Fatalf("authorization: want=[REDACTED] got=%v", got["authorization"])
	}
	if s, _ := got["patient_id"].(string); !strings.HasPrefix(s, "hash:") {
		t.Fatalf("patient_id: want hash prefix got=%v", got["patient_id"])
	}
	if got["answer_text"] != "[22 chars]" {
		t.Fatalf("answer_text: want=[22 chars] got=%v", got["answer_text"])
	}
	if got["form_id"] != "f-1" {
		t.Fatalf("form_id: want=f-1 got=%v", got["form_id"])
	}
}

func TestMaskPhoneShortValues(t *testing.T) {
	if got := maskPhone("123"); got != "***" {
		t.Fatalf("short: want=*** got=%q", got)
	}
	if got := maskPhone("n/a"); got != "" {
		t.Fatalf("no digits: want empty got=%q", got)
	}
}

func TestClassifyKeys(t *testing.T) {
	cases := map[string]fieldClass{
		"jwt_token":     classSecret,
		"patient_email": classSecret,
		"doctor_id":     classIdentifier,
		"to":            classPhone,
		"phone_number":  classPhone,
		"transcript":    classFreeText,
		"form_id":       classPlain,
		"total":         classPlain,
		"":              classPlain,
	}
	for key, want := range cases {
		if got := classify(key); got != want {
			t.Fatalf("classify(%q): want=%d got=%d", key, want, got)
		}
	}
}

func TestSanitizeNestedMap(t *testing.T) {
	got := sanitizeValue("payload", map[string]interface{}{
		"Phone": "+14155550199",
		"form":  map[string]interface{}{"secret": "x"},
	}).(map[string]interface{})
	if got["Phone"] != "***0199" {
		t.Fatalf("nested phone: want=***0199 got=%v", got["Phone"])
	}
	if inner := got["form"].(map[string]interface{}); inner["secret"] != "[REDACTED]" {
		t.Fatalf("nested secret: want=[REDACTED] got=%v", inner["secret"])
	}
}
