package naming

import "testing"

func TestInferFromFilename(t *testing.T) {
	tests := []struct {
		stem string
		want Inferred
		ok   bool
	}{
		{"2021_DeepLearningForFinance_Smith", Inferred{Title: "DeepLearningForFinance", Author: "Smith", Year: "2021"}, true},
		{"2019 Calculus Made_Easy", Inferred{Title: "Calculus Made", Author: "Easy", Year: "2019"}, true},
		{"Deep Learning For Finance - John Smith", Inferred{Title: "Deep Learning For Finance", Author: "John Smith"}, true},
		{"scan0001", Inferred{}, false},
		{"", Inferred{}, false},
	}
	for _, tt := range tests {
		got, ok := InferFromFilename(tt.stem)
		if ok != tt.ok {
			t.Fatalf("InferFromFilename(%q) ok=%v want %v", tt.stem, ok, tt.ok)
		}
		if got != tt.want {
			t.Fatalf("InferFromFilename(%q) = %+v want %+v", tt.stem, got, tt.want)
		}
	}
}

func TestCompose(t *testing.T) {
	if got := Compose(" Dune ", " Frank Herbert "); got != "Dune - Frank Herbert" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Compose("Dune", ""); got != "Dune" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Compose("", "Frank Herbert"); got != "" {
		t.Fatalf("expected empty without title, got %q", got)
	}
}

func TestWithSignature(t *testing.T) {
	if got := WithSignature("0123456789abcdef01234567", "Dune"); got != "0123456789abcdef01234567_Dune" {
		t.Fatalf("unexpected %q", got)
	}
	if got := WithSignature("", "Dune"); got != "Dune" {
		t.Fatalf("unexpected %q", got)
	}
}
