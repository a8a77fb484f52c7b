package votes

import (
	"testing"

	"github.com/user/queryloop-go/apperror"
)

func TestParseTargetType(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    TargetType
		wantErr bool
	}{
		{name: "question", raw: "question", want: TargetQuestion},
		{name: "answer", raw: "answer", want: TargetAnswer},
		{name: "empty", raw: "", wantErr: true},
		{name: "unknown", raw: "comment", wantErr: true},
		{name: "case sensitive", raw: "Question", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTargetType(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTargetType(%q) expected error, got %q", tt.raw, got)
				}
				if !apperror.IsValidationError(err) {
					t.Errorf("ParseTargetType(%q) error = %v, want validation error", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTargetType(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseTargetType(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
