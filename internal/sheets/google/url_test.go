package google

import "testing"

func TestSpreadsheetID(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{
			name: "full sharing url",
			ref:  "https://docs.google.com/spreadsheets/d/1AbC_d-123xyz/edit?usp=sharing",
			want: "1AbC_d-123xyz",
		},
		{
			name: "url with gid fragment",
			ref:  "https://docs.google.com/spreadsheets/d/1AbC_d-123xyz/edit#gid=0",
			want: "1AbC_d-123xyz",
		},
		{
			name: "bare id",
			ref:  "1AbC_d-123xyz",
			want: "1AbC_d-123xyz",
		},
		{
			name: "surrounding whitespace",
			ref:  "  1AbC_d-123xyz\n",
			want: "1AbC_d-123xyz",
		},
		{
			name:    "empty",
			ref:     "",
			wantErr: true,
		},
		{
			name:    "garbage",
			ref:     "not a spreadsheet ref",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SpreadsheetID(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SpreadsheetID(%q) expected error, got %q", tt.ref, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SpreadsheetID(%q) error: %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("SpreadsheetID(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}
