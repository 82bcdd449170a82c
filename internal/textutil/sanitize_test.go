package textutil

import "testing"

func TestDocumentID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"MS Bodl. 264", "MS_Bodl._264"},
		{"  john's portrait in 2004.jpg ", "johns_portrait_in_2004.jpg"},
		{"Cañón/Évora", "CanonEvora"},
		{"ﬁle", "file"},
		{"..", "_"},
		{"", "_"},
		{"???", "_"},
		{"a-b_c.d", "a-b_c.d"},
	}
	for _, tt := range tests {
		if got := DocumentID(tt.in); got != tt.want {
			t.Errorf("DocumentID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"image_worker_2", "image_worker_2"},
		{"OCR Worker", "ocr_worker"},
		{"  ", "unknown"},
		{"***", "unknown"},
	}
	for _, tt := range tests {
		if got := SanitizeToken(tt.in); got != tt.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
