package media

import "testing"

func TestSeoFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Sony Alpha 7", "sony-alpha-7"},
		{"extension stripped", "Product Photo.JPG", "product-photo"},
		{"trailing digits preserved", "IMG_1234.JPG", "img_1234"},
		{"diacritics transliterated", "Über Kamera", "uber-kamera"},
		{"punctuation collapsed", "50% off!! (today)", "50-off-today"},
		{"already a slug", "black-t-shirt", "black-t-shirt"},
		{"whitespace only", "   ", ""},
		{"empty", "", ""},
		{"dotfile keeps nothing to strip", ".env", "env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SeoFilename(tt.in); got != tt.want {
				t.Errorf("SeoFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
