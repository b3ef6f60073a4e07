package simpleasset

import (
	"testing"
)

// TestKindFromMimeType tests media kind resolution from declared MIME types
func TestKindFromMimeType(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		want     MediaKind
	}{
		{
			name:     "jpeg image",
			mimeType: "image/jpeg",
			want:     MediaKindImage,
		},
		{
			name:     "png image",
			mimeType: "image/png",
			want:     MediaKindImage,
		},
		{
			name:     "mp4 video",
			mimeType: "video/mp4",
			want:     MediaKindVideo,
		},
		{
			name:     "quicktime video",
			mimeType: "video/quicktime",
			want:     MediaKindVideo,
		},
		{
			name:     "pdf document",
			mimeType: "application/pdf",
			want:     MediaKindDocument,
		},
		{
			name:     "plain text document",
			mimeType: "text/plain",
			want:     MediaKindDocument,
		},
		{
			name:     "audio falls through to other",
			mimeType: "audio/mpeg",
			want:     MediaKindOther,
		},
		{
			name:     "empty mime type",
			mimeType: "",
			want:     MediaKindOther,
		},
		{
			name:     "bare word without slash",
			mimeType: "image",
			want:     MediaKindOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KindFromMimeType(tt.mimeType)
			if got != tt.want {
				t.Errorf("KindFromMimeType(%q) = %v, want %v", tt.mimeType, got, tt.want)
			}
		})
	}
}

// TestCleanupResultComplete tests the Complete method for CleanupResult
func TestCleanupResultComplete(t *testing.T) {
	tests := []struct {
		name   string
		result CleanupResult
		want   bool
	}{
		{
			name:   "no keys at all",
			result: CleanupResult{},
			want:   true,
		},
		{
			name:   "all deletions succeeded",
			result: CleanupResult{DeletedKeys: []string{"a", "b"}},
			want:   true,
		},
		{
			name:   "one deletion failed",
			result: CleanupResult{DeletedKeys: []string{"a"}, FailedKeys: []string{"b"}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Complete(); got != tt.want {
				t.Errorf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}
