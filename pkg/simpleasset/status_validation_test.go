package simpleasset

import (
	"errors"
	"testing"
)

// TestCanTransition tests the asset status transition rules
func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from AssetStatus
		to   AssetStatus
		want bool
	}{
		{
			name: "pending to processing",
			from: AssetStatusPending,
			to:   AssetStatusProcessing,
			want: true,
		},
		{
			name: "processing to completed",
			from: AssetStatusProcessing,
			to:   AssetStatusCompleted,
			want: true,
		},
		{
			name: "processing to failed",
			from: AssetStatusProcessing,
			to:   AssetStatusFailed,
			want: true,
		},
		{
			name: "failed back to processing for a retry",
			from: AssetStatusFailed,
			to:   AssetStatusProcessing,
			want: true,
		},
		{
			name: "processing re-claimed after a stall re-delivery",
			from: AssetStatusProcessing,
			to:   AssetStatusProcessing,
			want: true,
		},
		{
			name: "completed cannot re-enter processing",
			from: AssetStatusCompleted,
			to:   AssetStatusProcessing,
			want: false,
		},
		{
			name: "pending cannot jump straight to completed",
			from: AssetStatusPending,
			to:   AssetStatusCompleted,
			want: false,
		},
		{
			name: "failed cannot jump straight to completed",
			from: AssetStatusFailed,
			to:   AssetStatusCompleted,
			want: false,
		},
		{
			name: "pending cannot jump straight to failed",
			from: AssetStatusPending,
			to:   AssetStatusFailed,
			want: false,
		},
		{
			name: "nothing transitions back to pending",
			from: AssetStatusFailed,
			to:   AssetStatusPending,
			want: false,
		},
		{
			name: "unknown target status",
			from: AssetStatusPending,
			to:   AssetStatus("archived"),
			want: false,
		},
		{
			name: "unknown source status",
			from: AssetStatus("archived"),
			to:   AssetStatusProcessing,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanTransition(tt.from, tt.to)
			if got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
			if !tt.want && !errors.Is(err, ErrInvalidStatusTransition) {
				t.Errorf("CanTransition(%s, %s) error = %v, want ErrInvalidStatusTransition", tt.from, tt.to, err)
			}
			if tt.want && err != nil {
				t.Errorf("CanTransition(%s, %s) unexpected error: %v", tt.from, tt.to, err)
			}
		})
	}
}

// TestCanDelete tests that deletion is allowed from every known status
func TestCanDelete(t *testing.T) {
	for _, status := range []AssetStatus{
		AssetStatusPending,
		AssetStatusProcessing,
		AssetStatusCompleted,
		AssetStatusFailed,
	} {
		t.Run(string(status), func(t *testing.T) {
			got, err := canDelete(status)
			if !got || err != nil {
				t.Errorf("canDelete(%s) = %v, %v, want true, nil", status, got, err)
			}
		})
	}

	t.Run("unknown status", func(t *testing.T) {
		got, err := canDelete(AssetStatus("archived"))
		if got || !errors.Is(err, ErrInvalidStatusTransition) {
			t.Errorf("canDelete(archived) = %v, %v, want false, ErrInvalidStatusTransition", got, err)
		}
	})
}
