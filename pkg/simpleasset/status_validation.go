package simpleasset

import "fmt"

// CanTransition checks whether an asset may move from one status to another.
// Returns true if the transition is allowed, false with an error otherwise.
//
// The lifecycle is pending -> processing -> {completed, failed}. A failed
// asset may re-enter processing when a reprocess job is enqueued, and a
// processing asset may be re-claimed by a worker after a stall re-delivery.
func CanTransition(from, to AssetStatus) (bool, error) {
	switch to {
	case AssetStatusProcessing:
		switch from {
		case AssetStatusPending, AssetStatusFailed, AssetStatusProcessing:
			return true, nil
		case AssetStatusCompleted:
			return false, fmt.Errorf("%w: completed asset requires a reprocess job (status: %s)", ErrInvalidStatusTransition, from)
		default:
			return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatusTransition, from)
		}
	case AssetStatusCompleted, AssetStatusFailed:
		if from == AssetStatusProcessing {
			return true, nil
		}
		return false, fmt.Errorf("%w: terminal status %s requires processing, not %s", ErrInvalidStatusTransition, to, from)
	case AssetStatusPending:
		return false, fmt.Errorf("%w: pending is the initial state only", ErrInvalidStatusTransition)
	default:
		return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatusTransition, to)
	}
}

// canDelete checks if an asset can be deleted based on its current status.
// Deletion is allowed from every state: an asset stuck in processing is
// reclaimed by its job finding the record gone and acking.
func canDelete(status AssetStatus) (bool, error) {
	switch status {
	case AssetStatusPending, AssetStatusProcessing, AssetStatusCompleted, AssetStatusFailed:
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown status %s", ErrInvalidStatusTransition, status)
	}
}
