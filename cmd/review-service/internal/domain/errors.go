package domain

import "errors"

var (
	// Collection errors
	ErrCollectionNotFound    = errors.New("collection not found")
	ErrInvalidCollectionID   = errors.New("invalid collection id")
	ErrInvalidCollectionName = errors.New("invalid collection name")
	ErrInvalidOwnerID        = errors.New("invalid owner id")
	ErrCollectionReadonly    = errors.New("collection is public and readonly")
	ErrNotOwner              = errors.New("caller is not the collection owner")

	// Document errors
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidDocumentID = errors.New("invalid document id")
	ErrInvalidMainID     = errors.New("invalid main document id")

	// Stage result errors
	ErrInvalidStageKind     = errors.New("invalid stage kind")
	ErrMissingStagePayload  = errors.New("missing stage payload")
	ErrStagePayloadMismatch = errors.New("stage payload kind mismatch")

	// Tag group errors
	ErrTagGroupNotFound     = errors.New("tag group not found")
	ErrTagGroupNameTaken    = errors.New("tag group name already taken")
	ErrInvalidClusterParams = errors.New("exactly one of n_clusters and distance_threshold must be set")
	ErrEmptyClusterBases    = errors.New("tag group requires at least one base")
	ErrNoCurrentVersion     = errors.New("tag group has no current version")
)
