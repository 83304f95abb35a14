package service

import (
	"testing"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_CreateOnUnseenEntity(t *testing.T) {
	rec := &domain.ChangeRecord{EntityID: "e1", BaseVersion: 0, NewVersion: 1, Operation: domain.OperationCreate}

	class, err := Classify(rec, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.ClassFastForward, class)
}

func TestClassify_UpdateOnUnseenEntity(t *testing.T) {
	rec := &domain.ChangeRecord{EntityID: "e1", BaseVersion: 3, NewVersion: 4, Operation: domain.OperationUpdate}

	class, err := Classify(rec, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.ClassUnknownTarget, class)
}

func TestClassify_FastForward(t *testing.T) {
	current := &domain.Entity{ID: "e1", Version: 5}
	rec := &domain.ChangeRecord{EntityID: "e1", BaseVersion: 5, NewVersion: 6, Operation: domain.OperationUpdate}

	class, err := Classify(rec, current)

	require.NoError(t, err)
	assert.Equal(t, domain.ClassFastForward, class)
}

func TestClassify_Conflict(t *testing.T) {
	current := &domain.Entity{ID: "e1", Version: 5}
	rec := &domain.ChangeRecord{EntityID: "e1", BaseVersion: 3, NewVersion: 4, Operation: domain.OperationUpdate}

	class, err := Classify(rec, current)

	require.NoError(t, err)
	assert.Equal(t, domain.ClassConflict, class)
}

func TestClassify_FutureVersion(t *testing.T) {
	current := &domain.Entity{ID: "e1", Version: 2}
	rec := &domain.ChangeRecord{EntityID: "e1", BaseVersion: 7, NewVersion: 8, Operation: domain.OperationUpdate}

	_, err := Classify(rec, current)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFutureVersion))
}
