package domain

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWins_TimestampDecides(t *testing.T) {
	newer := &ChangeRecord{ActorID: "alice", Timestamp: 2000}
	older := &ChangeRecord{ActorID: "zoe", Timestamp: 1000}

	assert.True(t, newer.Wins(older))
	assert.False(t, older.Wins(newer))
}

func TestWins_TieBreaksOnActorID(t *testing.T) {
	a := &ChangeRecord{ActorID: "alice", Timestamp: 1000}
	b := &ChangeRecord{ActorID: "bob", Timestamp: 1000}

	assert.True(t, b.Wins(a))
	assert.False(t, a.Wins(b))
}

func TestWins_Deterministic(t *testing.T) {
	// 任意两条记录的裁决必须恰好一方获胜，与比较顺序无关
	a := &ChangeRecord{ActorID: "device-1", Timestamp: 500}
	b := &ChangeRecord{ActorID: "device-2", Timestamp: 500}

	assert.NotEqual(t, a.Wins(b), b.Wins(a))
}

func TestIsDelete(t *testing.T) {
	assert.True(t, (&ChangeRecord{Operation: OperationDelete}).IsDelete())
	assert.False(t, (&ChangeRecord{Operation: OperationUpdate}).IsDelete())
}

func TestOutcome_IsApplied(t *testing.T) {
	assert.True(t, (&Outcome{Kind: OutcomeAccepted}).IsApplied())
	assert.True(t, (&Outcome{Kind: OutcomeOverwritten}).IsApplied())
	assert.False(t, (&Outcome{Kind: OutcomeRejected}).IsApplied())
	assert.False(t, (&Outcome{Kind: OutcomeDuplicate}).IsApplied())
}

func TestChangeRecord_JSONRoundTrip(t *testing.T) {
	// 序列化再反序列化不能改变裁决语义
	rec := &ChangeRecord{
		ID:           42,
		PantryID:     1,
		EntityID:     "milk",
		BaseVersion:  3,
		NewVersion:   4,
		ActorID:      "phone-1",
		Timestamp:    1700000000123,
		Operation:    OperationUpdate,
		PayloadDelta: `{"quantity":2}`,
		Status:       RecordStatusAccepted,
	}

	data, err := sonic.ConfigStd.Marshal(rec)
	require.NoError(t, err)

	got := new(ChangeRecord)
	require.NoError(t, sonic.ConfigStd.Unmarshal(data, got))

	assert.Equal(t, rec.EntityID, got.EntityID)
	assert.Equal(t, rec.BaseVersion, got.BaseVersion)
	assert.Equal(t, rec.NewVersion, got.NewVersion)
	assert.Equal(t, rec.Operation, got.Operation)
	assert.Equal(t, rec.Status, got.Status)

	other := &ChangeRecord{ActorID: "phone-0", Timestamp: 1700000000123}
	assert.Equal(t, rec.Wins(other), got.Wins(other))
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "fast-forward", ClassFastForward.String())
	assert.Equal(t, "conflict", ClassConflict.String())
	assert.Equal(t, "unknown-target", ClassUnknownTarget.String())
}
