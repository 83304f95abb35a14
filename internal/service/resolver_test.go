package service

import (
	"fmt"
	"testing"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// authority 内存权威端，串起 Classify 与策略裁决
// 测试交换律和场景时复用，行为与 syncService.adjudicate 一致
type authority struct {
	policy  ConflictPolicy
	entity  *domain.Entity
	applied []*domain.ChangeRecord
}

func newAuthority(policy string) *authority {
	p, err := NewConflictPolicy(policy)
	if err != nil {
		panic(err)
	}
	return &authority{policy: p}
}

func (a *authority) push(rec *domain.ChangeRecord) domain.OutcomeKind {
	r := *rec
	class, err := Classify(&r, a.entity)
	if err != nil {
		return domain.OutcomeFutureVersion
	}

	switch class {
	case domain.ClassUnknownTarget:
		return domain.OutcomeUnknownEntity
	case domain.ClassFastForward:
		a.entity = applyToEntity(&r, a.entity)
		a.applied = append(a.applied, &r)
		return domain.OutcomeAccepted
	default:
		touched := make(map[string]bool)
		for _, p := range a.applied {
			if p.NewVersion <= r.BaseVersion {
				continue
			}
			var fields map[string]interface{}
			if json.Unmarshal([]byte(p.PayloadDelta), &fields) == nil {
				for k := range fields {
					touched[k] = true
				}
			}
		}
		out := a.policy.Resolve(&r, a.entity, touched)
		if out.IsApplied() {
			a.entity = out.Entity
			a.applied = append(a.applied, out.Record)
		}
		return out.Kind
	}
}

func createRecord(entityID, actor string, ts int64, payload string) *domain.ChangeRecord {
	return &domain.ChangeRecord{
		EntityID:     entityID,
		BaseVersion:  0,
		NewVersion:   1,
		ActorID:      actor,
		Timestamp:    ts,
		Operation:    domain.OperationCreate,
		PayloadDelta: payload,
		Status:       domain.RecordStatusAccepted,
	}
}

func updateRecord(entityID, actor string, base, ts int64, delta string) *domain.ChangeRecord {
	return &domain.ChangeRecord{
		EntityID:     entityID,
		BaseVersion:  base,
		NewVersion:   base + 1,
		ActorID:      actor,
		Timestamp:    ts,
		Operation:    domain.OperationUpdate,
		PayloadDelta: delta,
		Status:       domain.RecordStatusAccepted,
	}
}

func deleteRecord(entityID, actor string, base, ts int64) *domain.ChangeRecord {
	return &domain.ChangeRecord{
		EntityID:     entityID,
		BaseVersion:  base,
		NewVersion:   base + 1,
		ActorID:      actor,
		Timestamp:    ts,
		Operation:    domain.OperationDelete,
		Status:       domain.RecordStatusAccepted,
	}
}

// ------------------------------------> reject-stale

func TestRejectStale_ConflictingUpdateRejected(t *testing.T) {
	a := newAuthority(PolicyRejectStale)
	require.Equal(t, domain.OutcomeAccepted, a.push(createRecord("milk", "client-a", 100, `{"qty":1}`)))
	require.Equal(t, domain.OutcomeAccepted, a.push(updateRecord("milk", "client-b", 1, 200, `{"qty":2}`)))

	kind := a.push(updateRecord("milk", "client-c", 1, 300, `{"qty":5}`))

	assert.Equal(t, domain.OutcomeRejected, kind)
	assert.Equal(t, int64(2), a.entity.Version)
	assert.Equal(t, `{"qty":2}`, a.entity.Payload)
}

// 一方改量一方删除：reject-stale 下后到的删除同样被拒
func TestRejectStale_ConcurrentDeleteRejected(t *testing.T) {
	a := newAuthority(PolicyRejectStale)
	require.Equal(t, domain.OutcomeAccepted, a.push(createRecord("milk", "client-a", 100, `{"qty":1}`)))
	require.Equal(t, domain.OutcomeAccepted, a.push(updateRecord("milk", "client-b", 1, 200, `{"qty":2}`)))

	kind := a.push(deleteRecord("milk", "client-c", 1, 300))

	assert.Equal(t, domain.OutcomeRejected, kind)
	assert.False(t, a.entity.IsDeleted)
}

// ------------------------------------> last-writer-wins

func TestLastWriterWins_NewerTimestampOverwrites(t *testing.T) {
	a := newAuthority(PolicyLastWriterWins)
	require.Equal(t, domain.OutcomeAccepted, a.push(createRecord("milk", "client-a", 100, `{"qty":1}`)))
	require.Equal(t, domain.OutcomeAccepted, a.push(updateRecord("milk", "client-b", 1, 200, `{"qty":2}`)))

	kind := a.push(updateRecord("milk", "client-c", 1, 300, `{"qty":5}`))

	assert.Equal(t, domain.OutcomeOverwritten, kind)
	assert.Equal(t, int64(3), a.entity.Version)
	assert.Equal(t, `{"qty":5}`, a.entity.Payload)
}

func TestLastWriterWins_OlderTimestampRejected(t *testing.T) {
	a := newAuthority(PolicyLastWriterWins)
	require.Equal(t, domain.OutcomeAccepted, a.push(createRecord("milk", "client-a", 100, `{"qty":1}`)))
	require.Equal(t, domain.OutcomeAccepted, a.push(updateRecord("milk", "client-b", 1, 300, `{"qty":2}`)))

	kind := a.push(updateRecord("milk", "client-c", 1, 200, `{"qty":5}`))

	assert.Equal(t, domain.OutcomeRejected, kind)
	assert.Equal(t, `{"qty":2}`, a.entity.Payload)
}

func TestLastWriterWins_TimestampTieBrokenByActor(t *testing.T) {
	a := newAuthority(PolicyLastWriterWins)
	require.Equal(t, domain.OutcomeAccepted, a.push(createRecord("milk", "client-a", 100, `{"qty":1}`)))
	require.Equal(t, domain.OutcomeAccepted, a.push(updateRecord("milk", "client-b", 1, 200, `{"qty":2}`)))

	// 时间戳相同，client-c > client-b，入站胜出
	kind := a.push(updateRecord("milk", "client-c", 1, 200, `{"qty":5}`))

	assert.Equal(t, domain.OutcomeOverwritten, kind)
	assert.Equal(t, `{"qty":5}`, a.entity.Payload)
}

// 一方改量一方删除：删除压过更新，即使删除的时间戳更旧
func TestLastWriterWins_DeleteWinsOverUpdate(t *testing.T) {
	a := newAuthority(PolicyLastWriterWins)
	require.Equal(t, domain.OutcomeAccepted, a.push(createRecord("milk", "client-a", 100, `{"qty":1}`)))
	require.Equal(t, domain.OutcomeAccepted, a.push(updateRecord("milk", "client-b", 1, 300, `{"qty":2}`)))

	kind := a.push(deleteRecord("milk", "client-c", 1, 200))

	assert.Equal(t, domain.OutcomeOverwritten, kind)
	assert.True(t, a.entity.IsDeleted)
	// 墓碑保留最后载荷
	assert.Equal(t, `{"qty":2}`, a.entity.Payload)
}

func TestLastWriterWins_UpdateAgainstTombstoneRejected(t *testing.T) {
	a := newAuthority(PolicyLastWriterWins)
	require.Equal(t, domain.OutcomeAccepted, a.push(createRecord("milk", "client-a", 100, `{"qty":1}`)))
	require.Equal(t, domain.OutcomeAccepted, a.push(deleteRecord("milk", "client-b", 1, 200)))

	kind := a.push(updateRecord("milk", "client-c", 1, 999, `{"qty":5}`))

	assert.Equal(t, domain.OutcomeRejected, kind)
	assert.True(t, a.entity.IsDeleted)
}

// ------------------------------------> field-merge

func TestFieldMerge_DisjointFieldsBothKept(t *testing.T) {
	a := newAuthority(PolicyFieldMerge)
	require.Equal(t, domain.OutcomeAccepted, a.push(createRecord("milk", "client-a", 100, `{"name":"milk","qty":1}`)))
	require.Equal(t, domain.OutcomeAccepted, a.push(updateRecord("milk", "client-b", 1, 200, `{"qty":2}`)))

	kind := a.push(updateRecord("milk", "client-c", 1, 300, `{"unit":"L"}`))

	assert.Equal(t, domain.OutcomeAccepted, kind)
	assert.Equal(t, int64(3), a.entity.Version)
	assert.JSONEq(t, `{"name":"milk","qty":2,"unit":"L"}`, a.entity.Payload)
}

func TestFieldMerge_FullOverlapRejected(t *testing.T) {
	a := newAuthority(PolicyFieldMerge)
	require.Equal(t, domain.OutcomeAccepted, a.push(createRecord("milk", "client-a", 100, `{"qty":1}`)))
	require.Equal(t, domain.OutcomeAccepted, a.push(updateRecord("milk", "client-b", 1, 200, `{"qty":2}`)))

	kind := a.push(updateRecord("milk", "client-c", 1, 300, `{"qty":5}`))

	assert.Equal(t, domain.OutcomeRejected, kind)
	assert.Equal(t, `{"qty":2}`, a.entity.Payload)
}

func TestFieldMerge_PartialOverlapKeepsDisjointFields(t *testing.T) {
	a := newAuthority(PolicyFieldMerge)
	require.Equal(t, domain.OutcomeAccepted, a.push(createRecord("milk", "client-a", 100, `{"qty":1,"unit":"ml"}`)))
	require.Equal(t, domain.OutcomeAccepted, a.push(updateRecord("milk", "client-b", 1, 200, `{"qty":2}`)))

	// qty 重叠被丢弃，unit 不相交被合入
	kind := a.push(updateRecord("milk", "client-c", 1, 300, `{"qty":5,"unit":"L"}`))

	assert.Equal(t, domain.OutcomeOverwritten, kind)
	assert.JSONEq(t, `{"qty":2,"unit":"L"}`, a.entity.Payload)
}

func TestFieldMerge_NonObjectPayloadRejected(t *testing.T) {
	a := newAuthority(PolicyFieldMerge)
	require.Equal(t, domain.OutcomeAccepted, a.push(createRecord("milk", "client-a", 100, `{"qty":1}`)))
	require.Equal(t, domain.OutcomeAccepted, a.push(updateRecord("milk", "client-b", 1, 200, `{"qty":2}`)))

	kind := a.push(updateRecord("milk", "client-c", 1, 300, `[1,2,3]`))

	assert.Equal(t, domain.OutcomeRejected, kind)
}

// ------------------------------------> 性质

// 两条并发更新以任意顺序到达，最终实体载荷与墓碑状态一致
func TestResolveConvergence_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	runBothOrders := func(policy string, a, b *domain.ChangeRecord) (*domain.Entity, *domain.Entity) {
		auth1 := newAuthority(policy)
		auth1.push(createRecord("milk", "seed", 1, `{"name":"milk","qty":0}`))
		auth1.push(a)
		auth1.push(b)

		auth2 := newAuthority(policy)
		auth2.push(createRecord("milk", "seed", 1, `{"name":"milk","qty":0}`))
		auth2.push(b)
		auth2.push(a)

		return auth1.entity, auth2.entity
	}

	properties.Property("last-writer-wins converges regardless of arrival order", prop.ForAll(
		func(tsA, tsB int64, qtyA, qtyB int) bool {
			a := updateRecord("milk", "client-a", 1, tsA, fmt.Sprintf(`{"qty":%d}`, qtyA))
			b := updateRecord("milk", "client-b", 1, tsB, fmt.Sprintf(`{"qty":%d}`, qtyB))
			e1, e2 := runBothOrders(PolicyLastWriterWins, a, b)
			return e1.Payload == e2.Payload && e1.IsDeleted == e2.IsDeleted
		},
		gen.Int64Range(1, 1000),
		gen.Int64Range(1, 1000),
		gen.IntRange(0, 99),
		gen.IntRange(0, 99),
	))

	properties.Property("last-writer-wins delete converges against update", prop.ForAll(
		func(tsA, tsB int64, qty int) bool {
			a := updateRecord("milk", "client-a", 1, tsA, fmt.Sprintf(`{"qty":%d}`, qty))
			b := deleteRecord("milk", "client-b", 1, tsB)
			e1, e2 := runBothOrders(PolicyLastWriterWins, a, b)
			return e1.IsDeleted && e2.IsDeleted
		},
		gen.Int64Range(1, 1000),
		gen.Int64Range(1, 1000),
		gen.IntRange(0, 99),
	))

	properties.Property("field-merge on disjoint fields converges byte-identically", prop.ForAll(
		func(tsA, tsB int64, qty int, unit string) bool {
			a := updateRecord("milk", "client-a", 1, tsA, fmt.Sprintf(`{"qty":%d}`, qty))
			b := updateRecord("milk", "client-b", 1, tsB, fmt.Sprintf(`{"unit":%q}`, unit))
			e1, e2 := runBothOrders(PolicyFieldMerge, a, b)
			return e1.Payload == e2.Payload
		},
		gen.Int64Range(1, 1000),
		gen.Int64Range(1, 1000),
		gen.IntRange(0, 99),
		gen.RegexMatch(`[a-z]{1,8}`),
	))

	properties.Property("accepted versions increase strictly by one", prop.ForAll(
		func(tsA, tsB int64, qtyA, qtyB int) bool {
			auth := newAuthority(PolicyLastWriterWins)
			auth.push(createRecord("milk", "seed", 1, `{"qty":0}`))
			auth.push(updateRecord("milk", "client-a", 1, tsA, fmt.Sprintf(`{"qty":%d}`, qtyA)))
			auth.push(updateRecord("milk", "client-b", 1, tsB, fmt.Sprintf(`{"qty":%d}`, qtyB)))
			for i, r := range auth.applied {
				if r.NewVersion != int64(i)+1 || r.NewVersion != r.BaseVersion+1 {
					return false
				}
			}
			return auth.entity.Version == int64(len(auth.applied))
		},
		gen.Int64Range(1, 1000),
		gen.Int64Range(1, 1000),
		gen.IntRange(0, 99),
		gen.IntRange(0, 99),
	))

	properties.TestingRun(t)
}

func TestNewConflictPolicy_UnknownName(t *testing.T) {
	_, err := NewConflictPolicy("merge-happy")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidPolicy)
}

func TestNewConflictPolicy_EmptyDefaultsToRejectStale(t *testing.T) {
	p, err := NewConflictPolicy("")

	require.NoError(t, err)
	assert.Equal(t, PolicyRejectStale, p.Name())
}
