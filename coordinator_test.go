package veil_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/veil"
)

type Doc struct {
	ID         string
	Title      string
	SecretData string `veil:"encrypt"`
}

type Plain struct {
	ID    string
	Title string
}

type MultiSecret struct {
	ID     string
	First  string  `veil:"encrypt"`
	Second string  `veil:"encrypt"`
	Note   *string `veil:"encrypt"`
}

func TestNew(t *testing.T) {
	t.Run("valid cipher", func(t *testing.T) {
		c, err := veil.New(veil.NewStaticCipher())
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("nil cipher", func(t *testing.T) {
		c, err := veil.New(nil)
		assert.Error(t, err)
		assert.Nil(t, c)
		assert.ErrorIs(t, err, veil.ErrCipherUnavailable)
	})

	t.Run("nil option values are rejected", func(t *testing.T) {
		_, err := veil.New(veil.NewStaticCipher(), veil.WithObservabilityHook(nil))
		assert.ErrorIs(t, err, veil.ErrInvalidConfiguration)
	})
}

func TestPreFlushPostFlushRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	doc := &Doc{ID: "d1", Title: "report", SecretData: "hello"}

	require.NoError(t, c.PreFlush(ctx, uow, []any{doc}, nil))

	// The in-memory field holds ciphertext between the two notifications,
	// and the engine was told to pick it up.
	assert.Equal(t, "ENC(hello)", doc.SecretData)
	assert.Equal(t, []any{doc}, uow.Recomputed)
	assert.Equal(t, "report", doc.Title, "unmarked fields are untouched")

	require.NoError(t, c.PostFlush(ctx, uow))

	assert.Equal(t, "hello", doc.SecretData, "plaintext restored after flush")
	baseline, ok := uow.BaselineFor(doc, "SecretData")
	require.True(t, ok, "baseline must be overridden, not merely marked clean")
	assert.Equal(t, "hello", baseline)
}

func TestPreFlushProcessesInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	inserted := &Doc{ID: "a", SecretData: "one"}
	updated := &Doc{ID: "b", SecretData: "two"}

	require.NoError(t, c.PreFlush(ctx, uow, []any{inserted}, []any{updated}))
	assert.Equal(t, []any{inserted, updated}, uow.Recomputed)
	assert.Equal(t, "ENC(one)", inserted.SecretData)
	assert.Equal(t, "ENC(two)", updated.SecretData)
}

func TestPreFlushNilValueEncryptsAsEmptyString(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	obj := &MultiSecret{ID: "m1", First: "a", Second: "b", Note: nil}

	require.NoError(t, c.PreFlush(ctx, uow, []any{obj}, nil))
	require.NotNil(t, obj.Note)
	assert.Equal(t, "ENC()", *obj.Note)

	require.NoError(t, c.PostFlush(ctx, uow))
	require.NotNil(t, obj.Note)
	assert.Equal(t, "", *obj.Note, "nil reads as empty string and restores as such")
}

func TestPostFlushWithoutPreFlushIsNoOp(t *testing.T) {
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	require.NoError(t, c.PostFlush(context.Background(), uow))
	assert.Empty(t, uow.Baselines)
}

func TestFlushCycleIsolation(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	first := &Doc{ID: "a", SecretData: "batch-a"}
	require.NoError(t, c.PreFlush(ctx, uow, []any{first}, nil))
	require.NoError(t, c.PostFlush(ctx, uow))

	// Batch B must start from an empty queue: a second PostFlush restores
	// nothing from batch A.
	second := &Doc{ID: "b", SecretData: "batch-b"}
	uowB := &veil.RecordingUnitOfWork{}
	require.NoError(t, c.PreFlush(ctx, uowB, []any{second}, nil))
	require.NoError(t, c.PostFlush(ctx, uowB))

	for _, call := range uowB.Baselines {
		assert.NotEqual(t, first, call.Object, "batch A entries must not leak into batch B")
	}
	assert.Equal(t, "batch-b", second.SecretData)
}

func TestPreFlushQueueResetDiscardsStaleEntries(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	// A PreFlush whose PostFlush never ran (host aborted the write).
	stale := &Doc{ID: "stale", SecretData: "old"}
	require.NoError(t, c.PreFlush(ctx, &veil.RecordingUnitOfWork{}, []any{stale}, nil))

	// The next cycle starts clean; its PostFlush must not touch the stale
	// object.
	fresh := &Doc{ID: "fresh", SecretData: "new"}
	uow := &veil.RecordingUnitOfWork{}
	require.NoError(t, c.PreFlush(ctx, uow, []any{fresh}, nil))
	require.NoError(t, c.PostFlush(ctx, uow))

	assert.Equal(t, "ENC(old)", stale.SecretData, "stale entry was discarded, not restored")
	assert.Equal(t, "new", fresh.SecretData)
}

func TestPostLoadDecryptsOnce(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	doc := &Doc{ID: "d1", SecretData: "ENC(hello)"}

	require.NoError(t, c.PostLoad(ctx, uow, doc))
	assert.Equal(t, "hello", doc.SecretData)
	baseline, ok := uow.BaselineFor(doc, "SecretData")
	require.True(t, ok)
	assert.Equal(t, "hello", baseline)

	// Re-entrant load notification for the same instance: no double
	// decryption of plaintext that merely looks decodable.
	doc.SecretData = "ENC(looks-encrypted-but-is-user-data)"
	require.NoError(t, c.PostLoad(ctx, uow, doc))
	assert.Equal(t, "ENC(looks-encrypted-but-is-user-data)", doc.SecretData)
}

func TestPostLoadPassthroughForUnmarkedType(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	obj := &Plain{ID: "p1", Title: "nothing secret"}

	require.NoError(t, c.PostLoad(ctx, uow, obj))
	assert.Equal(t, "nothing secret", obj.Title)
	assert.Empty(t, uow.Baselines)

	// Not marked decoded: a later notification still walks the (empty)
	// descriptor list rather than short-circuiting on the tracker.
	require.NoError(t, c.PostLoad(ctx, uow, obj))
}

func TestPreFlushSkipsUnmarkedType(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	obj := &Plain{ID: "p1", Title: "as-is"}

	require.NoError(t, c.PreFlush(ctx, uow, []any{obj}, nil))
	assert.Empty(t, uow.Recomputed, "no change-set recomputation for untouched objects")
	require.NoError(t, c.PostFlush(ctx, uow))
	assert.Equal(t, "as-is", obj.Title)
}

func TestPostFlushMarksObjectDecoded(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	doc := &Doc{ID: "d1", SecretData: "hello"}

	require.NoError(t, c.PreFlush(ctx, uow, []any{doc}, nil))
	require.NoError(t, c.PostFlush(ctx, uow))

	// The instance already holds plaintext; a load notification must not
	// try to decrypt it.
	require.NoError(t, c.PostLoad(ctx, uow, doc))
	assert.Equal(t, "hello", doc.SecretData)
}

func TestPreFlushMidBatchFailure(t *testing.T) {
	ctx := context.Background()
	flaky := &veil.FlakyCipher{Inner: veil.NewStaticCipher(), FailAfter: 1}
	c, err := veil.New(flaky)
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	first := &Doc{ID: "a", SecretData: "one"}
	second := &Doc{ID: "b", SecretData: "two"}

	err = c.PreFlush(ctx, uow, []any{first, second}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, veil.ErrEncryptionFailed)

	// Not transactional: the first object already holds ciphertext with a
	// recomputed change set, the second is untouched.
	assert.Equal(t, "ENC(one)", first.SecretData)
	assert.Equal(t, "two", second.SecretData)
	assert.Equal(t, []any{first}, uow.Recomputed)

	// The queued entries cover the processed objects, so the host can still
	// restore them via PostFlush if it chooses to complete the cycle.
	require.NoError(t, c.PostFlush(ctx, uow))
	assert.Equal(t, "one", first.SecretData)
	assert.Equal(t, "two", second.SecretData)
}

func TestPostLoadDecryptFailure(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	doc := &Doc{ID: "d1", SecretData: "not-a-ciphertext"}

	err = c.PostLoad(ctx, uow, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, veil.ErrDecryptionFailed)

	// The failed instance is not marked decoded; a retry with fixed data
	// still decrypts.
	doc.SecretData = "ENC(recovered)"
	require.NoError(t, c.PostLoad(ctx, uow, doc))
	assert.Equal(t, "recovered", doc.SecretData)
}

func TestPreFlushRejectsNonPointerObjects(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	err = c.PreFlush(ctx, &veil.RecordingUnitOfWork{}, []any{Doc{ID: "by-value"}}, nil)
	assert.ErrorIs(t, err, veil.ErrInvalidObject)
}

func TestPreFlushMetadataErrorAbortsBatch(t *testing.T) {
	type BadTag struct {
		ID     string
		Secret string `veil:"scramble"`
	}

	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	err = c.PreFlush(ctx, &veil.RecordingUnitOfWork{}, []any{&BadTag{Secret: "x"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, veil.ErrMetadata)
}

func TestMultipleFieldsRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := veil.New(veil.NewStaticCipher())
	require.NoError(t, err)

	note := "remember"
	uow := &veil.RecordingUnitOfWork{}
	obj := &MultiSecret{ID: "m1", First: "alpha", Second: "beta", Note: &note}

	require.NoError(t, c.PreFlush(ctx, uow, []any{obj}, nil))
	assert.Equal(t, "ENC(alpha)", obj.First)
	assert.Equal(t, "ENC(beta)", obj.Second)
	require.NotNil(t, obj.Note)
	assert.Equal(t, "ENC(remember)", *obj.Note)

	require.NoError(t, c.PostFlush(ctx, uow))
	assert.Equal(t, "alpha", obj.First)
	assert.Equal(t, "beta", obj.Second)
	require.NotNil(t, obj.Note)
	assert.Equal(t, "remember", *obj.Note)
}

func TestCoordinatorReportsToObservabilityHook(t *testing.T) {
	ctx := context.Background()
	metrics := veil.NewInMemoryMetricsCollector()
	c, err := veil.New(veil.NewStaticCipher(),
		veil.WithObservabilityHook(veil.NewStandardObservabilityHook(metrics)))
	require.NoError(t, err)

	uow := &veil.RecordingUnitOfWork{}
	doc := &Doc{ID: "d1", SecretData: "hello"}
	require.NoError(t, c.PreFlush(ctx, uow, []any{doc}, nil))
	require.NoError(t, c.PostFlush(ctx, uow))

	started := metrics.GetCounterValue("veil.process.started", map[string]string{
		"operation": "PreFlush", "operation_type": "pre_flush", "batch_size": "1",
	})
	assert.Equal(t, int64(1), started)
	assert.NotEmpty(t, metrics.GetTimings())
}
