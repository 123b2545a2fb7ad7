package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtual-shiksha/shiksha/internal/models"
)

type student struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Grade  int      `json:"grade,omitempty"`
	Scores []int    `json:"scores,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

func TestPutGet_RoundTripsEveryPartition(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, spec := range Schema {
		if spec.Name == models.PartitionSyncQueue {
			continue
		}
		t.Run(spec.Name, func(t *testing.T) {
			in := student{ID: "r-1", Name: "Asha", Grade: 7, Scores: []int{9, 8}}
			id, err := PutValue(ctx, db, spec.Name, models.StringID(in.ID), in)
			require.NoError(t, err)
			assert.Equal(t, models.StringID("r-1"), id)

			out, found, err := GetValue[student](ctx, db, spec.Name, id)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, in, out)
		})
	}
}

func TestPutRecord_ReplacesWithoutMerge(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := PutValue(ctx, db, models.PartitionStudentData, models.StringID("s1"), student{ID: "s1", Name: "Asha", Grade: 7, Tags: []string{"maths"}})
	require.NoError(t, err)
	_, err = PutValue(ctx, db, models.PartitionStudentData, models.StringID("s1"), student{ID: "s1", Name: "Asha K"})
	require.NoError(t, err)

	rec, found, err := db.GetRecord(ctx, models.PartitionStudentData, models.StringID("s1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"id":"s1","name":"Asha K"}`, string(rec.Data), "second put fully replaces")

	all, err := db.GetAllRecords(ctx, models.PartitionStudentData)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPutRecord_Validation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := db.PutRecord(ctx, models.PartitionClasses, models.Record{Data: models.JSON(`{}`)})
	assert.True(t, errors.Is(err, ErrWrite), "missing id: %v", err)

	_, err = db.PutRecord(ctx, models.PartitionClasses, models.Record{ID: models.StringID("c1"), Data: models.JSON(`{not json`)})
	assert.True(t, errors.Is(err, ErrWrite), "invalid json: %v", err)

	_, err = db.PutRecord(ctx, "nope", models.Record{ID: models.StringID("x"), Data: models.JSON(`{}`)})
	assert.True(t, errors.Is(err, ErrUnknownPartition))

	_, err = db.PutRecord(ctx, models.PartitionSyncQueue, models.Record{ID: models.StringID("1"), Data: models.JSON(`{}`)})
	assert.True(t, errors.Is(err, ErrReservedPartition), "queue entries are owned by the sync queue")
}

func TestGetRecord_NotFoundIsNotAnError(t *testing.T) {
	db := testDB(t)

	rec, found, err := db.GetRecord(context.Background(), models.PartitionQuizzes, models.StringID("missing"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, rec.ID.IsZero())
}

func TestPutJSON_UsesKeyPath(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	id, err := db.PutJSON(ctx, models.PartitionAssignments, []byte(`{"id": 42, "title": "Fractions"}`))
	require.NoError(t, err)
	assert.Equal(t, models.IntID(42), id)
	n, ok := id.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	id, err = db.PutJSON(ctx, models.PartitionAssignments, []byte(`{"id": "hw-1"}`))
	require.NoError(t, err)
	assert.Equal(t, models.StringID("hw-1"), id)

	_, err = db.PutJSON(ctx, models.PartitionAssignments, []byte(`{"title": "no id"}`))
	assert.True(t, errors.Is(err, ErrWrite))

	_, err = db.PutJSON(ctx, models.PartitionAssignments, []byte(`{"id": 1.5}`))
	assert.True(t, errors.Is(err, ErrWrite))

	assert.Equal(t, models.IntID(42), ParseRecordID("42"))
	assert.Equal(t, models.StringID("hw-1"), ParseRecordID("hw-1"))
	assert.Equal(t, models.StringID("42"), ParseRecordID(`"42"`))
}

func TestIntegerAndStringIDsAreDistinct(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	intID, err := db.PutJSON(ctx, models.PartitionQuizzes, []byte(`{"id": 5, "title": "numbered"}`))
	require.NoError(t, err)
	strID, err := db.PutJSON(ctx, models.PartitionQuizzes, []byte(`{"id": "5", "title": "named"}`))
	require.NoError(t, err)
	assert.NotEqual(t, intID, strID)

	all, err := db.GetAllRecords(ctx, models.PartitionQuizzes)
	require.NoError(t, err)
	require.Len(t, all, 2, "5 and \"5\" are separate keys")
	assert.Equal(t, models.IntID(5), all[0].ID)
	assert.Equal(t, models.StringID("5"), all[1].ID)

	rec, found, err := db.GetRecord(ctx, models.PartitionQuizzes, models.IntID(5))
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"id": 5, "title": "numbered"}`, string(rec.Data))

	rec, found, err = db.GetRecord(ctx, models.PartitionQuizzes, models.StringID("5"))
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"id": "5", "title": "named"}`, string(rec.Data))

	require.NoError(t, db.DeleteRecord(ctx, models.PartitionQuizzes, models.StringID("5")))
	_, found, err = db.GetRecord(ctx, models.PartitionQuizzes, models.IntID(5))
	require.NoError(t, err)
	assert.True(t, found, "deleting the string key leaves the integer key")
}

func TestRecordIDJSON(t *testing.T) {
	out, err := json.Marshal(models.Record{ID: models.IntID(7)})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"id":7`)

	out, err = json.Marshal(models.Record{ID: models.StringID("7")})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"id":"7"`)

	var id models.RecordID
	require.NoError(t, json.Unmarshal([]byte(`12`), &id))
	assert.Equal(t, models.IntID(12), id)
	require.NoError(t, json.Unmarshal([]byte(`"12"`), &id))
	assert.Equal(t, models.StringID("12"), id)
	assert.Equal(t, `"12"`, id.String())
	assert.Error(t, json.Unmarshal([]byte(`true`), &id))
}

func TestDeleteAndClear(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := PutValue(ctx, db, models.PartitionClasses, models.StringID(id), map[string]string{"id": id})
		require.NoError(t, err)
	}
	_, err := PutValue(ctx, db, models.PartitionQuizzes, models.StringID("a"), map[string]string{"id": "a"})
	require.NoError(t, err)

	require.NoError(t, db.DeleteRecord(ctx, models.PartitionClasses, models.StringID("a")))
	require.NoError(t, db.DeleteRecord(ctx, models.PartitionClasses, models.StringID("a")), "deleting a missing record is a no-op")

	all, err := db.GetAllRecords(ctx, models.PartitionClasses)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.StringID("b"), all[0].ID)

	require.NoError(t, db.ClearPartition(ctx, models.PartitionClasses))
	all, err = db.GetAllRecords(ctx, models.PartitionClasses)
	require.NoError(t, err)
	assert.Empty(t, all)

	// Partitions are independent.
	_, found, err := db.GetRecord(ctx, models.PartitionQuizzes, models.StringID("a"))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestGetAllByIndex(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	downloads := []models.Download{
		{ID: "d1", Filename: "lesson1.mp4"},
		{ID: "d2", Filename: "notes.pdf"},
		{ID: "d3", Filename: "lesson1.mp4"},
	}
	for _, d := range downloads {
		_, err := PutValue(ctx, db, models.PartitionDownloads, models.StringID(d.ID), d)
		require.NoError(t, err)
	}

	recs, err := db.GetAllByIndex(ctx, models.PartitionDownloads, "filename", "lesson1.mp4")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, models.StringID("d1"), recs[0].ID)
	assert.Equal(t, models.StringID("d3"), recs[1].ID)

	_, err = db.GetAllByIndex(ctx, models.PartitionDownloads, "size", 1)
	assert.True(t, errors.Is(err, ErrUnknownIndex))
}
