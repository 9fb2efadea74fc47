package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCursor(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	encoded := EncodeCursor("Advanced Retrieval", ts)
	require.NotEmpty(t, encoded)

	cursor, err := DecodeCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, "Advanced Retrieval", cursor.LastKey)
	assert.True(t, ts.Equal(cursor.Timestamp))
}

func TestEncodeCursorEmptyKey(t *testing.T) {
	assert.Empty(t, EncodeCursor("", time.Now()))
}

func TestDecodeCursorEmpty(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeCursorInvalid(t *testing.T) {
	_, err := DecodeCursor("not base64!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	// valid base64 but missing separator
	_, err = DecodeCursor("aGVsbG8=")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

type listItem struct {
	key string
	ts  time.Time
}

func TestCreateNextCursor(t *testing.T) {
	ts := time.Now().UTC()
	items := []listItem{
		{key: "A", ts: ts},
		{key: "B", ts: ts.Add(time.Minute)},
	}

	getKey := func(i listItem) string { return i.key }
	getTS := func(i listItem) time.Time { return i.ts }

	// full page: cursor points at last item
	cursor := CreateNextCursor(items, 2, getKey, getTS)
	require.NotEmpty(t, cursor)
	decoded, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, "B", decoded.LastKey)

	// partial page: no more items
	assert.Empty(t, CreateNextCursor(items, 5, getKey, getTS))
	assert.Empty(t, CreateNextCursor(nil, 5, getKey, getTS))
}
