package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestDecodeJSONArray(t *testing.T) {
	input := `[{"id":1,"name":"alpha"},{"id":2,"name":"beta"}]`

	ch, errCh := DecodeJSONArray[testRecord](context.Background(), strings.NewReader(input))

	var records []testRecord
	for rec := range ch {
		records = append(records, rec)
	}
	for err := range errCh {
		require.NoError(t, err)
	}

	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].Name)
	assert.Equal(t, 2, records[1].ID)
}

func TestDecodeJSONArray_InvalidElement(t *testing.T) {
	ch, errCh := DecodeJSONArray[testRecord](context.Background(), strings.NewReader(`[{"id":"x"}]`))
	for range ch { //nolint:revive // drain
	}

	var gotErr error
	for err := range errCh {
		gotErr = err
	}
	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "json: decode element")
}

func TestDecodeLeadsJSON(t *testing.T) {
	input := `[
		{"id":"a1","businessName":"Good Samaritan","address":"407 14th Ave SE","facilityType":"hospital",
		 "daysPastDue":400,"latitude":47.1853,"longitude":-122.2928,"phone":"253.863.4100",
		 "email":" Facilities@GoodSam.Example ","source":"compliance_monitor"},
		{"businessName":"No Coordinates","address":"1 Elm","facilityType":"retail","source":"manual_input"}
	]`

	leads, err := DecodeLeadsJSON(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "a1", leads[0].ID)
	assert.Equal(t, "+12538634100", leads[0].Phone)
	assert.Equal(t, "facilities@goodsam.example", leads[0].Email)
	require.NotNil(t, leads[0].DaysPastDue)
	assert.Equal(t, 400, *leads[0].DaysPastDue)
	assert.True(t, leads[0].HasCoordinates())

	assert.Equal(t, "row-2", leads[1].ID)
	assert.False(t, leads[1].HasCoordinates())
}

func TestDecodeLeadsJSON_MistypedElement(t *testing.T) {
	input := `[
		{"id":"good","businessName":"A","latitude":47.1853,"longitude":-122.2928},
		{"id":"bad","businessName":" B ","latitude":"47.1853","longitude":-122.2928},
		{"businessName":"C","deviceCount":2.5},
		"not a lead"
	]`

	leads, err := DecodeLeadsJSON(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, leads, 4)

	assert.Empty(t, leads[0].DecodeError)
	assert.True(t, leads[0].HasCoordinates())

	assert.Equal(t, "bad", leads[1].ID)
	assert.Equal(t, "B", leads[1].BusinessName)
	assert.Contains(t, leads[1].DecodeError, "latitude")

	assert.Equal(t, "row-3", leads[2].ID)
	assert.Contains(t, leads[2].DecodeError, "deviceCount")

	assert.Equal(t, "row-4", leads[3].ID)
	assert.NotEmpty(t, leads[3].DecodeError)
}

func TestDecodeLeadsJSON_BrokenDocument(t *testing.T) {
	_, err := DecodeLeadsJSON(context.Background(), strings.NewReader(`[{"id":"a"}, {"id":`))
	require.Error(t, err)
	assert.False(t, IsNotArray(err))
}

func TestDecodeLeadsJSON_NotArray(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"object", `{"leads":[]}`},
		{"string", `"hello"`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLeadsJSON(context.Background(), strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, IsNotArray(err))
		})
	}
}

func TestDecodeLeadsJSON_EmptyArray(t *testing.T) {
	leads, err := DecodeLeadsJSON(context.Background(), strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.Empty(t, leads)
}
