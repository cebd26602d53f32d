package waste

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRowUnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want RawRow
	}{
		{
			name: "strings",
			in:   `["23/06/2022","gewicht","22/06/2022 GFT0040 100861301 1.0 kg","<div class='cRight'>€ -0,10</div>"]`,
			want: RawRow{"23/06/2022", "gewicht", "22/06/2022 GFT0040 100861301 1.0 kg", "<div class='cRight'>€ -0,10</div>"},
		},
		{
			name: "number and null cells",
			in:   `["23/06/2022", 7, null, {"a": 1}]`,
			want: RawRow{"23/06/2022", "7", "", `{"a": 1}`},
		},
		{
			name: "empty",
			in:   `[]`,
			want: RawRow{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got RawRow
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRawRowUnmarshalJSONRejectsNonArray(t *testing.T) {
	t.Parallel()

	var row RawRow
	require.Error(t, json.Unmarshal([]byte(`"not a row"`), &row))
}

func TestNonStringCellsFailAsParseErrors(t *testing.T) {
	t.Parallel()

	var rows []RawRow
	require.NoError(t, json.Unmarshal([]byte(`[
		["23/06/2022", "gewicht", 12.5, ""],
		["23/06/2022", "gewicht", null, ""],
		null
	]`), &rows))
	require.Len(t, rows, 3)

	for _, row := range rows {
		_, _, err := Parse(row)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, row, parseErr.Row)
	}
	_, _, err := Parse(rows[2])
	assert.True(t, errors.Is(err, ErrShortRow))
}
