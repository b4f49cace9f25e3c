package variant

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonErrors "github.com/Alturino/storefront/internal/common/errors"
)

const hoodieSchema = `[
	{"type":"select","label":"Size","required":true,"options":["S","M","L"]},
	{"type":"checkbox","label":"Extras","required":false,"options":["gift wrap","logo","sticker"]},
	{"type":"text","label":"Engraving","required":false,"options":[]}
]`

func TestSelectionKeyIsOrderIndependent(t *testing.T) {
	var first, second Selection
	require.NoError(t, json.Unmarshal(
		[]byte(`{"Size":"M","Extras":["sticker","gift wrap"],"Engraving":"hi"}`),
		&first,
	))
	require.NoError(t, json.Unmarshal(
		[]byte(`{"Engraving":"hi","Extras":["gift wrap","sticker"],"Size":"M"}`),
		&second,
	))

	assert.Equal(t, first.Key(), second.Key())
	assert.Equal(t, `[["Engraving",["hi"]],["Extras",["gift wrap","sticker"]],["Size",["M"]]]`, first.Key())
}

func TestSelectionKeyIgnoresEmptyValues(t *testing.T) {
	withEmpty := Selection{"Size": {"M"}, "Engraving": {""}, "Extras": {}}
	without := Selection{"Size": {"M"}}

	assert.Equal(t, without.Key(), withEmpty.Key())
	assert.Equal(t, "[]", Selection{}.Key())
	assert.Equal(t, "[]", Selection(nil).Key())
}

func TestSelectionKeyDistinguishesValues(t *testing.T) {
	assert.NotEqual(t,
		Selection{"Size": {"M"}}.Key(),
		Selection{"Size": {"L"}}.Key(),
	)
	assert.NotEqual(t,
		Selection{"Extras": {"logo"}}.Key(),
		Selection{"Extras": {"logo", "sticker"}}.Key(),
	)
}

func TestValueJSON(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`"M"`), &v))
	assert.Equal(t, Value{"M"}, v)

	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &v))
	assert.Equal(t, Value{"a", "b"}, v)

	assert.ErrorIs(t, json.Unmarshal([]byte(`12`), &v), commonErrors.ErrValidation)

	encoded, err := json.Marshal(Selection{"Size": {"M"}, "Extras": {"a", "b"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Size":"M","Extras":["a","b"]}`, string(encoded))
}

func TestValidate(t *testing.T) {
	schema, err := ParseSchema([]byte(hoodieSchema))
	require.NoError(t, err)

	tests := []struct {
		name        string
		input       Selection
		expected    Selection
		expectedErr error
	}{
		{
			name:     "given required select only should be valid",
			input:    Selection{"Size": {"M"}},
			expected: Selection{"Size": {"M"}},
		},
		{
			name:     "given every field should normalize checkbox values",
			input:    Selection{"Size": {"L"}, "Extras": {"sticker", "logo", "logo"}, "Engraving": {"A.B."}},
			expected: Selection{"Size": {"L"}, "Extras": {"logo", "sticker"}, "Engraving": {"A.B."}},
		},
		{
			name:        "given missing required field should be invalid",
			input:       Selection{"Extras": {"logo"}},
			expectedErr: commonErrors.ErrValidation,
		},
		{
			name:        "given select value outside options should be invalid",
			input:       Selection{"Size": {"XXL"}},
			expectedErr: commonErrors.ErrValidation,
		},
		{
			name:        "given two values for select should be invalid",
			input:       Selection{"Size": {"S", "M"}},
			expectedErr: commonErrors.ErrValidation,
		},
		{
			name:        "given checkbox value outside options should be invalid",
			input:       Selection{"Size": {"S"}, "Extras": {"confetti"}},
			expectedErr: commonErrors.ErrValidation,
		},
		{
			name:        "given unknown label should be invalid",
			input:       Selection{"Size": {"S"}, "Colour": {"red"}},
			expectedErr: commonErrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := Validate(schema, tt.input)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestParseSchemaRejectsUnknownKind(t *testing.T) {
	_, err := ParseSchema([]byte(`[{"type":"radio","label":"Size"}]`))
	assert.Error(t, err)

	schema, err := ParseSchema(nil)
	require.NoError(t, err)
	assert.Empty(t, schema)
}
