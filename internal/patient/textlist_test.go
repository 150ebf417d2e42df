package patient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestTextListKeepsJSONShape(t *testing.T) {
	var p Patient
	require.NoError(t, json.Unmarshal([]byte(`{
		"allergies": ["penicillin", "latex"],
		"medications": "losartan 50mg",
		"chronicDiseases": null
	}`), &p))

	assert.True(t, p.Allergies.IsList())
	assert.Equal(t, []string{"penicillin", "latex"}, p.Allergies.Items())
	assert.False(t, p.Medications.IsList())
	assert.Equal(t, "losartan 50mg", p.Medications.String())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"allergies":["penicillin","latex"]`)
	assert.Contains(t, string(out), `"medications":"losartan 50mg"`)
	assert.Contains(t, string(out), `"chronicDiseases":""`)
}

func TestTextListRejectsNonStringEntries(t *testing.T) {
	var l TextList
	assert.Error(t, json.Unmarshal([]byte(`[1, 2]`), &l))
	assert.Error(t, json.Unmarshal([]byte(`{"a": "b"}`), &l))
}

func TestTextListKeepsBSONShape(t *testing.T) {
	in := patientDocument{
		Name:            "Ana",
		ChronicDiseases: TextOf("asthma"),
		Allergies:       ListOf("penicillin", "latex"),
		Medications:     ListOf(),
	}

	raw, err := bson.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, bson.TypeArray, bson.Raw(raw).Lookup("allergies").Type)
	assert.Equal(t, bson.TypeString, bson.Raw(raw).Lookup("chronicDiseases").Type)

	var out patientDocument
	require.NoError(t, bson.Unmarshal(raw, &out))
	assert.Equal(t, in.ChronicDiseases, out.ChronicDiseases)
	assert.Equal(t, in.Allergies, out.Allergies)
	assert.True(t, out.Medications.IsList())
	assert.Empty(t, out.Medications.Items())
}
