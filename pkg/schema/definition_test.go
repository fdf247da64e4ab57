package schema_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mercuryfield/zenorm_go/pkg/schema"
)

type embeddedSystemFields struct {
	ID   string
	Name string
}

type contract struct {
	embeddedSystemFields
	Reference string    `zendesk:"reference,type=regexp,pattern=^CT-[0-9]+$"`
	Kind      string    `zendesk:"kind,type=dropdown,choices=Lease|Service|Época Especial"`
	Supplier  string    `zendesk:"supplier,type=lookup,target=Supplier"`
	Pages     int       `zendesk:"pages"`
	Signed    bool      `zendesk:"signed"`
	SignedOn  time.Time `zendesk:"signed_on,type=datetime"`
	Internal  string    `zendesk:"-"`
}

func (contract) CustomObjectKey() string { return "supplier_contract" }

func TestFromModel(t *testing.T) {
	def, err := schema.FromModel(&contract{})
	require.NoError(t, err)

	require.Equal(t, "supplier_contract", def.Key)
	require.Equal(t, "contract", def.Title)
	require.Equal(t, "contracts", def.TitlePluralized)

	require.Nil(t, def.Field("id"), "untagged embedded struct must be skipped")
	require.Nil(t, def.Field("internal"), "dash tag must be skipped")

	ref := def.Field("reference")
	require.NotNil(t, ref)
	require.Equal(t, schema.TypeRegexp, ref.Type)
	require.NoError(t, ref.Validate("CT-77"))
	require.ErrorIs(t, ref.Validate("77"), schema.ErrPatternMismatch)

	kind := def.Field("kind")
	require.NotNil(t, kind)
	require.Equal(t, []schema.Choice{
		{Value: "lease", Label: "Lease"},
		{Value: "service", Label: "Service"},
		{Value: "epoca_especial", Label: "Época Especial"},
	}, kind.Choices)

	supplier := def.Field("supplier")
	require.NotNil(t, supplier)
	require.Equal(t, "zen:custom_object:supplier", supplier.RelationshipTargetType())

	require.Equal(t, schema.TypeInteger, def.Field("pages").Type)
	require.Equal(t, schema.TypeCheckbox, def.Field("signed").Type)
	require.Equal(t, schema.TypeDateTime, def.Field("signed_on").Type)
}

func TestFromModelDefaultsKeyToTypeName(t *testing.T) {
	type Warehouse struct {
		Location string `zendesk:"location"`
	}
	def, err := schema.FromModel(&Warehouse{})
	require.NoError(t, err)
	require.Equal(t, "warehouse", def.Key)
	require.Equal(t, "Warehouse", def.Title)
}

func TestFromModelRejectsNameField(t *testing.T) {
	type bad struct {
		Name string `zendesk:"name"`
	}
	_, err := schema.FromModel(&bad{})
	require.ErrorIs(t, err, schema.ErrBadDefinition)
}

func TestFromModelRejectsTypeMismatch(t *testing.T) {
	type bad struct {
		Count string `zendesk:"count,type=integer"`
	}
	_, err := schema.FromModel(&bad{})
	require.ErrorIs(t, err, schema.ErrBadDefinition)
}

func TestFromModelRejectsLookupWithoutTarget(t *testing.T) {
	type bad struct {
		Other string `zendesk:"other,type=lookup"`
	}
	_, err := schema.FromModel(&bad{})
	require.ErrorIs(t, err, schema.ErrBadDefinition)
}

func TestWireFieldsExpandDateTime(t *testing.T) {
	def, err := schema.FromModel(&contract{})
	require.NoError(t, err)

	byKey := map[string]schema.Field{}
	for _, f := range def.WireFields() {
		byKey[f.Key] = f
	}
	require.Equal(t, schema.TypeDate, byKey["signed_on"].Type)
	companion, ok := byKey["signed_on_time"]
	require.True(t, ok, "datetime must expand into a time companion")
	require.Equal(t, schema.TypeText, companion.Type)
}

func TestSlugValue(t *testing.T) {
	require.Equal(t, "on_hold", schema.SlugValue("On Hold"))
	require.Equal(t, "epoca_especial", schema.SlugValue("Época Especial"))
	require.Equal(t, "uber_fruh", schema.SlugValue(" Über Früh "))
}
