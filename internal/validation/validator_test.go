package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleQuery struct {
	Country string `query:"country" validate:"required"`
	Metric  string `query:"metric" validate:"oneof=kt share"`
	Limit   int    `query:"limit" validate:"min=1,max=1000"`
}

func TestValidateStructPasses(t *testing.T) {
	assert.Nil(t, ValidateStruct(&sampleQuery{Country: "Brazil", Metric: "kt", Limit: 10}))
}

func TestValidateStructMessages(t *testing.T) {
	verr := ValidateStruct(&sampleQuery{Metric: "tons", Limit: 5000})
	require.NotNil(t, verr)
	require.Len(t, verr.Errors, 3)

	assert.Equal(t, "country", verr.Errors[0].Field)
	assert.Equal(t, "country is required", verr.Errors[0].Message)
	assert.Equal(t, "metric must be one of: kt, share", verr.Errors[1].Message)
	assert.Equal(t, "limit must be at most 1000", verr.Errors[2].Message)
	assert.Contains(t, verr.Error(), "; ")
}
