package validation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/order-history-export/internal/types"
	"github.com/ginjaninja78/order-history-export/internal/validation"
)

func TestValidate_Accepts(t *testing.T) {
	t.Parallel()

	err := validation.Validate(types.OrderRecord{
		ID:    "250-1234567-7654321",
		Date:  "2021-03-01",
		Items: []types.LineItem{{Name: "Tea", Price: 0}, {Name: "Cup x2", Price: 800}},
	})
	assert.NoError(t, err)

	// An order whose every row was priceless is still a valid record.
	assert.NoError(t, validation.Validate(types.OrderRecord{ID: "1-2", Date: "2020-01-01"}))
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	t.Parallel()

	err := validation.Validate(types.OrderRecord{
		ID:    "D01-1",
		Date:  "2021-3-1",
		Items: []types.LineItem{{Name: " ", Price: 10}, {Name: "Refund", Price: -5}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidRecord)

	var recErr *validation.RecordError
	require.True(t, errors.As(err, &recErr))
	fields := make([]string, 0, len(recErr.Errors))
	for _, e := range recErr.Errors {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"id", "date", "items[0].name", "items[1].price"}, fields)
}

func TestFormatErrors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", validation.FormatErrors(nil))
	assert.Equal(t,
		"field 'date': must be YYYY-MM-DD (value: 'x')",
		validation.FormatErrors([]*validation.ValidationError{{Field: "date", Value: "x", Message: "must be YYYY-MM-DD"}}),
	)
}
