package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aneupi/finance-engine/balances"
	"github.com/aneupi/finance-engine/events"
	"github.com/aneupi/finance-engine/generic"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFieldsOverridden(t *testing.T) {
	rec := generic.NewRecord(balances.KindID, 2024, 3)

	e := events.NewFieldsOverridden(rec, []generic.FieldName{balances.FieldContributions}, 7)

	assert.Equal(t, events.TypeFieldsOverridden, e.Type)
	assert.Equal(t, balances.KindID, e.Kind)
	assert.Equal(t, 2024, e.Year)
	assert.Equal(t, 3, e.Month)
	assert.Equal(t, int64(7), e.AdminID)
	assert.Equal(t, []string{"total_shareholder_contributions"}, e.Fields)
	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)
}

func TestEvent_JSONShape(t *testing.T) {
	e := events.NewRecordReset(generic.NewRecord(balances.KindID, 2024, 12), 1)

	body, err := e.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"type":"record.reset"`)
	assert.Contains(t, string(body), `"adminId":1`)
	assert.NotContains(t, string(body), `"fields"`)

	decoded, err := events.FromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, e.ID, decoded.ID)
	assert.True(t, e.OccurredAt.Equal(decoded.OccurredAt))
}

func TestMemory_PublishAndFail(t *testing.T) {
	ctx := context.Background()
	pub := events.NewMemory()
	e := events.NewRecordReset(generic.NewRecord(balances.KindID, 2024, 1), 1)

	require.NoError(t, pub.Publish(ctx, e))
	pub.FailWith(errors.New("channel closed"))
	assert.Error(t, pub.Publish(ctx, e))

	assert.Len(t, pub.Events(), 1)
	assert.NoError(t, events.Nop{}.Publish(ctx, e))
}
