package scope

import (
	"testing"

	"fruition-api/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestInventoryPath(t *testing.T) {
	personal := &model.UserProfile{UserID: "u1"}
	assert.Equal(t, "users/u1/inventory", InventoryPath(personal))
	assert.False(t, IsHousehold(InventoryPath(personal)))

	shared := &model.UserProfile{UserID: "u1", HouseholdID: "h9"}
	assert.Equal(t, "households/h9/inventory", InventoryPath(shared))
	assert.True(t, IsHousehold(InventoryPath(shared)))

	assert.Equal(t, "", InventoryPath(nil))
	assert.Equal(t, "", InventoryPath(&model.UserProfile{}))
}
