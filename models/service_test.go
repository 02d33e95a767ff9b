package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCatalog(t *testing.T) {
	services := []Service{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}
	catalog := NewCatalog(services)
	assert.Len(t, catalog.Promo, 3)
	assert.Len(t, catalog.Featured, 4)
	assert.Len(t, catalog.All, 5)
	assert.Equal(t, "a", catalog.Promo[0].ID)

	short := NewCatalog(services[:2])
	assert.Len(t, short.Promo, 2)
	assert.Len(t, short.Featured, 2)
}

func TestServiceAfterFind(t *testing.T) {
	s := Service{Price: 500000}
	assert.NoError(t, s.AfterFind(nil))
	assert.Equal(t, float64(400000), s.PromoPrice)
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, RoleAdmin.Can("services", "create"))
	assert.False(t, RoleCustomer.Can("services", "create"))
	assert.True(t, RoleCustomer.Can("registrations", "create"))
	assert.False(t, RoleAdmin.Can("registrations", "create"))
	assert.False(t, Role("").Can("services", "read"))
	assert.False(t, Role("guest").Valid())
}
