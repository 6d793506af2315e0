package gateway

import (
	"testing"

	"paybroker/internal/tokenstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	easy := NewEasyMoneyGateway("http://localhost:3000")
	super := NewSuperWalletzGateway("http://localhost:3003", "", tokenstore.NewMemoryStore(), newFakeStore())
	return NewRegistry(easy, super)
}

func TestParseID(t *testing.T) {
	t.Run("Supported", func(t *testing.T) {
		id, err := ParseID("easy_money")
		require.NoError(t, err)
		assert.Equal(t, IDEasyMoney, id)

		id, err = ParseID("super_walletz")
		require.NoError(t, err)
		assert.Equal(t, IDSuperWalletz, id)
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := ParseID("paypal")
		require.Error(t, err)

		var unsupported *UnsupportedGatewayError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "paypal", unsupported.Gateway)
		assert.Equal(t, []string{"easy_money", "super_walletz"}, unsupported.Supported)
	})
}

func TestID_SupportsWebhooks(t *testing.T) {
	assert.False(t, IDEasyMoney.SupportsWebhooks())
	assert.True(t, IDSuperWalletz.SupportsWebhooks())
}

func TestRegistry_ForPayment(t *testing.T) {
	r := newTestRegistry()

	gw, err := r.ForPayment(IDEasyMoney)
	require.NoError(t, err)
	assert.Equal(t, "easy_money", gw.Name())

	gw, err = r.ForPayment(IDSuperWalletz)
	require.NoError(t, err)
	assert.Equal(t, "super_walletz", gw.Name())

	_, err = r.ForPayment(ID("stripe"))
	var unsupported *UnsupportedGatewayError
	require.ErrorAs(t, err, &unsupported)
}

func TestRegistry_ForWebhook(t *testing.T) {
	r := newTestRegistry()

	gw, err := r.ForWebhook(IDSuperWalletz)
	require.NoError(t, err)
	assert.Equal(t, "super_walletz", gw.Name())

	_, err = r.ForWebhook(IDEasyMoney)
	var unsupported *UnsupportedGatewayError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, []string{"super_walletz"}, unsupported.Supported)
}
