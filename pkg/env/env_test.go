package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFallsBackOnBlank(t *testing.T) {
	t.Setenv("LASTCALL_TEST_VALUE", "   ")
	assert.Equal(t, "fallback", Get("LASTCALL_TEST_VALUE", "fallback"))

	t.Setenv("LASTCALL_TEST_VALUE", "set")
	assert.Equal(t, "set", Get("LASTCALL_TEST_VALUE", "fallback"))
}
