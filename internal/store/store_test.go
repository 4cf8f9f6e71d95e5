package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNullableStringEmptyIsNil(t *testing.T) {
	require.Nil(t, nullableString(""))
}

func TestNullableStringNonEmpty(t *testing.T) {
	require.Equal(t, "text/plain", nullableString("text/plain"))
}
