package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAddressRewritesLocalhost(t *testing.T) {
	require.Equal(t, "127.0.0.1:11111", NormalizeAddress("localhost:11111"))
}

func TestNormalizeAddressLeavesOthersUnchanged(t *testing.T) {
	require.Equal(t, "10.0.0.5:11111", NormalizeAddress("10.0.0.5:11111"))
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", FirstNonEmpty("", "b", "c"))
	require.Equal(t, "", FirstNonEmpty("", ""))
}
