package searchdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Call.hpp", "call_2ehpp"},
		{"call conventions", "call_20conventions"},
		{"call_convention_traits", "call_5fconvention_5ftraits"},
		{"call_convention_traits< detail::default_call_convention >", "call_5fconvention_5ftraits_3c_20detail_3a_3adefault_5fcall_5fconvention_20_3e"},
		{"Clang 18 1 libc", "clang_2018_201_20libc"},
		{"größe", "größe"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeID(tt.in))
		})
	}
}

func TestDecodeID(t *testing.T) {
	got, err := DecodeID("call_5fconvention_5ftraits_3c_20signature_5fcall_5fconvention_5ft_3c_20signature_20_3e_20_3e")
	require.NoError(t, err)
	assert.Equal(t, "call_convention_traits< signature_call_convention_t< signature > >", got)

	got, err = DecodeID("customizability")
	require.NoError(t, err)
	assert.Equal(t, "customizability", got)

	for _, bad := range []string{"call_2", "call_", "call_zz", "_g0x"} {
		_, err := DecodeID(bad)
		assert.ErrorIs(t, err, ErrMalformedID, bad)
	}
}

func TestEncodeDecodeFixpoint(t *testing.T) {
	for _, term := range []string{"case_foldable_string", "CMakeLists.txt", "ControlPolicies.hpp", "a+b=c", "naïve"} {
		key := EncodeID(term)
		dec, err := DecodeID(key)
		require.NoError(t, err)
		assert.Equal(t, key, EncodeID(dec), term)
	}
}

func TestSplitOrdinal(t *testing.T) {
	tests := []struct {
		id      string
		key     string
		ordinal int
		ok      bool
	}{
		{"call_20conventions_0", "call_20conventions", 0, true},
		{"customizability_56", "customizability", 56, true},
		{"consume_34", "consume", 34, true},
		{"consume", "consume", 0, false},
		{"consume_", "consume_", 0, false},
		{"_3", "_3", 0, false},
		{"count_-1", "count_-1", 0, false},
		{"call_2ehpp", "call_2ehpp", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			key, ord, ok := SplitOrdinal(tt.id)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.ordinal, ord)
			assert.Equal(t, tt.ok, ok)
		})
	}
	assert.Equal(t, "count_47", JoinOrdinal("count", 47))
}

func TestUnescapeHTML(t *testing.T) {
	assert.Equal(t, "mimicpp::call_convention_traits< Tag >", UnescapeHTML("mimicpp::call_convention_traits&lt; Tag &gt;"))
}
