package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("converts driver values", func(t *testing.T) {
		cases := []struct {
			in   interface{}
			want Value
		}{
			{nil, Null},
			{"abc", Text("abc")},
			{[]byte("raw"), Text("raw")},
			{true, Bool(true)},
			{42, Integer(42)},
			{int32(7), Integer(7)},
			{uint16(9), Integer(9)},
			{uint64(11), Integer(11)},
			{1.5, Float(1.5)},
			{float32(2), Float(2)},
			{ts, Date(ts)},
		}
		for _, c := range cases {
			got, err := FromAny(c.in)
			require.NoError(t, err)
			assert.True(t, c.want.Equal(got), "%v: want %v, got %v", c.in, c.want, got)
			assert.Equal(t, c.want.Kind(), got.Kind())
		}
	})

	t.Run("rejects overflowing unsigned", func(t *testing.T) {
		_, err := FromAny(uint64(math.MaxUint64))
		assert.Error(t, err)
	})

	t.Run("rejects composite values", func(t *testing.T) {
		_, err := FromAny(map[string]interface{}{"a": 1})
		assert.Error(t, err)
	})
}

func TestValue_EqualAcrossNumberKinds(t *testing.T) {
	assert.True(t, Integer(3).Equal(Float(3)))
	assert.False(t, Integer(3).Equal(Float(3.5)))
	assert.False(t, Integer(3).Equal(Text("3")))
	assert.True(t, Null.Equal(Value{}))
	assert.Equal(t, Integer(12).Key(), Float(12).Key())
	assert.NotEqual(t, Integer(12).Key(), Text("12").Key())
}

func TestParamsFromNative(t *testing.T) {
	p, err := ParamsFromNative(map[string]interface{}{"id": 1, "name": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p["id"].Int())
	assert.Equal(t, map[string]interface{}{"id": int64(1), "name": "x"}, p.Native())

	_, err = ParamsFromNative(map[string]interface{}{"bad": []int{1}})
	assert.Error(t, err)
}
