package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	assert.InDelta(t, 1.5, ToFloat64(1.5), 1e-12)
	assert.InDelta(t, 2, ToFloat64(2), 1e-12)
	assert.InDelta(t, 3.25, ToFloat64(" 3.25 "), 1e-12)
	assert.InDelta(t, 4, ToFloat64(json.Number("4")), 1e-12)
	assert.InDelta(t, 0, ToFloat64(nil), 1e-12)
	assert.InDelta(t, 0, ToFloat64("abc"), 1e-12)
	assert.InDelta(t, 0, ToFloat64([]int{1}), 1e-12)
}

func TestToInt(t *testing.T) {
	assert.Equal(t, 5, ToInt(5))
	assert.Equal(t, 5, ToInt(5.9)) // 截断
	assert.Equal(t, 5, ToInt("5"))
	assert.Equal(t, 5, ToInt("5.9"))
	assert.Equal(t, 0, ToInt(nil))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "x", ToString("x"))
	assert.Equal(t, "1.5", ToString(1.5))
	assert.Equal(t, "true", ToString(true))
	assert.Equal(t, "", ToString(map[string]any{}))
}
