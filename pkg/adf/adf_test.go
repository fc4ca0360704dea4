package adf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Run("nil becomes empty document", func(t *testing.T) {
		doc := Normalize(nil)
		assert.Equal(t, "doc", doc["type"])
		assert.Empty(t, doc["content"])
	})

	t.Run("string wraps into a paragraph", func(t *testing.T) {
		doc := Normalize("hello")
		assert.Equal(t, "doc", doc["type"])
		assert.Equal(t, "hello", Text(doc))
	})

	t.Run("document passes through", func(t *testing.T) {
		in := FromText("already structured")
		assert.Equal(t, in, Normalize(in))
	})

	t.Run("non-document maps pass through", func(t *testing.T) {
		in := map[string]any{"foo": "bar"}
		assert.Equal(t, in, Normalize(in))
	})

	t.Run("unsupported types become empty", func(t *testing.T) {
		assert.Equal(t, Empty(), Normalize(42))
	})
}

func TestText(t *testing.T) {
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "", Text(Empty()))
	assert.Equal(t, "two words", Text(FromText("two words")))
}
