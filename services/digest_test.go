package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigest(t *testing.T) {
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", Digest("a", "b", "c"))
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", Digest())
	assert.Equal(t, Digest("a", "b", "c"), Digest("a", "b", "c"))
	assert.NotEqual(t, Digest("a", "b", "c"), Digest("c", "b", "a"))
	assert.Len(t, Digest("anything"), 40)
}

func TestDerivedKeys(t *testing.T) {
	canonical := "{{Cite web|title=Foo}}"

	assert.Equal(t, Digest("en.wikipedia.org", "42", canonical), RecordKey("en.wikipedia.org", 42, canonical))
	assert.Equal(t, Digest(canonical), CanonicalKey(canonical))
	assert.Equal(t, Digest("foo"), RawKey("foo"))

	// gleicher Inhalt auf einem anderen Artikel ergibt einen anderen RecordKey, aber denselben CanonicalKey
	assert.NotEqual(t, RecordKey("en.wikipedia.org", 42, canonical), RecordKey("en.wikipedia.org", 43, canonical))
	assert.NotEqual(t, RecordKey("en.wikipedia.org", 42, canonical), RecordKey("de.wikipedia.org", 42, canonical))
}
