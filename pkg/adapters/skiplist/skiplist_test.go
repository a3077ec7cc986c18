package skiplist

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukryu/depdex/pkg/types"
)

func collectKeys(it types.Iterator) []string {
	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, it.Entry().Key)
	}
	return keys
}

func TestPutGetAndOrder(t *testing.T) {
	l := New()
	keys := make([]string, 0, 200)
	for _, i := range rand.Perm(200) {
		k := fmt.Sprintf("key-%03d", i)
		keys = append(keys, k)
		l.Put(types.Put(k, "v"+k))
	}
	sort.Strings(keys)

	assert.Equal(t, 200, l.Len())
	assert.Equal(t, keys, collectKeys(l.Seek("", false)))

	e, ok := l.Get("key-042")
	require.True(t, ok)
	assert.Equal(t, "vkey-042", e.Value)

	_, ok = l.Get("missing")
	assert.False(t, ok)
}

func TestPutReplacesAndTracksSize(t *testing.T) {
	l := New()
	l.Put(types.Put("a", "1"))
	before := l.Size()
	l.Put(types.Put("a", "1234"))
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, before+3, l.Size())

	l.Put(types.Delete("a"))
	e, ok := l.Get("a")
	require.True(t, ok)
	assert.True(t, e.Tombstone)
}

func TestSeekInclusiveAndExclusive(t *testing.T) {
	l := New()
	for _, k := range []string{"a", "c", "e"} {
		l.Put(types.Put(k, k))
	}
	assert.Equal(t, []string{"c", "e"}, collectKeys(l.Seek("c", false)))
	assert.Equal(t, []string{"e"}, collectKeys(l.Seek("c", true)))
	assert.Equal(t, []string{"c", "e"}, collectKeys(l.Seek("b", true)))
	assert.Empty(t, collectKeys(l.Seek("f", false)))
}

func TestRemove(t *testing.T) {
	l := New()
	for i := 0; i < 50; i++ {
		l.Put(types.Put(fmt.Sprintf("%02d", i), "x"))
	}
	assert.True(t, l.Remove("10"))
	assert.False(t, l.Remove("10"))
	assert.Equal(t, 49, l.Len())
	_, ok := l.Get("10")
	assert.False(t, ok)
	assert.Len(t, l.Entries(), 49)
}
