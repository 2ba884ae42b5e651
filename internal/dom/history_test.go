package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saintjustus/windowshell/internal/shared/types"
)

func TestMemoryHistoryPushBackForward(t *testing.T) {
	h, err := NewMemoryHistory("https://saintjustus.xyz/")
	require.NoError(t, err)

	h.ReplaceState(types.HistoryState{Path: "/"}, "/")
	h.PushState(types.HistoryState{Path: "/art"}, "/art")
	h.PushState(types.HistoryState{Path: "/work"}, "/work?tab=1")
	assert.Equal(t, "/work", h.Location().Path)
	assert.Equal(t, "tab=1", h.Location().RawQuery)

	st, ok := h.Back()
	require.True(t, ok)
	assert.Equal(t, "/art", st.Path)
	assert.Equal(t, "https://saintjustus.xyz/art", h.Location().String())

	// pushing after going back drops the forward entries
	h.PushState(types.HistoryState{Path: "/music"}, "/music")
	_, ok = h.Forward()
	assert.False(t, ok)
	assert.Equal(t, 3, h.Len())
}

func TestMemoryHistoryAssign(t *testing.T) {
	h, err := NewMemoryHistory("https://saintjustus.xyz/")
	require.NoError(t, err)
	h.Assign("/work")
	assert.Equal(t, []string{"https://saintjustus.xyz/work"}, h.Assigned())
	assert.Equal(t, "/work", h.Location().Path)
}

func TestMemoryHistoryRequiresAbsolute(t *testing.T) {
	_, err := NewMemoryHistory("/relative")
	assert.Error(t, err)
}
