package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMahjongTilesCatalog(t *testing.T) {
	require.Equal(t, 34, MahjongTiles.Len())

	first, err := MahjongTiles.Name(0)
	require.NoError(t, err)
	assert.Equal(t, "1m", first)

	fifth, err := MahjongTiles.Name(5)
	require.NoError(t, err)
	assert.Equal(t, "2s", fifth)

	last, err := MahjongTiles.Name(33)
	require.NoError(t, err)
	assert.Equal(t, "tou", last)

	assert.Equal(t, []string{"chun", "haku", "hatsu", "nan", "pe", "sha", "tou"}, MahjongTiles.Names()[27:])
}

func TestMahjongTilesRoundTrip(t *testing.T) {
	for i, name := range MahjongTiles.Names() {
		idx, err := MahjongTiles.Index(name)
		require.NoError(t, err)
		assert.Equal(t, i, idx, "name %q", name)
	}
}

func TestOutputClassSetErrors(t *testing.T) {
	_, err := MahjongTiles.Name(-1)
	assert.Error(t, err)
	_, err = MahjongTiles.Name(34)
	assert.Error(t, err)

	idx, err := MahjongTiles.Index("0m")
	assert.Error(t, err)
	assert.Equal(t, -1, idx)
}

func TestClassManager(t *testing.T) {
	name, err := DefaultClassManager.GetName(ModelFamilyMahjong, 27)
	require.NoError(t, err)
	assert.Equal(t, "chun", name)

	idx, err := DefaultClassManager.GetIndex(ModelFamilyMahjong, "haku")
	require.NoError(t, err)
	assert.Equal(t, 28, idx)

	_, err = DefaultClassManager.GetName("coco", 0)
	assert.Error(t, err)
}
