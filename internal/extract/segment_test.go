package extract

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestSplitAtSchoolMarkers(t *testing.T) {
	text := "招生公告\n实验小学施教区：中山路以东，解放路以北。\n第二中学施教区：京杭大运河以西。"
	segs := NewSegmenter(6000).Split(text)

	require.Len(t, segs, 3)
	assert.Equal(t, "招生公告", segs[0])
	assert.True(t, strings.HasPrefix(segs[1], "实验小学"))
	assert.True(t, strings.HasPrefix(segs[2], "第二中学"))
}

func TestSplitNumberedList(t *testing.T) {
	text := "1、实验小学 中山路以东。2、第二中学 运河以西。"
	segs := NewSegmenter(6000).Split(text)

	require.Len(t, segs, 2)
	assert.True(t, strings.HasPrefix(segs[0], "1、"))
	assert.True(t, strings.HasPrefix(segs[1], "2、"))
}

func TestSplitReconstructsInput(t *testing.T) {
	text := "前言 实验小学施教区：甲地。 第二中学施教区：乙地。 尾注"
	segs := NewSegmenter(6000).Split(text)
	assert.Equal(t, stripSpace(text), stripSpace(strings.Join(segs, "")))
}

func TestSplitNoMarkers(t *testing.T) {
	segs := NewSegmenter(6000).Split("没有任何学校标记的一段普通文本")
	require.Len(t, segs, 1)
}

func TestSplitEnforcesSegmentCeiling(t *testing.T) {
	long := strings.Repeat("字", 25)
	segs := NewSegmenter(10).Split(long)

	require.Len(t, segs, 3)
	for i, seg := range segs[:2] {
		assert.Len(t, []rune(seg), 10, "segment %d", i)
	}
	assert.Len(t, []rune(segs[2]), 5)
	assert.Equal(t, long, strings.Join(segs, ""), "fixed slicing must land on rune boundaries")
}

func TestSplitDropsBlankPieces(t *testing.T) {
	segs := NewSegmenter(6000).Split("   \n 实验小学施教区：甲地。")
	require.Len(t, segs, 1)
	assert.True(t, strings.HasPrefix(segs[0], "实验小学"))
}
