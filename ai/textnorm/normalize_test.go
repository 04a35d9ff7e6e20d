package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"diacritics", "Đà Nẵng", "da nang"},
		{"upper d stroke", "ĐỒNG THÁP", "dong thap"},
		{"trim", "  Hà Nội  ", "ha noi"},
		{"ascii untouched", "hue", "hue"},
		{"empty", "", ""},
		{"mixed", "Thừa Thiên Huế", "thua thien hue"},
		{"already folded", "ho chi minh", "ho chi minh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Đà Nẵng", "Thời tiết Đà Nẵng thế nào", "  Bà Rịa – Vũng Tàu ", "Phú Quốc",
		"cầu rồng", "ĐẮK LẮK", "quảng  nam", "",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestDespace(t *testing.T) {
	assert.Equal(t, "đànẵng", Despace("đà nẵng"))
	assert.Equal(t, "hochiminh", Despace(" ho\tchi  minh "))
	assert.Equal(t, "", Despace("   "))
}

func TestGrams(t *testing.T) {
	t.Run("two words", func(t *testing.T) {
		got := Grams("đà nẵng", 3)
		assert.ElementsMatch(t, []string{"đà nẵng", "đànẵng", "đà", "nẵng"}, got)
	})

	t.Run("longest windows first", func(t *testing.T) {
		got := Grams("thoi tiet da nang", 3)
		assert.Equal(t, []string{
			"thoi tiet da", "thoitietda",
			"tiet da nang", "tietdanang",
			"thoi tiet", "thoitiet",
			"tiet da", "tietda",
			"da nang", "danang",
			"thoi", "tiet", "da", "nang",
		}, got)
	})

	t.Run("includes full text when short", func(t *testing.T) {
		got := Grams("ha long bay", 3)
		assert.Contains(t, got, "ha long bay")
		assert.Contains(t, got, "halongbay")
		assert.Contains(t, got, "long bay")
		assert.Contains(t, got, "bay")
	})

	t.Run("default max length", func(t *testing.T) {
		assert.Equal(t, Grams("a b c d", 3), Grams("a b c d", 0))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Grams("   ", 3))
	})

	t.Run("duplicate words collapse", func(t *testing.T) {
		got := Grams("hue hue", 3)
		assert.Equal(t, []string{"hue hue", "huehue", "hue"}, got)
	})
}

func TestMergeCandidates(t *testing.T) {
	got := MergeCandidates(
		[]string{"cau rong da nang", "rong"},
		[]string{"cau rong", "rong", "da nang", "  "},
	)
	assert.Equal(t, []string{"cau rong da nang", "cau rong", "da nang", "rong"}, got)
}

func TestSortLongestFirst_TieBreak(t *testing.T) {
	c := []string{"hue", "abc", "quang nam", "bac"}
	SortLongestFirst(c)
	assert.Equal(t, []string{"quang nam", "abc", "bac", "hue"}, c)
}
