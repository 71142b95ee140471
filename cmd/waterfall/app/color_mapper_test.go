package app

import (
	"image/color"
	"testing"
)

func testBounds() PowerBounds {
	return PowerBounds{Min: -90, Max: -20, Mean: -55, Reference: -55}
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}

func TestColorMapper_GetColor(t *testing.T) {
	cm := NewColorMapper(ClassicTheme, testBounds())

	// Nil readings and out-of-range values clamp to the map edges.
	low := cm.GetColor(ptr(-90))
	if !sameColor(cm.GetColor(nil), low) {
		t.Error("Expected nil reading to map to the minimum power color")
	}
	if !sameColor(cm.GetColor(ptr(-200)), low) {
		t.Error("Expected below-range power to clamp to the minimum power color")
	}

	high := cm.GetColor(ptr(-20))
	if !sameColor(cm.GetColor(ptr(0)), high) {
		t.Error("Expected above-range power to clamp to the maximum power color")
	}

	if sameColor(low, high) {
		t.Error("Expected minimum and maximum power colors to differ")
	}
}

func TestColorMapper_Size(t *testing.T) {
	if got := NewColorMapper(ClassicTheme, testBounds()).Size(); got != DefaultColorMapSize {
		t.Errorf("Expected default map size %d, got %d", DefaultColorMapSize, got)
	}
	if got := NewColorMapperWithSize(ClassicTheme, testBounds(), 0).Size(); got != DefaultColorMapSize {
		t.Errorf("Expected zero size to fall back to %d, got %d", DefaultColorMapSize, got)
	}
	if got := NewColorMapperWithSize(ClassicTheme, testBounds(), 64).Size(); got != 64 {
		t.Errorf("Expected map size 64, got %d", got)
	}
}

func TestColorMapper_UpdateBounds(t *testing.T) {
	cm := NewColorMapper(ClassicTheme, testBounds())
	cm.UpdateBounds(PowerBounds{Min: -55, Max: -45})

	// After the update the new minimum must map to the first color.
	if !sameColor(cm.GetColor(ptr(-55)), cm.GetColor(nil)) {
		t.Error("Expected new minimum power to map to the minimum power color")
	}
	if !sameColor(cm.GetColor(ptr(-45)), cm.GetColor(ptr(0))) {
		t.Error("Expected new maximum power to map to the maximum power color")
	}
}

func TestColorMapper_Themes(t *testing.T) {
	for theme := range validColorThemes {
		t.Run(string(theme), func(t *testing.T) {
			cm := NewColorMapper(theme, testBounds())
			if got := cm.ThemeName(); got != theme {
				t.Errorf("Expected theme %s, got %s", theme, got)
			}
			if sameColor(cm.GetColor(ptr(-90)), cm.GetColor(ptr(-20))) {
				t.Errorf("Expected theme %s to produce a gradient, got a single color", theme)
			}
		})
	}
}
