package saver

import (
	"strings"
	"unicode"
)

const untitled = "untitled"

// SanitizeTitle makes a post title safe to use as a file name. Path
// separators, characters reserved on common filesystems and control
// characters become '_'.
func SanitizeTitle(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, title)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return untitled
	}
	return cleaned
}

// TextFileName names the caption file of a post.
func TextFileName(title string) string {
	return "文案 - " + SanitizeTitle(title) + ".txt"
}

// CoverFileName names the batch cover image.
func CoverFileName(title string) string {
	return SanitizeTitle(title) + ".webp"
}

// VideoFileName names the video of a post.
func VideoFileName(title string) string {
	return SanitizeTitle(title) + ".mp4"
}
