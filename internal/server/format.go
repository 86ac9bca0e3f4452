package server

import (
	"fmt"
	"path/filepath"
	"strings"
)

// formatSize renders a byte count in human-readable form.
func formatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/(1024*1024*1024))
	}
}

var fileIcons = map[string]string{
	// Images
	"jpg": "🖼️", "jpeg": "🖼️", "png": "🖼️", "gif": "🖼️",
	"webp": "🖼️", "svg": "🖼️", "bmp": "🖼️", "ico": "🖼️",
	// Videos
	"mp4": "🎬", "webm": "🎬", "avi": "🎬", "mov": "🎬", "mkv": "🎬",
	// Audio
	"mp3": "🎵", "wav": "🎵", "ogg": "🎵", "flac": "🎵", "aac": "🎵",
	// Documents
	"pdf": "📄", "doc": "📄", "docx": "📄", "txt": "📄", "md": "📄",
	// Spreadsheets and presentations
	"xls": "📊", "xlsx": "📊", "csv": "📊",
	"ppt": "📽️", "pptx": "📽️",
	// Archives
	"zip": "📦", "tar": "📦", "gz": "📦", "rar": "📦", "7z": "📦",
	// Code and data
	"html": "🌐", "css": "🎨", "js": "⚡", "ts": "⚡",
	"py": "🐍", "go": "🐹", "rs": "🦀", "java": "☕",
	"json": "📋", "xml": "📋", "yaml": "📋", "yml": "📋",
}

// fileIcon returns an emoji icon for a filename's extension.
func fileIcon(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if icon, ok := fileIcons[ext]; ok {
		return icon
	}
	return "📎"
}
