package entities

import (
	"math"
	"strconv"
	"strings"
)

// EmptyState is the placeholder shown for a column with no tasks.
type EmptyState struct {
	Icon  string `json:"icon"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Icon returns the column icon class.
func (ts TaskStatus) Icon() string {
	switch ts {
	case TaskStatusNew:
		return "fas fa-inbox"
	case TaskStatusOngoing:
		return "fas fa-play"
	case TaskStatusPaused:
		return "fas fa-pause"
	case TaskStatusFinished:
		return "fas fa-check"
	default:
		return "fas fa-circle"
	}
}

// Title returns the status with its first letter upper-cased.
func (ts TaskStatus) Title() string {
	if ts == "" {
		return ""
	}
	s := string(ts)
	return strings.ToUpper(s[:1]) + s[1:]
}

func (ts TaskStatus) EmptyState() EmptyState {
	switch ts {
	case TaskStatusNew:
		return EmptyState{Icon: ts.Icon(), Title: "No new tasks", Text: "Create a new task to get started"}
	case TaskStatusOngoing:
		return EmptyState{Icon: ts.Icon(), Title: "No ongoing tasks", Text: "Drag tasks here to start working on them"}
	case TaskStatusPaused:
		return EmptyState{Icon: ts.Icon(), Title: "No paused tasks", Text: "Tasks on hold will appear here"}
	case TaskStatusFinished:
		return EmptyState{Icon: ts.Icon(), Title: "No finished tasks", Text: "Completed tasks will appear here"}
	default:
		return EmptyState{Icon: ts.Icon(), Title: "No tasks"}
	}
}

// IsImage reports whether the attachment can be previewed inline.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}

// Icon picks a file icon class from the MIME type.
func (a Attachment) Icon() string {
	mt := a.MimeType
	switch {
	case mt == "":
		return "fas fa-file"
	case strings.HasPrefix(mt, "image/"):
		return "fas fa-file-image"
	case strings.HasPrefix(mt, "video/"):
		return "fas fa-file-video"
	case strings.HasPrefix(mt, "audio/"):
		return "fas fa-file-audio"
	case strings.Contains(mt, "pdf"):
		return "fas fa-file-pdf"
	case strings.Contains(mt, "word"), strings.Contains(mt, "document"):
		return "fas fa-file-word"
	case strings.Contains(mt, "excel"), strings.Contains(mt, "spreadsheet"):
		return "fas fa-file-excel"
	case strings.Contains(mt, "powerpoint"), strings.Contains(mt, "presentation"):
		return "fas fa-file-powerpoint"
	case strings.Contains(mt, "zip"), strings.Contains(mt, "rar"), strings.Contains(mt, "7z"):
		return "fas fa-file-archive"
	case strings.Contains(mt, "text/"):
		return "fas fa-file-alt"
	default:
		return "fas fa-file"
	}
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count in 1024-based units with up to two decimals.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// HumanSize is FormatFileSize for the attachment.
func (a Attachment) HumanSize() string {
	return FormatFileSize(a.Size)
}
