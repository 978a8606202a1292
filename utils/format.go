package utils

import (
	"fmt"
	"time"
)

// MessageType selects the color of a CLI message.
type MessageType int

// The message types used across the CLI application.
const (
	DefaultMessage MessageType = iota
	SuccessMessage
	ErrorMessage
	StatusMessage
)

// Colors used across the CLI application.
const (
	DefaultColor = "\x1b[0m"
	StatusColor  = "\x1b[36m"
	SuccessColor = "\x1b[32m"
	ErrorColor   = "\x1b[31m"
)

var messageColors = map[MessageType]string{
	DefaultMessage: DefaultColor,
	SuccessMessage: SuccessColor,
	ErrorMessage:   ErrorColor,
	StatusMessage:  StatusColor,
}

// DecorateText colors s after its message type. Unknown types are returned as is.
func DecorateText(s string, msgType MessageType) string {
	color, ok := messageColors[msgType]
	if !ok {
		return s
	}
	return color + s + DefaultColor
}

// FormatTime formats a duration as days, hours, minutes and seconds,
// omitting the leading units that are zero.
func FormatTime(d time.Duration) string {
	const day = 24 * time.Hour

	days := d / day
	d -= days * day
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	secs := (d - minutes*time.Minute).Seconds()

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %.2fs", int64(days), int64(hours), int64(minutes), secs)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %.2fs", int64(hours), int64(minutes), secs)
	case minutes > 0:
		return fmt.Sprintf("%dm %.2fs", int64(minutes), secs)
	}
	return fmt.Sprintf("%.2fs", secs)
}
