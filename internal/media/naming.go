package media

import (
	"fmt"
	"time"
)

// Spec describes where and how a capture is stored.
type Spec struct {
	MimeType     string
	RelativePath string
}

// Namer generates display names from the capture time.
type Namer struct {
	Now func() time.Time
}

func (n Namer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// PhotoName returns e.g. "2026-10-15-09-12-03-0042" (milliseconds, 4 digits).
func (n Namer) PhotoName() string {
	t := n.now()
	return fmt.Sprintf("%s-%04d", t.Format("2006-01-02-15-04-05"), t.Nanosecond()/int(time.Millisecond))
}

// VideoName returns e.g. "2026-10-15-09-12-03-042" (milliseconds, 3 digits).
func (n Namer) VideoName() string {
	t := n.now()
	return fmt.Sprintf("%s-%03d", t.Format("2006-01-02-15-04-05"), t.Nanosecond()/int(time.Millisecond))
}

// extensions maps the MIME types the pipelines produce to file extensions.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

func extensionFor(mimeType string) string {
	return extensions[mimeType]
}
