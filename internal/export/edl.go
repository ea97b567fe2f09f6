package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/sportcut/sportcut-agent/internal/cloud"
)

// DefaultFrameRate is used for cut lists when the source rate is unknown.
const DefaultFrameRate = 30.0

// GenerateEDL renders ranges as a CMX3600 cut list against one source file.
// Record timecodes run back to back in range order.
func GenerateEDL(ranges []cloud.Range, mediaPath, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = int(DefaultFrameRate)
	}
	dropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", title)
	if dropFrame {
		b.WriteString("FCM: DROP FRAME\n\n")
	} else {
		b.WriteString("FCM: NON-DROP FRAME\n\n")
	}

	var record int
	for i, r := range ranges {
		in, out := secondsToMs(r.Start), secondsToMs(r.End)
		length := out - in
		fmt.Fprintf(&b, "%03d  %-8s %-5s C        %s %s %s %s\n", i+1, "AX", "V",
			msToTimecode(in, fps), msToTimecode(out, fps),
			msToTimecode(record, fps), msToTimecode(record+length, fps))
		fmt.Fprintf(&b, "* FROM CLIP NAME:  %s\n", clipName(r))
		fmt.Fprintf(&b, "* SOURCE FILE:  %s\n", mediaPath)
		record += length
	}
	return b.String()
}

func secondsToMs(s float64) int {
	return int(math.Round(s * 1000))
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", totalSeconds/3600, totalSeconds/60%60, totalSeconds%60, frames)
}
