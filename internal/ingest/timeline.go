package ingest

import (
	"math"

	"github.com/radarhq/mediasync/internal/mediasync"
)

const (
	// Capture interval of provider frame grabs, used to estimate a video
	// segment's length when no explicit duration is present.
	videoFrameIntervalSeconds = 5.0

	// Assumed audio bitrate (128 kbps) for estimating a recording's
	// length from its file size.
	audioBytesPerSecond = 16000
)

// estimateDuration works out a playable duration, in seconds, for an item's
// media assets, along with any frame references found. Precedence per asset:
// explicit duration, then frame count for video, then file size for audio.
// The longest estimate wins when several assets are present.
func estimateDuration(assets []mediasync.MediaAsset) (float64, []string) {
	var (
		duration float64
		frames   []string
	)
	for _, a := range assets {
		frames = append(frames, a.Frames...)

		d := a.DurationSeconds
		if d == 0 {
			switch a.Kind {
			case mediasync.AssetKindVideo:
				d = float64(len(a.Frames)) * videoFrameIntervalSeconds
			case mediasync.AssetKindAudio:
				d = float64(a.SizeBytes) / audioBytesPerSecond
			}
		}
		if d > duration {
			duration = d
		}
	}
	return duration, frames
}

// distributeMarks places entity-appearance marks across the item's duration
// so an analyst can scrub to where each entity was mentioned.
//
// With N entity rows the i-th mark sits at duration*(i+1)/(N+1), which puts
// a single entity at the midpoint and three entities at quarter spacing.
// When frames exist, each mark also references the frame nearest to its
// position. Without entity rows a single mark carries the group's aggregate
// sentiment at the midpoint.
func distributeMarks(duration float64, frames []string, analyses []mediasync.EntityAnalysis, aggregate mediasync.Sentiment) []mediasync.TimelineMark {
	if duration <= 0 {
		return nil
	}

	if len(analyses) == 0 {
		mark := mediasync.TimelineMark{
			Position:  duration / 2,
			Sentiment: aggregate,
		}
		if len(frames) > 0 {
			mark.Frame = frames[len(frames)/2]
		}
		return []mediasync.TimelineMark{mark}
	}

	marks := make([]mediasync.TimelineMark, 0, len(analyses))
	n := float64(len(analyses))
	for i, a := range analyses {
		frac := float64(i+1) / (n + 1)
		mark := mediasync.TimelineMark{
			Position:   duration * frac,
			Sentiment:  a.Sentiment,
			EntityName: a.EntityName,
		}
		if len(frames) > 0 {
			idx := int(math.Round(frac * float64(len(frames)-1)))
			mark.Frame = frames[idx]
		}
		marks = append(marks, mark)
	}
	return marks
}
