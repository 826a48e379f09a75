package media

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var videoExts = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".mkv": {}, ".avi": {}, ".webm": {},
	".flv": {}, ".wmv": {}, ".m4v": {}, ".mpg": {}, ".mpeg": {}, ".ts": {},
}

// NeedsExtraction reports whether the file is a video container whose audio
// stream must be extracted before transcription.
func NeedsExtraction(filename string) bool {
	_, ok := videoExts[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ExtractAudio uses ffmpeg to pull a 16kHz PCM WAV out of a video container.
// The output lands in tmpDir under a fresh uuid name; the caller owns it.
func ExtractAudio(ctx context.Context, inputPath, tmpDir string) (string, error) {
	out := filepath.Join(tmpDir, uuid.New().String()+".wav")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", inputPath,
		"-acodec", "pcm_s16le", "-ar", "16000",
		out,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := lastLine(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("ffmpeg: %w", err)
		}
		return "", fmt.Errorf("ffmpeg: %s", msg)
	}
	return out, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
