package deps

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Status reports whether an external binary can be used.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ResolveFFmpeg reports the ffmpeg binary used for audio transcoding. An
// explicitly configured path wins; otherwise "ffmpeg" is resolved from PATH.
func ResolveFFmpeg(configured string) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Transcodes narration audio to the configured bitrate",
		Optional:    true,
	}

	if binary := strings.TrimSpace(configured); binary != "" && binary != "ffmpeg" {
		result.Command = binary
		if resolved, err := exec.LookPath(binary); err == nil {
			if info, statErr := os.Stat(resolved); statErr == nil && isExecutable(info) {
				result.Command = resolved
				result.Available = true
				return result
			}
		}
		result.Detail = fmt.Sprintf("configured binary %q not executable", binary)
		return result
	}

	ffmpegName := "ffmpeg"
	if ffmpegPath, err := exec.LookPath(ffmpegName); err == nil {
		result.Command = ffmpegPath
		result.Available = true
		return result
	}

	result.Command = ffmpegName
	result.Detail = fmt.Sprintf("binary %q not found", ffmpegName)
	return result
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
