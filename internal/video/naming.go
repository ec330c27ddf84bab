package video

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"framecull/internal/models"
)

// OutputExt is the extension of every written video.
const OutputExt = ".mp4"

// BatchPrefix marks outputs written by a batch run.
const BatchPrefix = "processed_"

// SupportedExtensions lists the input containers accepted when expanding
// directories.
var SupportedExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// BatchOutputPath returns dir/processed_<stem>.mp4.
func BatchOutputPath(dir, input string) string {
	return filepath.Join(dir, BatchPrefix+stem(input)+OutputExt)
}

// AutoOutputPath places <stem>_<suffix>.mp4 next to the input.
func AutoOutputPath(input string, kind models.AlgorithmKind) string {
	return filepath.Join(filepath.Dir(input), stem(input)+"_"+kind.Suffix()+OutputExt)
}

func IsVideoFile(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// ExpandInputs replaces each directory argument by the video files it
// contains, sorted by name. File arguments are kept in order as given.
func ExpandInputs(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			out = append(out, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && IsVideoFile(e.Name()) {
				out = append(out, filepath.Join(p, e.Name()))
			}
		}
	}
	return out, nil
}
