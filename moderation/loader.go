package moderation

import (
	"bufio"
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/samber/lo"

	"yalla-chat/errors"
)

//go:embed wordlists/*.txt
var wordlistsFS embed.FS

// Wordlists holds the deduplicated censored words and the languages the
// bundled lists cover.
type Wordlists struct {
	Words     []string
	Languages []string
}

// LoadWordlists reads every embedded per-language list. One word per
// line, blank lines and '#' comments ignored.
func LoadWordlists() (Wordlists, error) {
	entries, err := wordlistsFS.ReadDir("wordlists")
	if err != nil {
		return Wordlists{}, err
	}

	var data Wordlists
	for _, entry := range entries {
		if entry.IsDir() {
			return Wordlists{}, errors.ErrOnlyWordlistFiles
		}
		lang := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		data.Languages = append(data.Languages, lang)

		file, err := wordlistsFS.Open(path.Join("wordlists", entry.Name()))
		if err != nil {
			return Wordlists{}, err
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			data.Words = append(data.Words, word)
		}
		if err = scanner.Err(); err != nil {
			_ = file.Close()
			return Wordlists{}, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		_ = file.Close()
	}

	data.Words = lo.Uniq(data.Words)
	if len(data.Words) == 0 {
		return Wordlists{}, errors.ErrEmptyWordlists
	}
	return data, nil
}
