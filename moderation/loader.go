package moderation

import (
	"bufio"
	"embed"
	"io/fs"
	"strings"

	"duo-chat/errors"
)

//go:embed dictionary/*
var dictionaryFolder embed.FS

// DefaultWords returns the banned word list shipped with the binary.
func DefaultWords() ([]string, error) {
	return LoadWords(dictionaryFolder, "dictionary")
}

// LoadWords reads every file of the folder as a newline-separated word list.
// Blank lines and surrounding whitespace are ignored.
func LoadWords(folder fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(folder, dir)
	if err != nil {
		return nil, err
	}

	var words []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file, err := folder.Open(dir + "/" + entry.Name())
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word != "" {
				words = append(words, word)
			}
		}
		if err := scanner.Err(); err != nil {
			_ = file.Close()
			return nil, err
		}
		_ = file.Close()
	}

	if len(words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return words, nil
}
