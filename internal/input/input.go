// Package input reads the source material for a generation run.
package input

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

// Extensions are the file types read from a directory.
var Extensions = []string{".txt", ".md", ".markdown"}

// ErrNoInput is returned when a directory holds no readable files.
var ErrNoInput = errors.New("no text or markdown files found")

// Document is one source file.
type Document struct {
	Path    string
	Content string
}

// Read loads path. A directory is walked recursively and its text files
// are returned in lexical path order.
func Read(path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if !info.IsDir() {
		doc, err := readFile(path)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}

	var paths []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.Contains(Extensions, strings.ToLower(filepath.Ext(p))) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("input: walk %s: %w", path, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("input: %s: %w", path, ErrNoInput)
	}
	slices.Sort(paths)

	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		doc, err := readFile(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Join concatenates documents with a blank line between them, skipping
// empty ones.
func Join(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if s := strings.TrimSpace(d.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ReadAll is Read followed by Join.
func ReadAll(path string) (string, error) {
	docs, err := Read(path)
	if err != nil {
		return "", err
	}
	return Join(docs), nil
}

func readFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("input: %w", err)
	}
	if !utf8.Valid(data) {
		return Document{}, fmt.Errorf("input: %s is not valid UTF-8", path)
	}
	// Windows editors like to lead with a byte order mark.
	content := strings.TrimPrefix(string(data), "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return Document{Path: path, Content: content}, nil
}
