package storage

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"draft-analyzer/internal/model"
)

// ReadResult summarises one pass over an archive file.
type ReadResult struct {
	Matches int
	Skipped int // lines that were not valid match JSON
}

// ReadMatches streams the matches in a JSONL file (optionally gzipped)
// to fn. Malformed lines are counted and skipped. An error from fn stops
// the read and is returned.
func ReadMatches(path string, fn func(*model.Match) error) (ReadResult, error) {
	var res ReadResult

	f, err := os.Open(path)
	if err != nil {
		return res, err
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return res, fmt.Errorf("failed to open gzip %s: %w", path, err)
		}
		defer gz.Close()
		src = gz
	}

	scanner := bufio.NewScanner(src)
	// Match lines with full participant data run to tens of KB.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var m model.Match
		if err := json.Unmarshal(line, &m); err != nil || m.MatchID == "" {
			res.Skipped++
			continue
		}
		if err := fn(&m); err != nil {
			return res, err
		}
		res.Matches++
	}
	return res, scanner.Err()
}

// WarmFiles lists the JSONL files in dir, oldest name first.
func WarmFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// CompressToCold compresses a warm file and moves it to cold storage
func CompressToCold(warmPath, coldDir string) (string, error) {
	src, err := os.Open(warmPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	coldPath := filepath.Join(coldDir, filepath.Base(warmPath)+".gz")
	dst, err := os.Create(coldPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	gzWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzWriter, src); err != nil {
		return "", err
	}
	if err := gzWriter.Close(); err != nil {
		return "", err
	}

	// Remove original
	if err := os.Remove(warmPath); err != nil {
		return "", err
	}
	return coldPath, nil
}
