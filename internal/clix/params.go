package clix

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// ErrNoTitles is returned when neither arguments nor a file supplied titles.
var ErrNoTitles = errors.New("no titles given: pass them as arguments or with --file")

// ParseTitles collects titles from the --file flag ("-" reads stdin) followed
// by positional args. Files may hold a JSON array, a {"titles": [...]}
// object, or one title per line; blank lines are skipped.
func ParseTitles(flags *pflag.FlagSet, args []string, stdin io.Reader) ([]string, error) {
	var titles []string

	file, _ := flags.GetString("file")
	if file != "" {
		var r io.Reader = stdin
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return nil, fmt.Errorf("failed to open titles file: %w", err)
			}
			defer f.Close()
			r = f
		}
		fromFile, err := ReadTitles(r)
		if err != nil {
			return nil, err
		}
		titles = append(titles, fromFile...)
	}

	titles = append(titles, args...)
	if len(titles) == 0 {
		return nil, ErrNoTitles
	}
	return titles, nil
}

// ReadTitles reads titles from r in any of the formats ParseTitles accepts.
func ReadTitles(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read titles: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))

	switch {
	case strings.HasPrefix(trimmed, "["):
		var titles []string
		if err := json.Unmarshal([]byte(trimmed), &titles); err != nil {
			return nil, fmt.Errorf("invalid JSON title list: %w", err)
		}
		return titles, nil
	case strings.HasPrefix(trimmed, "{"):
		var body struct {
			Titles []string `json:"titles"`
		}
		if err := json.Unmarshal([]byte(trimmed), &body); err != nil {
			return nil, fmt.Errorf("invalid JSON titles object: %w", err)
		}
		return body.Titles, nil
	}

	var titles []string
	sc := bufio.NewScanner(strings.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			titles = append(titles, line)
		}
	}
	return titles, sc.Err()
}
