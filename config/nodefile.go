package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadNodeFile returns the node identifiers listed in a node file, such as the
// file named by $PBS_NODEFILE.
//
// The file lists one node per line. A node is repeated once for each processor
// allocated on it. Blank lines and lines starting with '#' are ignored.
func ReadNodeFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read node file: %w", err)
	}
	defer f.Close()

	var nodes []string

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		nodes = append(nodes, line)
	}

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("unable to read node file: %w", err)
	}

	return nodes, nil
}
