package elevation

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultServerProcess is the runtime server's process name.
const DefaultServerProcess = "vrserver"

// ProcInspector reads elevation from a procfs tree. A process counts as
// elevated when its effective uid is 0.
type ProcInspector struct {
	// Root is the procfs mount, "/proc" when empty.
	Root string
	// ServerProcess is matched against each process's comm.
	ServerProcess string
	// SelfUID overrides the current effective uid, mainly for tests.
	SelfUID *int
}

func (p ProcInspector) root() string {
	if p.Root == "" {
		return "/proc"
	}
	return p.Root
}

func (p ProcInspector) SelfElevated() (bool, error) {
	if p.SelfUID != nil {
		return *p.SelfUID == 0, nil
	}
	uid := os.Geteuid()
	if uid < 0 {
		return false, errors.New("elevation: effective uid unavailable on this platform")
	}
	return uid == 0, nil
}

func (p ProcInspector) RuntimeElevated() (bool, bool, error) {
	name := p.ServerProcess
	if name == "" {
		name = DefaultServerProcess
	}

	entries, err := os.ReadDir(p.root())
	if err != nil {
		return false, false, fmt.Errorf("reading %s: %w", p.root(), err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		dir := filepath.Join(p.root(), e.Name())

		comm, err := os.ReadFile(filepath.Join(dir, "comm"))
		if err != nil {
			// processes exit while we scan
			continue
		}
		if strings.TrimSpace(string(comm)) != name {
			continue
		}

		uid, err := effectiveUID(filepath.Join(dir, "status"))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return false, true, err
		}
		return uid == 0, true, nil
	}
	return false, false, nil
}

// effectiveUID parses the second field of the "Uid:" line.
func effectiveUID(statusPath string) (int, error) {
	f, err := os.Open(statusPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Uid:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "Uid:"))
		if len(fields) < 2 {
			return 0, fmt.Errorf("malformed Uid line in %s", statusPath)
		}
		return strconv.Atoi(fields[1])
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("no Uid line in %s", statusPath)
}
